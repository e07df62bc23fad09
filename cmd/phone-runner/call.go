package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/phonebridge/pkg/boundary"
	"github.com/openfroyo/phonebridge/pkg/engine"
)

func newCallCommand(opts *options) *cobra.Command {
	var (
		region      string
		format      string
		callingCode uint16
	)

	cmd := &cobra.Command{
		Use:   "call OPERATION [NUMBER]",
		Short: "Run one operation and print its result envelope as JSON",
		Long: `Run one operation and print its result envelope, either {"data": ...} or
{"error": {...}}. Operations: ` + fmt.Sprint(boundary.Operations()) + `.

An operation failure is still printed and exits zero; only usage and
configuration errors fail the command.`,
		Example: `  phone-runner call format 4155552671 --region US --format International
  phone-runner call classify +447400123456 --region GB
  phone-runner call region_for_calling_code --calling-code 44`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			op := args[0]

			if op == boundary.OpRegionForCallingCode {
				if len(args) != 1 {
					return fmt.Errorf("%s takes no NUMBER argument", op)
				}
			} else if len(args) != 2 {
				return fmt.Errorf("%s requires a NUMBER argument", op)
			}

			surface, shutdown, err := opts.open(ctx, boundary.ABIGo)
			if err != nil {
				return err
			}
			defer shutdown()

			var out interface{}
			switch op {
			case boundary.OpFormat:
				f, err := engine.ParseNumberFormat(format)
				if err != nil {
					return err
				}
				out = surface.Format(ctx, args[1], region, f)
			case boundary.OpClassify:
				out = surface.Classify(ctx, args[1], region)
			case boundary.OpRegionInfo:
				out = surface.RegionInfo(ctx, args[1], region)
			case boundary.OpIsValid:
				out = surface.IsValid(ctx, args[1], region)
			case boundary.OpRegionForCallingCode:
				out = surface.RegionForCallingCode(ctx, callingCode)
			default:
				return fmt.Errorf("unknown operation %q", op)
			}

			b, err := json.Marshal(out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "", "default region for numbers without a leading +")
	cmd.Flags().StringVarP(&format, "format", "f", engine.FormatE164.String(), "output format for the format operation")
	cmd.Flags().Uint16Var(&callingCode, "calling-code", 0, "calling code for region_for_calling_code")

	return cmd
}
