// Package telemetry provides observability for the phonebridge boundaries.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and
// metrics (Prometheus) behind one Telemetry value that every boundary shares.
//
// # Defaults
//
// A boundary embedded in a host process must stay quiet: the default logger
// writes warnings and above as JSON to stderr, tracing is off and does not
// touch the global provider, and metrics are collected in a private registry
// that is only served over HTTP when a listen address is configured.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ic := tel.StartOperation(ctx, "c", "format")
//	defer func() { ic.End(err) }()
//
// End records calls_total by outcome, call_duration_seconds, failures_total by
// error class and finishes the span. Panicked records engine_panics_total.
//
// Ownership counters track result graphs handed across a boundary:
//
//	tel.Metrics.RecordAllocation("wasm")
//	tel.Metrics.RecordRelease("wasm")
//
// live_allocations is their difference per ABI and should return to zero once
// a caller has released everything it received.
package telemetry
