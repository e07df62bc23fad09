package config

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Schema validates configuration values against the built-in CUE schema.
// A cue.Context is not safe for concurrent use, so Validate serializes.
type Schema struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

// NewSchema compiles the built-in schema.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(builtinConfigSchema, cue.Filename("phonebridge.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}

	def := val.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return nil, fmt.Errorf("config schema has no #Config definition")
	}

	return &Schema{ctx: ctx, def: def}, nil
}

// Validate unifies cfg with the schema and reports every violation.
func (s *Schema) Validate(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.Encode(cfg)
	if err := data.Err(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	unified := s.def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &Error{Errors: convertCUEErrors(err)}
	}

	return nil
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		out = append(out, ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: strings.TrimSpace(cueerrors.Details(e, nil)),
		})
	}
	return out
}

const builtinConfigSchema = `
// Top-level phonebridge configuration.
#Config: {
	engine:    #Engine
	wasm:      #WASM
	telemetry: #Telemetry
}

#Engine: {
	// Registered engine name.
	name: "libphonenumber"

	// ISO 3166-1 alpha-2 codes, upper case.
	warmup_regions?: [...=~"^[A-Z]{2}$"] | null
}

#WASM: {
	max_input_bytes:    int & >=16 & <=65536
	memory_limit_pages: int & >=0 & <=65536
}

#Telemetry: {
	service_name:    string & !=""
	service_version: string & !=""
	environment:     string

	logging: {
		level:         "trace" | "debug" | "info" | "warn" | "error" | "fatal" | "disabled"
		format:        "console" | "json"
		output:        string & !=""
		enable_caller: bool
		time_format:   "" | "unix" | "unixms" | "unixmicro" | "rfc3339"
	}

	tracing: {
		enabled:               bool
		exporter:              "otlp" | "stdout" | "none"
		endpoint:              string
		sampling_rate:         number & >=0 & <=1
		max_export_batch_size: int & >=0
		export_timeout:        int & >=0
		headers?: {[string]: string} | null
		insecure: bool
	}

	metrics: {
		enabled:        bool
		listen_address: string
		path:           string
		namespace:      string & =~"^[a-zA-Z_][a-zA-Z0-9_]*$"
		default_histogram_buckets?: [...number] | null
	}
}
`
