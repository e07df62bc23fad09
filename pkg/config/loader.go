package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables read by FromEnv.
const (
	EnvConfigPath = "DRPHONE_CONFIG"
	EnvLogLevel   = "DRPHONE_LOG_LEVEL"
)

var (
	schemaOnce sync.Once
	schema     *Schema
	schemaErr  error

	validate = validator.New(validator.WithRequiredStructEnabled())
)

func builtinSchema() (*Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = NewSchema()
	})
	return schema, schemaErr
}

// Load reads the YAML file at path over Default and validates the result.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			for i := range cerr.Errors {
				cerr.Errors[i].File = path
			}
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML content over Default and validates the result.
func Parse(content []byte) (*Config, error) {
	cfg := Default()

	var node yaml.Node
	if err := yaml.Unmarshal(content, &node); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// an empty document keeps the defaults
	if len(node.Content) > 0 {
		if err := node.Decode(cfg); err != nil {
			return nil, &Error{Errors: convertYAMLError(err)}
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against the CUE schema, then the struct tags, then the
// telemetry rules.
func Validate(cfg *Config) error {
	s, err := builtinSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(cfg); err != nil {
		return err
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			out := make([]ValidationError, 0, len(verrs))
			for _, fe := range verrs {
				out = append(out, ValidationError{
					Path:    fe.Namespace(),
					Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
				})
			}
			return &Error{Errors: out}
		}
		return err
	}

	if err := cfg.Telemetry.Validate(); err != nil {
		return &Error{Errors: []ValidationError{{Path: "telemetry", Message: err.Error()}}}
	}
	return nil
}

// FromEnv loads the file named by DRPHONE_CONFIG, or Default when it is
// unset, then applies DRPHONE_LOG_LEVEL.
func FromEnv() (*Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(level)
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	return cfg, nil
}

func convertYAMLError(err error) []ValidationError {
	var terr *yaml.TypeError
	if errors.As(err, &terr) {
		out := make([]ValidationError, 0, len(terr.Errors))
		for _, msg := range terr.Errors {
			out = append(out, ValidationError{Message: msg})
		}
		return out
	}
	return []ValidationError{{Message: err.Error()}}
}
