package config

import (
	"fmt"
	"strings"

	"github.com/openfroyo/phonebridge/pkg/telemetry"
)

// Config is the complete phonebridge configuration.
type Config struct {
	// Engine selects and prepares the phone-number engine.
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// WASM bounds the WebAssembly host boundary.
	WASM WASMConfig `yaml:"wasm" json:"wasm"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry"`
}

// EngineConfig selects the phone-number engine.
type EngineConfig struct {
	// Name is the registered engine name.
	Name string `yaml:"name" json:"name" validate:"required"`

	// WarmupRegions are checked against the engine's metadata at startup.
	WarmupRegions []string `yaml:"warmup_regions" json:"warmup_regions,omitempty" validate:"dive,len=2,alpha,uppercase"`
}

// WASMConfig bounds what the WebAssembly host reads from guest memory.
type WASMConfig struct {
	// MaxInputBytes caps the length of a text argument read from a guest.
	MaxInputBytes uint32 `yaml:"max_input_bytes" json:"max_input_bytes" validate:"required,min=16,max=65536"`

	// MemoryLimitPages caps guest memory in 64 KiB pages. Zero keeps the
	// runtime default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" json:"memory_limit_pages" validate:"max=65536"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Name: "libphonenumber",
		},
		WASM: WASMConfig{
			MaxInputBytes:    1024,
			MemoryLimitPages: 256,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// ValidationError describes one configuration violation.
type ValidationError struct {
	// File is the configuration file, if known.
	File string `json:"file,omitempty"`

	// Line is the line number in the file (1-indexed).
	Line int `json:"line,omitempty"`

	// Path is the field path (e.g., "telemetry.logging.level").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Error collects every violation found in one configuration.
type Error struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		parts = append(parts, v.String())
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}
