// Package config loads and validates phonebridge configuration.
//
// Configuration is a YAML file layered over Default. A loaded file is checked
// twice: first against the built-in CUE schema, which reports every violation
// with its path, then against the struct tags with the go-playground
// validator.
//
// The C library and the stdio runner have no command line of their own to
// speak of, so FromEnv reads the file named by DRPHONE_CONFIG and applies a
// DRPHONE_LOG_LEVEL override.
//
// Example file:
//
//	engine:
//	  name: libphonenumber
//	  warmup_regions: [US, GB, MY]
//	wasm:
//	  max_input_bytes: 256
//	telemetry:
//	  logging:
//	    level: info
//	  metrics:
//	    listen_address: 127.0.0.1:9464
package config
