package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/openfroyo/phonebridge/pkg/boundary/cabi"
	"github.com/openfroyo/phonebridge/pkg/config"
	"github.com/openfroyo/phonebridge/pkg/providers"
	"github.com/openfroyo/phonebridge/pkg/telemetry"
)

// sharedTelemetry lives until the process exits; a c-shared library gets no
// unload hook to flush it from.
var (
	bridgeOnce      sync.Once
	sharedBridge    *cabi.Bridge
	sharedTelemetry *telemetry.Telemetry
)

// shutdownTimeout bounds releasing telemetry for an engine that failed to start.
const shutdownTimeout = 5 * time.Second

// bridge returns the process-wide bridge, building it on first use.
func bridge() *cabi.Bridge {
	bridgeOnce.Do(func() {
		sharedBridge, sharedTelemetry = bootstrap(providers.DefaultRegistry(), config.FromEnv)
	})
	return sharedBridge
}

// bootstrap builds a bridge from the configuration returned by load. A bad
// configuration falls back to the defaults; an engine that cannot start
// leaves a bridge that fails every call and no telemetry running.
func bootstrap(registry *providers.Registry, load func() (*config.Config, error)) (*cabi.Bridge, *telemetry.Telemetry) {
	log := telemetry.NewLoggerTo(os.Stderr, telemetry.DefaultConfig().Logging).
		NewComponentLogger("libdrphone")

	cfg, err := load()
	if err != nil {
		log.WithError(err).Error("invalid configuration, using defaults")
		cfg = config.Default()
	}

	surface, tel, err := registry.Open(cfg, cabi.ABI)
	if err != nil {
		log.WithError(err).Error("failed to start phone number engine")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := tel.Shutdown(ctx); serr != nil {
			log.WithError(serr).Warn("failed to stop telemetry")
		}
		return cabi.NewBridge(nil), nil
	}
	return cabi.NewBridge(surface), tel
}
