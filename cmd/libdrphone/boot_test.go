package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/openfroyo/phonebridge/pkg/boundary/cabi"
	"github.com/openfroyo/phonebridge/pkg/config"
	"github.com/openfroyo/phonebridge/pkg/engine"
	"github.com/openfroyo/phonebridge/pkg/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formatUS(t *testing.T, b *cabi.Bridge) (string, string) {
	t.Helper()
	number := cabi.NewCString("4155552671")
	region := cabi.NewCString("US")
	defer cabi.FreeCString(number)
	defer cabi.FreeCString(region)

	p := b.Format(number, region, uint32(engine.FormatE164))
	require.NotNil(t, p)
	defer b.Release(p)

	res, err := cabi.ReadStringResult(p)
	require.NoError(t, err)
	data, _ := res.Value()
	return data, res.Message()
}

func TestBootstrapFallsBackToDefaults(t *testing.T) {
	b, tel := bootstrap(providers.DefaultRegistry(), func() (*config.Config, error) {
		return nil, errors.New("broken file")
	})
	require.NotNil(t, tel)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	data, msg := formatUS(t, b)
	assert.Empty(t, msg)
	assert.Equal(t, "+14155552671", data)
}

func TestBootstrapWithoutEngine(t *testing.T) {
	b, tel := bootstrap(providers.NewRegistry(), func() (*config.Config, error) {
		return config.Default(), nil
	})
	assert.Nil(t, tel)

	data, msg := formatUS(t, b)
	assert.Empty(t, data)
	assert.Equal(t, "[internal] phone number engine unavailable", msg)
}

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestBootstrapWithoutEngineStopsMetricsListener(t *testing.T) {
	addr := freeAddress(t)

	b, tel := bootstrap(providers.NewRegistry(), func() (*config.Config, error) {
		cfg := config.Default()
		cfg.Telemetry.Metrics.ListenAddress = addr
		return cfg, nil
	})
	require.NotNil(t, b)
	assert.Nil(t, tel)

	// the listener of the abandoned telemetry must not keep the port
	require.Eventually(t, func() bool {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		_ = l.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)
}
