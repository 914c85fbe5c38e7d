package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoop(t *testing.T) {
	tel, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, tel.IsEnabled())

	// The no-op tracer still hands out usable spans.
	_, span := tel.Tracer().Start(context.Background(), "dispatch")
	span.End()

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry
	assert.False(t, tel.IsEnabled())
	_, span := tel.Tracer().Start(context.Background(), "dispatch")
	span.End()
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, stop())
}

func TestInitProfilingRejectsUnknownType(t *testing.T) {
	_, err := InitProfiling(ProfilingConfig{
		Enabled:      true,
		ProfileTypes: []string{"heap_of_lies"},
	})
	assert.Error(t, err)
}

func TestParseProfileTypes(t *testing.T) {
	for _, name := range []string{
		"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space",
		"goroutines", "mutex_count", "mutex_duration", "block_count", "block_duration",
	} {
		_, err := parseProfileType(name)
		assert.NoError(t, err, name)
	}
	_, err := parseProfileType("nope")
	assert.Error(t, err)
}
