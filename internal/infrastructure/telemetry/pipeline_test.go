package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap/zaptest"
)

type fakeSDK struct {
	flushed     int
	shutdownErr error
	deadline    time.Time
}

func (f *fakeSDK) ForceFlush(context.Context) error {
	f.flushed++
	return nil
}

func (f *fakeSDK) Shutdown(ctx context.Context) error {
	f.deadline, _ = ctx.Deadline()
	return f.shutdownErr
}

func TestPipeline_Disabled(t *testing.T) {
	p := newPipeline("traces", zaptest.NewLogger(t))
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestPipeline_ShutdownIsBounded(t *testing.T) {
	sdk := &fakeSDK{}
	p := newPipeline("metrics", zaptest.NewLogger(t))
	p.started(sdk, "collector:4317")

	require.True(t, p.IsEnabled())
	require.NoError(t, p.ForceFlush(context.Background()))
	assert.Equal(t, 1, sdk.flushed)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.WithinDuration(t, time.Now().Add(shutdownTimeout), sdk.deadline, time.Second)
}

func TestPipeline_ShutdownErrorNamesSignal(t *testing.T) {
	cause := errors.New("collector unreachable")
	p := newPipeline("logs", zaptest.NewLogger(t))
	p.started(&fakeSDK{shutdownErr: cause}, "collector:4317")

	err := p.Shutdown(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "logs")
}

func TestInstruments_KeepsFirstError(t *testing.T) {
	in := &instruments{meter: metric.NewMeterProvider().Meter("test")}
	in.keep("a", errors.New("first"))
	in.keep("b", errors.New("second"))
	require.Error(t, in.err)
	assert.Contains(t, in.err.Error(), "first")
	assert.Contains(t, in.err.Error(), "instrument a")
}
