package util

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMeasureRecordsOutcome(t *testing.T) {
	m := NewTestMetrics()

	ok := Measure(m, "op", func(ctx context.Context) (int, error) { return 42, nil })
	fail := Measure(m, "op", func(ctx context.Context) (int, error) { return 0, errors.New("boom") })

	v, err := ok(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = fail(context.Background())
	assert.EqualError(t, err, "boom")

	assert.Equal(t, 2, testutil.CollectAndCount(m.OperationDuration))
}

func TestMeasureWithoutMetrics(t *testing.T) {
	fn := Measure(nil, "op", func(ctx context.Context) (string, error) { return "x", nil })

	v, err := fn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestSentryReporterWithoutDSNCounts(t *testing.T) {
	m := NewTestMetrics()
	r, err := NewSentryReporter("", "test", m, zap.NewNop())
	require.NoError(t, err)

	r.Report(context.Background(), "webhook", errors.New("boom"))
	r.Report(context.Background(), "webhook", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsReported.WithLabelValues("webhook")))
}

func TestInitLoggerLevel(t *testing.T) {
	require.NoError(t, InitLogger("production", "warn"))
	assert.False(t, GetLogger().Core().Enabled(zap.InfoLevel))
	assert.True(t, GetLogger().Core().Enabled(zap.WarnLevel))

	assert.Error(t, InitLogger("development", "loud"))
}

func TestStartSpanWithoutExporter(t *testing.T) {
	tp, err := InitTracer(TracerConfig{Environment: "test", SampleRatio: 1})
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := StartSpan(context.Background(), "test.span")
	assert.True(t, span.SpanContext().IsValid())
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}
