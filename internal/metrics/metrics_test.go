package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()

	h, ok := o.(prometheus.Histogram)
	require.True(t, ok)
	m := &dto.Metric{}
	require.NoError(t, h.Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestRecordPipeline(t *testing.T) {
	c := PipelinesTotal.WithLabelValues(OutcomeConnectFailed)
	before := counterValue(t, c)

	RecordPipeline(OutcomeConnectFailed)

	assert.Equal(t, before+1, counterValue(t, c))
}

func TestRecordRelay(t *testing.T) {
	upC := RelayBytes.WithLabelValues("client_to_target")
	downC := RelayBytes.WithLabelValues("target_to_client")
	up, down := counterValue(t, upC), counterValue(t, downC)

	RecordRelay(10, 32)

	assert.Equal(t, up+10, counterValue(t, upC))
	assert.Equal(t, down+32, counterValue(t, downC))
}

func TestRecordRequest(t *testing.T) {
	c := RequestsTotal.WithLabelValues("rtsp", "passthrough")
	before := counterValue(t, c)

	RecordRequest("rtsp", "passthrough")

	assert.Equal(t, before+1, counterValue(t, c))
}

func TestRecordConnect(t *testing.T) {
	ok := histogramCount(t, ConnectDuration.WithLabelValues("ok"))
	failed := histogramCount(t, ConnectDuration.WithLabelValues("error"))

	RecordConnect(true, 0.01)
	RecordConnect(false, 0.5)
	RecordConnect(false, 1.5)

	assert.Equal(t, ok+1, histogramCount(t, ConnectDuration.WithLabelValues("ok")))
	assert.Equal(t, failed+2, histogramCount(t, ConnectDuration.WithLabelValues("error")))
}
