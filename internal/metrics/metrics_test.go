package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Heartbeat(ResultOK)
	m.Registration(ResultRejected)
	m.Delta("add_client", ResultOK)
	m.SetRegistered(true)
	m.SetRosterSize(3)
}

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Heartbeat(ResultOK)
	m.Heartbeat(ResultOK)
	m.Heartbeat(ResultFailed)
	m.Delta("remove_client", ResultRejected)
	m.SetRegistered(true)
	m.SetRosterSize(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Heartbeats.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Heartbeats.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deltas.WithLabelValues("remove_client", ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registered))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RosterSize))

	m.SetRegistered(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Registered))
}
