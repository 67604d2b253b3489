package metrics

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
}

func TestRecordValuation(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordValuation(0.05)
		RecordValuationUnavailable()
	})
}

func TestEdgeCounters(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordEdgeDetected()
		RecordEdgeRetired()
		RecordSweep("NBA", "success", 1.2)
	})
}

func TestExposureGauge(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name   string
		amount float64
	}{
		{name: "normal exposure", amount: 500},
		{name: "zero exposure", amount: 0},
		{name: "high exposure", amount: 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateUserExposure("user-1", tt.amount)
			})
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()

	handler := Handler()
	assert.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)
}
