package modeling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
)

func newHTTPSource(t *testing.T, baseURL string, mutate func(*HTTPSourceConfig)) *HTTPStatsSource {
	t.Helper()
	cfg := DefaultHTTPSourceConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.MaxRetries = 0
	cfg.RateLimit = 1000
	if mutate != nil {
		mutate(&cfg)
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewHTTPStatsSource(cfg, log)
}

func TestHTTPStatsSourceFetchesHistory(t *testing.T) {
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		assert.Equal(t, "POINTS", r.URL.Query().Get("prop_type"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(statHistoryResponse{
			PlayerID: 7,
			PropType: "POINTS",
			Samples:  []float64{22, 25, 31},
		})
	}))
	defer server.Close()

	source := newHTTPSource(t, server.URL, nil)
	defer source.Close()

	samples, err := source.GetPlayerStatHistory(context.Background(), 7, models.PropTypePoints, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{22, 25, 31}, samples)
	assert.Equal(t, "Bearer test-key", gotAuth.Load())
}

func TestHTTPStatsSourceEmptySamplesUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statHistoryResponse{PlayerID: 7, PropType: "POINTS"})
	}))
	defer server.Close()

	source := newHTTPSource(t, server.URL, nil)
	defer source.Close()

	_, err := source.GetPlayerStatHistory(context.Background(), 7, models.PropTypePoints, 10)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
}

func TestHTTPStatsSourceNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source := newHTTPSource(t, server.URL, func(cfg *HTTPSourceConfig) {
		cfg.CircuitBreakerMax = 2
	})
	defer source.Close()

	for i := 0; i < 5; i++ {
		_, err := source.GetPlayerStatHistory(context.Background(), 7, models.PropTypePoints, 10)
		assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	}
	assert.False(t, source.circuitOpen())
}

func TestHTTPStatsSourceBreakerOpensAndCoolsDown(t *testing.T) {
	var calls atomic.Int64
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(statHistoryResponse{
			PlayerID: 7, PropType: "POINTS", Samples: []float64{1, 2, 3},
		})
	}))
	defer server.Close()

	source := newHTTPSource(t, server.URL, func(cfg *HTTPSourceConfig) {
		cfg.CircuitBreakerMax = 2
		cfg.BreakerCooldown = 50 * time.Millisecond
	})
	defer source.Close()

	trips := testutil.ToFloat64(metrics.StatsSourceTripsTotal)
	for i := 0; i < 2; i++ {
		_, err := source.GetPlayerStatHistory(context.Background(), 7, models.PropTypePoints, 10)
		assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	}
	require.EqualValues(t, 2, calls.Load(), "breaker should be open after threshold failures")
	assert.Equal(t, trips+1, testutil.ToFloat64(metrics.StatsSourceTripsTotal))

	// Short-circuited while open: no request reaches the server.
	_, err := source.GetPlayerStatHistory(context.Background(), 7, models.PropTypePoints, 10)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	assert.EqualValues(t, 2, calls.Load())

	// After the cooldown one request goes through and a success closes the breaker.
	healthy.Store(true)
	time.Sleep(60 * time.Millisecond)

	samples, err := source.GetPlayerStatHistory(context.Background(), 7, models.PropTypePoints, 10)
	require.NoError(t, err)
	assert.Len(t, samples, 3)
	assert.False(t, source.circuitOpen())
}
