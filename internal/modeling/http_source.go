package modeling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
)

// HTTPSourceConfig holds configuration for the remote stats source.
type HTTPSourceConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RateLimit         float64       // requests per second
	CircuitBreakerMax int           // consecutive failures before the circuit opens
	BreakerCooldown   time.Duration // how long the circuit stays open before half-opening
}

// DefaultHTTPSourceConfig returns recommended defaults.
func DefaultHTTPSourceConfig() HTTPSourceConfig {
	return HTTPSourceConfig{
		Timeout:           30 * time.Second,
		MaxRetries:        5,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      10 * time.Second,
		RateLimit:         10.0,
		CircuitBreakerMax: 5,
		BreakerCooldown:   60 * time.Second,
	}
}

// HTTPStatsSource fetches player stat history from a remote API through a
// retrying, rate-limited client with a simple circuit breaker. Every failure
// maps to models.ErrDataUnavailable so the provider chain moves on instead of
// surfacing transport errors into pricing.
type HTTPStatsSource struct {
	cfg    HTTPSourceConfig
	client *retryablehttp.Client
	limit  *rate.Limiter
	log    *logrus.Entry

	mu                sync.Mutex
	consecutiveErrors int
	open              bool
	openedAt          time.Time
}

// NewHTTPStatsSource creates the remote source.
func NewHTTPStatsSource(cfg HTTPSourceConfig, logger *logrus.Logger) *HTTPStatsSource {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = statsRetryPolicy()
	retryClient.Logger = nil

	return &HTTPStatsSource{
		cfg:    cfg,
		client: retryClient,
		limit:  rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		log:    logger.WithField("component", "http_stats_source"),
	}
}

type statHistoryResponse struct {
	PlayerID int64     `json:"player_id"`
	PropType string    `json:"prop_type"`
	Samples  []float64 `json:"samples"`
}

// GetPlayerStatHistory implements HistoricalStatsProvider.
func (s *HTTPStatsSource) GetPlayerStatHistory(ctx context.Context, playerID int64, propType models.PropType, lookbackGames int) ([]float64, error) {
	if s.circuitOpen() {
		return nil, models.ErrDataUnavailable
	}

	if err := s.limit.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/players/%d/history?prop_type=%s&limit=%d", s.cfg.BaseURL, playerID, propType, lookbackGames)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.ErrDataUnavailable
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordFailure(err)
		return nil, models.ErrDataUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			s.recordFailure(fmt.Errorf("stats api returned %d", resp.StatusCode))
		}
		return nil, models.ErrDataUnavailable
	}
	s.recordSuccess()

	var payload statHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.log.WithError(err).Warn("failed to decode stats api response")
		return nil, models.ErrDataUnavailable
	}
	if len(payload.Samples) == 0 {
		return nil, models.ErrDataUnavailable
	}
	return payload.Samples, nil
}

// Close releases idle connections held by the underlying client.
func (s *HTTPStatsSource) Close() {
	s.client.HTTPClient.CloseIdleConnections()
}

func (s *HTTPStatsSource) circuitOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false
	}
	cooldown := s.cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	// Half-open after the cooldown: let one request through. A success
	// resets the breaker, a failure re-stamps openedAt.
	if time.Since(s.openedAt) >= cooldown {
		s.openedAt = time.Now()
		return false
	}
	return true
}

func (s *HTTPStatsSource) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors++
	if s.consecutiveErrors >= s.cfg.CircuitBreakerMax {
		if !s.open {
			s.log.WithError(err).WithField("consecutive_errors", s.consecutiveErrors).
				Warn("stats api circuit breaker opened")
			metrics.RecordStatsSourceTrip()
		}
		s.open = true
		s.openedAt = time.Now()
	}
}

func (s *HTTPStatsSource) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors = 0
	s.open = false
}

// statsRetryPolicy retries network errors, rate limits and server errors;
// other client errors fail immediately.
func statsRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, err
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true, nil
		}
		return false, nil
	}
}
