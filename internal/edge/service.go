package edge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/prop-edge/internal/events"
	auditlog "github.com/yourusername/prop-edge/internal/logger"
	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/repository"
	"github.com/yourusername/prop-edge/internal/stats"
)

// sweepYield is slept between props during a sweep so a large catalog cannot
// monopolize the database pool.
const sweepYield = time.Millisecond

// Thresholds is the qualification gate applied to valuations. The probability
// band deliberately excludes near-certain outcomes, which usually indicate
// suspect or stale data rather than genuine value.
type Thresholds struct {
	EVMin         float64
	ProbOverMin   float64
	ProbOverMax   float64
	VolatilityMax float64
}

// DefaultThresholds returns the standard qualification gate
func DefaultThresholds() Thresholds {
	return Thresholds{
		EVMin:         0.05,
		ProbOverMin:   0.52,
		ProbOverMax:   0.75,
		VolatilityMax: 2.0,
	}
}

// Valuator prices a prop. The valuation engine implements it; tests use
// doubles.
type Valuator interface {
	Valuate(ctx context.Context, propID int64, modelVersionID string) (*models.Valuation, error)
}

// SweepStats summarises one sport-wide recomputation.
type SweepStats struct {
	Evaluated int           `json:"evaluated"`
	New       int           `json:"new"`
	Updated   int           `json:"updated"`
	Retired   int           `json:"retired"`
	Duration  time.Duration `json:"duration"`
}

// Service qualifies valuations as edges and manages their ACTIVE/RETIRED
// lifecycle. At most one sweep runs per process; the others fail fast with
// models.ErrSweepInProgress.
type Service struct {
	edges      repository.EdgeRepository
	props      repository.PropRepository
	valuator   Valuator
	thresholds Thresholds
	publisher  events.Publisher
	audit      *auditlog.AuditLogger
	log        *logrus.Entry

	sweepMu sync.Mutex
}

// NewService creates an edge service
func NewService(
	edges repository.EdgeRepository,
	props repository.PropRepository,
	valuator Valuator,
	thresholds Thresholds,
	publisher events.Publisher,
	logger *logrus.Logger,
) *Service {
	return &Service{
		edges:      edges,
		props:      props,
		valuator:   valuator,
		thresholds: thresholds,
		publisher:  publisher,
		audit:      auditlog.NewAuditLogger(logger),
		log:        logger.WithField("component", "edge_service"),
	}
}

// Qualifies reports whether a valuation clears the thresholds.
func (s *Service) Qualifies(v *models.Valuation) bool {
	return v.ExpectedValue >= s.thresholds.EVMin &&
		v.ProbOver >= s.thresholds.ProbOverMin &&
		v.ProbOver <= s.thresholds.ProbOverMax &&
		v.VolatilityScore <= s.thresholds.VolatilityMax
}

// DetectEdge qualifies a valuation. It returns the existing ACTIVE edge
// unchanged when one already covers the valuation hash, a freshly persisted
// edge when the valuation qualifies, and (nil, nil) when it does not.
func (s *Service) DetectEdge(ctx context.Context, valuation *models.Valuation) (*models.Edge, error) {
	existing, err := s.edges.GetActiveByValuationHash(ctx, valuation.ValuationHash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if !s.Qualifies(valuation) {
		s.log.WithFields(logrus.Fields{
			"prop_id":          valuation.PropID,
			"expected_value":   valuation.ExpectedValue,
			"prob_over":        valuation.ProbOver,
			"volatility_score": valuation.VolatilityScore,
		}).Debug("valuation did not qualify as edge")
		return nil, nil
	}

	edge := &models.Edge{
		ID:             uuid.New(),
		ValuationID:    valuation.ID,
		PropID:         valuation.PropID,
		ModelVersionID: valuation.ModelVersionID,
		EdgeScore:      stats.EdgeScore(valuation.ExpectedValue, valuation.VolatilityScore),
		EV:             valuation.ExpectedValue,
		ProbOver:       valuation.ProbOver,
		OfferedLine:    valuation.OfferedLine,
		FairLine:       valuation.FairLine,
		Status:         models.EdgeStatusActive,
	}
	if err := s.edges.Create(ctx, edge); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.TypeEdgeDetected, edge)
	metrics.RecordEdgeDetected()
	s.audit.LogEdgeDetected(edge.ID.String(), edge.PropID, edge.ModelVersionID, edge.EV, edge.EdgeScore, edge.ProbOver)
	s.log.WithFields(logrus.Fields{
		"edge_id":    edge.ID,
		"prop_id":    edge.PropID,
		"edge_score": edge.EdgeScore,
		"ev":         edge.EV,
	}).Info("edge detected")

	return edge, nil
}

// RecomputeEdgesForSport re-valuates every active prop for a sport and
// reconciles its edges: stale ACTIVE edges retire, qualifying valuations gain
// fresh edges. Props are processed sequentially in catalog order.
func (s *Service) RecomputeEdgesForSport(ctx context.Context, sport models.Sport) (*SweepStats, error) {
	if !s.sweepMu.TryLock() {
		return nil, models.ErrSweepInProgress
	}
	defer s.sweepMu.Unlock()

	started := time.Now()
	sweep := &SweepStats{}
	defer func() { sweep.Duration = time.Since(started) }()

	props, err := s.props.ListActiveBySport(ctx, sport)
	if err != nil {
		return nil, err
	}

	for _, prop := range props {
		if ctx.Err() != nil {
			return sweep, ctx.Err()
		}
		sweep.Evaluated++

		valuation, err := s.valuator.Valuate(ctx, prop.PropID, "")
		if err != nil {
			if errors.Is(err, models.ErrPriceUnavailable) {
				continue
			}
			return sweep, err
		}

		if err := s.reconcileProp(ctx, valuation, sweep); err != nil {
			return sweep, err
		}

		// yield between props so a long catalog shares the scheduler
		time.Sleep(sweepYield)
	}

	if active, err := s.edges.GetActiveEdges(ctx, repository.EdgeFilter{Sport: sport}); err == nil {
		metrics.UpdateActiveEdges(string(sport), float64(len(active)))
	}

	s.log.WithFields(logrus.Fields{
		"sport":     sport,
		"evaluated": sweep.Evaluated,
		"new":       sweep.New,
		"updated":   sweep.Updated,
		"retired":   sweep.Retired,
	}).Info("edge sweep complete")

	return sweep, nil
}

// reconcileProp brings one prop's edges in line with its fresh valuation.
func (s *Service) reconcileProp(ctx context.Context, valuation *models.Valuation, sweep *SweepStats) error {
	active, err := s.edges.GetActiveByPropID(ctx, valuation.PropID)
	if err != nil {
		return err
	}

	if !s.Qualifies(valuation) {
		for _, stale := range active {
			if err := s.retireEdge(ctx, stale, "no_longer_qualifies"); err != nil {
				return err
			}
			sweep.Retired++
		}
		return nil
	}

	hadCurrent := false
	replaced := false
	for _, existing := range active {
		current, err := s.hashCovers(ctx, existing, valuation.ValuationHash)
		if err != nil {
			return err
		}
		if current {
			hadCurrent = true
			continue
		}
		if err := s.retireEdge(ctx, existing, "superseded"); err != nil {
			return err
		}
		sweep.Retired++
		replaced = true
	}
	if hadCurrent {
		return nil
	}

	edge, err := s.DetectEdge(ctx, valuation)
	if err != nil {
		return err
	}
	if edge != nil {
		if replaced {
			sweep.Updated++
		} else {
			sweep.New++
		}
	}
	return nil
}

// hashCovers reports whether an edge's valuation carries the given hash.
func (s *Service) hashCovers(ctx context.Context, edge *models.Edge, hash string) (bool, error) {
	covering, err := s.edges.GetActiveByValuationHash(ctx, hash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return covering.ID == edge.ID, nil
}

func (s *Service) retireEdge(ctx context.Context, edge *models.Edge, reason string) error {
	retiredAt := time.Now().UTC()
	if err := s.edges.Retire(ctx, edge.ID, retiredAt); err != nil {
		return err
	}
	s.publisher.Publish(ctx, events.TypeEdgeRetired, edge)
	metrics.RecordEdgeRetired()
	s.audit.LogEdgeRetired(edge.ID.String(), edge.PropID, reason, retiredAt)
	return nil
}

// RetireEdgesForProp bulk-retires a prop's ACTIVE edges. Upstream calls it
// when the market line moves.
func (s *Service) RetireEdgesForProp(ctx context.Context, propID int64) (int64, error) {
	active, err := s.edges.GetActiveByPropID(ctx, propID)
	if err != nil {
		return 0, err
	}
	if len(active) == 0 {
		return 0, nil
	}

	count, err := s.edges.RetireByPropID(ctx, propID, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	retiredAt := time.Now().UTC()
	for _, edge := range active {
		s.publisher.Publish(ctx, events.TypeEdgeRetired, edge)
		metrics.RecordEdgeRetired()
		s.audit.LogEdgeRetired(edge.ID.String(), edge.PropID, "line_moved", retiredAt)
	}
	s.log.WithFields(logrus.Fields{"prop_id": propID, "retired": count}).Info("retired edges for prop")

	return count, nil
}

// GetActiveEdges lists ACTIVE edges, best score first
func (s *Service) GetActiveEdges(ctx context.Context, filter repository.EdgeFilter) ([]*models.Edge, error) {
	return s.edges.GetActiveEdges(ctx, filter)
}

// GetEdgeByID retrieves one edge
func (s *Service) GetEdgeByID(ctx context.Context, id uuid.UUID) (*models.Edge, error) {
	return s.edges.GetByID(ctx, id)
}
