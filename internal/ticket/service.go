package ticket

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/prop-edge/internal/events"
	auditlog "github.com/yourusername/prop-edge/internal/logger"
	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
	"github.com/yourusername/prop-edge/internal/parlay"
	"github.com/yourusername/prop-edge/internal/repository"
)

// Config bounds draft tickets
type Config struct {
	MinLegs int
	MaxLegs int
	// MaxMeanAbsCorrelation is a hard cap on the mean pairwise |r| across
	// the ticket's props.
	MaxMeanAbsCorrelation float64
	MinStake              decimal.Decimal
	MaxStake              decimal.Decimal
}

// DefaultConfig returns production ticket limits
func DefaultConfig() Config {
	return Config{
		MinLegs:               2,
		MaxLegs:               6,
		MaxMeanAbsCorrelation: 0.85,
		MinStake:              decimal.NewFromInt(1),
		MaxStake:              decimal.NewFromInt(10000),
	}
}

// CorrelationSource builds a pairwise correlation matrix for a set of props.
type CorrelationSource interface {
	BuildCorrelationMatrix(ctx context.Context, propIDs []int64, contextTags map[string]string) ([][]float64, error)
}

// RiskChecker runs pre-submission checks and tracks exposure.
type RiskChecker interface {
	ApplyPreSubmissionChecks(ctx context.Context, userID uuid.UUID, ticket *models.Ticket, legs []*models.TicketLeg) []models.RiskFinding
	UpdateExposureOnSubmit(userID uuid.UUID, stake decimal.Decimal)
}

// Detail is the full view of a ticket returned to callers.
type Detail struct {
	Ticket   *models.Ticket      `json:"ticket"`
	Legs     []*models.TicketLeg `json:"legs"`
	Estimate *parlay.Estimate    `json:"estimate,omitempty"`
}

// Service owns the DRAFT -> SUBMITTED | CANCELLED ticket lifecycle.
type Service struct {
	tickets      repository.TicketRepository
	edges        repository.EdgeRepository
	valuations   repository.ValuationRepository
	correlations CorrelationSource
	simulator    *parlay.Simulator
	risk         RiskChecker
	publisher    events.Publisher
	cfg          Config
	log          *logrus.Entry
	audit        *auditlog.AuditLogger
}

// NewService creates a ticket service
func NewService(
	tickets repository.TicketRepository,
	edges repository.EdgeRepository,
	valuations repository.ValuationRepository,
	correlations CorrelationSource,
	simulator *parlay.Simulator,
	risk RiskChecker,
	publisher events.Publisher,
	cfg Config,
	logger *logrus.Logger,
) *Service {
	defaults := DefaultConfig()
	if cfg.MinLegs <= 0 {
		cfg.MinLegs = defaults.MinLegs
	}
	if cfg.MaxLegs <= 0 {
		cfg.MaxLegs = defaults.MaxLegs
	}
	if cfg.MaxMeanAbsCorrelation <= 0 {
		cfg.MaxMeanAbsCorrelation = defaults.MaxMeanAbsCorrelation
	}
	if cfg.MinStake.IsZero() {
		cfg.MinStake = defaults.MinStake
	}
	if cfg.MaxStake.IsZero() {
		cfg.MaxStake = defaults.MaxStake
	}
	if publisher == nil {
		publisher = &events.NopPublisher{}
	}
	return &Service{
		tickets:      tickets,
		edges:        edges,
		valuations:   valuations,
		correlations: correlations,
		simulator:    simulator,
		risk:         risk,
		publisher:    publisher,
		cfg:          cfg,
		log:          logger.WithField("component", "ticket_service"),
		audit:        auditlog.NewAuditLogger(logger),
	}
}

// legState pairs an edge with the valuation hash it was priced against.
type legState struct {
	edge          *models.Edge
	valuationHash string
}

// CreateDraftTicket validates the stake and edge selection, gates on
// cross-leg correlation, prices the parlay, and persists the ticket with
// snapshotted legs in one transaction.
func (s *Service) CreateDraftTicket(ctx context.Context, userID uuid.UUID, stake decimal.Decimal, edgeIDs []uuid.UUID) (*Detail, error) {
	if stake.LessThanOrEqual(decimal.Zero) {
		return nil, models.NewValidationError(models.CodeInvalidStake, "stake must be positive, got %s", stake)
	}
	if stake.LessThan(s.cfg.MinStake) || stake.GreaterThan(s.cfg.MaxStake) {
		return nil, models.NewValidationError(models.CodeInvalidStake,
			"stake %s outside allowed range [%s, %s]", stake, s.cfg.MinStake, s.cfg.MaxStake)
	}
	if len(edgeIDs) == 0 {
		return nil, models.NewValidationError(models.CodeNoEdges, "ticket requires at least one edge")
	}
	if len(edgeIDs) < s.cfg.MinLegs {
		return nil, models.NewValidationError(models.CodeTooFewLegs,
			"ticket has %d legs, minimum is %d", len(edgeIDs), s.cfg.MinLegs)
	}
	if len(edgeIDs) > s.cfg.MaxLegs {
		return nil, models.NewValidationError(models.CodeTooManyLegs,
			"ticket has %d legs, maximum is %d", len(edgeIDs), s.cfg.MaxLegs)
	}

	states, err := s.loadEdgeStates(ctx, edgeIDs)
	if err != nil {
		return nil, err
	}

	propIDs := make([]int64, len(states))
	for i, st := range states {
		propIDs[i] = st.edge.PropID
	}

	matrix, meanAbsR, err := s.correlationGate(ctx, propIDs)
	if err != nil {
		return nil, err
	}

	estimate := s.simulator.EstimateParlayEV(parlayLegs(states), stake, matrix)

	now := time.Now().UTC()
	ticket := &models.Ticket{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          models.TicketStatusDraft,
		Stake:           stake,
		PotentialPayout: stake.Mul(decimal.NewFromFloat(estimate.PayoutMultiplier)),
		EstimatedEV:     mustFloat(estimate.EVAdjusted),
		LegsCount:       len(states),
		CreatedAt:       now,
	}

	legs := make([]*models.TicketLeg, len(states))
	for i, st := range states {
		legs[i] = &models.TicketLeg{
			ID:                    uuid.New(),
			TicketID:              ticket.ID,
			EdgeID:                st.edge.ID,
			PropID:                st.edge.PropID,
			OfferedLineSnapshot:   st.edge.OfferedLine,
			ProbOverSnapshot:      st.edge.ProbOver,
			FairLineSnapshot:      st.edge.FairLine,
			ValuationHashSnapshot: st.valuationHash,
			CreatedAt:             now,
		}
	}

	if err := s.tickets.CreateWithLegs(ctx, ticket, legs); err != nil {
		return nil, fmt.Errorf("failed to persist ticket: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"ticket_id":  ticket.ID,
		"user_id":    userID,
		"legs":       len(legs),
		"mean_abs_r": meanAbsR,
		"ev":         ticket.EstimatedEV,
	}).Info("Draft ticket created")
	s.audit.LogTicketTransition(ticket.ID.String(), userID.String(), "", string(models.TicketStatusDraft), mustFloat(stake))

	return &Detail{Ticket: ticket, Legs: legs, Estimate: estimate}, nil
}

// SubmitTicket transitions a draft to SUBMITTED after verifying every leg's
// edge is still live at the snapshotted price and the risk checks pass.
func (s *Service) SubmitTicket(ctx context.Context, ticketID uuid.UUID) (*Detail, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsDraft() {
		return nil, models.NewValidationError(models.CodeInvalidStatus,
			"ticket %s is %s, only DRAFT tickets can be submitted", ticketID, ticket.Status)
	}

	legs, err := s.tickets.GetLegs(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket legs: %w", err)
	}

	for _, leg := range legs {
		if err := s.verifyLegStable(ctx, leg); err != nil {
			return nil, err
		}
	}

	if s.risk != nil {
		findings := s.risk.ApplyPreSubmissionChecks(ctx, ticket.UserID, ticket, legs)
		var criticals []models.RiskFinding
		for _, finding := range findings {
			if finding.Level == models.RiskLevelCritical {
				criticals = append(criticals, finding)
				continue
			}
			s.log.WithFields(logrus.Fields{
				"ticket_id": ticketID,
				"code":      finding.Code,
				"level":     finding.Level,
			}).Warn(finding.Message)
		}
		if len(findings) > 0 {
			s.audit.LogRiskFindings(ticketID.String(), ticket.UserID.String(),
				len(criticals), len(findings)-len(criticals), len(criticals) > 0)
		}
		if len(criticals) > 0 {
			return nil, &models.RiskViolationError{Findings: criticals}
		}
	}

	now := time.Now().UTC()
	if err := s.tickets.MarkSubmitted(ctx, ticketID, now); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewValidationError(models.CodeInvalidStatus,
				"ticket %s changed state during submission", ticketID)
		}
		return nil, fmt.Errorf("failed to submit ticket: %w", err)
	}

	ticket.Status = models.TicketStatusSubmitted
	ticket.SubmittedAt = &now
	if s.risk != nil {
		s.risk.UpdateExposureOnSubmit(ticket.UserID, ticket.Stake)
	}

	s.publisher.Publish(ctx, events.TypeTicketSubmitted, map[string]interface{}{
		"ticket_id": ticket.ID.String(),
		"user_id":   ticket.UserID.String(),
		"stake":     ticket.Stake.String(),
		"legs":      len(legs),
	})
	s.log.WithFields(logrus.Fields{"ticket_id": ticketID, "legs": len(legs)}).Info("Ticket submitted")
	s.audit.LogTicketTransition(ticketID.String(), ticket.UserID.String(),
		string(models.TicketStatusDraft), string(models.TicketStatusSubmitted), mustFloat(ticket.Stake))
	metrics.RecordTicketSubmitted()

	return &Detail{Ticket: ticket, Legs: legs}, nil
}

// CancelTicket transitions a draft to CANCELLED.
func (s *Service) CancelTicket(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsDraft() {
		return nil, models.NewValidationError(models.CodeInvalidStatus,
			"ticket %s is %s, only DRAFT tickets can be cancelled", ticketID, ticket.Status)
	}

	now := time.Now().UTC()
	if err := s.tickets.MarkCancelled(ctx, ticketID, now); err != nil {
		return nil, fmt.Errorf("failed to cancel ticket: %w", err)
	}
	ticket.Status = models.TicketStatusCancelled
	ticket.CancelledAt = &now
	s.log.WithField("ticket_id", ticketID).Info("Ticket cancelled")
	s.audit.LogTicketTransition(ticketID.String(), ticket.UserID.String(),
		string(models.TicketStatusDraft), string(models.TicketStatusCancelled), mustFloat(ticket.Stake))
	return ticket, nil
}

// RecalcTicket reprices a draft against the current market. Legs whose edge
// has been retired are excluded from the new estimate but stay on the
// ticket. Non-draft tickets are returned unchanged.
func (s *Service) RecalcTicket(ctx context.Context, ticketID uuid.UUID) (*Detail, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	legs, err := s.tickets.GetLegs(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket legs: %w", err)
	}
	if !ticket.IsDraft() {
		return &Detail{Ticket: ticket, Legs: legs}, nil
	}

	var live []legState
	for _, leg := range legs {
		edge, err := s.edges.GetByID(ctx, leg.EdgeID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load edge %s: %w", leg.EdgeID, err)
		}
		if !edge.IsActive() {
			continue
		}
		live = append(live, legState{edge: edge, valuationHash: leg.ValuationHashSnapshot})
	}

	if len(live) == 0 {
		s.log.WithField("ticket_id", ticketID).Warn("No active legs remain, estimates unchanged")
		return &Detail{Ticket: ticket, Legs: legs}, nil
	}

	propIDs := make([]int64, len(live))
	for i, st := range live {
		propIDs[i] = st.edge.PropID
	}
	matrix, err := s.correlations.BuildCorrelationMatrix(ctx, propIDs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build correlation matrix: %w", err)
	}

	estimate := s.simulator.EstimateParlayEV(parlayLegs(live), ticket.Stake, matrix)
	ticket.PotentialPayout = ticket.Stake.Mul(decimal.NewFromFloat(estimate.PayoutMultiplier))
	ticket.EstimatedEV = mustFloat(estimate.EVAdjusted)

	if err := s.tickets.UpdateEstimates(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to update ticket estimates: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"ticket_id":   ticketID,
		"active_legs": len(live),
		"ev":          ticket.EstimatedEV,
	}).Info("Ticket repriced")

	return &Detail{Ticket: ticket, Legs: legs, Estimate: estimate}, nil
}

// GetTicket returns a ticket with its legs.
func (s *Service) GetTicket(ctx context.Context, ticketID uuid.UUID) (*Detail, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	legs, err := s.tickets.GetLegs(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket legs: %w", err)
	}
	return &Detail{Ticket: ticket, Legs: legs}, nil
}

// ListUserTickets returns a user's tickets, newest first.
func (s *Service) ListUserTickets(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error) {
	return s.tickets.GetByUserID(ctx, userID)
}

func (s *Service) getTicket(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewValidationError(models.CodeTicketNotFound, "ticket %s not found", ticketID)
		}
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	return ticket, nil
}

func (s *Service) loadEdgeStates(ctx context.Context, edgeIDs []uuid.UUID) ([]legState, error) {
	states := make([]legState, 0, len(edgeIDs))
	seen := make(map[uuid.UUID]bool, len(edgeIDs))
	for _, id := range edgeIDs {
		if seen[id] {
			return nil, models.NewValidationError(models.CodeInactiveEdges, "edge %s selected more than once", id)
		}
		seen[id] = true

		edge, err := s.edges.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.NewValidationError(models.CodeEdgesNotFound, "edge %s not found", id)
			}
			return nil, fmt.Errorf("failed to load edge %s: %w", id, err)
		}
		if !edge.IsActive() {
			return nil, models.NewValidationError(models.CodeInactiveEdges, "edge %s is %s", id, edge.Status)
		}

		valuation, err := s.valuations.GetByID(ctx, edge.ValuationID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.NewValidationError(models.CodeValuationNotFound,
					"valuation %s for edge %s not found", edge.ValuationID, id)
			}
			return nil, fmt.Errorf("failed to load valuation for edge %s: %w", id, err)
		}
		states = append(states, legState{edge: edge, valuationHash: valuation.ValuationHash})
	}
	return states, nil
}

// correlationGate builds the matrix and rejects tickets whose mean pairwise
// |r| exceeds the hard cap.
func (s *Service) correlationGate(ctx context.Context, propIDs []int64) ([][]float64, float64, error) {
	matrix, err := s.correlations.BuildCorrelationMatrix(ctx, propIDs, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build correlation matrix: %w", err)
	}

	pairs := 0
	sum := 0.0
	for i := range matrix {
		for j := i + 1; j < len(matrix[i]); j++ {
			sum += math.Abs(matrix[i][j])
			pairs++
		}
	}
	meanAbsR := 0.0
	if pairs > 0 {
		meanAbsR = sum / float64(pairs)
	}
	if meanAbsR > s.cfg.MaxMeanAbsCorrelation {
		return nil, meanAbsR, models.NewValidationError(models.CodeCorrelationTooHigh,
			"mean pairwise |r| %.3f exceeds cap %.2f", meanAbsR, s.cfg.MaxMeanAbsCorrelation)
	}
	return matrix, meanAbsR, nil
}

// verifyLegStable checks the leg's edge is still ACTIVE at the snapshotted
// valuation.
func (s *Service) verifyLegStable(ctx context.Context, leg *models.TicketLeg) error {
	edge, err := s.edges.GetByID(ctx, leg.EdgeID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewValidationError(models.CodeEdgeStateChanged, "edge %s no longer exists", leg.EdgeID)
		}
		return fmt.Errorf("failed to load edge %s: %w", leg.EdgeID, err)
	}
	if !edge.IsActive() {
		return models.NewValidationError(models.CodeEdgeStateChanged,
			"edge %s is %s", leg.EdgeID, edge.Status)
	}
	valuation, err := s.valuations.GetByID(ctx, edge.ValuationID)
	if err != nil {
		return fmt.Errorf("failed to load valuation for edge %s: %w", leg.EdgeID, err)
	}
	if valuation.ValuationHash != leg.ValuationHashSnapshot {
		return models.NewValidationError(models.CodeEdgeStateChanged,
			"edge %s repriced since draft", leg.EdgeID)
	}
	return nil
}

// parlayLegs maps edge states to simulator legs. Qualification keeps
// ProbOver above one half, so the over side is the played side.
func parlayLegs(states []legState) []parlay.Leg {
	legs := make([]parlay.Leg, len(states))
	for i, st := range states {
		prob := st.edge.ProbOver
		if prob <= 0 {
			prob = 1e-9
		}
		legs[i] = parlay.Leg{WinProbability: prob, FairDecimalOdds: 1 / prob}
	}
	return legs
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
