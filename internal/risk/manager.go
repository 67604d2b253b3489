package risk

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/prop-edge/internal/metrics"
	"github.com/yourusername/prop-edge/internal/models"
)

// Finding codes
const (
	CodeMaxStakePct          = "MAX_STAKE_PCT"
	CodeExposureLimit        = "EXPOSURE_LIMIT"
	CodeDailyLossLimit       = "DAILY_LOSS_LIMIT"
	CodeLegCountAdvisory     = "LEG_COUNT_ADVISORY"
	CodeClusterConcentration = "CLUSTER_CONCENTRATION"
)

// Config sets the risk limits
type Config struct {
	// MaxStakePct is the largest fraction of bankroll a single ticket may
	// stake.
	MaxStakePct float64
	// MaxExposure caps a user's open submitted-ticket exposure.
	MaxExposure decimal.Decimal
	// MaxDailyLoss caps realized losses per user per UTC day.
	MaxDailyLoss decimal.Decimal
	// AdvisoryLegCount triggers a warning above this many legs.
	AdvisoryLegCount int
	// KellyFraction scales full Kelly for stake guidance.
	KellyFraction float64
}

// DefaultConfig returns production risk limits
func DefaultConfig() Config {
	return Config{
		MaxStakePct:      0.05,
		MaxExposure:      decimal.NewFromInt(1000),
		MaxDailyLoss:     decimal.NewFromInt(500),
		AdvisoryLegCount: 4,
		KellyFraction:    0.25,
	}
}

// BankrollProfile is a user's bankroll as known to the risk layer.
type BankrollProfile struct {
	Bankroll decimal.Decimal
}

// userState tracks one user's open exposure and realized daily loss.
type userState struct {
	exposure  decimal.Decimal
	dailyLoss decimal.Decimal
}

// Manager runs pre-submission risk checks and tracks per-user exposure
// in memory.
type Manager struct {
	cfg            Config
	defaultProfile BankrollProfile
	profiles       map[uuid.UUID]BankrollProfile
	users          map[uuid.UUID]*userState
	lossResetAt    time.Time
	mu             sync.RWMutex
	log            *logrus.Entry
}

// NewManager creates a risk manager
func NewManager(cfg Config, logger *logrus.Logger) *Manager {
	defaults := DefaultConfig()
	if cfg.MaxStakePct <= 0 {
		cfg.MaxStakePct = defaults.MaxStakePct
	}
	if cfg.MaxExposure.IsZero() {
		cfg.MaxExposure = defaults.MaxExposure
	}
	if cfg.MaxDailyLoss.IsZero() {
		cfg.MaxDailyLoss = defaults.MaxDailyLoss
	}
	if cfg.AdvisoryLegCount <= 0 {
		cfg.AdvisoryLegCount = defaults.AdvisoryLegCount
	}
	if cfg.KellyFraction <= 0 {
		cfg.KellyFraction = defaults.KellyFraction
	}
	return &Manager{
		cfg:            cfg,
		defaultProfile: BankrollProfile{Bankroll: decimal.NewFromInt(1000)},
		profiles:       make(map[uuid.UUID]BankrollProfile),
		users:          make(map[uuid.UUID]*userState),
		lossResetAt:    nextMidnightUTC(time.Now()),
		log:            logger.WithField("component", "risk_manager"),
	}
}

// SetBankrollProfile registers a user's bankroll.
func (m *Manager) SetBankrollProfile(userID uuid.UUID, profile BankrollProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = profile
}

// ApplyPreSubmissionChecks evaluates a ticket about to be submitted and
// returns every finding. Callers decide what to do with non-critical
// levels; critical findings are expected to block submission.
func (m *Manager) ApplyPreSubmissionChecks(ctx context.Context, userID uuid.UUID, ticket *models.Ticket, legs []*models.TicketLeg) []models.RiskFinding {
	m.maybeResetDailyLoss()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var findings []models.RiskFinding

	profile, ok := m.profiles[userID]
	if !ok {
		profile = m.defaultProfile
	}
	state := m.users[userID]

	maxStake := profile.Bankroll.Mul(decimal.NewFromFloat(m.cfg.MaxStakePct))
	if ticket.Stake.GreaterThan(maxStake) {
		findings = append(findings, models.RiskFinding{
			Level:   models.RiskLevelCritical,
			Code:    CodeMaxStakePct,
			Message: "stake " + ticket.Stake.String() + " exceeds " + maxStake.String() + " (bankroll limit)",
		})
	}

	exposure := decimal.Zero
	dailyLoss := decimal.Zero
	if state != nil {
		exposure = state.exposure
		dailyLoss = state.dailyLoss
	}
	if exposure.Add(ticket.Stake).GreaterThan(m.cfg.MaxExposure) {
		findings = append(findings, models.RiskFinding{
			Level:   models.RiskLevelCritical,
			Code:    CodeExposureLimit,
			Message: "open exposure " + exposure.String() + " plus stake exceeds limit " + m.cfg.MaxExposure.String(),
		})
	}
	if dailyLoss.GreaterThanOrEqual(m.cfg.MaxDailyLoss) {
		findings = append(findings, models.RiskFinding{
			Level:   models.RiskLevelCritical,
			Code:    CodeDailyLossLimit,
			Message: "daily loss limit " + m.cfg.MaxDailyLoss.String() + " reached",
		})
	}

	if len(legs) > m.cfg.AdvisoryLegCount {
		findings = append(findings, models.RiskFinding{
			Level:   models.RiskLevelWarning,
			Code:    CodeLegCountAdvisory,
			Message: "long parlays compound variance",
		})
	}
	if finding, concentrated := clusterConcentration(legs); concentrated {
		findings = append(findings, finding)
	}

	m.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"stake":    ticket.Stake,
		"findings": len(findings),
	}).Debug("Pre-submission checks evaluated")

	return findings
}

// UpdateExposureOnSubmit adds a submitted stake to the user's open
// exposure.
func (m *Manager) UpdateExposureOnSubmit(userID uuid.UUID, stake decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.users[userID]
	if state == nil {
		state = &userState{exposure: decimal.Zero, dailyLoss: decimal.Zero}
		m.users[userID] = state
	}
	state.exposure = state.exposure.Add(stake)

	exposure, _ := state.exposure.Float64()
	metrics.UpdateUserExposure(userID.String(), exposure)

	m.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"exposure": state.exposure,
	}).Info("Exposure updated")
}

// RecordSettlement releases exposure for a settled ticket and accrues the
// loss when the result is negative.
func (m *Manager) RecordSettlement(userID uuid.UUID, stake, profitLoss decimal.Decimal) {
	m.maybeResetDailyLoss()

	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.users[userID]
	if state == nil {
		return
	}
	state.exposure = state.exposure.Sub(stake)
	if state.exposure.IsNegative() {
		state.exposure = decimal.Zero
	}
	if profitLoss.IsNegative() {
		state.dailyLoss = state.dailyLoss.Add(profitLoss.Abs())
	}

	exposure, _ := state.exposure.Float64()
	metrics.UpdateUserExposure(userID.String(), exposure)
}

// CurrentExposure returns the user's open exposure.
func (m *Manager) CurrentExposure(userID uuid.UUID) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state := m.users[userID]; state != nil {
		return state.exposure
	}
	return decimal.Zero
}

// RecommendStake suggests a fractional Kelly stake for a single
// opportunity. Returns zero when the edge is not positive.
func (m *Manager) RecommendStake(bankroll decimal.Decimal, decimalOdds, winProbability float64) decimal.Decimal {
	b := decimalOdds - 1.0
	if b <= 0 || winProbability <= 0 || winProbability >= 1 {
		return decimal.Zero
	}

	// Kelly: f = (bp - q) / b
	kelly := (b*winProbability - (1 - winProbability)) / b
	if kelly <= 0 {
		return decimal.Zero
	}
	fraction := kelly * m.cfg.KellyFraction

	stake := bankroll.Mul(decimal.NewFromFloat(fraction))
	maxStake := bankroll.Mul(decimal.NewFromFloat(m.cfg.MaxStakePct))
	if stake.GreaterThan(maxStake) {
		stake = maxStake
	}
	return stake
}

// maybeResetDailyLoss zeroes every user's daily loss once the UTC day
// rolls over.
func (m *Manager) maybeResetDailyLoss() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Before(m.lossResetAt) {
		return
	}
	for _, state := range m.users {
		state.dailyLoss = decimal.Zero
	}
	m.lossResetAt = nextMidnightUTC(now)
	m.log.WithField("next_reset", m.lossResetAt).Info("Daily loss counters reset")
}

// clusterConcentration flags tickets with repeated legs on the same
// player, the strongest correlation signal available on the snapshot.
func clusterConcentration(legs []*models.TicketLeg) (models.RiskFinding, bool) {
	seen := make(map[int64]int, len(legs))
	for _, leg := range legs {
		seen[leg.PropID]++
		if seen[leg.PropID] > 1 {
			return models.RiskFinding{
				Level:   models.RiskLevelWarning,
				Code:    CodeClusterConcentration,
				Message: "multiple legs reference the same prop",
			}, true
		}
	}
	return models.RiskFinding{}, false
}

func nextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
