package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Valuation prices one prop against its offered market line. Rows are
// content-addressed by ValuationHash over (prop, model, line, schema); the
// engine returns the existing row verbatim when the hash already exists.
type Valuation struct {
	ID                uuid.UUID    `db:"id" json:"id"`
	ModelPredictionID uuid.UUID    `db:"model_prediction_id" json:"model_prediction_id"`
	ModelVersionID    string       `db:"model_version_id" json:"model_version_id"`
	PropID            int64        `db:"prop_id" json:"prop_id"`
	OfferedLine       float64      `db:"offered_line" json:"offered_line"`
	FairLine          float64      `db:"fair_line" json:"fair_line"`
	ProbOver          float64      `db:"prob_over" json:"prob_over" validate:"gte=0,lte=1"`
	ProbUnder         float64      `db:"prob_under" json:"prob_under" validate:"gte=0,lte=1"`
	ExpectedValue     float64      `db:"expected_value" json:"expected_value"`
	PayoutSchema      PayoutSchema `db:"payout_schema" json:"payout_schema"`
	VolatilityScore   float64      `db:"volatility_score" json:"volatility_score"`
	ValuationHash     string       `db:"valuation_hash" json:"valuation_hash" validate:"required,len=64"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
}

// ProbabilitiesConsistent reports whether prob_over and prob_under sum to one
// within tolerance.
func (v *Valuation) ProbabilitiesConsistent(epsilon float64) bool {
	return math.Abs(v.ProbOver+v.ProbUnder-1.0) <= epsilon
}
