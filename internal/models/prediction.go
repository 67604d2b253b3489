package models

import (
	"time"

	"github.com/google/uuid"
)

// DistributionFamily identifies the outcome distribution a model predicts with
type DistributionFamily string

const (
	DistributionPoisson     DistributionFamily = "POISSON"
	DistributionNormal      DistributionFamily = "NORMAL"
	DistributionNegBinomial DistributionFamily = "NEG_BINOMIAL"
	DistributionBinomial    DistributionFamily = "BINOMIAL"
)

// IsDiscrete reports whether the family is a counting distribution. Discrete
// families evaluate P(X > line) as 1 - CDF(floor(line)).
func (d DistributionFamily) IsDiscrete() bool {
	switch d {
	case DistributionPoisson, DistributionNegBinomial, DistributionBinomial:
		return true
	default:
		return false
	}
}

// ModelPrediction is a persisted model output for one prop. Rows are
// content-addressed by FeaturesHash within (model_version_id, prop_id):
// predicting twice over identical inputs reuses the stored row.
type ModelPrediction struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	ModelVersionID     string             `db:"model_version_id" json:"model_version_id" validate:"required"`
	PropID             int64              `db:"prop_id" json:"prop_id" validate:"required"`
	PlayerID           int64              `db:"player_id" json:"player_id"`
	PropType           PropType           `db:"prop_type" json:"prop_type"`
	Mean               float64            `db:"mean" json:"mean"`
	Variance           float64            `db:"variance" json:"variance" validate:"gte=0"`
	DistributionFamily DistributionFamily `db:"distribution_family" json:"distribution_family"`
	SampleSize         int                `db:"sample_size" json:"sample_size" validate:"gte=0"`
	FeaturesHash       string             `db:"features_hash" json:"features_hash" validate:"required,len=64"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
}

// IsDefault reports whether the prediction fell back to the static heuristic
// (no historical samples were available).
func (p *ModelPrediction) IsDefault() bool {
	return p.SampleSize == 0
}
