package models

import (
	"time"

	"github.com/google/uuid"
)

// EdgeStatus represents the lifecycle state of an edge
type EdgeStatus string

const (
	EdgeStatusActive  EdgeStatus = "ACTIVE"
	EdgeStatusRetired EdgeStatus = "RETIRED"
)

// Edge is a valuation that cleared the qualification thresholds and is
// actionable while ACTIVE. Edges are retired when the market line moves or a
// sweep finds them stale; they are never deleted.
type Edge struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	ValuationID          uuid.UUID  `db:"valuation_id" json:"valuation_id"`
	PropID               int64      `db:"prop_id" json:"prop_id"`
	ModelVersionID       string     `db:"model_version_id" json:"model_version_id"`
	EdgeScore            float64    `db:"edge_score" json:"edge_score"`
	EV                   float64    `db:"ev" json:"ev"`
	ProbOver             float64    `db:"prob_over" json:"prob_over"`
	OfferedLine          float64    `db:"offered_line" json:"offered_line"`
	FairLine             float64    `db:"fair_line" json:"fair_line"`
	Status               EdgeStatus `db:"status" json:"status"`
	CorrelationClusterID *uuid.UUID `db:"correlation_cluster_id" json:"correlation_cluster_id"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	RetiredAt            *time.Time `db:"retired_at" json:"retired_at"`
}

// IsActive reports whether the edge is still actionable
func (e *Edge) IsActive() bool {
	return e.Status == EdgeStatusActive
}
