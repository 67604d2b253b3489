package models

import (
	"time"

	"github.com/google/uuid"
)

// CorrelationRecord is a pairwise Pearson correlation between two props'
// historical outcomes. Pairs are stored in canonical order (PropIDA < PropIDB)
// and keyed by (pair, context hash); recomputation upserts in place.
type CorrelationRecord struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PropIDA        int64     `db:"prop_id_a" json:"prop_id_a"`
	PropIDB        int64     `db:"prop_id_b" json:"prop_id_b"`
	PearsonR       float64   `db:"pearson_r" json:"pearson_r" validate:"gte=-1,lte=1"`
	SampleSize     int       `db:"sample_size" json:"sample_size"`
	ContextHash    string    `db:"context_hash" json:"context_hash"`
	LastComputedAt time.Time `db:"last_computed_at" json:"last_computed_at"`
}

// NewCorrelationRecord builds a record with the pair in canonical order.
// Self-pairs are the caller's responsibility to reject before construction.
func NewCorrelationRecord(propA, propB int64, r float64, sampleSize int, contextHash string) CorrelationRecord {
	if propA > propB {
		propA, propB = propB, propA
	}
	return CorrelationRecord{
		PropIDA:     propA,
		PropIDB:     propB,
		PearsonR:    r,
		SampleSize:  sampleSize,
		ContextHash: contextHash,
	}
}

// CorrelationCluster is a connected component of props whose pairwise |r|
// clears the clustering threshold. Historical rows are retained for audit;
// member prop IDs are held by value, the prop catalog owns the props.
type CorrelationCluster struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ClusterKey       string    `db:"cluster_key" json:"cluster_key"`
	MemberPropIDs    []int64   `db:"member_prop_ids" json:"member_prop_ids" validate:"min=2"`
	AverageInternalR float64   `db:"average_internal_r" json:"average_internal_r"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Contains reports whether propID is a member of the cluster
func (c *CorrelationCluster) Contains(propID int64) bool {
	for _, id := range c.MemberPropIDs {
		if id == propID {
			return true
		}
	}
	return false
}
