package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/prop-edge/internal/models"
)

// PropRepository is the local view of the prop catalog. Props are owned by an
// external system and referenced by int64 IDs; this module mirrors the fields
// it prices against.
type PropRepository interface {
	GetProp(ctx context.Context, propID int64) (*models.Prop, error)
	ListActiveBySport(ctx context.Context, sport models.Sport) ([]*models.Prop, error)
	UpsertProp(ctx context.Context, prop *models.Prop) error
	// RecentOfferedLines feeds the modeling fallback chain with proxy samples.
	RecentOfferedLines(ctx context.Context, playerID int64, propType models.PropType, limit int) ([]float64, error)
}

// PredictionRepository persists model outputs, deduplicated by features hash
// within (model_version_id, prop_id).
type PredictionRepository interface {
	// GetOrCreate inserts the prediction, or returns the existing row when an
	// identical features hash is already stored for the same model and prop.
	GetOrCreate(ctx context.Context, prediction *models.ModelPrediction) (*models.ModelPrediction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ModelPrediction, error)
}

// ValuationRepository persists valuations, deduplicated globally by
// valuation hash.
type ValuationRepository interface {
	GetOrCreate(ctx context.Context, valuation *models.Valuation) (*models.Valuation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Valuation, error)
	GetByHash(ctx context.Context, hash string) (*models.Valuation, error)
}

// EdgeFilter narrows active-edge listings.
type EdgeFilter struct {
	Sport    models.Sport // empty matches every sport
	MinScore float64
	Limit    int
}

// EdgeRepository manages the edge lifecycle rows.
type EdgeRepository interface {
	Create(ctx context.Context, edge *models.Edge) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Edge, error)
	// GetActiveByValuationHash enforces the one-ACTIVE-edge-per-valuation
	// invariant: detection consults it before creating a new row.
	GetActiveByValuationHash(ctx context.Context, hash string) (*models.Edge, error)
	GetActiveEdges(ctx context.Context, filter EdgeFilter) ([]*models.Edge, error)
	GetActiveByPropID(ctx context.Context, propID int64) ([]*models.Edge, error)
	Retire(ctx context.Context, id uuid.UUID, at time.Time) error
	// RetireByPropID bulk-transitions a prop's ACTIVE edges and returns how
	// many rows moved.
	RetireByPropID(ctx context.Context, propID int64, at time.Time) (int64, error)
	SetCluster(ctx context.Context, edgeID, clusterID uuid.UUID) error
}

// CorrelationRepository stores pairwise records keyed by (canonical pair,
// context hash) and cluster snapshots retained for audit.
type CorrelationRepository interface {
	Upsert(ctx context.Context, record *models.CorrelationRecord) error
	GetPair(ctx context.Context, propA, propB int64, contextHash string) (*models.CorrelationRecord, error)
	GetForProps(ctx context.Context, propIDs []int64, contextHash string) ([]*models.CorrelationRecord, error)
	CreateCluster(ctx context.Context, cluster *models.CorrelationCluster) error
	GetClusterByKey(ctx context.Context, clusterKey string) (*models.CorrelationCluster, error)
}

// TicketRepository persists tickets and their snapshotted legs.
type TicketRepository interface {
	// CreateWithLegs writes the ticket and all legs in one transaction.
	CreateWithLegs(ctx context.Context, ticket *models.Ticket, legs []*models.TicketLeg) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	GetLegs(ctx context.Context, ticketID uuid.UUID) ([]*models.TicketLeg, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateEstimates(ctx context.Context, ticket *models.Ticket) error
}
