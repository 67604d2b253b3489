package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/models"
)

// PostgresEdgeRepository implements EdgeRepository for PostgreSQL
type PostgresEdgeRepository struct {
	db *database.DB
}

// NewPostgresEdgeRepository creates a new edge repository
func NewPostgresEdgeRepository(db *database.DB) EdgeRepository {
	return &PostgresEdgeRepository{db: db}
}

const edgeColumns = `
	e.id, e.valuation_id, e.prop_id, e.model_version_id, e.edge_score, e.ev,
	e.prob_over, e.offered_line, e.fair_line, e.status, e.correlation_cluster_id,
	e.created_at, e.retired_at
`

// Create inserts a new edge
func (r *PostgresEdgeRepository) Create(ctx context.Context, edge *models.Edge) error {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}

	query := `
		INSERT INTO edges (id, valuation_id, prop_id, model_version_id, edge_score, ev,
		                   prob_over, offered_line, fair_line, status, correlation_cluster_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		edge.ID, edge.ValuationID, edge.PropID, edge.ModelVersionID, edge.EdgeScore, edge.EV,
		edge.ProbOver, edge.OfferedLine, edge.FairLine, edge.Status, edge.CorrelationClusterID,
	)
	if err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}

	return nil
}

// GetByID retrieves an edge by ID
func (r *PostgresEdgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges e WHERE e.id = $1`

	edge, err := r.scanRow(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}
	return edge, nil
}

// GetActiveByValuationHash finds the ACTIVE edge, if any, whose valuation
// carries the given hash
func (r *PostgresEdgeRepository) GetActiveByValuationHash(ctx context.Context, hash string) (*models.Edge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM edges e
		JOIN valuations v ON v.id = e.valuation_id
		WHERE v.valuation_hash = $1 AND e.status = 'ACTIVE'
	`

	edge, err := r.scanRow(r.db.Querier(ctx).QueryRow(ctx, query, hash))
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge by valuation hash: %w", err)
	}
	return edge, nil
}

// GetActiveEdges lists ACTIVE edges, best score first, honouring the filter
func (r *PostgresEdgeRepository) GetActiveEdges(ctx context.Context, filter EdgeFilter) ([]*models.Edge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM edges e
		JOIN props p ON p.prop_id = e.prop_id
		WHERE e.status = 'ACTIVE' AND e.edge_score >= $1 AND ($2 = '' OR p.sport = $2)
		ORDER BY e.edge_score DESC
	`
	args := []interface{}{filter.MinScore, string(filter.Sport)}
	if filter.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active edges: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetActiveByPropID lists a prop's ACTIVE edges
func (r *PostgresEdgeRepository) GetActiveByPropID(ctx context.Context, propID int64) ([]*models.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges e WHERE e.prop_id = $1 AND e.status = 'ACTIVE'`

	rows, err := r.db.Querier(ctx).Query(ctx, query, propID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges by prop: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// Retire transitions one edge to RETIRED
func (r *PostgresEdgeRepository) Retire(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE edges SET status = 'RETIRED', retired_at = $2 WHERE id = $1 AND status = 'ACTIVE'`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to retire edge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// RetireByPropID bulk-retires every ACTIVE edge on a prop
func (r *PostgresEdgeRepository) RetireByPropID(ctx context.Context, propID int64, at time.Time) (int64, error) {
	query := `UPDATE edges SET status = 'RETIRED', retired_at = $2 WHERE prop_id = $1 AND status = 'ACTIVE'`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, propID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to retire edges for prop: %w", err)
	}

	return tag.RowsAffected(), nil
}

// SetCluster annotates an edge with the correlation cluster it belongs to
func (r *PostgresEdgeRepository) SetCluster(ctx context.Context, edgeID, clusterID uuid.UUID) error {
	query := `UPDATE edges SET correlation_cluster_id = $2 WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, edgeID, clusterID)
	if err != nil {
		return fmt.Errorf("failed to set edge cluster: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *PostgresEdgeRepository) scanRow(row pgx.Row) (*models.Edge, error) {
	edge := &models.Edge{}
	err := row.Scan(
		&edge.ID, &edge.ValuationID, &edge.PropID, &edge.ModelVersionID, &edge.EdgeScore,
		&edge.EV, &edge.ProbOver, &edge.OfferedLine, &edge.FairLine, &edge.Status,
		&edge.CorrelationClusterID, &edge.CreatedAt, &edge.RetiredAt,
	)
	if err != nil {
		return nil, err
	}
	return edge, nil
}

func (r *PostgresEdgeRepository) scanRows(rows pgx.Rows) ([]*models.Edge, error) {
	var edges []*models.Edge
	for rows.Next() {
		edge, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}
