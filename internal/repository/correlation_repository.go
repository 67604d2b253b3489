package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/prop-edge/internal/database"
	"github.com/yourusername/prop-edge/internal/models"
)

// PostgresCorrelationRepository implements CorrelationRepository for PostgreSQL
type PostgresCorrelationRepository struct {
	db *database.DB
}

// NewPostgresCorrelationRepository creates a new correlation repository
func NewPostgresCorrelationRepository(db *database.DB) CorrelationRepository {
	return &PostgresCorrelationRepository{db: db}
}

// Upsert writes a pairwise record, replacing any previous computation for the
// same canonical pair and context
func (r *PostgresCorrelationRepository) Upsert(ctx context.Context, record *models.CorrelationRecord) error {
	if record.PropIDA >= record.PropIDB {
		return fmt.Errorf("correlation pair (%d, %d) not in canonical order", record.PropIDA, record.PropIDB)
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	query := `
		INSERT INTO correlation_records (id, prop_id_a, prop_id_b, pearson_r, sample_size, context_hash, last_computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (prop_id_a, prop_id_b, context_hash) DO UPDATE SET
			pearson_r = EXCLUDED.pearson_r,
			sample_size = EXCLUDED.sample_size,
			last_computed_at = NOW()
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		record.ID, record.PropIDA, record.PropIDB, record.PearsonR, record.SampleSize, record.ContextHash,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert correlation record: %w", err)
	}

	return nil
}

// GetPair retrieves the record for a pair in either order
func (r *PostgresCorrelationRepository) GetPair(ctx context.Context, propA, propB int64, contextHash string) (*models.CorrelationRecord, error) {
	if propA > propB {
		propA, propB = propB, propA
	}

	query := `
		SELECT id, prop_id_a, prop_id_b, pearson_r, sample_size, context_hash, last_computed_at
		FROM correlation_records
		WHERE prop_id_a = $1 AND prop_id_b = $2 AND context_hash = $3
	`

	record := &models.CorrelationRecord{}
	err := r.db.Querier(ctx).QueryRow(ctx, query, propA, propB, contextHash).Scan(
		&record.ID, &record.PropIDA, &record.PropIDB, &record.PearsonR,
		&record.SampleSize, &record.ContextHash, &record.LastComputedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get correlation record: %w", err)
	}

	return record, nil
}

// GetForProps retrieves every stored record whose pair falls entirely within
// propIDs for the given context
func (r *PostgresCorrelationRepository) GetForProps(ctx context.Context, propIDs []int64, contextHash string) ([]*models.CorrelationRecord, error) {
	query := `
		SELECT id, prop_id_a, prop_id_b, pearson_r, sample_size, context_hash, last_computed_at
		FROM correlation_records
		WHERE prop_id_a = ANY($1) AND prop_id_b = ANY($1) AND context_hash = $2
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, propIDs, contextHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlation records: %w", err)
	}
	defer rows.Close()

	var records []*models.CorrelationRecord
	for rows.Next() {
		record := &models.CorrelationRecord{}
		err := rows.Scan(
			&record.ID, &record.PropIDA, &record.PropIDB, &record.PearsonR,
			&record.SampleSize, &record.ContextHash, &record.LastComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan correlation record: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// CreateCluster stores a cluster snapshot. Snapshots are append-only; old
// rows stay behind for audit.
func (r *PostgresCorrelationRepository) CreateCluster(ctx context.Context, cluster *models.CorrelationCluster) error {
	if len(cluster.MemberPropIDs) < 2 {
		return fmt.Errorf("cluster must have at least 2 members, got %d", len(cluster.MemberPropIDs))
	}
	if cluster.ID == uuid.Nil {
		cluster.ID = uuid.New()
	}

	query := `
		INSERT INTO correlation_clusters (id, cluster_key, member_prop_ids, average_internal_r, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (cluster_key) DO UPDATE SET
			member_prop_ids = EXCLUDED.member_prop_ids,
			average_internal_r = EXCLUDED.average_internal_r
	`

	_, err := r.db.Querier(ctx).Exec(ctx, query,
		cluster.ID, cluster.ClusterKey, cluster.MemberPropIDs, cluster.AverageInternalR,
	)
	if err != nil {
		return fmt.Errorf("failed to create correlation cluster: %w", err)
	}

	return nil
}

// GetClusterByKey retrieves a cluster snapshot by its stable key
func (r *PostgresCorrelationRepository) GetClusterByKey(ctx context.Context, clusterKey string) (*models.CorrelationCluster, error) {
	query := `
		SELECT id, cluster_key, member_prop_ids, average_internal_r, created_at
		FROM correlation_clusters
		WHERE cluster_key = $1
	`

	cluster := &models.CorrelationCluster{}
	err := r.db.Querier(ctx).QueryRow(ctx, query, clusterKey).Scan(
		&cluster.ID, &cluster.ClusterKey, &cluster.MemberPropIDs, &cluster.AverageInternalR, &cluster.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get correlation cluster: %w", err)
	}

	return cluster, nil
}
