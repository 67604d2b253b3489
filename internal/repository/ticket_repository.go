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

// PostgresTicketRepository implements TicketRepository for PostgreSQL
type PostgresTicketRepository struct {
	db *database.DB
}

// NewPostgresTicketRepository creates a new ticket repository
func NewPostgresTicketRepository(db *database.DB) TicketRepository {
	return &PostgresTicketRepository{db: db}
}

const ticketColumns = `
	id, user_id, status, stake, potential_payout, estimated_ev, legs_count,
	created_at, submitted_at, cancelled_at
`

// CreateWithLegs writes the ticket and its snapshotted legs atomically
func (r *PostgresTicketRepository) CreateWithLegs(ctx context.Context, ticket *models.Ticket, legs []*models.TicketLeg) error {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}

	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		q := r.db.Querier(txCtx)

		ticketInsert := `
			INSERT INTO tickets (id, user_id, status, stake, potential_payout, estimated_ev, legs_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		`
		_, err := q.Exec(txCtx, ticketInsert,
			ticket.ID, ticket.UserID, ticket.Status, ticket.Stake, ticket.PotentialPayout,
			ticket.EstimatedEV, ticket.LegsCount,
		)
		if err != nil {
			return fmt.Errorf("failed to create ticket: %w", err)
		}

		legInsert := `
			INSERT INTO ticket_legs (id, ticket_id, edge_id, prop_id, offered_line_snapshot,
			                         prob_over_snapshot, fair_line_snapshot, valuation_hash_snapshot, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`
		for _, leg := range legs {
			if leg.ID == uuid.Nil {
				leg.ID = uuid.New()
			}
			leg.TicketID = ticket.ID

			_, err := q.Exec(txCtx, legInsert,
				leg.ID, leg.TicketID, leg.EdgeID, leg.PropID, leg.OfferedLineSnapshot,
				leg.ProbOverSnapshot, leg.FairLineSnapshot, leg.ValuationHashSnapshot,
			)
			if err != nil {
				return fmt.Errorf("failed to create ticket leg: %w", err)
			}
		}

		return nil
	})
}

// GetByID retrieves a ticket by ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket := &models.Ticket{}
	err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(
		&ticket.ID, &ticket.UserID, &ticket.Status, &ticket.Stake, &ticket.PotentialPayout,
		&ticket.EstimatedEV, &ticket.LegsCount, &ticket.CreatedAt, &ticket.SubmittedAt, &ticket.CancelledAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	return ticket, nil
}

// GetLegs retrieves a ticket's legs in insertion order
func (r *PostgresTicketRepository) GetLegs(ctx context.Context, ticketID uuid.UUID) ([]*models.TicketLeg, error) {
	query := `
		SELECT id, ticket_id, edge_id, prop_id, offered_line_snapshot,
		       prob_over_snapshot, fair_line_snapshot, valuation_hash_snapshot, created_at
		FROM ticket_legs
		WHERE ticket_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket legs: %w", err)
	}
	defer rows.Close()

	var legs []*models.TicketLeg
	for rows.Next() {
		leg := &models.TicketLeg{}
		err := rows.Scan(
			&leg.ID, &leg.TicketID, &leg.EdgeID, &leg.PropID, &leg.OfferedLineSnapshot,
			&leg.ProbOverSnapshot, &leg.FairLineSnapshot, &leg.ValuationHashSnapshot, &leg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket leg: %w", err)
		}
		legs = append(legs, leg)
	}

	return legs, rows.Err()
}

// GetByUserID retrieves a user's tickets, newest first
func (r *PostgresTicketRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Querier(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets by user: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket := &models.Ticket{}
		err := rows.Scan(
			&ticket.ID, &ticket.UserID, &ticket.Status, &ticket.Stake, &ticket.PotentialPayout,
			&ticket.EstimatedEV, &ticket.LegsCount, &ticket.CreatedAt, &ticket.SubmittedAt, &ticket.CancelledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	return tickets, rows.Err()
}

// MarkSubmitted transitions a DRAFT ticket to SUBMITTED
func (r *PostgresTicketRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, models.TicketStatusSubmitted, "submitted_at", at)
}

// MarkCancelled transitions a DRAFT ticket to CANCELLED
func (r *PostgresTicketRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id, models.TicketStatusCancelled, "cancelled_at", at)
}

func (r *PostgresTicketRepository) transition(ctx context.Context, id uuid.UUID, status models.TicketStatus, column string, at time.Time) error {
	query := fmt.Sprintf(
		`UPDATE tickets SET status = $2, %s = $3 WHERE id = $1 AND status = 'DRAFT'`, column)

	tag, err := r.db.Querier(ctx).Exec(ctx, query, id, status, at)
	if err != nil {
		return fmt.Errorf("failed to transition ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateEstimates rewrites a DRAFT ticket's EV and payout after a recalc
func (r *PostgresTicketRepository) UpdateEstimates(ctx context.Context, ticket *models.Ticket) error {
	query := `
		UPDATE tickets SET estimated_ev = $2, potential_payout = $3
		WHERE id = $1 AND status = 'DRAFT'
	`

	tag, err := r.db.Querier(ctx).Exec(ctx, query, ticket.ID, ticket.EstimatedEV, ticket.PotentialPayout)
	if err != nil {
		return fmt.Errorf("failed to update ticket estimates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
