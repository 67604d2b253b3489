package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketStatus represents the lifecycle state of a parlay ticket
type TicketStatus string

const (
	TicketStatusDraft     TicketStatus = "DRAFT"
	TicketStatusSubmitted TicketStatus = "SUBMITTED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

// Ticket is a multi-leg parlay. Settlement happens outside this module;
// SUBMITTED and CANCELLED are both terminal here.
type Ticket struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	Status          TicketStatus    `db:"status" json:"status"`
	Stake           decimal.Decimal `db:"stake" json:"stake"`
	PotentialPayout decimal.Decimal `db:"potential_payout" json:"potential_payout"`
	EstimatedEV     float64         `db:"estimated_ev" json:"estimated_ev"`
	LegsCount       int             `db:"legs_count" json:"legs_count"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	SubmittedAt     *time.Time      `db:"submitted_at" json:"submitted_at"`
	CancelledAt     *time.Time      `db:"cancelled_at" json:"cancelled_at"`
}

// IsDraft reports whether the ticket can still be mutated
func (t *Ticket) IsDraft() bool {
	return t.Status == TicketStatusDraft
}

// TicketLeg is one prop selection inside a ticket. The snapshot fields are
// written once at draft time and never mutated; submission compares the
// snapshot hash against the live valuation to detect market movement.
type TicketLeg struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	TicketID              uuid.UUID `db:"ticket_id" json:"ticket_id"`
	EdgeID                uuid.UUID `db:"edge_id" json:"edge_id"`
	PropID                int64     `db:"prop_id" json:"prop_id"`
	OfferedLineSnapshot   float64   `db:"offered_line_snapshot" json:"offered_line_snapshot"`
	ProbOverSnapshot      float64   `db:"prob_over_snapshot" json:"prob_over_snapshot"`
	FairLineSnapshot      float64   `db:"fair_line_snapshot" json:"fair_line_snapshot"`
	ValuationHashSnapshot string    `db:"valuation_hash_snapshot" json:"valuation_hash_snapshot"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}
