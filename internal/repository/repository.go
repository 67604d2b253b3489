package repository

import (
	"github.com/yourusername/prop-edge/internal/database"
)

// Repositories aggregates all repository implementations
type Repositories struct {
	Props        PropRepository
	Predictions  PredictionRepository
	Valuations   ValuationRepository
	Edges        EdgeRepository
	Correlations CorrelationRepository
	Tickets      TicketRepository
}

// NewRepositories creates all PostgreSQL repositories backed by one pool
func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Props:        NewPostgresPropRepository(db),
		Predictions:  NewPostgresPredictionRepository(db),
		Valuations:   NewPostgresValuationRepository(db),
		Edges:        NewPostgresEdgeRepository(db),
		Correlations: NewPostgresCorrelationRepository(db),
		Tickets:      NewPostgresTicketRepository(db),
	}
}
