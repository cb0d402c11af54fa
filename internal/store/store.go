// Package store persists enriched leads. Two backends share one interface:
// Postgres for deployments, SQLite for local runs and tests.
package store

import (
	"context"

	"github.com/sells-group/lead-enrich/internal/model"
)

// Filter specifies criteria for listing enriched leads.
type Filter struct {
	Confidence model.Confidence `json:"confidence,omitempty"`
	Domain     string           `json:"domain,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for enrichment results.
type Store interface {
	// SaveEnrichedLead inserts one finalized record. Records are immutable;
	// re-enriching a lead produces a new ID, never an update.
	SaveEnrichedLead(ctx context.Context, enriched *model.EnrichedLead) error
	GetEnrichedLead(ctx context.Context, id string) (*model.EnrichedLead, error)
	ListEnrichedLeads(ctx context.Context, filter Filter) ([]model.EnrichedLead, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
