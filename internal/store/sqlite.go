package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enriched_leads (
	id           TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	email_domain TEXT NOT NULL DEFAULT '',
	bvd_id       TEXT NOT NULL DEFAULT '',
	confidence   TEXT NOT NULL DEFAULT 'none',
	payload      TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_enriched_leads_domain ON enriched_leads(email_domain);
CREATE INDEX IF NOT EXISTS idx_enriched_leads_bvd_id ON enriched_leads(bvd_id);
CREATE INDEX IF NOT EXISTS idx_enriched_leads_confidence ON enriched_leads(confidence);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveEnrichedLead(ctx context.Context, enriched *model.EnrichedLead) error {
	payload, err := json.Marshal(enriched)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enriched lead")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enriched_leads (id, company_name, email_domain, bvd_id, confidence, payload, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		enriched.ID,
		enriched.Lead.CompanyName,
		enriched.Lead.EmailDomain(),
		leadBvDID(enriched),
		string(enriched.Confidence()),
		string(payload),
		time.Now().UTC(),
		enriched.Meta.CompletedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert enriched lead %s", enriched.ID)
	}
	return nil
}

func (s *SQLiteStore) GetEnrichedLead(ctx context.Context, id string) (*model.EnrichedLead, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM enriched_leads WHERE id = ?`, id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, resilience.NewNotFoundError("enriched lead", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get enriched lead %s", id)
	}
	return unmarshalEnriched([]byte(payload))
}

func (s *SQLiteStore) ListEnrichedLeads(ctx context.Context, filter Filter) ([]model.EnrichedLead, error) {
	query := `SELECT payload FROM enriched_leads WHERE 1=1`
	var args []any

	if filter.Confidence != "" {
		query += ` AND confidence = ?`
		args = append(args, string(filter.Confidence))
	}
	if filter.Domain != "" {
		query += ` AND email_domain = ?`
		args = append(args, filter.Domain)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enriched leads")
	}
	defer rows.Close()

	var results []model.EnrichedLead
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enriched lead")
		}
		enriched, err := unmarshalEnriched([]byte(payload))
		if err != nil {
			return nil, err
		}
		results = append(results, *enriched)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list enriched leads")
}

func unmarshalEnriched(payload []byte) (*model.EnrichedLead, error) {
	var enriched model.EnrichedLead
	if err := json.Unmarshal(payload, &enriched); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal enriched lead")
	}
	return &enriched, nil
}

func leadBvDID(enriched *model.EnrichedLead) string {
	if enriched.Match == nil {
		return ""
	}
	return enriched.Match.BvDID
}
