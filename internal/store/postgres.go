package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/resilience"
)

// pgPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgPool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"insert_enriched": `INSERT INTO enriched_leads (id, company_name, email_domain, bvd_id, confidence, payload, created_at, completed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_enriched":    `SELECT payload FROM enriched_leads WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enriched_leads (
	id           TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	email_domain TEXT NOT NULL DEFAULT '',
	bvd_id       TEXT NOT NULL DEFAULT '',
	confidence   TEXT NOT NULL DEFAULT 'none',
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_enriched_leads_domain ON enriched_leads(email_domain);
CREATE INDEX IF NOT EXISTS idx_enriched_leads_bvd_id ON enriched_leads(bvd_id);
CREATE INDEX IF NOT EXISTS idx_enriched_leads_confidence ON enriched_leads(confidence);
CREATE INDEX IF NOT EXISTS idx_enriched_leads_created_at ON enriched_leads(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveEnrichedLead(ctx context.Context, enriched *model.EnrichedLead) error {
	payload, err := json.Marshal(enriched)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enriched lead")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO enriched_leads (id, company_name, email_domain, bvd_id, confidence, payload, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		enriched.ID,
		enriched.Lead.CompanyName,
		enriched.Lead.EmailDomain(),
		leadBvDID(enriched),
		string(enriched.Confidence()),
		payload,
		time.Now().UTC(),
		enriched.Meta.CompletedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert enriched lead %s", enriched.ID)
	}
	return nil
}

func (s *PostgresStore) GetEnrichedLead(ctx context.Context, id string) (*model.EnrichedLead, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM enriched_leads WHERE id = $1`, id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, resilience.NewNotFoundError("enriched lead", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get enriched lead %s", id)
	}
	return unmarshalEnriched(payload)
}

func (s *PostgresStore) ListEnrichedLeads(ctx context.Context, filter Filter) ([]model.EnrichedLead, error) {
	query := `SELECT payload FROM enriched_leads WHERE 1=1`
	var args []any

	if filter.Confidence != "" {
		args = append(args, string(filter.Confidence))
		query += fmt.Sprintf(` AND confidence = $%d`, len(args))
	}
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		query += fmt.Sprintf(` AND email_domain = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enriched leads")
	}
	defer rows.Close()

	var results []model.EnrichedLead
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan enriched lead")
		}
		enriched, err := unmarshalEnriched(payload)
		if err != nil {
			return nil, err
		}
		results = append(results, *enriched)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list enriched leads")
}
