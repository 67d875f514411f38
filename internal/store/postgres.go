package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/site-insight/internal/model"
)

// Pool abstracts the pgx pool operations the store uses, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot store operations.
var preparedStatements = map[string]string{
	"insert_analysis":   `INSERT INTO analyses (id, owner_id, targets, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"complete_analysis": `UPDATE analyses SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"fail_analysis":     `UPDATE analyses SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_analysis":      `SELECT id, owner_id, targets, status, result, error, created_at, updated_at FROM analyses WHERE id = $1`,
	"delete_analysis":   `DELETE FROM analyses WHERE id = $1`,
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner_id   TEXT NOT NULL,
	targets    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'processing',
	result     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_owner ON analyses(owner_id);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateAnalysis(ctx context.Context, ownerID string, targets []string) (*model.Analysis, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal targets")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, owner_id, targets, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, ownerID, targetsJSON, string(model.AnalysisStatusProcessing), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert analysis")
	}

	return &model.Analysis{
		ID:        id,
		OwnerID:   ownerID,
		Targets:   targets,
		Status:    model.AnalysisStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteAnalysis(ctx context.Context, id string, result *model.AnalysisResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.AnalysisStatusCompleted), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("analysis not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FailAnalysis(ctx context.Context, id string, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		cause, string(model.AnalysisStatusFailed), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("analysis not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, targets, status, result, error, created_at, updated_at FROM analyses WHERE id = $1`,
		id,
	)
	a, err := scanPgAnalysis(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", id)
	}
	return a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter Filter) ([]model.Analysis, error) {
	query := `SELECT id, owner_id, targets, status, result, error, created_at, updated_at FROM analyses WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.OwnerID != "" {
		query += fmt.Sprintf(` AND owner_id = $%d`, argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		a, err := scanPgAnalysis(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		analyses = append(analyses, *a)
	}
	return analyses, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("analysis not found: %s", id)
	}
	return nil
}

func scanPgAnalysis(scan func(dest ...any) error) (*model.Analysis, error) {
	var a model.Analysis
	var targetsJSON []byte
	var resultJSON *[]byte
	var errMsg *string

	if err := scan(&a.ID, &a.OwnerID, &targetsJSON, &a.Status, &resultJSON, &errMsg, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(targetsJSON, &a.Targets); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal targets")
	}
	if resultJSON != nil {
		a.Result = &model.AnalysisResult{}
		if err := json.Unmarshal(*resultJSON, a.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	if errMsg != nil {
		a.Error = *errMsg
	}
	return &a, nil
}
