// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/mlbe/mlbe-runner/internal/orchestrator"
)

const (
	// DefaultPingTimeout bounds the connectivity check in OpenPostgres.
	DefaultPingTimeout = 5 * time.Second

	implementationQuery = `SELECT id, language, repo_url, COALESCE(revision, ''), COALESCE(file_path, '')
FROM behavior_implementations
WHERE id = $1`
)

type (
	// rowScanner is the part of *sql.Row the catalog reads.
	rowScanner interface {
		Scan(dest ...any) error
	}

	// rowQuerier runs a single-row query.
	rowQuerier interface {
		QueryRow(ctx context.Context, query string, args ...any) rowScanner
	}

	// PostgresCatalog reads implementations from the behavior_implementations table.
	PostgresCatalog struct {
		db     *sql.DB
		source string
		rows   rowQuerier
	}

	sqlQuerier struct{ db *sql.DB }
)

func (q sqlQuerier) QueryRow(ctx context.Context, query string, args ...any) rowScanner {
	return q.db.QueryRowContext(ctx, query, args...)
}

// OpenPostgres connects to dsn with the pgx driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresCatalog, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("catalog database URL is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog database: %w", err)
	}
	return &PostgresCatalog{db: db, source: "postgres", rows: sqlQuerier{db: db}}, nil
}

// Implementation returns the row with the given id.
func (c *PostgresCatalog) Implementation(ctx context.Context, id int64) (orchestrator.ImplementationRef, error) {
	var impl orchestrator.ImplementationRef
	err := c.rows.QueryRow(ctx, implementationQuery, id).
		Scan(&impl.ID, &impl.Language, &impl.RepoURL, &impl.Revision, &impl.FilePath)
	if errors.Is(err, sql.ErrNoRows) {
		return orchestrator.ImplementationRef{}, &NotFoundError{ID: id, Source: c.source}
	}
	if err != nil {
		return orchestrator.ImplementationRef{}, fmt.Errorf("query implementation %d: %w", id, err)
	}
	return impl, nil
}

// Close releases the connection pool.
func (c *PostgresCatalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
