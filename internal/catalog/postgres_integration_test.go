// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mlbe/mlbe-runner/internal/testutil"
)

func TestPostgresCatalog_Integration(t *testing.T) {
	testutil.RequireContainerProvider(t)
	testutil.AcquireContainerSlot(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "mlbe",
				"POSTGRES_PASSWORD": "mlbe",
				"POSTGRES_DB":       "mlbe",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://mlbe:mlbe@%s:%s/mlbe?sslmode=disable", host, port.Port())

	seed, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer testutil.DeferClose(t, seed)()
	_, err = seed.ExecContext(ctx, `CREATE TABLE behavior_implementations (
		id BIGINT PRIMARY KEY,
		language TEXT NOT NULL,
		repo_url TEXT NOT NULL,
		revision TEXT,
		file_path TEXT
	)`)
	require.NoError(t, err)
	_, err = seed.ExecContext(ctx,
		`INSERT INTO behavior_implementations (id, language, repo_url, revision, file_path) VALUES ($1, $2, $3, NULL, $4)`,
		int64(42), "python", "https://github.com/acme/impl-42", "app.py")
	require.NoError(t, err)

	c, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer testutil.DeferClose(t, c)()

	impl, err := c.Implementation(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "python", impl.Language)
	assert.Empty(t, impl.Revision)
	assert.Equal(t, "app.py", impl.FilePath)

	_, err = c.Implementation(ctx, 43)
	assert.ErrorIs(t, err, ErrNotFound)
}
