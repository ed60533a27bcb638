//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/protoguard/pkg/validate"
)

func setupPostgresAudit(t *testing.T) *DBLogger {
	t.Helper()

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("audit_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger, err := Open(DialectPostgres, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		logger.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	return logger
}

func TestDBLogger_Postgres(t *testing.T) {
	logger := setupPostgresAudit(t)
	ctx := context.Background()

	event := NewEvent(ctx, SourceHTTP, "/v1/validate/{message}", "demo.v1.ListUserRequest", validate.AccumulateAll, sampleViolations(), nil)
	require.NoError(t, logger.Log(ctx, event))
	assert.NotZero(t, event.ID)

	events, err := logger.Query(ctx, Filter{Message: "demo.v1.ListUserRequest", Since: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	require.Len(t, events[0].Violations, 1)
	assert.Equal(t, validate.KindRange, events[0].Violations[0].Constraint)
}
