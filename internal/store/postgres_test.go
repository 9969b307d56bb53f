package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestInsight_Store_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	t.Parallel()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to cleanup postgres container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	s := newTestStore(t, store.Config{Driver: store.DriverPostgres, DSN: dsn})
	assert.Equal(t, store.DriverPostgres, s.Driver())
	require.NoError(t, s.Ping(ctx))

	// Migrations are idempotent.
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Seed(ctx))

	n, err := s.VerifyView(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(store.SampleStats)), n)

	res, err := s.Query(ctx, `SELECT enfermedad, num_casos FROM vista_muy_interesante WHERE region = $1 ORDER BY num_casos DESC`, "Cataluña")
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "Ansiedad", res.Rows[0]["enfermedad"])
	assert.Equal(t, int64(1200/store.SeedScale), res.Rows[0]["num_casos"])

	require.NoError(t, s.LogConversation(ctx, store.Conversation{
		RequestID:         "req-pg",
		UserMessage:       "¿Cuántos casos hay en Cataluña?",
		AssistantResponse: "💙 En Cataluña hay 120 casos de ansiedad.",
		UsedData:          true,
		Provider:          "Google Gemini",
	}))

	convs, err := s.RecentConversations(ctx, 5)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "req-pg", convs[0].RequestID)
	assert.True(t, convs[0].UsedData)
}
