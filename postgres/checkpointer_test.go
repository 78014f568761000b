package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/go-consumer/postgres"
	"github.com/get-eventually/go-consumer/postgres/internal"
	"github.com/get-eventually/go-consumer/version"
)

func TestCheckpointer(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	url, ok := os.LookupEnv("DATABASE_URL")
	if !ok {
		container, err := internal.NewPostgresContainer(ctx)
		require.NoError(t, err)

		t.Cleanup(func() {
			assert.NoError(t, container.Terminate(context.Background()))
		})

		url = container.ConnectionDSN
	}

	require.NoError(t, postgres.RunMigrations(url))

	conn, err := pgxpool.New(ctx, url)
	require.NoError(t, err)

	t.Cleanup(conn.Close)

	checkpointer := postgres.Checkpointer{Conn: conn}

	t.Run("reading a never-checkpointed subscription yields the zero Position", func(t *testing.T) {
		pos, err := checkpointer.Read(ctx, "never-checkpointed")
		require.NoError(t, err)
		assert.True(t, pos.IsZero())
	})

	t.Run("written checkpoints are read back", func(t *testing.T) {
		want := version.Position{Commit: 10, Prepare: 10}
		require.NoError(t, checkpointer.Write(ctx, "orders-projector", want))

		pos, err := checkpointer.Read(ctx, "orders-projector")
		require.NoError(t, err)
		assert.Equal(t, want, pos)
	})

	t.Run("rewriting a checkpoint replaces the previous one", func(t *testing.T) {
		require.NoError(t, checkpointer.Write(ctx, "orders-projector", version.Position{Commit: 12, Prepare: 11}))

		pos, err := checkpointer.Read(ctx, "orders-projector")
		require.NoError(t, err)
		assert.Equal(t, version.Position{Commit: 12, Prepare: 11}, pos)
	})

	t.Run("subscriptions do not share checkpoints", func(t *testing.T) {
		require.NoError(t, checkpointer.Write(ctx, "audit-log", version.Position{Commit: 3, Prepare: 3}))

		pos, err := checkpointer.Read(ctx, "orders-projector")
		require.NoError(t, err)
		assert.Equal(t, version.Position{Commit: 12, Prepare: 11}, pos)
	})
}
