// Package postgres provides a PostgreSQL-backed checkpoint.Checkpointer,
// so catch-up subscriptions survive process restarts.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/go-consumer/logger"
	"github.com/get-eventually/go-consumer/subscription/checkpoint"
	"github.com/get-eventually/go-consumer/version"
)

// Interface implementation assertion.
var _ checkpoint.Checkpointer = Checkpointer{}

// Checkpointer is a checkpoint.Checkpointer implementation using
// PostgreSQL as a storage backend.
type Checkpointer struct {
	Conn   *pgxpool.Pool
	Logger logger.Logger
}

// Read returns the last checkpointed Position of the named subscription,
// or the zero Position if the subscription has never checkpointed.
func (c Checkpointer) Read(ctx context.Context, key string) (version.Position, error) {
	row := c.Conn.QueryRow(
		ctx,
		"SELECT commit_position, prepare_position FROM subscription_checkpoints WHERE subscription_id = $1",
		key,
	)

	var pos version.Position

	err := row.Scan(&pos.Commit, &pos.Prepare)
	if errors.Is(err, pgx.ErrNoRows) {
		return version.Position{}, nil
	}

	if err != nil {
		return version.Position{}, fmt.Errorf("postgres.Checkpointer: failed to read checkpoint: %w", err)
	}

	return pos, nil
}

// Write checkpoints the Position provided for the named subscription.
func (c Checkpointer) Write(ctx context.Context, key string, pos version.Position) error {
	_, err := c.Conn.Exec(
		ctx,
		`INSERT INTO subscription_checkpoints (subscription_id, commit_position, prepare_position)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscription_id) DO UPDATE
		SET commit_position = excluded.commit_position,
			prepare_position = excluded.prepare_position`,
		key, pos.Commit, pos.Prepare,
	)
	if err != nil {
		return fmt.Errorf("postgres.Checkpointer: failed to write checkpoint: %w", err)
	}

	logger.Debug(c.Logger, "checkpoint written",
		logger.With("subscription", key),
		logger.With("position", pos),
	)

	return nil
}
