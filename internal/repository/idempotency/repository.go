package idempotency

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tumbleweedd/eshop_saga/internal/database"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type Repository struct {
	log logger.Logger
	db  *sqlx.DB
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{log: log, db: db}
}

// TryInsert reports false when the (request_id, name) pair was already
// recorded. The unique key arbitrates between concurrent callers: the loser
// blocks until the winner's transaction ends and then sees the conflict.
func (r *Repository) TryInsert(ctx context.Context, record models.IdempotencyRecord) (bool, error) {
	const op = "repository.idempotency.TryInsert"

	const query = `INSERT INTO "idempotency" (request_id, name, received_at) VALUES ($1, $2, $3)
		ON CONFLICT (request_id, name) DO NOTHING`

	res, err := database.GetTx(ctx, r.db).ExecContext(ctx, query, record.RequestID, record.Name, record.ReceivedAt)
	if err != nil {
		r.log.Error(op, logger.Err(err))
		return false, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}

	return affected == 1, nil
}
