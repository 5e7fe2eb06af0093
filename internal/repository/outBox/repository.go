package outBox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tumbleweedd/eshop_saga/internal/database"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const entryColumns = `event_id, type_name, payload, state, times_sent, created_at, last_attempt_at, transaction_id`

// claimable matches rows a relay may take: never tried, failed, or held by a
// relay whose attempt is older than $N.
const claimable = `(state IN (%d, %d) OR (state = %d AND (last_attempt_at IS NULL OR last_attempt_at < $%d)))`

type Repository struct {
	db *sqlx.DB

	log logger.Logger
	now func() time.Time
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{db: db, log: log, now: time.Now}
}

func (or *Repository) Append(ctx context.Context, entry models.OutboxEntry) error {
	const op = "Repository.Append"

	const outboxQuery = `INSERT INTO "outbox" (` + entryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := database.GetTx(ctx, or.db).ExecContext(ctx, outboxQuery,
		entry.EventID, entry.TypeName, string(entry.Payload), int(entry.State), entry.TimesSent,
		entry.CreatedAt, entry.LastAttemptAt, entry.TransactionID,
	)
	if err != nil {
		or.log.Error(op, logger.String("outbox insert error", err.Error()))
		return fmt.Errorf("%s: outbox insert error: %w", op, err)
	}

	return nil
}

func (or *Repository) FetchPending(ctx context.Context, transactionID uuid.UUID) ([]models.OutboxEntry, error) {
	const op = "Repository.FetchPending"

	const query = `SELECT ` + entryColumns + ` FROM "outbox"
		WHERE transaction_id = $1 AND state = $2
		ORDER BY seq`

	var entries []models.OutboxEntry
	if err := database.GetTx(ctx, or.db).SelectContext(ctx, &entries, query, transactionID, int(models.OutboxStateNotPublished)); err != nil {
		or.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return entries, nil
}

// FetchRetryable skips every transaction with a row currently held by a live
// relay, so its remaining rows are not published ahead of the held one.
func (or *Repository) FetchRetryable(ctx context.Context, staleBefore time.Time, limit int) ([]models.OutboxEntry, error) {
	const op = "Repository.FetchRetryable"

	query := `SELECT ` + entryColumns + ` FROM "outbox"
		WHERE ` + claimableWhere(1) + `
		AND transaction_id NOT IN (
			SELECT transaction_id FROM "outbox" WHERE state = $2 AND last_attempt_at >= $1
		)
		ORDER BY seq
		LIMIT $3`

	var entries []models.OutboxEntry
	if err := database.GetTx(ctx, or.db).SelectContext(ctx, &entries, query,
		staleBefore, int(models.OutboxStateInProgress), limit,
	); err != nil {
		or.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return entries, nil
}

func (or *Repository) MarkInProgress(ctx context.Context, eventID uuid.UUID, staleBefore time.Time) (bool, error) {
	const op = "Repository.MarkInProgress"

	query := `UPDATE "outbox" SET state = $1, times_sent = times_sent + 1, last_attempt_at = $2
		WHERE event_id = $3 AND ` + claimableWhere(4)

	res, err := database.GetTx(ctx, or.db).ExecContext(ctx, query,
		int(models.OutboxStateInProgress), or.now().UTC(), eventID, staleBefore,
	)
	if err != nil {
		or.log.Error(op, logger.Err(err))
		return false, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}

	return affected == 1, nil
}

func (or *Repository) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	const op = "Repository.MarkPublished"

	const query = `UPDATE "outbox" SET state = $1 WHERE event_id = $2 AND state <> $1`

	if _, err := database.GetTx(ctx, or.db).ExecContext(ctx, query, int(models.OutboxStatePublished), eventID); err != nil {
		or.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

func (or *Repository) MarkFailed(ctx context.Context, eventID uuid.UUID) error {
	const op = "Repository.MarkFailed"

	const query = `UPDATE "outbox" SET state = $1 WHERE event_id = $2 AND state = $3`

	if _, err := database.GetTx(ctx, or.db).ExecContext(ctx, query,
		int(models.OutboxStatePublishedFailed), eventID, int(models.OutboxStateInProgress),
	); err != nil {
		or.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return nil
}

func claimableWhere(staleArg int) string {
	return fmt.Sprintf(claimable,
		models.OutboxStateNotPublished, models.OutboxStatePublishedFailed, models.OutboxStateInProgress, staleArg)
}
