package idempotency

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

func TestTryInsert(t *testing.T) {
	errConn := errors.New("connection reset")

	tCases := []struct {
		name         string
		mockBehavior func(mock sqlmock.Sqlmock, record models.IdempotencyRecord)
		want         bool
		wantErr      error
	}{
		{
			name: "first_time",
			mockBehavior: func(mock sqlmock.Sqlmock, record models.IdempotencyRecord) {
				mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (request_id, name) DO NOTHING`)).
					WithArgs(record.RequestID, record.Name, record.ReceivedAt).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			want: true,
		},
		{
			name: "already_processed",
			mockBehavior: func(mock sqlmock.Sqlmock, record models.IdempotencyRecord) {
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "idempotency"`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			want: false,
		},
		{
			name: "db_error",
			mockBehavior: func(mock sqlmock.Sqlmock, record models.IdempotencyRecord) {
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "idempotency"`)).WillReturnError(errConn)
			},
			wantErr: errConn,
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			record := models.IdempotencyRecord{RequestID: uuid.New(), Name: "AddStock", ReceivedAt: time.Now().UTC()}
			tCase.mockBehavior(mock, record)

			got, err := New(logger.NewDiscard(), sqlx.NewDb(db, "postgres")).TryInsert(context.Background(), record)
			if tCase.wantErr != nil {
				require.ErrorIs(t, err, tCase.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tCase.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
