package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tumbleweedd/eshop_saga/internal/database"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type orderRow struct {
	UUID               uuid.UUID     `db:"uuid"`
	BuyerID            string        `db:"buyer_id"`
	Status             int           `db:"status"`
	Street             string        `db:"street"`
	City               string        `db:"city"`
	State              string        `db:"state"`
	Country            string        `db:"country"`
	ZipCode            string        `db:"zip_code"`
	CardType           string        `db:"card_type"`
	CardHolderName     string        `db:"card_holder_name"`
	CardNumberMasked   string        `db:"card_number_masked"`
	CardExpiration     string        `db:"card_expiration"`
	ShipmentUUID       uuid.NullUUID `db:"shipment_uuid"`
	Description        string        `db:"description"`
	RejectedProductIDs pq.Int64Array `db:"rejected_product_ids"`
	CreatedAt          time.Time     `db:"created_at"`
}

type itemRow struct {
	OrderUUID   uuid.UUID `db:"order_uuid"`
	ProductID   int       `db:"product_id"`
	ProductName string    `db:"product_name"`
	UnitPrice   int64     `db:"unit_price"`
	Units       int       `db:"units"`
}

const orderColumns = `o.uuid, o.buyer_id, o.status, o.street, o.city, o.state, o.country, o.zip_code,
	o.card_type, o.card_holder_name, o.card_number_masked, o.card_expiration,
	o.shipment_uuid, o.description, o.rejected_product_ids, o.created_at`

type Repository struct {
	log logger.Logger
	db  *sqlx.DB
}

func NewOrderRepository(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{
		log: log,
		db:  db,
	}
}

func (or *Repository) Create(ctx context.Context, order *models.Order) error {
	const op = "repository.order.Create"

	q := database.GetTx(ctx, or.db)
	s := order.Snapshot()

	const orderQuery = `INSERT INTO "order" (uuid, buyer_id, status, street, city, state, country, zip_code,
		card_type, card_holder_name, card_number_masked, card_expiration, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := q.ExecContext(ctx, orderQuery,
		s.ID, s.BuyerID, int(s.Status),
		s.Address.Street, s.Address.City, s.Address.State, s.Address.Country, s.Address.ZipCode,
		s.PaymentInfo.CardType, s.PaymentInfo.CardHolderName, s.PaymentInfo.CardNumberMasked, s.PaymentInfo.CardExpiration,
		s.Description, s.CreatedAt,
	)
	if err != nil {
		or.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: order execute statement: %w", op, err)
	}

	const orderItemsQuery = `INSERT INTO "order_items" (order_uuid, product_id, product_name, unit_price, units) VALUES %s`
	var values []interface{}
	var placeholders []string

	for i, item := range s.Items {
		values = append(values, s.ID, item.ProductID, item.ProductName, item.UnitPrice, item.Units)

		argId := i * 5

		placeholders = append(placeholders,
			fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", argId+1, argId+2, argId+3, argId+4, argId+5))
	}

	fullQuery := fmt.Sprintf(orderItemsQuery, strings.Join(placeholders, ","))

	if _, err = q.ExecContext(ctx, fullQuery, values...); err != nil {
		or.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: order_items execute statement: %w", op, err)
	}

	return nil
}

// Update persists the mutable part of the order. Lines never change after
// creation.
func (or *Repository) Update(ctx context.Context, order *models.Order) error {
	const op = "repository.order.Update"

	const query = `UPDATE "order" SET status = $1, shipment_uuid = $2, description = $3, rejected_product_ids = $4
		WHERE uuid = $5`

	shipment := uuid.NullUUID{UUID: order.ShipmentID(), Valid: order.ShipmentID() != uuid.Nil}

	res, err := database.GetTx(ctx, or.db).ExecContext(ctx, query,
		int(order.Status()), shipment, order.Description(), toInt64Array(order.RejectedProductIDs()), order.ID(),
	)
	if err != nil {
		or.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: execute statement: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}

	if affected == 0 {
		return internalErrors.ErrOrderNotFound
	}

	return nil
}

// Order loads one order. Inside a transaction the row stays locked until
// commit so that concurrent handlers of the same order are serialized.
func (or *Repository) Order(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error) {
	const op = "repository.order.Order"

	q := database.GetTx(ctx, or.db)

	orderQuery := `SELECT ` + orderColumns + ` FROM "order" o WHERE o.uuid = $1` + database.ForUpdate(ctx)

	var row orderRow
	if err := q.GetContext(ctx, &row, orderQuery, orderUUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internalErrors.ErrOrderNotFound
		}
		or.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: scan order: %w", op, err)
	}

	const orderItemsQuery = `
								SELECT oi.order_uuid, oi.product_id, oi.product_name, oi.unit_price, oi.units
									FROM "order_items" oi
									WHERE oi.order_uuid = $1
									ORDER BY oi.position
							`

	var items []itemRow
	if err := q.SelectContext(ctx, &items, orderItemsQuery, orderUUID); err != nil {
		or.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: select order_items: %w", op, err)
	}

	snapshot := row.snapshot()
	for _, item := range items {
		snapshot.Items = append(snapshot.Items, item.model())
	}

	return models.RestoreOrder(snapshot), nil
}

func (or *Repository) OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) (map[uuid.UUID]models.OrderSnapshot, error) {
	const op = "repository.order.OrdersByUUIDs"

	q := database.GetTx(ctx, or.db)
	ordersMap := make(map[uuid.UUID]models.OrderSnapshot, len(UUIDs))

	orderQuery := `SELECT ` + orderColumns + ` FROM "order" o WHERE o.uuid = ANY($1)`

	var rows []orderRow
	if err := q.SelectContext(ctx, &rows, orderQuery, pq.Array(UUIDs)); err != nil {
		or.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	for _, row := range rows {
		ordersMap[row.UUID] = row.snapshot()
	}

	if len(ordersMap) == 0 {
		return nil, internalErrors.ErrOrderNotFound
	}

	const orderItemsQuery = `
								SELECT oi.order_uuid, oi.product_id, oi.product_name, oi.unit_price, oi.units
									FROM "order_items" oi
									WHERE oi.order_uuid = ANY($1)
									ORDER BY oi.position
							`

	var items []itemRow
	if err := q.SelectContext(ctx, &items, orderItemsQuery, pq.Array(UUIDs)); err != nil {
		or.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	for _, item := range items {
		order := ordersMap[item.OrderUUID]
		order.Items = append(order.Items, item.model())

		ordersMap[item.OrderUUID] = order
	}

	return ordersMap, nil
}

// SubmittedBefore returns the ids of orders still Submitted that were created
// before the given instant, oldest first.
func (or *Repository) SubmittedBefore(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	const op = "repository.order.SubmittedBefore"

	const query = `SELECT o.uuid FROM "order" o
		WHERE o.status = $1 AND o.created_at < $2
		ORDER BY o.created_at
		LIMIT $3`

	var ids []uuid.UUID
	if err := database.GetTx(ctx, or.db).SelectContext(ctx, &ids, query, int(models.OrderStatusSubmitted), before, limit); err != nil {
		or.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: execute statement: %w", op, err)
	}

	return ids, nil
}

func (r orderRow) snapshot() models.OrderSnapshot {
	rejected := make([]int, 0, len(r.RejectedProductIDs))
	for _, id := range r.RejectedProductIDs {
		rejected = append(rejected, int(id))
	}

	return models.OrderSnapshot{
		ID:      r.UUID,
		BuyerID: r.BuyerID,
		Status:  models.OrderStatus(r.Status),
		Address: models.Address{
			Street:  r.Street,
			City:    r.City,
			State:   r.State,
			Country: r.Country,
			ZipCode: r.ZipCode,
		},
		PaymentInfo: models.PaymentInfo{
			CardType:         r.CardType,
			CardHolderName:   r.CardHolderName,
			CardNumberMasked: r.CardNumberMasked,
			CardExpiration:   r.CardExpiration,
		},
		CreatedAt:          r.CreatedAt,
		ShipmentID:         r.ShipmentUUID.UUID,
		Description:        r.Description,
		RejectedProductIDs: rejected,
	}
}

func (r itemRow) model() models.OrderItem {
	return models.OrderItem{
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		UnitPrice:   r.UnitPrice,
		Units:       r.Units,
	}
}

func toInt64Array(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}
