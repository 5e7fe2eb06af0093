package shipment

import (
	"context"
	"database/sql"
	"encoding/json"
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

const uniqueViolation = "23505"

type shipmentRow struct {
	UUID            uuid.UUID `db:"uuid"`
	OrderUUID       uuid.UUID `db:"order_uuid"`
	ShipperID       string    `db:"shipper_id"`
	ShipperName     string    `db:"shipper_name"`
	Status          int       `db:"status"`
	CurrentWaypoint int       `db:"current_waypoint"`
	Items           []byte    `db:"items"`
	Address         []byte    `db:"address"`
	CreatedAt       time.Time `db:"created_at"`
}

type waypointRow struct {
	Sequence    int        `db:"sequence"`
	WarehouseID int        `db:"warehouse_id"`
	ArrivedAt   *time.Time `db:"arrived_at"`
	DepartedAt  *time.Time `db:"departed_at"`
}

type historyRow struct {
	Seq         int       `db:"seq"`
	Status      int       `db:"status"`
	At          time.Time `db:"at"`
	WarehouseID *int      `db:"warehouse_id"`
	Notes       string    `db:"notes"`
}

type Repository struct {
	log logger.Logger
	db  *sqlx.DB
}

func New(log logger.Logger, db *sqlx.DB) *Repository {
	return &Repository{log: log, db: db}
}

// Create stores a new shipment. A second shipment for the same order is
// rejected by the unique key on order_uuid.
func (r *Repository) Create(ctx context.Context, shipment *models.Shipment) error {
	const op = "repository.shipment.Create"

	s := shipment.Snapshot()

	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("%s: marshal items: %w", op, err)
	}

	address, err := json.Marshal(s.Address)
	if err != nil {
		return fmt.Errorf("%s: marshal address: %w", op, err)
	}

	const query = `INSERT INTO "shipment" (uuid, order_uuid, shipper_id, shipper_name, status, current_waypoint, items, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = database.GetTx(ctx, r.db).ExecContext(ctx, query,
		s.ID, s.OrderID, s.ShipperID, s.ShipperName, int(s.Status), s.CurrentWaypoint, string(items), string(address), s.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("order %s: %w", s.OrderID, internalErrors.ErrShipmentAlreadyExists)
		}
		r.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: shipment execute statement: %w", op, err)
	}

	if err = r.saveWaypoints(ctx, s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = r.appendHistory(ctx, s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Update stores the current state. History rows already stored are left
// untouched; only the new tail is inserted.
func (r *Repository) Update(ctx context.Context, shipment *models.Shipment) error {
	const op = "repository.shipment.Update"

	s := shipment.Snapshot()

	const query = `UPDATE "shipment" SET shipper_id = $1, shipper_name = $2, status = $3, current_waypoint = $4
		WHERE uuid = $5`

	res, err := database.GetTx(ctx, r.db).ExecContext(ctx, query,
		s.ShipperID, s.ShipperName, int(s.Status), s.CurrentWaypoint, s.ID,
	)
	if err != nil {
		r.log.Error(op, logger.Err(err))
		return fmt.Errorf("%s: shipment execute statement: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}

	if affected == 0 {
		return internalErrors.ErrShipmentNotFound
	}

	if err = r.saveWaypoints(ctx, s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = r.appendHistory(ctx, s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *Repository) Shipment(ctx context.Context, shipmentID uuid.UUID) (*models.Shipment, error) {
	return r.load(ctx, "repository.shipment.Shipment", `s.uuid = $1`, shipmentID)
}

func (r *Repository) ShipmentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Shipment, error) {
	return r.load(ctx, "repository.shipment.ShipmentByOrder", `s.order_uuid = $1`, orderID)
}

func (r *Repository) load(ctx context.Context, op, where string, arg uuid.UUID) (*models.Shipment, error) {
	q := database.GetTx(ctx, r.db)

	query := `SELECT s.uuid, s.order_uuid, s.shipper_id, s.shipper_name, s.status, s.current_waypoint, s.items, s.address, s.created_at
		FROM "shipment" s WHERE ` + where + database.ForUpdate(ctx)

	var row shipmentRow
	if err := q.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internalErrors.ErrShipmentNotFound
		}
		r.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: scan shipment: %w", op, err)
	}

	snapshot := models.ShipmentSnapshot{
		ID:              row.UUID,
		OrderID:         row.OrderUUID,
		ShipperID:       row.ShipperID,
		ShipperName:     row.ShipperName,
		Status:          models.ShipmentStatus(row.Status),
		CurrentWaypoint: row.CurrentWaypoint,
		CreatedAt:       row.CreatedAt,
	}

	if err := json.Unmarshal(row.Items, &snapshot.Items); err != nil {
		return nil, fmt.Errorf("%s: unmarshal items: %w", op, err)
	}

	if err := json.Unmarshal(row.Address, &snapshot.Address); err != nil {
		return nil, fmt.Errorf("%s: unmarshal address: %w", op, err)
	}

	const waypointsQuery = `SELECT sequence, warehouse_id, arrived_at, departed_at FROM "shipment_waypoint"
		WHERE shipment_uuid = $1 ORDER BY sequence`

	var waypoints []waypointRow
	if err := q.SelectContext(ctx, &waypoints, waypointsQuery, row.UUID); err != nil {
		r.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: select waypoints: %w", op, err)
	}

	for _, w := range waypoints {
		snapshot.Waypoints = append(snapshot.Waypoints, models.Waypoint{
			WarehouseID: w.WarehouseID,
			Sequence:    w.Sequence,
			ArrivedAt:   w.ArrivedAt,
			DepartedAt:  w.DepartedAt,
		})
	}

	const historyQuery = `SELECT seq, status, at, warehouse_id, notes FROM "shipment_status_history"
		WHERE shipment_uuid = $1 ORDER BY seq`

	var history []historyRow
	if err := q.SelectContext(ctx, &history, historyQuery, row.UUID); err != nil {
		r.log.Error(op, logger.Err(err))
		return nil, fmt.Errorf("%s: select history: %w", op, err)
	}

	for _, h := range history {
		snapshot.History = append(snapshot.History, models.StatusHistoryEntry{
			Status:      models.ShipmentStatus(h.Status),
			At:          h.At,
			WarehouseID: h.WarehouseID,
			Notes:       h.Notes,
		})
	}

	return models.RestoreShipment(snapshot), nil
}

func (r *Repository) saveWaypoints(ctx context.Context, s models.ShipmentSnapshot) error {
	if len(s.Waypoints) == 0 {
		return nil
	}

	const query = `INSERT INTO "shipment_waypoint" (shipment_uuid, sequence, warehouse_id, arrived_at, departed_at) VALUES %s
		ON CONFLICT (shipment_uuid, sequence) DO UPDATE SET arrived_at = EXCLUDED.arrived_at, departed_at = EXCLUDED.departed_at`

	var values []interface{}
	var placeholders []string

	for i, w := range s.Waypoints {
		values = append(values, s.ID, w.Sequence, w.WarehouseID, w.ArrivedAt, w.DepartedAt)

		argId := i * 5

		placeholders = append(placeholders,
			fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", argId+1, argId+2, argId+3, argId+4, argId+5))
	}

	if _, err := database.GetTx(ctx, r.db).ExecContext(ctx, fmt.Sprintf(query, strings.Join(placeholders, ",")), values...); err != nil {
		return fmt.Errorf("shipment_waypoint execute statement: %w", err)
	}

	return nil
}

// appendHistory inserts every history entry keyed by its position. Entries
// that are already stored hit the primary key and are skipped.
func (r *Repository) appendHistory(ctx context.Context, s models.ShipmentSnapshot) error {
	if len(s.History) == 0 {
		return nil
	}

	const query = `INSERT INTO "shipment_status_history" (shipment_uuid, seq, status, at, warehouse_id, notes) VALUES %s
		ON CONFLICT (shipment_uuid, seq) DO NOTHING`

	var values []interface{}
	var placeholders []string

	for i, h := range s.History {
		values = append(values, s.ID, i, int(h.Status), h.At, h.WarehouseID, h.Notes)

		argId := i * 6

		placeholders = append(placeholders,
			fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", argId+1, argId+2, argId+3, argId+4, argId+5, argId+6))
	}

	if _, err := database.GetTx(ctx, r.db).ExecContext(ctx, fmt.Sprintf(query, strings.Join(placeholders, ",")), values...); err != nil {
		return fmt.Errorf("shipment_status_history execute statement: %w", err)
	}

	return nil
}
