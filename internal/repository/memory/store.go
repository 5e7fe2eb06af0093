// Package memory is an in-process implementation of every repository. One
// Store stands for one service database: transactions are serialized by a
// single lock, work on a copy of the state and swap it in on commit.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
)

type txKey struct{}

type idempotencyKey struct {
	requestID uuid.UUID
	name      string
}

type inventoryKey struct {
	warehouseID   int
	catalogItemID int
}

type state struct {
	outbox      []models.OutboxEntry
	idempotency map[idempotencyKey]models.IdempotencyRecord
	orders      map[uuid.UUID]models.OrderSnapshot
	shipments   map[uuid.UUID]models.ShipmentSnapshot
	warehouses  map[int]models.Warehouse
	inventory   map[inventoryKey]models.WarehouseInventory
}

func newState() *state {
	return &state{
		idempotency: make(map[idempotencyKey]models.IdempotencyRecord),
		orders:      make(map[uuid.UUID]models.OrderSnapshot),
		shipments:   make(map[uuid.UUID]models.ShipmentSnapshot),
		warehouses:  make(map[int]models.Warehouse),
		inventory:   make(map[inventoryKey]models.WarehouseInventory),
	}
}

// clone copies the containers. Stored values are replaced, never mutated in
// place, so copying the containers is enough.
func (s *state) clone() *state {
	c := &state{
		outbox:      append([]models.OutboxEntry(nil), s.outbox...),
		idempotency: make(map[idempotencyKey]models.IdempotencyRecord, len(s.idempotency)),
		orders:      make(map[uuid.UUID]models.OrderSnapshot, len(s.orders)),
		shipments:   make(map[uuid.UUID]models.ShipmentSnapshot, len(s.shipments)),
		warehouses:  make(map[int]models.Warehouse, len(s.warehouses)),
		inventory:   make(map[inventoryKey]models.WarehouseInventory, len(s.inventory)),
	}

	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.shipments {
		c.shipments[k] = v
	}
	for k, v := range s.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}

	return c
}

type tx struct {
	store *Store
	state *state
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

// WithTx implements database.TxManager.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, state: s.state.clone()}
	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}

	s.state = t.state
	return nil
}

// read runs fn against the transaction's state when ctx carries one, and
// against the committed state under the lock otherwise.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(txKey{}).(*tx); ok && t.store == s {
		return fn(t.state)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.state)
}

// write is read for single-statement mutations outside a transaction.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.read(ctx, fn)
}
