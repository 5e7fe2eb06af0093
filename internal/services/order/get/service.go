package get

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tumbleweedd/eshop_saga/internal/domain/models"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

type orderGetter interface {
	OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) (map[uuid.UUID]models.OrderSnapshot, error)
	Order(ctx context.Context, orderUUID uuid.UUID) (*models.Order, error)
}

type orderCache interface {
	Get(key uuid.UUID) (value models.OrderSnapshot, ok bool)
	Add(key uuid.UUID, value models.OrderSnapshot) (evicted bool)
}

type OrderRetrievalService struct {
	log   logger.Logger
	cache orderCache

	orderGetter orderGetter
}

func New(
	log logger.Logger,
	cache orderCache,
	orderGetter orderGetter,
) *OrderRetrievalService {
	return &OrderRetrievalService{
		log:         log,
		cache:       cache,
		orderGetter: orderGetter,
	}
}

func (os *OrderRetrievalService) OrdersByUUIDs(ctx context.Context, UUIDs []uuid.UUID) ([]models.OrderSnapshot, error) {
	const op = "service.order.OrdersByUUIDs"

	result, notInCache := os.partitionOrdersByCache(ctx, UUIDs, op)

	if len(notInCache) == 0 {
		return result, nil
	}

	return os.fetchNotInCacheOrders(ctx, notInCache, result, op)
}

func (os *OrderRetrievalService) partitionOrdersByCache(ctx context.Context, UUIDs []uuid.UUID, op string) (result []models.OrderSnapshot, notInCache []uuid.UUID) {
	inCacheCh := make(chan models.OrderSnapshot, len(UUIDs))
	notInCacheCh := make(chan uuid.UUID, len(UUIDs))
	wg := sync.WaitGroup{}

	for _, id := range UUIDs {
		wg.Add(1)
		go os.checkCache(id, &wg, inCacheCh, notInCacheCh)
	}

	wg.Wait()
	close(inCacheCh)
	close(notInCacheCh)

	result = make([]models.OrderSnapshot, 0, len(UUIDs))
	for order := range inCacheCh {
		result = append(result, order)
	}

	notInCache = make([]uuid.UUID, 0, len(UUIDs))
	for orderUUID := range notInCacheCh {
		notInCache = append(notInCache, orderUUID)
	}

	os.log.DebugContext(ctx, op,
		logger.Int("items in cache", len(result)),
		logger.Int("items not in cache", len(notInCache)),
	)

	return result, notInCache
}

func (os *OrderRetrievalService) checkCache(orderUUID uuid.UUID,
	wg *sync.WaitGroup, inCacheCh chan models.OrderSnapshot, notInCacheCh chan uuid.UUID) {
	defer wg.Done()

	if value, ok := os.cache.Get(orderUUID); ok {
		inCacheCh <- value
		return
	}

	notInCacheCh <- orderUUID
}

func (os *OrderRetrievalService) fetchNotInCacheOrders(ctx context.Context, notInCache []uuid.UUID,
	result []models.OrderSnapshot, op string) ([]models.OrderSnapshot, error) {
	ordersMap, err := os.orderGetter.OrdersByUUIDs(ctx, notInCache)
	if err != nil {
		if errors.Is(err, internalErrors.ErrOrderNotFound) {
			return result, nil
		}

		os.log.Error(op, logger.Err(err))
		return nil, err
	}

	for orderUUID, order := range ordersMap {
		result = append(result, order)
		_ = os.cache.Add(orderUUID, order)
	}

	os.log.DebugContext(ctx, op, logger.Int("orders from DB", len(ordersMap)))

	return result, nil
}

func (os *OrderRetrievalService) OrderByUUID(ctx context.Context, orderUUID uuid.UUID) (models.OrderSnapshot, error) {
	const op = "service.order.Order"

	if order, ok := os.cache.Get(orderUUID); ok {
		os.log.DebugContext(ctx, op, logger.String("msg", "cache was used"))
		return order, nil
	}

	order, err := os.orderGetter.Order(ctx, orderUUID)
	if err != nil {
		return models.OrderSnapshot{}, err
	}

	snapshot := order.Snapshot()
	_ = os.cache.Add(orderUUID, snapshot)

	return snapshot, nil
}
