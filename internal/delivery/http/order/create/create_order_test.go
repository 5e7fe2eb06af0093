package create

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tumbleweedd/eshop_saga/internal/cache_impl"
	"github.com/tumbleweedd/eshop_saga/internal/delivery/http/respond"
	"github.com/tumbleweedd/eshop_saga/internal/idempotency"
	"github.com/tumbleweedd/eshop_saga/internal/outbox"
	"github.com/tumbleweedd/eshop_saga/internal/repository"
	orderCreate "github.com/tumbleweedd/eshop_saga/internal/services/order/create"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const validBody = `{
	"buyer_id": "buyer-1",
	"items": [{"product_id": 7, "product_name": "mug", "unit_price": 450, "units": 1}],
	"address": {"street": "Main 1", "city": "Berlin", "country": "DE"},
	"payment": {"card_type": "visa", "card_holder_name": "Ann", "card_number": "4111111111111111", "card_expiration": "12/30"}
}`

func TestValidate(t *testing.T) {
	tCases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: validBody},
		{
			name: "without_payment",
			body: `{"buyer_id": "b", "items": [{"product_id": 1, "units": 1}], "address": {"street": "s", "city": "c", "country": "x"}}`,
		},
		{
			name:    "no_items",
			body:    `{"buyer_id": "b", "items": [], "address": {"street": "s", "city": "c", "country": "x"}}`,
			wantErr: true,
		},
		{
			name:    "zero_units",
			body:    `{"buyer_id": "b", "items": [{"product_id": 1, "units": 0}], "address": {"street": "s", "city": "c", "country": "x"}}`,
			wantErr: true,
		},
		{
			name:    "no_buyer",
			body:    `{"items": [{"product_id": 1, "units": 1}], "address": {"street": "s", "city": "c", "country": "x"}}`,
			wantErr: true,
		},
		{
			name:    "no_address",
			body:    `{"buyer_id": "b", "items": [{"product_id": 1, "units": 1}]}`,
			wantErr: true,
		},
		{
			name: "bad_card_number",
			body: `{"buyer_id": "b", "items": [{"product_id": 1, "units": 1}], "address": {"street": "s", "city": "c", "country": "x"},
				"payment": {"card_type": "visa", "card_holder_name": "Ann", "card_number": "abc", "card_expiration": "12/30"}}`,
			wantErr: true,
		},
	}

	for _, tCase := range tCases {
		t.Run(tCase.name, func(t *testing.T) {
			var request CreateOrderRequest
			err := respond.Decode(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tCase.body)), &request)
			if tCase.wantErr {
				require.ErrorIs(t, err, respond.ErrBadRequest)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMaskCardNumber(t *testing.T) {
	require.Equal(t, "XXXXXXXXXXXX1111", maskCardNumber("4111111111111111"))
	require.Equal(t, "123", maskCardNumber("123"))
}

func TestCreate(t *testing.T) {
	log := logger.NewDiscard()
	repo := repository.NewMemory()
	cache := cache_impl.NewOrderCache(16, time.Minute, log)
	service := orderCreate.New(log,
		outbox.NewWriter(log, repo.TxManager, repo.Outbox, nil),
		idempotency.New(log, repo.Idempotency, repo.TxManager),
		repo.Orders,
		cache,
	)
	handler := NewHandler(log, service)

	requestID := uuid.New().String()

	do := func(requestID, body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		if requestID != "" {
			r.Header.Set(respond.RequestIDHeader, requestID)
		}
		w := httptest.NewRecorder()
		handler.Create(w, r)
		return w
	}

	w := do(requestID, validBody)
	require.Equal(t, http.StatusCreated, w.Code)

	var created respond.CommandResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.Equal(t, idempotency.Accepted.String(), created.Result)

	order, err := repo.Orders.Order(context.Background(), uuid.MustParse(created.ID))
	require.NoError(t, err)
	require.Equal(t, "buyer-1", order.BuyerID())
	require.Equal(t, "XXXXXXXXXXXX1111", order.PaymentInfo().CardNumberMasked)

	w = do(requestID, validBody)
	require.Equal(t, http.StatusOK, w.Code)

	var duplicate respond.CommandResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&duplicate))
	require.Equal(t, idempotency.AlreadyProcessed.String(), duplicate.Result)
	require.Empty(t, duplicate.ID)

	require.Equal(t, http.StatusBadRequest, do("", validBody).Code)
	require.Equal(t, http.StatusBadRequest, do(uuid.New().String(), `{"buyer_id": ""}`).Code)
}
