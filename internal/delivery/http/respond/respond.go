// Package respond holds what every command and query handler shares: the
// request id header, request validation and the error to status mapping.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	internalErrors "github.com/tumbleweedd/eshop_saga/internal/lib/errors"
	"github.com/tumbleweedd/eshop_saga/pkg/logger"
)

const RequestIDHeader = "x-requestid"

var (
	ErrMissingRequestID = errors.New("x-requestid header is required")
	ErrInvalidRequestID = errors.New("x-requestid must be a uuid")
	ErrBadRequest       = errors.New("bad request")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RequestID reads the idempotency key of a command.
func RequestID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(RequestIDHeader)
	if raw == "" {
		return uuid.Nil, ErrMissingRequestID
	}

	requestID, err := uuid.Parse(raw)
	if err != nil || requestID == uuid.Nil {
		return uuid.Nil, ErrInvalidRequestID
	}

	return requestID, nil
}

// Decode reads a JSON body into req and validates its struct tags.
func Decode(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}

	return Validate(req)
}

func Validate(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}

	return nil
}

// Status maps an error to the HTTP status the caller sees.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrMissingRequestID),
		errors.Is(err, ErrInvalidRequestID),
		errors.Is(err, internalErrors.ErrEmptyOrder),
		errors.Is(err, internalErrors.ErrInvalidUnits),
		errors.Is(err, internalErrors.ErrInvalidQuantity),
		errors.Is(err, internalErrors.ErrEmptyRoute):
		return http.StatusBadRequest
	case internalErrors.IsDataConsistency(err):
		return http.StatusNotFound
	case internalErrors.IsDomain(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error logs err and writes it with the mapped status. Internal errors are
// not echoed to the caller.
func Error(w http.ResponseWriter, log logger.Logger, op string, err error) {
	status := Status(err)

	if status == http.StatusInternalServerError {
		log.Error(op, logger.Err(err))
		http.Error(w, http.StatusText(status), status)
		return
	}

	log.Warn(op, logger.Int("status", status), logger.Err(err))
	http.Error(w, err.Error(), status)
}

func JSON(w http.ResponseWriter, log logger.Logger, op string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error(op, logger.String("msg", "failed to encode response"), logger.Err(err))
	}
}

// CommandResult is the body of every command response.
type CommandResult struct {
	Result string `json:"result"`
	ID     string `json:"id,omitempty"`
}
