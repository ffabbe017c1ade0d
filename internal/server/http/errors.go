package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// errorBody — единый формат тела ошибки API.
type errorBody struct {
	Error errorInfo `json:"error"`
}

type errorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError переводит доменную ошибку в HTTP-статус и унифицированное тело.
func writeError(c echo.Context, err error) error {
	kind, status := classifyError(err)
	return c.JSON(status, errorBody{Error: errorInfo{
		Kind:    kind,
		Message: err.Error(),
	}})
}

func writeInvalid(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: errorInfo{
		Kind:    "invalid",
		Message: message,
	}})
}

func classifyError(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder):
		return "empty_order", http.StatusUnprocessableEntity
	case domain.IsNotFound(err):
		return "not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return "conflict", http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return "transient", http.StatusServiceUnavailable
	case isInvalidArgument(err):
		return "invalid", http.StatusBadRequest
	default:
		return "internal", http.StatusInternalServerError
	}
}

func isInvalidArgument(err error) bool {
	for _, sentinel := range []error{
		domain.ErrUserIDRequired,
		domain.ErrLinesRequired,
		domain.ErrLineQtyInvalid,
		domain.ErrProductNameRequired,
		domain.ErrPriceInvalid,
		domain.ErrAbsoluteDiscountInvalid,
		domain.ErrPercentageDiscountInvalid,
		domain.ErrSKULengthInvalid,
		domain.ErrSKUAlphabetInvalid,
		domain.ErrStockNegative,
		domain.ErrRatingValueInvalid,
		domain.ErrIdempotencyKeyRequired,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
