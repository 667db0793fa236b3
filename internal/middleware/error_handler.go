package middleware

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
	"github.com/labstack/echo/v4"
)

// RetryAfterSeconds is advertised on contention failures.
const RetryAfterSeconds = 1

type ErrorResponse struct {
	Kind      service.Kind   `json:"kind,omitempty"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindCapacityExceeded, service.KindTableUnavailable,
		service.KindTicketNotAdmissible, service.KindInvalidTransition:
		return http.StatusConflict
	case service.KindOverpaymentRejected, service.KindInvalidAmount:
		return http.StatusUnprocessableEntity
	case service.KindReservationExpired:
		return http.StatusGone
	case service.KindConcurrencyConflict:
		return http.StatusServiceUnavailable
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil && service.KindOf(he.Internal) != "" {
		err = he.Internal
	}

	var se *service.Error
	switch {
	case errors.As(err, &se):
		if se.Retryable() {
			c.Response().Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
		}
		_ = c.JSON(StatusFor(se.Kind), ErrorResponse{
			Kind:      se.Kind,
			Message:   se.Message,
			Retryable: se.Retryable(),
			Details:   se.Details(),
		})
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.JSON(he.Code, ErrorResponse{Message: msg})
	default:
		if kind := service.KindOf(err); kind != "" {
			_ = c.JSON(StatusFor(kind), ErrorResponse{Kind: kind, Message: err.Error(), Retryable: kind == service.KindConcurrencyConflict})
			return
		}
		log.Printf("[HTTP] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
	}
}
