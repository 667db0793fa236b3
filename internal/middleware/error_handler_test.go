package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/repository"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(err, c)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestStatusFor(t *testing.T) {
	cases := map[service.Kind]int{
		service.KindCapacityExceeded:    http.StatusConflict,
		service.KindTableUnavailable:    http.StatusConflict,
		service.KindTicketNotAdmissible: http.StatusConflict,
		service.KindInvalidTransition:   http.StatusConflict,
		service.KindOverpaymentRejected: http.StatusUnprocessableEntity,
		service.KindInvalidAmount:       http.StatusUnprocessableEntity,
		service.KindReservationExpired:  http.StatusGone,
		service.KindConcurrencyConflict: http.StatusServiceUnavailable,
		service.KindNotFound:            http.StatusNotFound,
		service.KindInvalidRequest:      http.StatusBadRequest,
		"":                              http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, StatusFor(kind), kind)
	}
}

func TestErrorHandler_ServiceError(t *testing.T) {
	err := &service.Error{Kind: service.KindTableUnavailable, Message: "table 3 is reserved", TableID: 3, State: "reserved"}

	rec, body := serve(t, fmt.Errorf("checkout: %w", err))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.KindTableUnavailable, body.Kind)
	assert.Equal(t, "table 3 is reserved", body.Message)
	assert.False(t, body.Retryable)
	assert.Equal(t, float64(3), body.Details["table_id"])
	assert.Equal(t, "reserved", body.Details["state"])
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestErrorHandler_ConflictIsRetryable(t *testing.T) {
	rec, body := serve(t, &service.Error{Kind: service.KindConcurrencyConflict, Message: "busy"})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, body.Retryable)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestErrorHandler_WrappedInHTTPError(t *testing.T) {
	inner := &service.Error{Kind: service.KindReservationExpired, Message: "reservation 9 expired", ReservationID: 9}
	he := echo.NewHTTPError(http.StatusBadRequest, "ignored").SetInternal(inner)

	rec, body := serve(t, he)

	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, service.KindReservationExpired, body.Kind)
}

func TestErrorHandler_HTTPError(t *testing.T) {
	rec, body := serve(t, echo.NewHTTPError(http.StatusBadRequest, "invalid id"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid id", body.Message)
	assert.Empty(t, body.Kind)
}

func TestErrorHandler_RepositoryError(t *testing.T) {
	rec, body := serve(t, fmt.Errorf("load: %w", repository.ErrNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, service.KindNotFound, body.Kind)
}

func TestErrorHandler_Unknown(t *testing.T) {
	rec, body := serve(t, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body.Message)
}
