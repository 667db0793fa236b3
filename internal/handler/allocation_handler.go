package handler

import (
	"net/http"
	"strconv"

	"github.com/Eursukkul/booking-microservice/allocation-service/internal/dto"
	"github.com/Eursukkul/booking-microservice/allocation-service/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"
)

const (
	defaultActor = "api"
	qrSize       = 256
)

type AllocationHandler struct {
	svc service.AllocationService
}

func NewAllocationHandler(svc service.AllocationService) *AllocationHandler {
	return &AllocationHandler{svc: svc}
}

// RegisterRoutes mounts the API. limited wraps the checkout and scan
// routes.
func (h *AllocationHandler) RegisterRoutes(e *echo.Echo, limited ...echo.MiddlewareFunc) {
	api := e.Group("/api/v1")

	tiers := api.Group("/tiers")
	tiers.POST("", h.CreateTier)
	tiers.GET("/:id", h.GetTier)
	tiers.PUT("/:id/capacity", h.SetTierCapacity)
	tiers.DELETE("/:id", h.RetireTier)

	tables := api.Group("/tables")
	tables.POST("", h.CreateTable)
	tables.GET("/:id", h.GetTable)
	tables.PUT("/:id/status", h.SetTableStatus)

	api.POST("/checkout", h.Checkout, limited...)

	reservations := api.Group("/reservations")
	reservations.POST("", h.CreateReservation, limited...)
	reservations.GET("/:id", h.GetReservation)
	reservations.DELETE("/:id", h.CancelReservation)
	reservations.POST("/:id/payments", h.ApplyPayment)

	tickets := api.Group("/tickets")
	tickets.GET("/:id", h.GetTicket)
	tickets.GET("/:id/history", h.TicketHistory)
	tickets.GET("/:id/qr", h.TicketQR)
	tickets.POST("/:id/scan", h.ScanTicket, limited...)
	tickets.POST("/:id/revoke", h.RevokeTicket)
	tickets.POST("/:id/redeem", h.RedeemTicket)

	api.POST("/checkin", h.Checkin, limited...)
}

func (h *AllocationHandler) CreateTier(c echo.Context) error {
	var req dto.CreateTierRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tier, err := h.svc.CreateTier(c.Request().Context(), req.Model())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.ToTierResponse(tier))
}

func (h *AllocationHandler) GetTier(c echo.Context) error {
	id, err := pathID(c, "tier")
	if err != nil {
		return err
	}

	tier, err := h.svc.Tier(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToTierResponse(tier))
}

func (h *AllocationHandler) SetTierCapacity(c echo.Context) error {
	id, err := pathID(c, "tier")
	if err != nil {
		return err
	}
	var req dto.SetCapacityRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tier, err := h.svc.SetTierCapacity(c.Request().Context(), id, req.Capacity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToTierResponse(tier))
}

func (h *AllocationHandler) RetireTier(c echo.Context) error {
	id, err := pathID(c, "tier")
	if err != nil {
		return err
	}

	tier, err := h.svc.RetireTier(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToTierResponse(tier))
}

func (h *AllocationHandler) CreateTable(c echo.Context) error {
	var req dto.CreateTableRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	table, err := h.svc.CreateTable(c.Request().Context(), req.Model())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, table)
}

func (h *AllocationHandler) GetTable(c echo.Context) error {
	id, err := pathID(c, "table")
	if err != nil {
		return err
	}

	table, err := h.svc.Table(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, table)
}

func (h *AllocationHandler) SetTableStatus(c echo.Context) error {
	id, err := pathID(c, "table")
	if err != nil {
		return err
	}
	var req dto.SetTableStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	table, err := h.svc.SetTableStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, table)
}

func (h *AllocationHandler) Checkout(c echo.Context) error {
	var req dto.CheckoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.svc.Checkout(c.Request().Context(), req.Service())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.ToCheckoutResponse(res))
}

func (h *AllocationHandler) CreateReservation(c echo.Context) error {
	var req dto.CreateReservationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.svc.CreateReservation(c.Request().Context(), req.Service())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dto.ToReservationResponse(res))
}

func (h *AllocationHandler) GetReservation(c echo.Context) error {
	id, err := pathID(c, "reservation")
	if err != nil {
		return err
	}

	view, err := h.svc.Reservation(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToReservationView(view))
}

func (h *AllocationHandler) CancelReservation(c echo.Context) error {
	id, err := pathID(c, "reservation")
	if err != nil {
		return err
	}

	res, err := h.svc.CancelReservation(c.Request().Context(), id, actor(c, ""))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToReservationResponse(res))
}

func (h *AllocationHandler) ApplyPayment(c echo.Context) error {
	id, err := pathID(c, "reservation")
	if err != nil {
		return err
	}
	var req dto.ApplyPaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	applied, err := h.svc.ApplyPayment(c.Request().Context(), service.PaymentRequest{
		ReservationID: id,
		Amount:        req.Amount,
		Reference:     req.Reference,
		Method:        req.Method,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToPaymentResponse(applied))
}

func (h *AllocationHandler) GetTicket(c echo.Context) error {
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}

	t, err := h.svc.Ticket(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToTicketResponse(t))
}

func (h *AllocationHandler) TicketHistory(c echo.Context) error {
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}

	history, err := h.svc.TicketHistory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, history)
}

// TicketQR renders the ticket code as a PNG for scanner clients.
func (h *AllocationHandler) TicketQR(c echo.Context) error {
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}

	size := qrSize
	if s := c.QueryParam("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > 1024 {
			return invalid("size must be between 64 and 1024")
		}
		size = n
	}

	t, err := h.svc.Ticket(c.Request().Context(), id)
	if err != nil {
		return err
	}

	png, err := qrcode.Encode(t.Code, qrcode.Medium, size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render qr code").SetInternal(err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *AllocationHandler) ScanTicket(c echo.Context) error {
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.ScanRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.svc.ScanTicket(c.Request().Context(), id, req.Admit(), actor(c, req.Actor))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToScanResponse(res))
}

func (h *AllocationHandler) Checkin(c echo.Context) error {
	var req dto.CheckinRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.svc.ScanByCode(c.Request().Context(), req.Code, req.Admit(), actor(c, req.Actor))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToScanResponse(res))
}

func (h *AllocationHandler) RevokeTicket(c echo.Context) error {
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.RevokeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	t, err := h.svc.RevokeTicket(c.Request().Context(), id, actor(c, req.Actor), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToTicketResponse(t))
}

func (h *AllocationHandler) RedeemTicket(c echo.Context) error {
	id, err := pathID(c, "ticket")
	if err != nil {
		return err
	}
	var req dto.ActorRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.svc.RedeemTicket(c.Request().Context(), id, actor(c, req.Actor))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.ToRedeemResponse(res))
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, invalid("invalid " + name + " id")
	}
	return uint(id), nil
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return invalid("invalid request body")
	}
	return c.Validate(req)
}

// actor names who performed an operation: the body field, then the
// X-Actor-ID header.
func actor(c echo.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if h := c.Request().Header.Get("X-Actor-ID"); h != "" {
		return h
	}
	return defaultActor
}
