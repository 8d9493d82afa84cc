package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rettibot/bts-backend/internal/service"
)

// ReservationHandler handles the pre-payment reservation phase.
type ReservationHandler struct {
	Svc *service.Entitlement
}

func NewReservationHandler(svc *service.Entitlement) *ReservationHandler {
	return &ReservationHandler{Svc: svc}
}

type reserveReq struct {
	Email  string `json:"email"`
	Region string `json:"region"`
	Stage  string `json:"stage"`
}

// Reserve creates a reservation record and emails the buyer their code.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := reqCtx(c, 15*time.Second)
	defer cancel()

	code, err := h.Svc.Reserve(ctx, service.ReserveParams{
		Email:  req.Email,
		Region: req.Region,
		Stage:  req.Stage,
	})
	if err != nil {
		return entitlementError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Success", "code": code})
}
