package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rettibot/bts-backend/internal/lock"
	"github.com/rettibot/bts-backend/internal/payment"
	"github.com/rettibot/bts-backend/internal/service"
	"github.com/rettibot/bts-backend/internal/store"
)

// EntitlementHandler exposes the token, download, status and backup
// endpoints on top of the entitlement service.
type EntitlementHandler struct {
	Svc *service.Entitlement
}

func NewEntitlementHandler(svc *service.Entitlement) *EntitlementHandler {
	return &EntitlementHandler{Svc: svc}
}

// ----- DTOs -----

type generateTokenReq struct {
	PaymentID     string `json:"payment_id"`
	PaymentMethod string `json:"payment_method"`
	CustomerEmail string `json:"customer_email"`
}
type tokenResp struct {
	Token string `json:"token"`
}

type downloadReq struct {
	Token  string `json:"token"`
	Format string `json:"format"`
}
type downloadResp struct {
	DownloadURL     string `json:"download_url"`
	RemainingTokens int    `json:"remaining_tokens"`
}

type verifyTokenReq struct {
	Token string `json:"token"`
}

type useBackupReq struct {
	BackupID string `json:"backup_id"`
}

// GenerateToken: verify a payment and hand back a 7-day access token.
func (h *EntitlementHandler) GenerateToken(c echo.Context) error {
	var req generateTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.PaymentID == "" || req.PaymentMethod == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing payment details"})
	}

	ctx, cancel := reqCtx(c, 30*time.Second)
	defer cancel()

	tok, err := h.Svc.IssueToken(ctx, req.PaymentID, req.PaymentMethod, req.CustomerEmail)
	if err != nil {
		return entitlementError(c, err)
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token})
}

// Download: consume one download and return a short-lived signed link.
func (h *EntitlementHandler) Download(c echo.Context) error {
	var req downloadReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	// Budget covers a full lock acquisition window plus the store round trips.
	ctx, cancel := reqCtx(c, 15*time.Second)
	defer cancel()

	url, remaining, err := h.Svc.ConsumeDownload(ctx, req.Token, req.Format)
	if err != nil {
		return entitlementError(c, err)
	}
	return c.JSON(http.StatusOK, downloadResp{DownloadURL: url, RemainingTokens: remaining})
}

// VerifyToken: read-only status projection. Always answers 200 so the
// storefront can render state from the body alone.
func (h *EntitlementHandler) VerifyToken(c echo.Context) error {
	var req verifyTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c, 10*time.Second)
	defer cancel()

	return c.JSON(http.StatusOK, h.Svc.CheckStatus(ctx, req.Token))
}

// UseBackup: redeem the one-time secret backup id for a 24h rescue token.
func (h *EntitlementHandler) UseBackup(c echo.Context) error {
	var req useBackupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.BackupID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing backup id"})
	}

	ctx, cancel := reqCtx(c, 10*time.Second)
	defer cancel()

	tok, err := h.Svc.RedeemBackup(ctx, req.BackupID)
	if err != nil {
		return entitlementError(c, err)
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token})
}

func reqCtx(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

// entitlementError maps service errors onto HTTP statuses. Transient
// conditions (lock contention, store outage) get statuses that invite a
// retry; terminal ones must not be retried automatically.
func entitlementError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, payment.ErrUnsupportedMethod):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentNotVerified):
		return c.JSON(http.StatusPaymentRequired, echo.Map{
			"error": "Payment not verified yet. Please refresh once the processor confirms your payment.",
		})
	case errors.Is(err, service.ErrMissingEmail),
		errors.Is(err, service.ErrInvalidFormat):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrAccessExpired):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidBackupLink):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrBackupAlreadyUsed):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNoDownloadsRemaining):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrLinkSigningFailed):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Unable to prepare download. Please try again."})
	case errors.Is(err, lock.ErrTimeout):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Unable to acquire download lock. Please try again."})
	case errors.Is(err, store.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "Service temporarily unavailable. Please try again."})
	default:
		c.Logger().Errorf("entitlement: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
