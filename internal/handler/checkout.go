package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rettibot/bts-backend/internal/payment"
)

// CheckoutHandler creates provider-hosted checkout pages. Verification of
// the resulting payments happens later, through the token endpoint.
type CheckoutHandler struct {
	Stripe      *payment.StripeClient
	NOWPayments *payment.NOWPaymentsClient
	Flouci      *payment.FlouciClient
	SiteURL     string
}

func NewCheckoutHandler(stripe *payment.StripeClient, now *payment.NOWPaymentsClient, flouci *payment.FlouciClient, siteURL string) *CheckoutHandler {
	return &CheckoutHandler{Stripe: stripe, NOWPayments: now, Flouci: flouci, SiteURL: siteURL}
}

type checkoutReq struct {
	Amount   int64  `json:"amount"`
	Email    string `json:"email"`
	BackupID string `json:"backup_id"`
}

// clampAmount keeps the pay-what-you-want price inside the 5-50 window.
func clampAmount(n int64) int64 {
	if n < 5 {
		return 5
	}
	if n > 50 {
		return 50
	}
	return n
}

// StripeCheckout creates a Stripe Checkout session and returns its URL.
func (h *CheckoutHandler) StripeCheckout(c echo.Context) error {
	if h.Stripe == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "stripe is not configured"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c, 30*time.Second)
	defer cancel()

	url, err := h.Stripe.CreateCheckoutSession(ctx, payment.CheckoutParams{
		AmountEUR:  clampAmount(req.Amount),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		SuccessURL: fmt.Sprintf("%s/?success=true&payment_id={CHECKOUT_SESSION_ID}", h.SiteURL),
		CancelURL:  fmt.Sprintf("%s/?canceled=true", h.SiteURL),
	})
	if err != nil {
		c.Logger().Errorf("stripe checkout: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unable to start checkout"})
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// NOWPaymentsCheckout creates a crypto invoice and returns its hosted URL.
func (h *CheckoutHandler) NOWPaymentsCheckout(c echo.Context) error {
	if h.NOWPayments == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "crypto payments are not configured"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email is required for crypto payments"})
	}

	ctx, cancel := reqCtx(c, 30*time.Second)
	defer cancel()

	url, err := h.NOWPayments.CreateInvoice(ctx, payment.InvoiceParams{
		AmountEUR:   clampAmount(req.Amount),
		Email:       email,
		OrderID:     fmt.Sprintf("BTS-EP-%d", time.Now().UnixMilli()),
		CallbackURL: fmt.Sprintf("%s/v1/webhooks/nowpayments", h.SiteURL),
		CancelURL:   fmt.Sprintf("%s/?canceled=true", h.SiteURL),
	})
	if err != nil {
		c.Logger().Errorf("nowpayments checkout: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unable to create invoice"})
	}
	return c.JSON(http.StatusOK, echo.Map{"invoice_url": url})
}

// FlouciCheckout generates a Flouci payment link for the Tunisian window.
// The backup id rides along as the tracking id so the payer can be matched
// to their reservation record afterwards.
func (h *CheckoutHandler) FlouciCheckout(c echo.Context) error {
	if h.Flouci == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "flouci is not configured"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.BackupID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing backup id"})
	}

	ctx, cancel := reqCtx(c, 30*time.Second)
	defer cancel()

	link, err := h.Flouci.CreatePayment(ctx, payment.FlouciParams{
		AmountTND:  req.Amount,
		TrackingID: req.BackupID,
		SuccessURL: fmt.Sprintf("%s/?success=true&region=tn", h.SiteURL),
		FailURL:    fmt.Sprintf("%s/?error=true", h.SiteURL),
	})
	if err != nil {
		c.Logger().Errorf("flouci checkout: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unable to create payment"})
	}
	return c.JSON(http.StatusOK, echo.Map{"link": link})
}
