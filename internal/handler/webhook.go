package handler

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// WebhookHandler receives NOWPayments IPN callbacks. The signature covers
// the raw request body, so the body must be read before any JSON decoding.
type WebhookHandler struct {
	IPNSecret string
}

func NewWebhookHandler(ipnSecret string) *WebhookHandler {
	return &WebhookHandler{IPNSecret: ipnSecret}
}

type ipnPayload struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
	PriceAmount   json.Number `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
}

// NOWPayments verifies x-nowpayments-sig and acknowledges the callback.
// Settlement itself is pulled, not pushed: the token endpoint re-verifies
// the invoice with the provider, so the webhook only logs transitions.
func (h *WebhookHandler) NOWPayments(c echo.Context) error {
	if h.IPNSecret == "" {
		c.Logger().Error("webhook: IPN secret not configured")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "IPN secret not configured"})
	}

	received := c.Request().Header.Get("x-nowpayments-sig")
	if received == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no signature provided"})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	mac := hmac.New(sha512.New, []byte(h.IPNSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(received)) {
		c.Logger().Warn("webhook: invalid IPN signature")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid signature"})
	}

	var ipn ipnPayload
	if err := json.Unmarshal(body, &ipn); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	c.Logger().Infof("webhook: nowpayments payment=%s status=%s order=%s amount=%s %s",
		ipn.PaymentID, ipn.PaymentStatus, ipn.OrderID, ipn.PriceAmount, ipn.PriceCurrency)

	return c.JSON(http.StatusOK, echo.Map{"message": "IPN received"})
}
