// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/rettibot/bts-backend/internal/handler"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Entitlement *handler.EntitlementHandler
	Checkout    *handler.CheckoutHandler
	Reservation *handler.ReservationHandler
	Webhook     *handler.WebhookHandler
}

// RegisterRoutes mounts all endpoints on the provided Echo instance.
// rateLimit wraps the entitlement group; pass a pass-through middleware to
// disable limiting. The storefront is a static site on another origin, so
// CORS is wide open, matching what the clients expect.
func RegisterRoutes(e *echo.Echo, h Handlers, rateLimit echo.MiddlewareFunc) {
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.POST, echo.GET, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", handler.Health)

	// Entitlement endpoints gate paid assets and carry the download lock
	// behind them; the token bucket keeps one misbehaving client from
	// hogging the lock window.
	v1 := e.Group("/v1", rateLimit)
	v1.POST("/tokens", h.Entitlement.GenerateToken)
	v1.POST("/tokens/verify", h.Entitlement.VerifyToken)
	v1.POST("/downloads", h.Entitlement.Download)
	v1.POST("/backup", h.Entitlement.UseBackup)
	v1.POST("/reservations", h.Reservation.Reserve)

	// Checkout creation talks to the providers only; no limiter so a
	// burst of buyers at drop time is never turned away.
	e.POST("/v1/checkout/stripe", h.Checkout.StripeCheckout)
	e.POST("/v1/checkout/nowpayments", h.Checkout.NOWPaymentsCheckout)
	e.POST("/v1/checkout/flouci", h.Checkout.FlouciCheckout)

	e.POST("/v1/webhooks/nowpayments", h.Webhook.NOWPayments)
}
