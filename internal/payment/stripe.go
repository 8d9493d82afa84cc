package payment

import (
	"context"
	"log"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeClient verifies checkout sessions and creates new ones.
type StripeClient struct {
	api *client.API
}

// NewStripeClient returns a client authenticated with the given secret key.
func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

// Verify retrieves the checkout session and reports whether it is paid.
// The buyer email is taken from customer details, falling back to the
// session-level email and finally the purchaseEmail metadata our checkout
// endpoint attaches.
func (s *StripeClient) Verify(ctx context.Context, paymentID string) (Result, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(paymentID, params)
	if err != nil {
		return Result{}, err
	}
	log.Printf("stripe: session %s status=%s", paymentID, sess.PaymentStatus)

	email := ""
	if sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}
	if email == "" {
		email = sess.CustomerEmail
	}
	if email == "" {
		email = sess.Metadata["purchaseEmail"]
	}

	return Result{
		Verified: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Email:    email,
	}, nil
}

// CheckoutParams describes one checkout session to create.
type CheckoutParams struct {
	AmountEUR  int64  // unit price in whole euros, already clamped by the handler
	Email      string // optional; prefills the Stripe form and lands in metadata
	SuccessURL string
	CancelURL  string
}

// CreateCheckoutSession creates a Stripe Checkout session for the release
// and returns the hosted payment page URL.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                stripe.String(string(stripe.CheckoutSessionModePayment)),
		AllowPromotionCodes: stripe.Bool(true),
		PaymentMethodTypes:  stripe.StringSlice([]string{"card", "link"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyEUR)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String("BTS EP by RATCHOPPER"),
					Description: stripe.String("Exclusive digital EP - Limited to 1000 copies"),
				},
				UnitAmount: stripe.Int64(p.AmountEUR * 100),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	params.AddMetadata("purchaseEmail", p.Email)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}
