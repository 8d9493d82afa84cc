package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NOWPaymentsClient talks to the NOWPayments invoice API. There is no Go
// SDK for it; the client mirrors the provider's plain JSON-over-HTTP
// contract.
type NOWPaymentsClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewNOWPaymentsClient returns a client for api.nowpayments.io. baseURL is
// overridable for tests.
func NewNOWPaymentsClient(apiKey string) *NOWPaymentsClient {
	return &NOWPaymentsClient{
		baseURL: "https://api.nowpayments.io",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type nowInvoice struct {
	ID            json.Number `json:"id"`
	PaymentStatus string      `json:"payment_status"`
	Email         string      `json:"email"`
	InvoiceURL    string      `json:"invoice_url"`
}

// Verify fetches the invoice and reports whether its status is "finished".
// Every other status (waiting, confirming, partially_paid) fails closed.
func (n *NOWPaymentsClient) Verify(ctx context.Context, paymentID string) (Result, error) {
	endpoint := fmt.Sprintf("%s/v1/invoice/%s", n.baseURL, url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("x-api-key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var inv nowInvoice
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return Result{}, err
	}
	status := strings.ToLower(inv.PaymentStatus)
	log.Printf("nowpayments: invoice %s status=%s", paymentID, status)

	return Result{
		Verified: status == "finished",
		Email:    inv.Email,
	}, nil
}

// InvoiceParams describes one crypto invoice to create.
type InvoiceParams struct {
	AmountEUR   int64
	Email       string
	OrderID     string
	CallbackURL string
	CancelURL   string
}

// CreateInvoice creates a NOWPayments invoice and returns its hosted URL.
// When the provider omits invoice_url (older invoices), the canonical
// ?iid= URL is constructed from the invoice id.
func (n *NOWPaymentsClient) CreateInvoice(ctx context.Context, p InvoiceParams) (string, error) {
	payload := map[string]any{
		"price_amount":      p.AmountEUR,
		"price_currency":    "eur",
		"ipn_callback_url":  p.CallbackURL,
		"order_id":          p.OrderID,
		"order_description": "RATCHOPPER - BTS EP (Digital Download)",
		"cancel_url":        p.CancelURL,
		"customer_email":    p.Email,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/v1/invoice", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var inv nowInvoice
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 || inv.ID.String() == "" {
		return "", fmt.Errorf("nowpayments: invoice creation failed (status %d)", resp.StatusCode)
	}
	if inv.InvoiceURL != "" {
		return inv.InvoiceURL, nil
	}
	fallback := url.URL{Scheme: "https", Host: "nowpayments.io", Path: "/invoice/"}
	q := fallback.Query()
	q.Set("iid", inv.ID.String())
	fallback.RawQuery = q.Encode()
	return fallback.String(), nil
}
