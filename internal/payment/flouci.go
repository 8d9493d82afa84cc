package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// FlouciClient creates payments through the Flouci gateway used for the
// Tunisian sales window. Flouci does not expose a verification endpoint we
// use; settled payments surface through the backup-id tracking field
// instead, so this client only creates payments.
type FlouciClient struct {
	baseURL   string
	appToken  string
	appSecret string
	client    *http.Client
}

// NewFlouciClient returns a client for developers.flouci.com.
func NewFlouciClient(appToken, appSecret string) *FlouciClient {
	return &FlouciClient{
		baseURL:   "https://developers.flouci.com",
		appToken:  appToken,
		appSecret: appSecret,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// FlouciParams describes one payment to generate.
type FlouciParams struct {
	AmountTND  int64  // whole dinars; Flouci expects millimes
	TrackingID string // our backup id, so the payer can be matched later
	SuccessURL string
	FailURL    string
}

// CreatePayment generates a Flouci payment and returns the hosted link.
func (f *FlouciClient) CreatePayment(ctx context.Context, p FlouciParams) (string, error) {
	payload := map[string]any{
		"app_token":             f.appToken,
		"app_secret":            f.appSecret,
		"amount":                p.AmountTND * 1000,
		"accept_card":           "true",
		"session_timeout_secs":  1200,
		"success_link":          p.SuccessURL,
		"fail_link":             p.FailURL,
		"developer_tracking_id": p.TrackingID,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/api/generate_payment", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Result struct {
			Link string `json:"link"`
		} `json:"result"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Result.Link == "" {
		if out.Message != "" {
			return "", errors.New("flouci: " + out.Message)
		}
		return "", errors.New("flouci: payment generation failed")
	}
	return out.Result.Link, nil
}
