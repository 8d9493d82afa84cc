package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rettibot/bts-backend/internal/lock"
	"github.com/rettibot/bts-backend/internal/payment"
	"github.com/rettibot/bts-backend/internal/service"
	"github.com/rettibot/bts-backend/internal/store"
	"github.com/rettibot/bts-backend/internal/utils"
)

const handlerTestSecret = "handler-test-secret"

type staticVerifier struct {
	verified bool
}

func (v staticVerifier) Verify(ctx context.Context, paymentID string) (payment.Result, error) {
	return payment.Result{Verified: v.verified, Email: "buyer@example.com"}, nil
}

type staticSigner struct{}

func (staticSigner) Sign(ctx context.Context, fileKey string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + fileKey, nil
}

func newTestHandler(verified bool) (*EntitlementHandler, *store.Memory) {
	mem := store.NewMemory()
	locks := lock.New(mem, lock.Config{
		RetryDelay:     5 * time.Millisecond,
		HoldTime:       time.Second,
		AcquireTimeout: 200 * time.Millisecond,
	})
	svc := service.New(service.Config{
		JWTSecret:        handlerTestSecret,
		NormalTokenTTL:   7 * 24 * time.Hour,
		RescueTokenTTL:   24 * time.Hour,
		LinkTTL:          time.Minute,
		InitialDownloads: 2,
		SiteURL:          "https://bts.example.com",
	}, mem, locks, map[string]payment.Verifier{"stripe": staticVerifier{verified}}, staticSigner{}, nil, nil)
	return NewEntitlementHandler(svc), mem
}

func postJSON(t *testing.T, fn echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := fn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func issueTestToken(t *testing.T, h *EntitlementHandler) string {
	t.Helper()
	rec := postJSON(t, h.GenerateToken, "/v1/tokens", `{"payment_id":"pay_1","payment_method":"stripe"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return resp.Token
}

func TestGenerateTokenEndpoint(t *testing.T) {
	t.Run("issues a token", func(t *testing.T) {
		h, _ := newTestHandler(true)
		if tok := issueTestToken(t, h); tok == "" {
			t.Fatal("empty token in response")
		}
	})

	t.Run("missing payment details", func(t *testing.T) {
		h, _ := newTestHandler(true)
		rec := postJSON(t, h.GenerateToken, "/v1/tokens", `{"payment_id":"pay_1"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unverified payment is 402", func(t *testing.T) {
		h, _ := newTestHandler(false)
		rec := postJSON(t, h.GenerateToken, "/v1/tokens", `{"payment_id":"pay_1","payment_method":"stripe"}`)
		if rec.Code != http.StatusPaymentRequired {
			t.Fatalf("status = %d, want 402", rec.Code)
		}
	})

	t.Run("unsupported method is 400", func(t *testing.T) {
		h, _ := newTestHandler(true)
		rec := postJSON(t, h.GenerateToken, "/v1/tokens", `{"payment_id":"pay_1","payment_method":"cheque"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestDownloadEndpoint(t *testing.T) {
	t.Run("returns a signed link", func(t *testing.T) {
		h, _ := newTestHandler(true)
		tok := issueTestToken(t, h)

		rec := postJSON(t, h.Download, "/v1/downloads", fmt.Sprintf(`{"token":%q,"format":"mp3"}`, tok))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			DownloadURL     string `json:"download_url"`
			RemainingTokens int    `json:"remaining_tokens"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !strings.HasPrefix(resp.DownloadURL, "https://signed.example/") {
			t.Errorf("download_url = %q", resp.DownloadURL)
		}
		if resp.RemainingTokens != 1 {
			t.Errorf("remaining_tokens = %d, want 1", resp.RemainingTokens)
		}
	})

	t.Run("garbage token is 401", func(t *testing.T) {
		h, _ := newTestHandler(true)
		rec := postJSON(t, h.Download, "/v1/downloads", `{"token":"garbage","format":"mp3"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("expired token is 403", func(t *testing.T) {
		h, _ := newTestHandler(true)
		issueTestToken(t, h)
		stale, err := utils.NewAccessToken(handlerTestSecret, "pay_1", utils.KindNormal, -time.Hour)
		if err != nil {
			t.Fatalf("mint stale token: %v", err)
		}
		rec := postJSON(t, h.Download, "/v1/downloads", fmt.Sprintf(`{"token":%q,"format":"mp3"}`, stale.Token))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("unknown format is 400", func(t *testing.T) {
		h, _ := newTestHandler(true)
		tok := issueTestToken(t, h)
		rec := postJSON(t, h.Download, "/v1/downloads", fmt.Sprintf(`{"token":%q,"format":"ogg"}`, tok))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("exhausted grant is 429", func(t *testing.T) {
		h, mem := newTestHandler(true)
		tok := issueTestToken(t, h)

		stored, err := mem.FindByPaymentID(context.Background(), "pay_1")
		if err != nil {
			t.Fatalf("find record: %v", err)
		}
		zero := 0
		if _, err := mem.Update(context.Background(), stored.ID, store.Changes{DownloadCount: &zero}); err != nil {
			t.Fatalf("seed count: %v", err)
		}

		rec := postJSON(t, h.Download, "/v1/downloads", fmt.Sprintf(`{"token":%q,"format":"mp3"}`, tok))
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status = %d, want 429", rec.Code)
		}
	})

	t.Run("contended lock is 503", func(t *testing.T) {
		h, mem := newTestHandler(true)
		tok := issueTestToken(t, h)

		stored, err := mem.FindByPaymentID(context.Background(), "pay_1")
		if err != nil {
			t.Fatalf("find record: %v", err)
		}
		held := fmt.Sprintf("someone:%d", time.Now().Add(time.Minute).UnixMilli())
		if _, err := mem.Update(context.Background(), stored.ID, store.Changes{Lock: &held}); err != nil {
			t.Fatalf("seed lock: %v", err)
		}

		rec := postJSON(t, h.Download, "/v1/downloads", fmt.Sprintf(`{"token":%q,"format":"mp3"}`, tok))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})
}

func TestVerifyTokenEndpoint(t *testing.T) {
	t.Run("always answers 200", func(t *testing.T) {
		h, _ := newTestHandler(true)
		for _, body := range []string{
			`{"token":""}`,
			`{"token":"garbage"}`,
		} {
			rec := postJSON(t, h.VerifyToken, "/v1/tokens/verify", body)
			if rec.Code != http.StatusOK {
				t.Errorf("status for %s = %d, want 200", body, rec.Code)
			}
		}
	})

	t.Run("reports a live token", func(t *testing.T) {
		h, _ := newTestHandler(true)
		tok := issueTestToken(t, h)
		rec := postJSON(t, h.VerifyToken, "/v1/tokens/verify", fmt.Sprintf(`{"token":%q}`, tok))
		var st service.Status
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if !st.Valid || st.Expired || st.DownloadTokens != 2 || !st.BackupAvailable {
			t.Errorf("status = %+v", st)
		}
	})
}

func TestUseBackupEndpoint(t *testing.T) {
	t.Run("redeems once then 410", func(t *testing.T) {
		h, mem := newTestHandler(true)
		issueTestToken(t, h)
		stored, err := mem.FindByPaymentID(context.Background(), "pay_1")
		if err != nil {
			t.Fatalf("find record: %v", err)
		}

		body := fmt.Sprintf(`{"backup_id":%q}`, stored.BackupID)
		if rec := postJSON(t, h.UseBackup, "/v1/backup", body); rec.Code != http.StatusOK {
			t.Fatalf("first redeem status = %d, body %s", rec.Code, rec.Body.String())
		}
		if rec := postJSON(t, h.UseBackup, "/v1/backup", body); rec.Code != http.StatusGone {
			t.Fatalf("second redeem status = %d, want 410", rec.Code)
		}
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		h, _ := newTestHandler(true)
		rec := postJSON(t, h.UseBackup, "/v1/backup", `{"backup_id":"key_0000000000000000"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("missing id is 400", func(t *testing.T) {
		h, _ := newTestHandler(true)
		rec := postJSON(t, h.UseBackup, "/v1/backup", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}
