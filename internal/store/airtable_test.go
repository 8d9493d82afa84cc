package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rettibot/bts-backend/internal/model"
)

// newTestAirtable points a client at a local stand-in for the API.
func newTestAirtable(srv *httptest.Server) *Airtable {
	return &Airtable{
		baseURL: srv.URL + "/v0/appTESTBASE",
		table:   "Purchases",
		apiKey:  "key-test",
		client:  srv.Client(),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestFindByPaymentID(t *testing.T) {
	var gotFormula, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, map[string]any{
			"records": []map[string]any{{
				"id": "recAAA111",
				"fields": map[string]any{
					"PaymentID":     "pay_1",
					"Backup_ID":     "key_aaaaaaaaaaaaaaaa",
					"Email":         "buyer@example.com",
					"DownloadCount": float64(2),
					"BackupUsed":    false,
					"Status":        "PAID",
				},
			}},
		})
	}))
	defer srv.Close()

	a := newTestAirtable(srv)
	rec, err := a.FindByPaymentID(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("FindByPaymentID: %v", err)
	}

	if gotFormula != "PaymentID = 'pay_1'" {
		t.Errorf("filterByFormula = %q", gotFormula)
	}
	if gotAuth != "Bearer key-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	want := model.Purchase{
		ID: "recAAA111", PaymentID: "pay_1", BackupID: "key_aaaaaaaaaaaaaaaa",
		Email: "buyer@example.com", DownloadCount: 2, Status: "PAID",
	}
	if *rec != want {
		t.Errorf("record = %+v, want %+v", *rec, want)
	}
}

func TestFindByFormulaEscapesQuotes(t *testing.T) {
	var gotFormula string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFormula = r.URL.Query().Get("filterByFormula")
		writeJSON(t, w, map[string]any{"records": []any{}})
	}))
	defer srv.Close()

	a := newTestAirtable(srv)
	_, err := a.FindByBackupID(context.Background(), "key_o'brien")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if gotFormula != `Backup_ID = 'key_o\'brien'` {
		t.Errorf("filterByFormula = %q, single quote not escaped", gotFormula)
	}
}

func TestFindEmptyResultIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"records": []any{}})
	}))
	defer srv.Close()

	a := newTestAirtable(srv)
	if _, err := a.FindByPaymentID(context.Background(), "pay_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestFindByIDStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			a := newTestAirtable(srv)
			if _, err := a.FindByID(context.Background(), "recAAA111"); !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	a := &Airtable{
		baseURL: srv.URL + "/v0/appTESTBASE",
		table:   "Purchases",
		apiKey:  "key-test",
		client:  &http.Client{Timeout: time.Second},
	}
	if _, err := a.FindByID(context.Background(), "recAAA111"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestCreateSendsFields(t *testing.T) {
	var gotBody map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(t, w, map[string]any{"id": "recNEW001", "fields": gotBody["fields"]})
	}))
	defer srv.Close()

	a := newTestAirtable(srv)
	rec, err := a.Create(context.Background(), model.Purchase{
		PaymentID:     "pay_1",
		BackupID:      "key_aaaaaaaaaaaaaaaa",
		Email:         "buyer@example.com",
		DownloadCount: 2,
		Status:        "PAID",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != "recNEW001" {
		t.Errorf("id = %q", rec.ID)
	}

	fields := gotBody["fields"]
	if fields["PaymentID"] != "pay_1" || fields["Status"] != "PAID" {
		t.Errorf("fields sent: %+v", fields)
	}
	if fields["DownloadCount"] != float64(2) {
		t.Errorf("DownloadCount sent as %v", fields["DownloadCount"])
	}
	if _, present := fields["Region"]; present {
		t.Error("empty Region should be omitted")
	}
	if _, present := fields["Reservation_Code"]; present {
		t.Error("empty Reservation_Code should be omitted")
	}
}

func TestUpdateSendsOnlyChangedFields(t *testing.T) {
	var gotMethod string
	var gotBody map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(t, w, map[string]any{
			"id": "recAAA111",
			"fields": map[string]any{
				"PaymentID":     "pay_1",
				"DownloadCount": float64(1),
			},
		})
	}))
	defer srv.Close()

	a := newTestAirtable(srv)
	one := 1
	rec, err := a.Update(context.Background(), "recAAA111", Changes{DownloadCount: &one})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if len(gotBody["fields"]) != 1 || gotBody["fields"]["DownloadCount"] != float64(1) {
		t.Errorf("fields sent: %+v", gotBody["fields"])
	}
	if rec.DownloadCount != 1 {
		t.Errorf("decoded count = %d", rec.DownloadCount)
	}
}

func TestUpdateClearsLock(t *testing.T) {
	var gotBody map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(t, w, map[string]any{"id": "recAAA111", "fields": map[string]any{}})
	}))
	defer srv.Close()

	a := newTestAirtable(srv)
	empty := ""
	if _, err := a.Update(context.Background(), "recAAA111", Changes{Lock: &empty}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	v, present := gotBody["fields"]["DownloadLock"]
	if !present || v != "" {
		t.Errorf("DownloadLock sent as %v (present=%v), want explicit empty string", v, present)
	}
}

func TestFromFieldsToleratesSparseRecords(t *testing.T) {
	rec := fromFields(airtableRecord{ID: "recAAA111", Fields: map[string]any{}})
	want := model.Purchase{ID: "recAAA111"}
	if *rec != want {
		t.Errorf("record = %+v, want zero values apart from the id", *rec)
	}
}
