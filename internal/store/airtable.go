package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rettibot/bts-backend/internal/model"
)

// Column names of the Purchases table. The lock column must exist as a
// single line text field with exactly this name.
const (
	fieldPaymentID       = "PaymentID"
	fieldBackupID        = "Backup_ID"
	fieldEmail           = "Email"
	fieldDownloadCount   = "DownloadCount"
	fieldBackupUsed      = "BackupUsed"
	fieldLock            = "DownloadLock"
	fieldStatus          = "Status"
	fieldRegion          = "Region"
	fieldReservationCode = "Reservation_Code"
)

// Airtable talks to the Airtable REST API for a single base and table.
// It is safe for concurrent use.
type Airtable struct {
	baseURL string // https://api.airtable.com/v0/<baseID>
	table   string
	apiKey  string
	client  *http.Client
}

// NewAirtable returns a client bound to the given base and table.
func NewAirtable(apiKey, baseID, table string) *Airtable {
	return &Airtable{
		baseURL: "https://api.airtable.com/v0/" + baseID,
		table:   table,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// airtableRecord is the wire shape of a single record.
type airtableRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type airtableList struct {
	Records []airtableRecord `json:"records"`
}

func (a *Airtable) FindByPaymentID(ctx context.Context, paymentID string) (*model.Purchase, error) {
	return a.findByFormula(ctx, fieldPaymentID, paymentID)
}

func (a *Airtable) FindByBackupID(ctx context.Context, backupID string) (*model.Purchase, error) {
	return a.findByFormula(ctx, fieldBackupID, backupID)
}

// findByFormula fetches the first record whose column equals value.
func (a *Airtable) findByFormula(ctx context.Context, column, value string) (*model.Purchase, error) {
	// Single quotes inside the value would otherwise terminate the formula
	// string early.
	escaped := strings.ReplaceAll(value, "'", "\\'")
	formula := fmt.Sprintf("%s = '%s'", column, escaped)

	q := url.Values{}
	q.Set("filterByFormula", formula)
	q.Set("maxRecords", "1")
	endpoint := fmt.Sprintf("%s/%s?%s", a.baseURL, url.PathEscape(a.table), q.Encode())

	var list airtableList
	if err := a.do(ctx, http.MethodGet, endpoint, nil, &list); err != nil {
		return nil, err
	}
	if len(list.Records) == 0 {
		return nil, ErrNotFound
	}
	return fromFields(list.Records[0]), nil
}

func (a *Airtable) FindByID(ctx context.Context, id string) (*model.Purchase, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", a.baseURL, url.PathEscape(a.table), url.PathEscape(id))
	var rec airtableRecord
	if err := a.do(ctx, http.MethodGet, endpoint, nil, &rec); err != nil {
		return nil, err
	}
	return fromFields(rec), nil
}

func (a *Airtable) Create(ctx context.Context, p model.Purchase) (*model.Purchase, error) {
	fields := map[string]any{
		fieldPaymentID:     p.PaymentID,
		fieldBackupID:      p.BackupID,
		fieldEmail:         p.Email,
		fieldDownloadCount: p.DownloadCount,
		fieldBackupUsed:    p.BackupUsed,
	}
	if p.Status != "" {
		fields[fieldStatus] = p.Status
	}
	if p.Region != "" {
		fields[fieldRegion] = p.Region
	}
	if p.ReservationCode != "" {
		fields[fieldReservationCode] = p.ReservationCode
	}

	endpoint := fmt.Sprintf("%s/%s", a.baseURL, url.PathEscape(a.table))
	var rec airtableRecord
	if err := a.do(ctx, http.MethodPost, endpoint, map[string]any{"fields": fields}, &rec); err != nil {
		return nil, err
	}
	return fromFields(rec), nil
}

func (a *Airtable) Update(ctx context.Context, id string, ch Changes) (*model.Purchase, error) {
	fields := map[string]any{}
	if ch.Email != nil {
		fields[fieldEmail] = *ch.Email
	}
	if ch.DownloadCount != nil {
		fields[fieldDownloadCount] = *ch.DownloadCount
	}
	if ch.BackupUsed != nil {
		fields[fieldBackupUsed] = *ch.BackupUsed
	}
	if ch.Lock != nil {
		fields[fieldLock] = *ch.Lock
	}
	if len(fields) == 0 {
		return a.FindByID(ctx, id)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", a.baseURL, url.PathEscape(a.table), url.PathEscape(id))
	var rec airtableRecord
	if err := a.do(ctx, http.MethodPatch, endpoint, map[string]any{"fields": fields}, &rec); err != nil {
		return nil, err
	}
	return fromFields(rec), nil
}

// do executes one API call and decodes the response into out. 404s map to
// ErrNotFound, 5xx and transport failures to ErrUnavailable.
func (a *Airtable) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		log.Printf("airtable: %s %s failed: %v", method, endpoint, err)
		return ErrUnavailable
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		log.Printf("airtable: %s %s returned %d", method, endpoint, resp.StatusCode)
		return ErrUnavailable
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("airtable: %s %s returned %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// fromFields maps a wire record onto the domain model, tolerating the loose
// typing of the store (numbers arrive as float64, unchecked checkboxes and
// empty cells are simply absent).
func fromFields(rec airtableRecord) *model.Purchase {
	p := &model.Purchase{
		ID:              rec.ID,
		PaymentID:       stringField(rec.Fields, fieldPaymentID),
		BackupID:        stringField(rec.Fields, fieldBackupID),
		Email:           stringField(rec.Fields, fieldEmail),
		Lock:            stringField(rec.Fields, fieldLock),
		Status:          stringField(rec.Fields, fieldStatus),
		Region:          stringField(rec.Fields, fieldRegion),
		ReservationCode: stringField(rec.Fields, fieldReservationCode),
	}
	if v, ok := rec.Fields[fieldDownloadCount].(float64); ok && v > 0 {
		p.DownloadCount = int(v)
	}
	if v, ok := rec.Fields[fieldBackupUsed].(bool); ok {
		p.BackupUsed = v
	}
	return p
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
