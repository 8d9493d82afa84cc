package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rettibot/bts-backend/internal/linksign"
	"github.com/rettibot/bts-backend/internal/lock"
	"github.com/rettibot/bts-backend/internal/model"
	"github.com/rettibot/bts-backend/internal/notify"
	"github.com/rettibot/bts-backend/internal/payment"
	"github.com/rettibot/bts-backend/internal/queue"
	"github.com/rettibot/bts-backend/internal/store"
	"github.com/rettibot/bts-backend/internal/utils"
)

// Config carries the entitlement policy knobs.
type Config struct {
	JWTSecret        string
	NormalTokenTTL   time.Duration // lifetime of tokens from a verified payment
	RescueTokenTTL   time.Duration // deliberately shorter trust window for recovered access
	LinkTTL          time.Duration // validity of a signed download URL
	InitialDownloads int           // granted once, at record creation
	SiteURL          string
	StreamURL        string
	Files            map[string]string // uppercase format -> object key
}

// DefaultFiles maps the offered formats to their bucket objects.
func DefaultFiles() map[string]string {
	return map[string]string{
		"MP3":  "RATCHOPPER._B.T.S_MP3.zip",
		"WAV":  "RATCHOPPER._B.T.S_WAV.zip",
		"FLAC": "RATCHOPPER._B.T.S_FLAC.zip",
	}
}

// EventPublisher receives domain events; failures are the publisher's to
// log and the service's to ignore.
type EventPublisher interface {
	PublishPurchaseConfirmed(ctx context.Context, e queue.PurchaseConfirmedEvent) error
	PublishDownloadDelivered(ctx context.Context, e queue.DownloadDeliveredEvent) error
}

// Entitlement implements the four public operations plus the pre-payment
// reservation path. All coordination state lives in the record store;
// nothing about a purchase is cached across calls.
type Entitlement struct {
	cfg       Config
	store     store.PurchaseStore
	locks     *lock.Locker
	verifiers map[string]payment.Verifier
	signer    linksign.Signer
	notifier  notify.Notifier
	events    EventPublisher
	now       func() time.Time
}

// New wires an Entitlement service. notifier and events may be nil; the
// corresponding side effects are then skipped.
func New(cfg Config, s store.PurchaseStore, locks *lock.Locker, verifiers map[string]payment.Verifier, signer linksign.Signer, notifier notify.Notifier, events EventPublisher) *Entitlement {
	if cfg.Files == nil {
		cfg.Files = DefaultFiles()
	}
	return &Entitlement{
		cfg:       cfg,
		store:     s,
		locks:     locks,
		verifiers: verifiers,
		signer:    signer,
		notifier:  notifier,
		events:    events,
		now:       time.Now,
	}
}

// IssueToken verifies a payment with the named provider and returns a
// normal access token. The purchase record is created on first call;
// re-issuing against an existing record never resets its download count.
func (e *Entitlement) IssueToken(ctx context.Context, paymentID, method, providedEmail string) (utils.AccessToken, error) {
	verifier, ok := e.verifiers[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return utils.AccessToken{}, payment.ErrUnsupportedMethod
	}

	result, err := verifier.Verify(ctx, paymentID)
	if err != nil {
		return utils.AccessToken{}, fmt.Errorf("verify payment: %w", err)
	}
	if !result.Verified {
		return utils.AccessToken{}, ErrPaymentNotVerified
	}

	email := strings.ToLower(strings.TrimSpace(result.Email))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(providedEmail))
	}
	if email == "" {
		return utils.AccessToken{}, ErrMissingEmail
	}

	rec, err := e.store.FindByPaymentID(ctx, paymentID)
	created := false
	switch {
	case err == nil:
		if rec.Email == "" {
			if _, err := e.store.Update(ctx, rec.ID, store.Changes{Email: &email}); err != nil {
				return utils.AccessToken{}, err
			}
		}
	case errors.Is(err, store.ErrNotFound):
		backupID, idErr := utils.NewBackupID()
		if idErr != nil {
			return utils.AccessToken{}, idErr
		}
		rec, err = e.store.Create(ctx, model.Purchase{
			PaymentID:     paymentID,
			BackupID:      backupID,
			Email:         email,
			DownloadCount: e.cfg.InitialDownloads,
			BackupUsed:    false,
			Status:        "PAID",
		})
		if err != nil {
			return utils.AccessToken{}, err
		}
		created = true
	default:
		return utils.AccessToken{}, err
	}

	if created {
		e.sendPurchaseEmail(ctx, email, rec)
		if e.events != nil {
			if err := e.events.PublishPurchaseConfirmed(ctx, queue.PurchaseConfirmedEvent{
				PaymentID:   paymentID,
				Email:       email,
				Method:      strings.ToLower(method),
				ConfirmedAt: e.now().UTC().Format(time.RFC3339),
			}); err != nil {
				log.Printf("entitlement: purchase event publish failed (non-critical): %v", err)
			}
		}
	}

	return utils.NewAccessToken(e.cfg.JWTSecret, paymentID, utils.KindNormal, e.cfg.NormalTokenTTL)
}

// sendPurchaseEmail dispatches the confirmation mail with the one-time
// backup link. Token issuance must not depend on email deliverability, so
// failures are logged and swallowed.
func (e *Entitlement) sendPurchaseEmail(ctx context.Context, email string, rec *model.Purchase) {
	if e.notifier == nil {
		return
	}
	msg := notify.Message{
		To:      email,
		Subject: "Your Copy: B.T.S - RATCHOPPER",
		HTML: notify.PurchaseConfirmedHTML(
			e.cfg.SiteURL,
			fmt.Sprintf("%s/?backup=%s", e.cfg.SiteURL, rec.BackupID),
			rec.PaymentID,
		),
	}
	if err := e.notifier.Send(ctx, msg); err != nil {
		log.Printf("entitlement: purchase email failed (non-critical): %v", err)
	}
}

// ConsumeDownload validates the token, takes the record's download lock,
// and if entitlement remains hands out a signed link and decrements the
// counter. The decrement happens strictly after the link is produced: a
// signing failure must not consume a download the buyer never received.
func (e *Entitlement) ConsumeDownload(ctx context.Context, rawToken, format string) (string, int, error) {
	claims, verr := utils.VerifyAccessToken(e.cfg.JWTSecret, rawToken)
	if verr != nil && !errors.Is(verr, utils.ErrTokenExpired) {
		return "", 0, ErrInvalidToken
	}

	fileKey, ok := e.cfg.Files[strings.ToUpper(strings.TrimSpace(format))]
	if !ok {
		return "", 0, ErrInvalidFormat
	}

	rec, err := e.store.FindByPaymentID(ctx, claims.PaymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", 0, ErrNotFound
		}
		return "", 0, err
	}

	// Checked separately from signature verification: a well-signed but
	// stale token must still be turned away.
	if errors.Is(verr, utils.ErrTokenExpired) || claims.Exp.Before(e.now()) {
		return "", 0, ErrAccessExpired
	}

	handle, err := e.locks.Acquire(ctx, rec.ID)
	if err != nil {
		return "", 0, err
	}
	defer e.locks.Release(ctx, handle)

	remaining := handle.Record.DownloadCount
	if remaining <= 0 {
		return "", 0, ErrNoDownloadsRemaining
	}

	if e.signer == nil {
		return "", 0, ErrLinkSigningFailed
	}
	link, err := e.signer.Sign(ctx, fileKey, e.cfg.LinkTTL)
	if err != nil {
		log.Printf("entitlement: link signing failed for %s: %v", claims.PaymentID, err)
		return "", 0, ErrLinkSigningFailed
	}

	updated := remaining - 1
	if _, err := e.store.Update(ctx, rec.ID, store.Changes{DownloadCount: &updated}); err != nil {
		return "", 0, err
	}

	if e.events != nil {
		if err := e.events.PublishDownloadDelivered(ctx, queue.DownloadDeliveredEvent{
			PaymentID:   claims.PaymentID,
			Format:      strings.ToUpper(strings.TrimSpace(format)),
			Remaining:   updated,
			TokenKind:   claims.Kind,
			DeliveredAt: e.now().UTC().Format(time.RFC3339),
		}); err != nil {
			log.Printf("entitlement: download event publish failed (non-critical): %v", err)
		}
	}

	return link, updated, nil
}

// Status is the read-only projection returned by CheckStatus.
type Status struct {
	Valid           bool   `json:"valid"`
	Expired         bool   `json:"expired"`
	DownloadTokens  int    `json:"download_tokens"`
	BackupAvailable bool   `json:"backup_available"`
	StreamURL       string `json:"stream_url,omitempty"`
	Error           string `json:"error,omitempty"`
}

// CheckStatus reports on a token and its purchase record without mutating
// anything. Safe to call unlimited times; it never takes the lock.
func (e *Entitlement) CheckStatus(ctx context.Context, rawToken string) Status {
	if rawToken == "" {
		return Status{Expired: true, Error: "no token provided"}
	}

	claims, verr := utils.VerifyAccessToken(e.cfg.JWTSecret, rawToken)
	if verr != nil && !errors.Is(verr, utils.ErrTokenExpired) {
		return Status{Expired: true, Error: ErrInvalidToken.Error()}
	}

	rec, err := e.store.FindByPaymentID(ctx, claims.PaymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Status{Error: "purchase record not found"}
		}
		log.Printf("entitlement: status lookup failed: %v", err)
		return Status{Error: "unable to verify purchase, please try again"}
	}

	return Status{
		Valid:           true,
		Expired:         errors.Is(verr, utils.ErrTokenExpired) || claims.Exp.Before(e.now()),
		DownloadTokens:  max(0, rec.DownloadCount),
		BackupAvailable: !rec.BackupUsed,
		StreamURL:       e.cfg.StreamURL,
	}
}

// RedeemBackup exchanges a secret backup identifier for a rescue token.
// It works exactly once per record: BackupUsed flips monotonically, and an
// exhausted counter is restored to exactly one download. An active counter
// is left alone: rescue unlocks access rather than stacking more downloads.
func (e *Entitlement) RedeemBackup(ctx context.Context, backupID string) (utils.AccessToken, error) {
	rec, err := e.store.FindByBackupID(ctx, backupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.AccessToken{}, ErrInvalidBackupLink
		}
		return utils.AccessToken{}, err
	}

	if rec.BackupUsed {
		return utils.AccessToken{}, ErrBackupAlreadyUsed
	}

	used := true
	ch := store.Changes{BackupUsed: &used}
	if rec.DownloadCount <= 0 {
		one := 1
		ch.DownloadCount = &one
	}
	if _, err := e.store.Update(ctx, rec.ID, ch); err != nil {
		return utils.AccessToken{}, err
	}

	// The rescue token carries the original payment id so the download
	// path accepts it unchanged.
	return utils.NewAccessToken(e.cfg.JWTSecret, rec.PaymentID, utils.KindRescue, e.cfg.RescueTokenTTL)
}

// ReserveParams describes one pre-payment reservation.
type ReserveParams struct {
	Email  string
	Region string
	Stage  string // "EARLY_ACCESS" opens the payment window by email
}

// ReservationEmailDelay is how long phase-two access emails are deferred.
const ReservationEmailDelay = time.Minute

// Reserve creates a pre-payment record with a zero download count and a
// fresh backup id, then emails the buyer. The reservation code is returned
// even if the email fails, so the response always tells the buyer their
// code.
func (e *Entitlement) Reserve(ctx context.Context, p ReserveParams) (string, error) {
	code, err := utils.NewReservationCode()
	if err != nil {
		return "", err
	}
	backupID, err := utils.NewBackupID()
	if err != nil {
		return "", err
	}

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if _, err := e.store.Create(ctx, model.Purchase{
		Email:           email,
		Status:          "RESERVED",
		Region:          p.Region,
		ReservationCode: code,
		BackupID:        backupID,
		DownloadCount:   0,
		BackupUsed:      false,
	}); err != nil {
		return "", err
	}

	if e.notifier != nil {
		msg := notify.Message{
			To:      email,
			Subject: "Spot Secured: B.T.S - RATCHOPPER",
			HTML:    notify.ReservationSecuredHTML(code),
		}
		if strings.EqualFold(p.Stage, "EARLY_ACCESS") {
			activationLink := fmt.Sprintf("%s/?activate=%s&code=%s", e.cfg.SiteURL, backupID, code)
			msg.Subject = "Access Link: B.T.S - RATCHOPPER"
			msg.HTML = notify.ReservationAccessHTML(activationLink, code)
			msg.ScheduledAt = e.now().Add(ReservationEmailDelay)
		}
		if err := e.notifier.Send(ctx, msg); err != nil {
			log.Printf("entitlement: reservation email failed (non-critical): %v", err)
		}
	}

	return code, nil
}
