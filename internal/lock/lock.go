// Package lock implements mutual exclusion over a single purchase record.
//
// The record store has no conditional write, so the lock is emulated:
// write a fresh "token:expiresAtMs" value into the record's lock slot while
// it looks free, then re-read and check that our value survived the race.
// Expiry is the authority of last resort: a holder that crashes without
// releasing stops blocking others once its hold time elapses.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rettibot/bts-backend/internal/model"
	"github.com/rettibot/bts-backend/internal/store"
)

// ErrTimeout is returned when the lock could not be acquired before the
// deadline. It is transient; the caller should retry the whole operation
// later.
var ErrTimeout = errors.New("unable to acquire download lock")

// Config holds the lock timing knobs. HoldTime must exceed the longest
// expected critical section; AcquireTimeout is deliberately shorter than
// HoldTime so a caller gives up before its own earlier write could read
// back as a live foreign lock.
type Config struct {
	RetryDelay     time.Duration // pause between acquisition attempts
	HoldTime       time.Duration // how long a written lock stays valid
	AcquireTimeout time.Duration // wall-clock budget for one Acquire call
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		RetryDelay:     200 * time.Millisecond,
		HoldTime:       8 * time.Second,
		AcquireTimeout: 7 * time.Second,
	}
}

// Handle proves a confirmed acquisition. Record is the snapshot taken by
// the confirming read; critical sections must base their decisions on it
// rather than re-fetching outside the lock.
type Handle struct {
	RecordID string
	Value    string
	Record   *model.Purchase
}

// Locker acquires and releases per-record locks through the store.
type Locker struct {
	store store.PurchaseStore
	cfg   Config
	now   func() time.Time
}

// New returns a Locker using the given store and timings.
func New(s store.PurchaseStore, cfg Config) *Locker {
	return &Locker{store: s, cfg: cfg, now: time.Now}
}

// parseValue splits a lock slot into its token and expiry. Empty or
// malformed values are treated as free (expiry zero).
func parseValue(v string) (token string, expiresAt int64) {
	token, rawExpiry, ok := strings.Cut(v, ":")
	if !ok {
		return "", 0
	}
	ms, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return token, 0
	}
	return token, ms
}

// Acquire polls until it holds the lock for recordID or the acquisition
// deadline passes. Store failures abort the attempt immediately; only
// contention is waited out.
func (l *Locker) Acquire(ctx context.Context, recordID string) (*Handle, error) {
	myToken := uuid.NewString()
	deadline := l.now().Add(l.cfg.AcquireTimeout)

	for l.now().Before(deadline) {
		current, err := l.store.FindByID(ctx, recordID)
		if err != nil {
			return nil, err
		}

		holder, expiresAt := parseValue(current.Lock)
		free := holder == "" || l.now().UnixMilli() > expiresAt

		if free {
			value := fmt.Sprintf("%s:%d", myToken, l.now().Add(l.cfg.HoldTime).UnixMilli())
			if _, err := l.store.Update(ctx, recordID, store.Changes{Lock: &value}); err != nil {
				return nil, err
			}

			// The write is unconditional, so only a re-read tells us
			// whether we actually won.
			confirm, err := l.store.FindByID(ctx, recordID)
			if err != nil {
				return nil, err
			}
			if confirm.Lock == value {
				return &Handle{RecordID: recordID, Value: value, Record: confirm}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.cfg.RetryDelay):
		}
	}

	return nil, ErrTimeout
}

// Release clears the lock slot if it still carries the handle's value. A
// differing value means the lock expired and was reclaimed; clearing it
// then would clobber the new holder, so Release does nothing instead.
// Failures are logged only; an unreleased lock self-heals via expiry.
func (l *Locker) Release(ctx context.Context, h *Handle) {
	if h == nil || h.Value == "" {
		return
	}
	current, err := l.store.FindByID(ctx, h.RecordID)
	if err != nil {
		log.Printf("lock: release read for %s failed: %v", h.RecordID, err)
		return
	}
	if current.Lock != h.Value {
		return
	}
	empty := ""
	if _, err := l.store.Update(ctx, h.RecordID, store.Changes{Lock: &empty}); err != nil {
		log.Printf("lock: release write for %s failed: %v", h.RecordID, err)
	}
}
