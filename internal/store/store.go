// Package store provides typed access to purchase records in the remote
// record store. The store offers plain find/create/update only, with no
// transactions and no compare-and-swap, so all higher-level atomicity is
// built on top of it by the lock package.
package store

import (
	"context"
	"errors"

	"github.com/rettibot/bts-backend/internal/model"
)

// ErrNotFound is returned when no purchase record matches the lookup key.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("purchase not found")

// ErrUnavailable is returned when the record store cannot be reached or
// answers with a server error. It is a transient condition; callers may
// retry the whole operation.
var ErrUnavailable = errors.New("record store unavailable")

// Changes lists the fields an update may set. Nil pointers leave the
// corresponding field untouched on the remote record, mirroring the
// store's partial-update semantics.
type Changes struct {
	Email         *string
	DownloadCount *int
	BackupUsed    *bool
	Lock          *string
}

// PurchaseStore is the entitlement store client contract. Reads and writes
// are assumed linearizable per record; nothing stronger is available.
type PurchaseStore interface {
	// FindByPaymentID looks a record up by its public payment identifier.
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Purchase, error)
	// FindByBackupID looks a record up by its secret backup identifier.
	FindByBackupID(ctx context.Context, backupID string) (*model.Purchase, error)
	// FindByID fetches a record by its store-assigned identifier.
	FindByID(ctx context.Context, id string) (*model.Purchase, error)
	// Create inserts a new record. The ID field of the argument is ignored;
	// the returned record carries the store-assigned one.
	Create(ctx context.Context, p model.Purchase) (*model.Purchase, error)
	// Update applies the non-nil fields of ch to the record and returns the
	// record as the store sees it afterwards.
	Update(ctx context.Context, id string, ch Changes) (*model.Purchase, error)
}
