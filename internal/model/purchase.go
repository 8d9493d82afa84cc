package model

// Purchase represents one row of the Purchases table in the remote record
// store. It is the only shared mutable state in the system: every worker
// invocation coordinates exclusively through this record.
//
// Fields:
//
//	ID              - record identifier assigned by the store; never set by us.
//	PaymentID       - unique id of the completed checkout; lookup key for
//	                  normal access tokens.
//	BackupID        - secret one-time recovery identifier. Generated by us at
//	                  record creation and never exposed in normal responses.
//	Email           - buyer email; set on first verified payment, backfilled
//	                  later if the provider reported none.
//	DownloadCount   - remaining downloads; never negative. Mutated only while
//	                  holding the record's download lock.
//	BackupUsed      - flips false -> true when the backup link is redeemed;
//	                  never reset.
//	Lock            - the DownloadLock slot, "token:expiresAtMs" or empty.
//	                  Pure concurrency control, not a domain attribute.
//	Status          - provenance ("RESERVED", "PAID"); not touched by the
//	                  entitlement core.
//	Region          - where the reservation came from.
//	ReservationCode - human-readable code handed out on reservation.
type Purchase struct {
	ID              string
	PaymentID       string
	BackupID        string
	Email           string
	DownloadCount   int
	BackupUsed      bool
	Lock            string
	Status          string
	Region          string
	ReservationCode string
}
