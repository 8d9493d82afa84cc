// Package queue defines message payloads exchanged over the message broker
// plus the best-effort publisher and the background consumer.
package queue

// Queue names. Both are durable; messages are published persistent.
const (
	PurchaseQueueName = "purchase.confirmed"
	DownloadQueueName = "download.delivered"
)

// PurchaseConfirmedEvent is published when a purchase record is created for
// a freshly verified payment. Downstream consumers get enough to log or
// notify without touching the record store.
type PurchaseConfirmedEvent struct {
	PaymentID   string `json:"payment_id"`
	Email       string `json:"email"`
	Method      string `json:"method"`
	ConfirmedAt string `json:"confirmed_at"`
}

// DownloadDeliveredEvent is published after a download link was handed out
// and the counter decremented.
type DownloadDeliveredEvent struct {
	PaymentID   string `json:"payment_id"`
	Format      string `json:"format"`
	Remaining   int    `json:"remaining"`
	TokenKind   string `json:"token_kind"`
	DeliveredAt string `json:"delivered_at"`
}
