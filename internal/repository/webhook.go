package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// WebhookEventExists checks whether a gateway notification was already
// received. Keyed by (request id, gateway payment id) so provider retries
// are dropped without reprocessing.
func WebhookEventExists(db *sql.DB, requestID, gatewayPaymentID string) bool {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM webhook_events WHERE request_id = ? AND gateway_payment_id = ?`,
		requestID, gatewayPaymentID).Scan(&n)
	return err == nil && n > 0
}

// InsertWebhookEvent logs a received notification before processing so a
// retried delivery is deduplicated even if processing is still in flight.
func InsertWebhookEvent(db *sql.DB, requestID, gatewayPaymentID, eventType string) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO webhook_events (id, request_id, gateway_payment_id, event_type, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), requestID, gatewayPaymentID, eventType, formatTime(time.Now()))
	return err
}

func MarkWebhookEventProcessed(db *sql.DB, requestID, gatewayPaymentID string) error {
	_, err := db.Exec(`UPDATE webhook_events SET processed = 1, processed_at = ? WHERE request_id = ? AND gateway_payment_id = ?`,
		formatTime(time.Now()), requestID, gatewayPaymentID)
	return err
}
