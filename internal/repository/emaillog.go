package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type EmailLogStatus string

const (
	EmailStatusSent   EmailLogStatus = "sent"
	EmailStatusFailed EmailLogStatus = "failed"
)

type EmailLog struct {
	PaymentID      string
	RecipientEmail string
	Subject        string
	Status         EmailLogStatus
	ErrorMessage   sql.NullString
}

func SaveEmailLog(db *sql.DB, l EmailLog) error {
	_, err := db.Exec(`INSERT INTO email_logs (id, payment_id, recipient_email, subject, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), l.PaymentID, l.RecipientEmail, l.Subject, string(l.Status),
		nullStringOrNil(l.ErrorMessage), formatTime(time.Now()))
	return err
}

func nullStringOrNil(ns sql.NullString) interface{} {
	if ns.Valid {
		return ns.String
	}
	return nil
}
