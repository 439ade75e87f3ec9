package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"rifa/api/internal/models"
)

const paymentColumns = `id, raffle_id, customer_id, amount, method, qr_code, qr_code_base64,
	expires_at, gateway_id, status, created_at`

func scanPayment(row *sql.Row) (*models.Payment, error) {
	var p models.Payment
	var status int
	var expires, created string
	err := row.Scan(&p.ID, &p.RaffleID, &p.CustomerID, &p.Amount, &p.Method, &p.QRCode, &p.QRCodeBase64,
		&expires, &p.GatewayID, &status, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	p.ExpiresAt = parseTime(expires)
	p.CreatedAt = parseTime(created)
	return &p, nil
}

func CreatePaymentTx(tx *sql.Tx, p *models.Payment) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := tx.Exec(`INSERT INTO payments (id, raffle_id, customer_id, amount, method, qr_code, qr_code_base64,
		expires_at, gateway_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.RaffleID, p.CustomerID, p.Amount, p.Method, p.QRCode, p.QRCodeBase64,
		formatTime(p.ExpiresAt), p.GatewayID, int(p.Status), formatTime(time.Now()),
	)
	return p.ID, err
}

func PaymentByID(db *sql.DB, id string) (*models.Payment, error) {
	return scanPayment(db.QueryRow(`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
}

// PaymentsByGatewayID returns every internal payment carrying the external
// gateway id. The link is not strictly one-to-one, so all rows are checked.
func PaymentsByGatewayID(db *sql.DB, gatewayID string) ([]models.Payment, error) {
	rows, err := db.Query(`SELECT `+paymentColumns+` FROM payments WHERE gateway_id = ?`, gatewayID)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

// PendingPaymentsExpiring selects Pending payments whose expiration falls in
// [from, to]. The narrow window keeps the sweep from re-checking payments
// far from expiry.
func PendingPaymentsExpiring(db *sql.DB, from, to time.Time) ([]models.Payment, error) {
	rows, err := db.Query(`SELECT `+paymentColumns+` FROM payments
		WHERE status = ? AND expires_at >= ? AND expires_at <= ?`,
		int(models.PaymentPending), formatTime(from), formatTime(to))
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

func scanPayments(rows *sql.Rows) ([]models.Payment, error) {
	defer rows.Close()
	var list []models.Payment
	for rows.Next() {
		var p models.Payment
		var status int
		var expires, created string
		if err := rows.Scan(&p.ID, &p.RaffleID, &p.CustomerID, &p.Amount, &p.Method, &p.QRCode, &p.QRCodeBase64,
			&expires, &p.GatewayID, &status, &created); err != nil {
			return nil, err
		}
		p.Status = models.PaymentStatus(status)
		p.ExpiresAt = parseTime(expires)
		p.CreatedAt = parseTime(created)
		list = append(list, p)
	}
	return list, rows.Err()
}

// ClaimPaymentStatusTx atomically moves a payment out of Pending. Returns
// true only for the caller that won the transition; a payment already in a
// terminal state is left untouched. This is the idempotence guard shared by
// the polling and webhook reconciliation paths.
func ClaimPaymentStatusTx(tx *sql.Tx, paymentID string, to models.PaymentStatus) (bool, error) {
	res, err := tx.Exec(`UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		int(to), paymentID, int(models.PaymentPending))
	if err != nil {
		return false, err
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return ra == 1, nil
}
