package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"rifa/api/internal/models"
)

// UsedNumbersTx returns the set of numbers already taken in a raffle.
// Read inside the same transaction that inserts the new tickets so two
// concurrent purchases can never allocate the same number.
func UsedNumbersTx(tx *sql.Tx, raffleID string) (map[int]bool, error) {
	rows, err := tx.Query(`SELECT number FROM tickets WHERE raffle_id = ?`, raffleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	used := make(map[int]bool)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		used[n] = true
	}
	return used, rows.Err()
}

func TicketCount(db *sql.DB, raffleID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM tickets WHERE raffle_id = ?`, raffleID).Scan(&n)
	return n, err
}

func CreateTicketTx(tx *sql.Tx, raffleID, customerID, paymentID string, number int) (string, error) {
	id := uuid.New().String()
	var pid interface{}
	if paymentID != "" {
		pid = paymentID
	}
	_, err := tx.Exec(`INSERT INTO tickets (id, raffle_id, customer_id, number, valid, payment_id, created_at) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, raffleID, customerID, number, pid, formatTime(time.Now()))
	return id, err
}

// MarkTicketsValidTx flips every ticket of a payment to valid. Fired once
// per payment, guarded by the payment status claim.
func MarkTicketsValidTx(tx *sql.Tx, paymentID string) (int64, error) {
	res, err := tx.Exec(`UPDATE tickets SET valid = 1 WHERE payment_id = ? AND valid = 0`, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanTickets(rows *sql.Rows) ([]models.Ticket, error) {
	defer rows.Close()
	var list []models.Ticket
	for rows.Next() {
		var t models.Ticket
		var paymentID sql.NullString
		var created string
		if err := rows.Scan(&t.ID, &t.RaffleID, &t.CustomerID, &t.Number, &t.Valid, &paymentID, &created); err != nil {
			return nil, err
		}
		t.PaymentID = paymentID.String
		t.CreatedAt = parseTime(created)
		list = append(list, t)
	}
	return list, rows.Err()
}

func ValidTicketsByRaffle(db *sql.DB, raffleID string) ([]models.Ticket, error) {
	rows, err := db.Query(`SELECT id, raffle_id, customer_id, number, valid, payment_id, created_at
		FROM tickets WHERE raffle_id = ? AND valid = 1 ORDER BY number`, raffleID)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

func TicketsByPayment(db *sql.DB, paymentID string) ([]models.Ticket, error) {
	rows, err := db.Query(`SELECT id, raffle_id, customer_id, number, valid, payment_id, created_at
		FROM tickets WHERE payment_id = ? ORDER BY number`, paymentID)
	if err != nil {
		return nil, err
	}
	return scanTickets(rows)
}

// CustomerNumbers returns every ticket number a customer holds in a raffle,
// not just the ones of a single payment.
func CustomerNumbers(db *sql.DB, raffleID, customerID string) ([]int, error) {
	rows, err := db.Query(`SELECT number FROM tickets WHERE raffle_id = ? AND customer_id = ? ORDER BY number`,
		raffleID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}
