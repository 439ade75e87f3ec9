package models

import (
	"time"
)

// PaymentStatus is the lifecycle state of a PIX payment.
// Pending is the only non-terminal state; Confirmed and Expired are
// terminal and no transition leaves them.
type PaymentStatus int

const (
	PaymentPending PaymentStatus = iota
	PaymentConfirmed
	PaymentExpired
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentPending:
		return "pending"
	case PaymentConfirmed:
		return "confirmed"
	case PaymentExpired:
		return "expired"
	}
	return "unknown"
}

// Terminal reports whether no further transition is allowed from s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentConfirmed || s == PaymentExpired
}

// Raffle is a prize drawing with a fixed pool of purchasable numbers.
// WinningNumber stays empty until the draw is executed. Raffles are never
// hard-deleted, only flagged.
type Raffle struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TicketPrice   int64     `json:"ticket_price"` // centavos
	PrizeValue    int64     `json:"prize_value"`  // centavos
	MinTickets    int       `json:"min_tickets"`
	MaxTickets    int       `json:"max_tickets"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	DrawDateTime  time.Time `json:"draw_date_time"`
	WinningNumber string    `json:"winning_number,omitempty"`
	ReminderSent  bool      `json:"-"`
	Deleted       bool      `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Customer is a buyer, shared across raffles. Deduplicated on purchase by a
// configurable field match (email, phone, CPF).
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CPF       string    `json:"cpf"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ticket is one numbered entry in a raffle. Valid flips to true exactly
// once, when the linked payment is confirmed, and never back.
type Ticket struct {
	ID         string    `json:"id"`
	RaffleID   string    `json:"raffle_id"`
	CustomerID string    `json:"customer_id"`
	Number     int       `json:"number"`
	Valid      bool      `json:"valid"`
	PaymentID  string    `json:"payment_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Payment is a PIX charge covering one or more tickets of a single raffle.
type Payment struct {
	ID           string        `json:"id"`
	RaffleID     string        `json:"raffle_id"`
	CustomerID   string        `json:"customer_id"`
	Amount       int64         `json:"amount"` // centavos
	Method       string        `json:"method"`
	QRCode       string        `json:"qr_code,omitempty"`
	QRCodeBase64 string        `json:"qr_code_base64,omitempty"`
	ExpiresAt    time.Time     `json:"expires_at"`
	GatewayID    string        `json:"gateway_id,omitempty"`
	Status       PaymentStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Confirmed reports whether the payment reached its paid terminal state.
func (p *Payment) Confirmed() bool { return p.Status == PaymentConfirmed }

// Draw records one draw execution for a raffle. WinningNumber is kept as a
// string for compatibility with historical records; it is empty for draws
// that were scheduled but never executed.
type Draw struct {
	ID            string    `json:"id"`
	RaffleID      string    `json:"raffle_id"`
	DrawDate      time.Time `json:"draw_date"`
	WinningNumber string    `json:"winning_number"`
}
