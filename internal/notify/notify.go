package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// PurchaseData is the bundle handed to dispatchers when tickets are bought.
type PurchaseData struct {
	RaffleName    string
	CustomerName  string
	CustomerEmail string
	PaymentID     string
	TicketNumbers []int
	Amount        int64 // centavos
	QRCode        string
}

// PaymentData is the bundle for payment confirmation/expiry messages.
// TicketNumbers carries every number the customer holds in the raffle, not
// just the ones of this payment.
type PaymentData struct {
	RaffleName    string
	CustomerName  string
	CustomerEmail string
	PaymentID     string
	TicketNumbers []int
	Amount        int64
}

// DrawData is the bundle for draw reminders, results and winner messages.
type DrawData struct {
	RaffleName    string
	WinningNumber string
	WinnerName    string
	WinnerEmail   string
	PrizeValue    int64 // centavos
	Recipients    []Recipient
}

type Recipient struct {
	Name  string
	Email string
}

// Notifier delivers user-facing messages for confirmed state transitions.
// Implementations report failures as errors; callers log and swallow them,
// they never roll back or block the operation that triggered them.
type Notifier interface {
	PurchaseCreated(ctx context.Context, data PurchaseData) error
	PaymentConfirmed(ctx context.Context, data PaymentData) error
	PaymentExpired(ctx context.Context, data PaymentData) error
	DrawReminder(ctx context.Context, data DrawData) error
	DrawResult(ctx context.Context, data DrawData) error
	WinnerNotification(ctx context.Context, data DrawData) error
}

// Multi fans a notification out to several dispatchers. Each failure is
// logged; Multi itself never fails.
type Multi []Notifier

func (m Multi) dispatch(name string, fn func(Notifier) error) error {
	for _, n := range m {
		if err := fn(n); err != nil {
			log.WithError(err).WithField("notification", name).Error("notification dispatch failed")
		}
	}
	return nil
}

func (m Multi) PurchaseCreated(ctx context.Context, d PurchaseData) error {
	return m.dispatch("purchase_created", func(n Notifier) error { return n.PurchaseCreated(ctx, d) })
}

func (m Multi) PaymentConfirmed(ctx context.Context, d PaymentData) error {
	return m.dispatch("payment_confirmed", func(n Notifier) error { return n.PaymentConfirmed(ctx, d) })
}

func (m Multi) PaymentExpired(ctx context.Context, d PaymentData) error {
	return m.dispatch("payment_expired", func(n Notifier) error { return n.PaymentExpired(ctx, d) })
}

func (m Multi) DrawReminder(ctx context.Context, d DrawData) error {
	return m.dispatch("draw_reminder", func(n Notifier) error { return n.DrawReminder(ctx, d) })
}

func (m Multi) DrawResult(ctx context.Context, d DrawData) error {
	return m.dispatch("draw_result", func(n Notifier) error { return n.DrawResult(ctx, d) })
}

func (m Multi) WinnerNotification(ctx context.Context, d DrawData) error {
	return m.dispatch("winner", func(n Notifier) error { return n.WinnerNotification(ctx, d) })
}
