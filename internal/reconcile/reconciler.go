package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"rifa/api/internal/mercadopago"
	"rifa/api/internal/models"
	"rifa/api/internal/notify"
	"rifa/api/internal/repository"
)

// StatusChecker is the slice of the gateway client reconciliation needs.
type StatusChecker interface {
	GetPaymentStatus(ctx context.Context, gatewayID string) (string, error)
}

// Sweep window around a payment's expiration. Payments far from expiry are
// not worth polling every minute.
const (
	windowBefore = 15 * time.Minute
	windowAfter  = 2 * time.Minute
)

// Reconciler drives Pending payments to a terminal state. Two entry points
// converge on the same logic: the periodic sweep (Run) and the webhook path
// (ReconcileGatewayID). Both are safe to race: the status transition is an
// atomic compare-and-set, so the ticket-validation side effect fires at
// most once per payment.
type Reconciler struct {
	db       *sql.DB
	gateway  StatusChecker
	notifier notify.Notifier
	interval time.Duration
	now      func() time.Time
}

func New(db *sql.DB, gateway StatusChecker, notifier notify.Notifier, interval time.Duration) *Reconciler {
	return &Reconciler{
		db:       db,
		gateway:  gateway,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
	}
}

// Run executes the polling sweep until ctx is cancelled. An in-flight sweep
// finishes before Run returns.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.WithField("interval", r.interval).Info("payment reconciliation loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info("payment reconciliation loop stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				log.WithError(err).Error("reconciliation sweep failed")
			}
		}
	}
}

// Sweep reconciles every Pending payment whose expiration falls inside the
// polling window.
func (r *Reconciler) Sweep(ctx context.Context) error {
	now := r.now()
	payments, err := repository.PendingPaymentsExpiring(r.db, now.Add(-windowBefore), now.Add(windowAfter))
	if err != nil {
		return fmt.Errorf("select pending payments: %w", err)
	}

	for i := range payments {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.ReconcilePayment(ctx, &payments[i]); err != nil {
			log.WithError(err).WithField("payment_id", payments[i].ID).Error("reconcile payment failed")
		}
	}
	return nil
}

// ReconcileGatewayID reconciles every internal payment carrying the given
// external gateway id. Entry point for the webhook path.
func (r *Reconciler) ReconcileGatewayID(ctx context.Context, gatewayID string) error {
	payments, err := repository.PaymentsByGatewayID(r.db, gatewayID)
	if err != nil {
		return fmt.Errorf("payments by gateway id: %w", err)
	}
	if len(payments) == 0 {
		log.WithField("gateway_id", gatewayID).Warn("no payment for gateway id")
		return nil
	}
	for i := range payments {
		if err := r.ReconcilePayment(ctx, &payments[i]); err != nil {
			log.WithError(err).WithField("payment_id", payments[i].ID).Error("reconcile payment failed")
		}
	}
	return nil
}

// ReconcilePayment reads the authoritative status from the gateway and
// applies it. A gateway failure is no new information: the payment is left
// unchanged for the next pass. Terminal payments are no-ops.
func (r *Reconciler) ReconcilePayment(ctx context.Context, payment *models.Payment) error {
	if payment.Status.Terminal() {
		return nil
	}

	if payment.GatewayID == "" {
		// never reached the gateway; can only expire locally
		if r.now().After(payment.ExpiresAt) {
			r.expire(ctx, payment)
		}
		return nil
	}

	gatewayStatus, err := r.gateway.GetPaymentStatus(ctx, payment.GatewayID)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"payment_id": payment.ID,
			"gateway_id": payment.GatewayID,
		}).Warn("gateway status check failed, will retry next cycle")
		return nil
	}

	switch mercadopago.MapStatus(gatewayStatus) {
	case models.PaymentConfirmed:
		return r.confirm(ctx, payment)
	case models.PaymentExpired:
		r.expire(ctx, payment)
	case models.PaymentPending:
		// expiration is evaluated lazily, on query
		if r.now().After(payment.ExpiresAt) {
			r.expire(ctx, payment)
		}
	}
	return nil
}

// ExpireIfOverdue applies the lazy expiration on a direct status query: a
// Pending payment past its expiration flips to Expired even when it missed
// the polling window. Reports whether the payment is now expired.
func (r *Reconciler) ExpireIfOverdue(ctx context.Context, payment *models.Payment) bool {
	if payment.Status != models.PaymentPending || !r.now().After(payment.ExpiresAt) {
		return false
	}
	r.expire(ctx, payment)
	return payment.Status == models.PaymentExpired
}

// confirm moves a payment Pending → Confirmed and validates its tickets in
// one transaction. The compare-and-set claim makes concurrent confirmations
// (poll vs webhook) collapse into exactly one winner.
func (r *Reconciler) confirm(ctx context.Context, payment *models.Payment) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback()

	claimed, err := repository.ClaimPaymentStatusTx(tx, payment.ID, models.PaymentConfirmed)
	if err != nil {
		return fmt.Errorf("claim payment: %w", err)
	}
	if !claimed {
		return nil // another path got here first
	}

	validated, err := repository.MarkTicketsValidTx(tx, payment.ID)
	if err != nil {
		return fmt.Errorf("validate tickets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit confirm: %w", err)
	}

	payment.Status = models.PaymentConfirmed
	log.WithFields(log.Fields{
		"payment_id": payment.ID,
		"gateway_id": payment.GatewayID,
		"tickets":    validated,
	}).Info("payment confirmed, tickets validated")

	r.notifyOutcome(ctx, payment, true)
	return nil
}

// expire moves a payment Pending → Expired. No ticket side effect: invalid
// tickets just stay invalid.
func (r *Reconciler) expire(ctx context.Context, payment *models.Payment) {
	tx, err := r.db.Begin()
	if err != nil {
		log.WithError(err).Error("begin expire failed")
		return
	}
	defer tx.Rollback()

	claimed, err := repository.ClaimPaymentStatusTx(tx, payment.ID, models.PaymentExpired)
	if err != nil {
		log.WithError(err).WithField("payment_id", payment.ID).Error("expire claim failed")
		return
	}
	if err := tx.Commit(); err != nil {
		log.WithError(err).WithField("payment_id", payment.ID).Error("commit expire failed")
		return
	}
	if !claimed {
		return
	}

	payment.Status = models.PaymentExpired
	log.WithField("payment_id", payment.ID).Info("payment expired")
	r.notifyOutcome(ctx, payment, false)
}

// notifyOutcome dispatches the confirmation or expiry message with the full
// set of numbers the customer holds in the raffle. Failures are logged and
// swallowed.
func (r *Reconciler) notifyOutcome(ctx context.Context, payment *models.Payment, confirmed bool) {
	customer, err := repository.CustomerByID(r.db, payment.CustomerID)
	if err != nil || customer == nil {
		log.WithError(err).WithField("payment_id", payment.ID).Error("load customer for notification failed")
		return
	}
	raffle, err := repository.RaffleByID(r.db, payment.RaffleID)
	if err != nil || raffle == nil {
		log.WithError(err).WithField("payment_id", payment.ID).Error("load raffle for notification failed")
		return
	}
	// confirmation reports everything the customer holds in the raffle;
	// expiry reports only the numbers this payment would have covered
	var numbers []int
	if confirmed {
		numbers, err = repository.CustomerNumbers(r.db, payment.RaffleID, payment.CustomerID)
	} else {
		var tickets []models.Ticket
		tickets, err = repository.TicketsByPayment(r.db, payment.ID)
		for _, t := range tickets {
			numbers = append(numbers, t.Number)
		}
	}
	if err != nil {
		log.WithError(err).WithField("payment_id", payment.ID).Error("load ticket numbers for notification failed")
	}

	data := notify.PaymentData{
		RaffleName:    raffle.Name,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		PaymentID:     payment.ID,
		TicketNumbers: numbers,
		Amount:        payment.Amount,
	}
	if confirmed {
		err = r.notifier.PaymentConfirmed(ctx, data)
	} else {
		err = r.notifier.PaymentExpired(ctx, data)
	}
	if err != nil {
		log.WithError(err).WithField("payment_id", payment.ID).Error("payment notification failed")
	}
}
