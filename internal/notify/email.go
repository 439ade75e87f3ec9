package notify

import (
	"context"
	"database/sql"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	log "github.com/sirupsen/logrus"

	"rifa/api/internal/repository"
)

// EmailNotifier delivers notifications over SMTP and records every attempt
// in the email log table.
type EmailNotifier struct {
	host     string
	port     string
	user     string
	password string
	from     string
	db       *sql.DB
}

func NewEmailNotifier(host, port, user, password, from string, db *sql.DB) *EmailNotifier {
	return &EmailNotifier{host: host, port: port, user: user, password: password, from: from, db: db}
}

func formatBRL(centavos int64) string {
	return fmt.Sprintf("R$ %d,%02d", centavos/100, centavos%100)
}

func formatNumbers(numbers []int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}

// send delivers one email with up to 3 attempts and exponential backoff,
// then logs the outcome.
func (e *EmailNotifier) send(ctx context.Context, paymentID, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	auth := smtp.PlainAuth("", e.user, e.password, e.host)
	addr := e.host + ":" + e.port

	var err error
	delay := 1 * time.Second
	for attempt := 1; attempt <= 3; attempt++ {
		msg := email.NewEmail()
		msg.From = e.from
		msg.To = []string{to}
		msg.Subject = subject
		msg.Text = []byte(body)

		err = msg.Send(addr, auth)
		if err == nil {
			break
		}
		if attempt < 3 {
			log.WithError(err).WithFields(log.Fields{
				"attempt": attempt,
				"email":   to,
			}).Warn("failed to send email, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				err = ctx.Err()
				attempt = 3
			}
			delay *= 2
		}
	}

	entry := repository.EmailLog{
		PaymentID:      paymentID,
		RecipientEmail: to,
		Subject:        subject,
		Status:         repository.EmailStatusSent,
	}
	if err != nil {
		entry.Status = repository.EmailStatusFailed
		entry.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if logErr := repository.SaveEmailLog(e.db, entry); logErr != nil {
		log.WithError(logErr).Error("failed to save email log")
	}
	return err
}

func (e *EmailNotifier) PurchaseCreated(ctx context.Context, d PurchaseData) error {
	subject := fmt.Sprintf("Reserva confirmada - %s", d.RaffleName)
	body := fmt.Sprintf(
		"Olá %s!\n\nSeus números na rifa %s: %s\nValor: %s\n\nPague o PIX abaixo para validar seus bilhetes (expira em 30 minutos):\n\n%s\n",
		d.CustomerName, d.RaffleName, formatNumbers(d.TicketNumbers), formatBRL(d.Amount), d.QRCode)
	return e.send(ctx, d.PaymentID, d.CustomerEmail, subject, body)
}

func (e *EmailNotifier) PaymentConfirmed(ctx context.Context, d PaymentData) error {
	subject := fmt.Sprintf("Pagamento confirmado - %s", d.RaffleName)
	body := fmt.Sprintf(
		"Olá %s!\n\nSeu pagamento de %s foi confirmado.\nSeus números na rifa %s: %s\n\nBoa sorte!\n",
		d.CustomerName, formatBRL(d.Amount), d.RaffleName, formatNumbers(d.TicketNumbers))
	return e.send(ctx, d.PaymentID, d.CustomerEmail, subject, body)
}

func (e *EmailNotifier) PaymentExpired(ctx context.Context, d PaymentData) error {
	subject := fmt.Sprintf("Pagamento expirado - %s", d.RaffleName)
	body := fmt.Sprintf(
		"Olá %s,\n\nO PIX da sua reserva na rifa %s expirou sem pagamento.\nOs números %s não estão mais garantidos. Faça uma nova compra se ainda quiser participar.\n",
		d.CustomerName, d.RaffleName, formatNumbers(d.TicketNumbers))
	return e.send(ctx, d.PaymentID, d.CustomerEmail, subject, body)
}

func (e *EmailNotifier) DrawReminder(ctx context.Context, d DrawData) error {
	subject := fmt.Sprintf("Sorteio em breve - %s", d.RaffleName)
	var firstErr error
	for _, r := range d.Recipients {
		body := fmt.Sprintf("Olá %s!\n\nO sorteio da rifa %s acontece em breve. Boa sorte!\n", r.Name, d.RaffleName)
		if err := e.send(ctx, "", r.Email, subject, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *EmailNotifier) DrawResult(ctx context.Context, d DrawData) error {
	subject := fmt.Sprintf("Resultado do sorteio - %s", d.RaffleName)
	var firstErr error
	for _, r := range d.Recipients {
		body := fmt.Sprintf(
			"Olá %s!\n\nA rifa %s foi sorteada.\nNúmero vencedor: %s\nGanhador: %s\n\nObrigado por participar!\n",
			r.Name, d.RaffleName, d.WinningNumber, d.WinnerName)
		if err := e.send(ctx, "", r.Email, subject, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *EmailNotifier) WinnerNotification(ctx context.Context, d DrawData) error {
	subject := fmt.Sprintf("Você ganhou! - %s", d.RaffleName)
	body := fmt.Sprintf(
		"Parabéns %s!\n\nSeu número %s foi sorteado na rifa %s.\nPrêmio: %s\n\nEntraremos em contato para a entrega.\n",
		d.WinnerName, d.WinningNumber, d.RaffleName, formatBRL(d.PrizeValue))
	return e.send(ctx, "", d.WinnerEmail, subject, body)
}
