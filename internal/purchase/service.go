package purchase

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"rifa/api/internal/mercadopago"
	"rifa/api/internal/models"
	"rifa/api/internal/notify"
	"rifa/api/internal/repository"
)

// PaymentGateway is the slice of the gateway client the coordinator needs.
type PaymentGateway interface {
	CreatePixPayment(ctx context.Context, params mercadopago.PixPaymentParams) (*mercadopago.PixPaymentResult, error)
}

// Service orchestrates the quick purchase: customer lookup/creation, ticket
// number allocation and PIX intent creation as one logical operation.
type Service struct {
	db          *sql.DB
	gateway     PaymentGateway
	notifier    notify.Notifier
	matchFields []string
	now         func() time.Time
}

func NewService(db *sql.DB, gateway PaymentGateway, notifier notify.Notifier, matchFields []string) *Service {
	return &Service{
		db:          db,
		gateway:     gateway,
		notifier:    notifier,
		matchFields: matchFields,
		now:         time.Now,
	}
}

// BuyerInfo is the customer data supplied with a quick purchase. Method is
// optional and defaults to PIX, the only method the platform takes.
type BuyerInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	CPF      string `json:"cpf"`
	Quantity int    `json:"quantity"`
	Method   string `json:"payment_method,omitempty"`
}

// Result is what a successful quick purchase returns.
type Result struct {
	Customer      *models.Customer `json:"customer"`
	Payment       *models.Payment  `json:"payment"`
	TicketNumbers []int            `json:"ticket_numbers"`
	TotalValue    int64            `json:"total_value"` // centavos
}

// QuickPurchase runs the whole purchase flow. The PIX intent is created
// before the database transaction so no lock is held across gateway I/O; if
// the transaction then fails, the orphaned intent simply expires at the
// gateway. Inside the transaction availability is recomputed, so the
// earlier read can never oversell.
func (s *Service) QuickPurchase(ctx context.Context, raffleID string, buyer BuyerInfo) (*Result, error) {
	raffle, err := repository.RaffleByID(s.db, raffleID)
	if err != nil {
		return nil, fmt.Errorf("load raffle: %w", err)
	}
	if raffle == nil || raffle.Deleted {
		return nil, fmt.Errorf("%w: raffle %s", models.ErrNotFound, raffleID)
	}

	now := s.now()
	if !raffle.DrawDateTime.After(now) {
		return nil, fmt.Errorf("%w: raffle closed", models.ErrInvalidOperation)
	}
	if buyer.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", models.ErrInvalidOperation)
	}

	method := buyer.Method
	if method == "" {
		method = mercadopago.AllowedPaymentMethod
	}
	if err := mercadopago.ValidatePaymentMethod(method); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidOperation, err)
	}
	if err := mercadopago.ValidateCPF(buyer.CPF); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidOperation, err)
	}

	// early availability check; re-verified inside the transaction
	sold, err := repository.TicketCount(s.db, raffleID)
	if err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}
	if available := raffle.MaxTickets - sold; buyer.Quantity > available {
		return nil, fmt.Errorf("%w: not enough tickets available (requested %d, available %d)",
			models.ErrInvalidOperation, buyer.Quantity, available)
	}

	totalValue := raffle.TicketPrice * int64(buyer.Quantity)
	expiresAt := now.Add(mercadopago.PixExpirationMinutes * time.Minute)

	intent, err := s.gateway.CreatePixPayment(ctx, mercadopago.PixPaymentParams{
		Amount:      totalValue,
		Description: fmt.Sprintf("Rifa %s - %d bilhete(s)", raffle.Name, buyer.Quantity),
		ExpiresAt:   expiresAt,
		PayerName:   buyer.Name,
		PayerEmail:  buyer.Email,
		PayerCPF:    buyer.CPF,
		PayerPhone:  buyer.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("create pix payment: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	customer, err := s.upsertCustomerTx(tx, buyer)
	if err != nil {
		return nil, err
	}

	numbers, err := AllocateNumbers(tx, raffleID, raffle.MaxTickets, buyer.Quantity)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		RaffleID:     raffleID,
		CustomerID:   customer.ID,
		Amount:       totalValue,
		Method:       method,
		QRCode:       intent.QRCode,
		QRCodeBase64: intent.QRCodeBase64,
		ExpiresAt:    expiresAt,
		GatewayID:    intent.GatewayID,
		Status:       models.PaymentPending,
	}
	if _, err := repository.CreatePaymentTx(tx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	for _, n := range numbers {
		if _, err := repository.CreateTicketTx(tx, raffleID, customer.ID, payment.ID, n); err != nil {
			return nil, fmt.Errorf("create ticket %d: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purchase: %w", err)
	}

	sort.Ints(numbers)
	log.WithFields(log.Fields{
		"raffle_id":  raffleID,
		"payment_id": payment.ID,
		"customer":   customer.ID,
		"quantity":   buyer.Quantity,
		"total":      totalValue,
	}).Info("quick purchase completed")

	// the purchase already succeeded; a failed notification never undoes it
	if err := s.notifier.PurchaseCreated(ctx, notify.PurchaseData{
		RaffleName:    raffle.Name,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		PaymentID:     payment.ID,
		TicketNumbers: numbers,
		Amount:        totalValue,
		QRCode:        intent.QRCode,
	}); err != nil {
		log.WithError(err).WithField("payment_id", payment.ID).Error("purchase notification failed")
	}

	return &Result{
		Customer:      customer,
		Payment:       payment,
		TicketNumbers: numbers,
		TotalValue:    totalValue,
	}, nil
}

// upsertCustomerTx finds the buyer by the configured match fields, creating
// a new customer when nothing matches and refreshing name/CPF when they
// changed.
func (s *Service) upsertCustomerTx(tx *sql.Tx, buyer BuyerInfo) (*models.Customer, error) {
	customer, err := repository.CustomerByMatchTx(tx, s.matchFields, buyer.Email, buyer.Phone, buyer.CPF)
	if err != nil {
		return nil, fmt.Errorf("lookup customer: %w", err)
	}

	if customer == nil {
		id, err := repository.CreateCustomerTx(tx, buyer.Name, buyer.Email, buyer.Phone, buyer.CPF)
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		return &models.Customer{
			ID:    id,
			Name:  buyer.Name,
			Email: buyer.Email,
			Phone: buyer.Phone,
			CPF:   buyer.CPF,
		}, nil
	}

	if (buyer.Name != "" && buyer.Name != customer.Name) || (buyer.CPF != "" && buyer.CPF != customer.CPF) {
		name, cpf := customer.Name, customer.CPF
		if buyer.Name != "" {
			name = buyer.Name
		}
		if buyer.CPF != "" {
			cpf = buyer.CPF
		}
		if err := repository.UpdateCustomerTx(tx, customer.ID, name, cpf); err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
		customer.Name, customer.CPF = name, cpf
	}
	return customer, nil
}
