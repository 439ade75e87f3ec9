package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"rifa/api/internal/db"
	"rifa/api/internal/mercadopago"
	"rifa/api/internal/models"
	"rifa/api/internal/notify"
	"rifa/api/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "rifa.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func seedRaffle(t *testing.T, database *sql.DB, price int64, maxTickets int, drawAt time.Time) string {
	t.Helper()
	id, err := repository.CreateRaffle(database, &models.Raffle{
		Name:         "Rifa de Teste",
		TicketPrice:  price,
		PrizeValue:   100000,
		MinTickets:   1,
		MaxTickets:   maxTickets,
		StartDate:    time.Now().Add(-time.Hour),
		EndDate:      drawAt,
		DrawDateTime: drawAt,
	})
	if err != nil {
		t.Fatalf("seed raffle: %v", err)
	}
	return id
}

func countRows(t *testing.T, database *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := database.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

type fakeGateway struct {
	err   error
	calls int
}

func (f *fakeGateway) CreatePixPayment(ctx context.Context, params mercadopago.PixPaymentParams) (*mercadopago.PixPaymentResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &mercadopago.PixPaymentResult{
		GatewayID:    fmt.Sprintf("mp-%d", f.calls),
		Status:       "pending",
		QRCode:       "00020126pix-copia-e-cola",
		QRCodeBase64: "cXItY29kZQ==",
		ExpiresAt:    params.ExpiresAt,
	}, nil
}

type recordingNotifier struct {
	notify.Notifier
	purchases []notify.PurchaseData
}

func (r *recordingNotifier) PurchaseCreated(ctx context.Context, d notify.PurchaseData) error {
	r.purchases = append(r.purchases, d)
	return nil
}

func TestQuickPurchase(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 750, 100, time.Now().Add(48*time.Hour))
	gateway := &fakeGateway{}
	notifier := &recordingNotifier{}
	svc := NewService(database, gateway, notifier, []string{"email", "phone", "cpf"})

	result, err := svc.QuickPurchase(context.Background(), raffleID, BuyerInfo{
		Name:     "Maria Silva",
		Email:    "maria@example.com",
		Phone:    "11987654321",
		CPF:      "12345678900",
		Quantity: 4,
	})
	if err != nil {
		t.Fatalf("QuickPurchase() error = %v", err)
	}

	if result.TotalValue != 3000 {
		t.Errorf("TotalValue = %d, want 3000", result.TotalValue)
	}
	if len(result.TicketNumbers) != 4 {
		t.Fatalf("len(TicketNumbers) = %d, want 4", len(result.TicketNumbers))
	}
	seen := make(map[int]bool)
	for _, n := range result.TicketNumbers {
		if n < 1 || n > 100 {
			t.Errorf("ticket number %d out of range [1, 100]", n)
		}
		if seen[n] {
			t.Errorf("duplicated ticket number %d", n)
		}
		seen[n] = true
	}

	payment, err := repository.PaymentByID(database, result.Payment.ID)
	if err != nil || payment == nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != models.PaymentPending {
		t.Errorf("payment status = %v, want pending", payment.Status)
	}
	if payment.Amount != 3000 {
		t.Errorf("payment amount = %d, want 3000", payment.Amount)
	}
	if payment.GatewayID == "" {
		t.Error("payment has no gateway id")
	}

	tickets, err := repository.TicketsByPayment(database, payment.ID)
	if err != nil {
		t.Fatalf("load tickets: %v", err)
	}
	if len(tickets) != 4 {
		t.Errorf("len(tickets) = %d, want 4", len(tickets))
	}
	for _, tk := range tickets {
		if tk.Valid {
			t.Errorf("ticket %d already valid before payment confirmation", tk.Number)
		}
	}

	if len(notifier.purchases) != 1 {
		t.Errorf("purchase notifications = %d, want 1", len(notifier.purchases))
	}
}

func TestQuickPurchaseOversell(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 5, time.Now().Add(48*time.Hour))
	gateway := &fakeGateway{}
	svc := NewService(database, gateway, &recordingNotifier{}, []string{"email"})

	buyer := BuyerInfo{Name: "João", Email: "joao@example.com", CPF: "98765432100", Quantity: 3}
	if _, err := svc.QuickPurchase(context.Background(), raffleID, buyer); err != nil {
		t.Fatalf("first purchase: %v", err)
	}

	buyer.Quantity = 3
	_, err := svc.QuickPurchase(context.Background(), raffleID, buyer)
	if !errors.Is(err, models.ErrInvalidOperation) {
		t.Fatalf("oversell error = %v, want ErrInvalidOperation", err)
	}

	// the failed purchase must leave nothing behind
	if got := countRows(t, database, "tickets"); got != 3 {
		t.Errorf("tickets = %d, want 3", got)
	}
	if got := countRows(t, database, "payments"); got != 1 {
		t.Errorf("payments = %d, want 1", got)
	}
}

func TestQuickPurchaseGatewayFailure(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 50, time.Now().Add(48*time.Hour))
	gateway := &fakeGateway{err: errors.New("gateway indisponível")}
	svc := NewService(database, gateway, &recordingNotifier{}, []string{"email"})

	_, err := svc.QuickPurchase(context.Background(), raffleID, BuyerInfo{
		Name: "Ana", Email: "ana@example.com", CPF: "11122233344", Quantity: 2,
	})
	if err == nil {
		t.Fatal("QuickPurchase() succeeded with failing gateway")
	}

	for _, table := range []string{"customers", "payments", "tickets"} {
		if got := countRows(t, database, table); got != 0 {
			t.Errorf("%s = %d, want 0", table, got)
		}
	}
}

func TestQuickPurchaseCustomerDedup(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 50, time.Now().Add(48*time.Hour))
	svc := NewService(database, &fakeGateway{}, &recordingNotifier{}, []string{"email", "phone", "cpf"})

	first, err := svc.QuickPurchase(context.Background(), raffleID, BuyerInfo{
		Name: "Maria", Email: "maria@example.com", Phone: "11987654321", CPF: "12345678900", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}

	// same email, updated display name
	second, err := svc.QuickPurchase(context.Background(), raffleID, BuyerInfo{
		Name: "Maria Silva", Email: "maria@example.com", CPF: "12345678900", Quantity: 2,
	})
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}

	if first.Customer.ID != second.Customer.ID {
		t.Errorf("customer ids differ: %s vs %s", first.Customer.ID, second.Customer.ID)
	}
	if got := countRows(t, database, "customers"); got != 1 {
		t.Errorf("customers = %d, want 1", got)
	}

	customer, err := repository.CustomerByID(database, first.Customer.ID)
	if err != nil || customer == nil {
		t.Fatalf("load customer: %v", err)
	}
	if customer.Name != "Maria Silva" {
		t.Errorf("customer name = %q, want %q", customer.Name, "Maria Silva")
	}

	numbers, err := repository.CustomerNumbers(database, raffleID, customer.ID)
	if err != nil {
		t.Fatalf("customer numbers: %v", err)
	}
	if len(numbers) != 3 {
		t.Errorf("customer holds %d numbers, want 3", len(numbers))
	}
}

func TestQuickPurchaseClosedRaffle(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 50, time.Now().Add(-time.Hour))
	gateway := &fakeGateway{}
	svc := NewService(database, gateway, &recordingNotifier{}, []string{"email"})

	_, err := svc.QuickPurchase(context.Background(), raffleID, BuyerInfo{
		Name: "Ana", Email: "ana@example.com", Quantity: 1,
	})
	if !errors.Is(err, models.ErrInvalidOperation) {
		t.Fatalf("error = %v, want ErrInvalidOperation", err)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway called %d times for a closed raffle", gateway.calls)
	}
}

func TestQuickPurchaseDeletedRaffle(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 50, time.Now().Add(48*time.Hour))
	if err := repository.SoftDeleteRaffle(database, raffleID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	svc := NewService(database, &fakeGateway{}, &recordingNotifier{}, []string{"email"})

	_, err := svc.QuickPurchase(context.Background(), raffleID, BuyerInfo{
		Name: "Ana", Email: "ana@example.com", Quantity: 1,
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestQuickPurchaseInvalidBuyer(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 50, time.Now().Add(48*time.Hour))
	gateway := &fakeGateway{}
	svc := NewService(database, gateway, &recordingNotifier{}, []string{"email"})

	tests := []struct {
		name  string
		buyer BuyerInfo
	}{
		{
			name:  "CPF curto demais",
			buyer: BuyerInfo{Name: "Ana", Email: "ana@example.com", CPF: "123", Quantity: 1},
		},
		{
			name:  "CPF vazio",
			buyer: BuyerInfo{Name: "Ana", Email: "ana@example.com", Quantity: 1},
		},
		{
			name:  "método não PIX",
			buyer: BuyerInfo{Name: "Ana", Email: "ana@example.com", CPF: "11122233344", Method: "credit_card", Quantity: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.QuickPurchase(context.Background(), raffleID, tt.buyer)
			if !errors.Is(err, models.ErrInvalidOperation) {
				t.Errorf("error = %v, want ErrInvalidOperation", err)
			}
		})
	}
	if gateway.calls != 0 {
		t.Errorf("gateway called %d times for invalid buyers", gateway.calls)
	}
}

func TestQuickPurchaseInvalidQuantity(t *testing.T) {
	database := newTestDB(t)
	raffleID := seedRaffle(t, database, 500, 50, time.Now().Add(48*time.Hour))
	gateway := &fakeGateway{}
	svc := NewService(database, gateway, &recordingNotifier{}, []string{"email"})

	for _, quantity := range []int{0, -3} {
		_, err := svc.QuickPurchase(context.Background(), raffleID, BuyerInfo{
			Name: "Ana", Email: "ana@example.com", Quantity: quantity,
		})
		if !errors.Is(err, models.ErrInvalidOperation) {
			t.Errorf("quantity %d: error = %v, want ErrInvalidOperation", quantity, err)
		}
	}
	if gateway.calls != 0 {
		t.Errorf("gateway called %d times for invalid quantities", gateway.calls)
	}
}
