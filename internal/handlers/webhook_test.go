package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"rifa/api/internal/config"
	"rifa/api/internal/db"
	"rifa/api/internal/models"
	"rifa/api/internal/notify"
	"rifa/api/internal/reconcile"
	"rifa/api/internal/repository"
)

const webhookSecret = "test-webhook-secret"

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

type fakeChecker struct {
	status string
	calls  int
}

func (f *fakeChecker) GetPaymentStatus(ctx context.Context, gatewayID string) (string, error) {
	f.calls++
	return f.status, nil
}

type silentNotifier struct{}

func (silentNotifier) PurchaseCreated(context.Context, notify.PurchaseData) error { return nil }
func (silentNotifier) PaymentConfirmed(context.Context, notify.PaymentData) error { return nil }
func (silentNotifier) PaymentExpired(context.Context, notify.PaymentData) error   { return nil }
func (silentNotifier) DrawReminder(context.Context, notify.DrawData) error        { return nil }
func (silentNotifier) DrawResult(context.Context, notify.DrawData) error          { return nil }
func (silentNotifier) WinnerNotification(context.Context, notify.DrawData) error  { return nil }

func newWebhookHandler(t *testing.T, database *sql.DB, checker *fakeChecker) *Handler {
	t.Helper()
	cfg := &config.Config{MPWebhookSecret: webhookSecret}
	reconciler := reconcile.New(database, checker, silentNotifier{}, time.Minute)
	return New(database, cfg, nil, nil, reconciler)
}

// seedPendingPayment creates a raffle, a customer and one pending payment
// with tickets, returning the payment.
func seedPendingPayment(t *testing.T, database *sql.DB, gatewayID string) *models.Payment {
	t.Helper()
	raffleID, err := repository.CreateRaffle(database, &models.Raffle{
		Name:         "Rifa de Teste",
		TicketPrice:  500,
		PrizeValue:   100000,
		MinTickets:   1,
		MaxTickets:   100,
		StartDate:    time.Now().Add(-time.Hour),
		EndDate:      time.Now().Add(48 * time.Hour),
		DrawDateTime: time.Now().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed raffle: %v", err)
	}

	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	customerID, err := repository.CreateCustomerTx(tx, "Maria", "maria@example.com", "11987654321", "12345678900")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	payment := &models.Payment{
		RaffleID:   raffleID,
		CustomerID: customerID,
		Amount:     1000,
		Method:     "pix",
		ExpiresAt:  time.Now().Add(30 * time.Minute),
		GatewayID:  gatewayID,
		Status:     models.PaymentPending,
	}
	if _, err := repository.CreatePaymentTx(tx, payment); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	for _, n := range []int{11, 22} {
		if _, err := repository.CreateTicketTx(tx, raffleID, customerID, payment.ID, n); err != nil {
			t.Fatalf("create ticket %d: %v", n, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return payment
}

func signWebhook(secret, dataID, requestID, ts string) string {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, h *Handler, body, dataID, requestID, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mercadopago", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-request-id", requestID)
	req.Header.Set("x-signature", signature)
	w := httptest.NewRecorder()
	h.HandleMercadoPagoWebhook(w, req)
	return w
}

func TestWebhookConfirmsPayment(t *testing.T) {
	database := newTestDB(t)
	payment := seedPendingPayment(t, database, "123456")
	checker := &fakeChecker{status: "approved"}
	h := newWebhookHandler(t, database, checker)

	body := `{"type":"payment","action":"payment.updated","data":{"id":123456}}`
	ts := "1704908010"
	signature := fmt.Sprintf("ts=%s,v1=%s", ts, signWebhook(webhookSecret, "123456", "req-1", ts))

	w := postWebhook(t, h, body, "123456", "req-1", signature)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	reloaded, err := repository.PaymentByID(database, payment.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("load payment: %v", err)
	}
	if reloaded.Status != models.PaymentConfirmed {
		t.Errorf("payment status = %v, want confirmed", reloaded.Status)
	}
	tickets, _ := repository.TicketsByPayment(database, payment.ID)
	for _, tk := range tickets {
		if !tk.Valid {
			t.Errorf("ticket %d not validated", tk.Number)
		}
	}
	if !repository.WebhookEventExists(database, "req-1", "123456") {
		t.Error("webhook event not recorded")
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	database := newTestDB(t)
	payment := seedPendingPayment(t, database, "123456")
	checker := &fakeChecker{status: "approved"}
	h := newWebhookHandler(t, database, checker)

	body := `{"type":"payment","action":"payment.updated","data":{"id":123456}}`
	ts := "1704908010"
	tampered := fmt.Sprintf("ts=%s,v1=%s", ts, signWebhook("wrong-secret", "123456", "req-1", ts))

	w := postWebhook(t, h, body, "123456", "req-1", tampered)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if checker.calls != 0 {
		t.Errorf("gateway called %d times on a rejected signature", checker.calls)
	}
	reloaded, _ := repository.PaymentByID(database, payment.ID)
	if reloaded.Status != models.PaymentPending {
		t.Errorf("payment status = %v, want pending", reloaded.Status)
	}
	if repository.WebhookEventExists(database, "req-1", "123456") {
		t.Error("event recorded for a rejected signature")
	}
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	database := newTestDB(t)
	seedPendingPayment(t, database, "123456")
	checker := &fakeChecker{status: "approved"}
	h := newWebhookHandler(t, database, checker)

	body := `{"type":"payment","action":"payment.updated","data":{"id":"123456"}}`
	ts := "1704908010"
	signature := fmt.Sprintf("ts=%s,v1=%s", ts, signWebhook(webhookSecret, "123456", "req-1", ts))

	for i := 0; i < 2; i++ {
		if w := postWebhook(t, h, body, "123456", "req-1", signature); w.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i, w.Code)
		}
	}
	if checker.calls != 1 {
		t.Errorf("gateway called %d times, want 1 (duplicate must be dropped)", checker.calls)
	}
}

func TestWebhookIgnoresNonPaymentEvents(t *testing.T) {
	database := newTestDB(t)
	checker := &fakeChecker{status: "approved"}
	h := newWebhookHandler(t, database, checker)

	body := `{"type":"plan","action":"updated","data":{"id":"99"}}`
	ts := "1704908010"
	signature := fmt.Sprintf("ts=%s,v1=%s", ts, signWebhook(webhookSecret, "99", "req-2", ts))

	w := postWebhook(t, h, body, "99", "req-2", signature)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if checker.calls != 0 {
		t.Errorf("gateway called %d times for a non-payment event", checker.calls)
	}
	if repository.WebhookEventExists(database, "req-2", "99") {
		t.Error("non-payment event recorded")
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	database := newTestDB(t)
	h := newWebhookHandler(t, database, &fakeChecker{})

	w := postWebhook(t, h, "{not json", "", "req-3", "ts=1,v1=00")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetPaymentStatusLazyExpiration(t *testing.T) {
	database := newTestDB(t)
	payment := seedPendingPayment(t, database, "123456")

	// the payment outlived the polling window without being reconciled
	aged := time.Now().Add(-20 * time.Minute).UTC().Format(time.RFC3339)
	if _, err := database.Exec(`UPDATE payments SET expires_at = ? WHERE id = ?`, aged, payment.ID); err != nil {
		t.Fatalf("age payment: %v", err)
	}

	checker := &fakeChecker{status: "approved"}
	h := newWebhookHandler(t, database, checker)

	if err := h.reconciler.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if checker.calls != 0 {
		t.Fatalf("gateway called %d times, payment should be outside the sweep window", checker.calls)
	}

	router := chi.NewRouter()
	router.Get("/payments/{id}", h.GetPaymentStatus)
	req := httptest.NewRequest(http.MethodGet, "/payments/"+payment.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"expired"`) {
		t.Errorf("body = %s, want expired status", w.Body.String())
	}
	reloaded, _ := repository.PaymentByID(database, payment.ID)
	if reloaded.Status != models.PaymentExpired {
		t.Errorf("stored status = %v, want expired", reloaded.Status)
	}
}

func TestGetPaymentStatus(t *testing.T) {
	database := newTestDB(t)
	payment := seedPendingPayment(t, database, "123456")
	h := newWebhookHandler(t, database, &fakeChecker{})

	router := chi.NewRouter()
	router.Get("/payments/{id}", h.GetPaymentStatus)

	req := httptest.NewRequest(http.MethodGet, "/payments/"+payment.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"pending"`) {
		t.Errorf("body = %s, want pending status", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/payments/nope", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
