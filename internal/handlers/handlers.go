package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rifa/api/internal/config"
	"rifa/api/internal/draw"
	"rifa/api/internal/models"
	"rifa/api/internal/purchase"
	"rifa/api/internal/reconcile"
	"rifa/api/internal/repository"
)

// Handler bundles the HTTP surface of the platform.
type Handler struct {
	db         *sql.DB
	cfg        *config.Config
	purchases  *purchase.Service
	draws      *draw.Service
	reconciler *reconcile.Reconciler
}

func New(db *sql.DB, cfg *config.Config, purchases *purchase.Service, draws *draw.Service, reconciler *reconcile.Reconciler) *Handler {
	return &Handler{db: db, cfg: cfg, purchases: purchases, draws: draws, reconciler: reconciler}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps the domain error taxonomy onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidOperation):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "erro interno")
	}
}

// CreatePurchase handles POST /raffles/{id}/purchases — the quick purchase.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "id")

	var buyer purchase.BuyerInfo
	if err := json.NewDecoder(r.Body).Decode(&buyer); err != nil {
		respondError(w, http.StatusBadRequest, "corpo inválido")
		return
	}

	result, err := h.purchases.QuickPurchase(r.Context(), raffleID, buyer)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// GetPaymentStatus handles GET /payments/{id}. Status comes from the local
// database only, never live from the gateway, so a customer polling here
// cannot see "paid" before reconciliation has validated the tickets.
// Expiration is evaluated lazily on the query, so a payment that missed the
// polling window still expires here.
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	payment, err := repository.PaymentByID(h.db, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if payment == nil {
		respondError(w, http.StatusNotFound, "pagamento não encontrado")
		return
	}

	h.reconciler.ExpireIfOverdue(r.Context(), payment)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":         payment.ID,
		"status":     payment.Status.String(),
		"paid":       payment.Confirmed(),
		"expires_at": payment.ExpiresAt,
	})
}

// ListRaffles handles GET /raffles (public catalog, no deleted raffles).
func (h *Handler) ListRaffles(w http.ResponseWriter, r *http.Request) {
	raffles, err := repository.ListRaffles(h.db, false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if raffles == nil {
		raffles = []models.Raffle{}
	}
	respondJSON(w, http.StatusOK, raffles)
}
