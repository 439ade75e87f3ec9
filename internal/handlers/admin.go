package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"rifa/api/internal/auth"
	"rifa/api/internal/middleware"
	"rifa/api/internal/models"
	"rifa/api/internal/repository"
)

// Login handles POST /admin/login and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "corpo inválido")
		return
	}

	admin, err := repository.AdminByEmail(h.db, req.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if admin == nil || !auth.CheckPassword(admin.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "credenciais inválidas")
		return
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret, admin.ID, 24*time.Hour)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "erro ao gerar token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateRaffle handles POST /admin/raffles.
func (h *Handler) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string    `json:"name"`
		TicketPrice  int64     `json:"ticket_price"` // centavos
		PrizeValue   int64     `json:"prize_value"`  // centavos
		MinTickets   int       `json:"min_tickets"`
		MaxTickets   int       `json:"max_tickets"`
		StartDate    time.Time `json:"start_date"`
		EndDate      time.Time `json:"end_date"`
		DrawDateTime time.Time `json:"draw_date_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "corpo inválido")
		return
	}

	switch {
	case req.Name == "":
		respondError(w, http.StatusBadRequest, "nome é obrigatório")
		return
	case req.TicketPrice <= 0:
		respondError(w, http.StatusBadRequest, "preço do bilhete deve ser maior que zero")
		return
	case req.MaxTickets < 1:
		respondError(w, http.StatusBadRequest, "max_tickets deve ser pelo menos 1")
		return
	case req.MaxTickets < req.MinTickets:
		respondError(w, http.StatusBadRequest, "max_tickets deve ser maior ou igual a min_tickets")
		return
	case req.DrawDateTime.Before(req.EndDate):
		respondError(w, http.StatusBadRequest, "sorteio deve ser após o fim das vendas")
		return
	}

	raffle := &models.Raffle{
		Name:         req.Name,
		TicketPrice:  req.TicketPrice,
		PrizeValue:   req.PrizeValue,
		MinTickets:   req.MinTickets,
		MaxTickets:   req.MaxTickets,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		DrawDateTime: req.DrawDateTime,
	}
	id, err := repository.CreateRaffle(h.db, raffle)
	if err != nil {
		log.WithError(err).Error("create raffle failed")
		respondError(w, http.StatusInternalServerError, "erro ao criar rifa")
		return
	}
	log.WithFields(log.Fields{"raffle_id": id, "admin_id": middleware.AdminID(r.Context())}).Info("raffle created")
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteRaffle handles DELETE /admin/raffles/{id} (soft delete).
func (h *Handler) DeleteRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "id")
	raffle, err := repository.RaffleByID(h.db, raffleID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if raffle == nil {
		respondError(w, http.StatusNotFound, "rifa não encontrada")
		return
	}
	if err := repository.SoftDeleteRaffle(h.db, raffleID); err != nil {
		respondError(w, http.StatusInternalServerError, "erro ao remover rifa")
		return
	}
	log.WithFields(log.Fields{"raffle_id": raffleID, "admin_id": middleware.AdminID(r.Context())}).Info("raffle soft-deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ExecuteDraw handles POST /admin/raffles/{id}/draw.
func (h *Handler) ExecuteDraw(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "id")
	result, err := h.draws.Execute(r.Context(), raffleID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	log.WithFields(log.Fields{"raffle_id": raffleID, "admin_id": middleware.AdminID(r.Context())}).Info("draw executed by admin")
	respondJSON(w, http.StatusOK, result)
}

// CancelDraw handles POST /admin/raffles/{id}/draw/cancel.
func (h *Handler) CancelDraw(w http.ResponseWriter, r *http.Request) {
	if err := h.draws.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ScheduleDraw handles POST /admin/raffles/{id}/draw/schedule.
func (h *Handler) ScheduleDraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrawDateTime time.Time `json:"draw_date_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	if err := h.draws.Schedule(r.Context(), chi.URLParam(r, "id"), req.DrawDateTime); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})
}

// DrawPreview handles GET /admin/raffles/{id}/draw/preview.
func (h *Handler) DrawPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.draws.GetPreview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}
