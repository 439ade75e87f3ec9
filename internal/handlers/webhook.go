package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"rifa/api/internal/mercadopago"
	"rifa/api/internal/repository"
)

// webhookBody is the JSON Mercado Pago posts on payment events. data.id can
// arrive as a string or a number.
type webhookBody struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func (b *webhookBody) dataID() string {
	var s string
	if err := json.Unmarshal(b.Data.ID, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(b.Data.ID, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// HandleMercadoPagoWebhook handles POST /webhooks/mercadopago.
// Signature validation is the only failure the provider ever sees (401);
// every post-validation processing error is absorbed and answered 200 so
// the provider does not retry on our internal problems.
func (h *Handler) HandleMercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		respondError(w, http.StatusBadRequest, "erro ao ler corpo")
		return
	}

	var event webhookBody
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(w, http.StatusBadRequest, "corpo inválido")
		return
	}

	dataID := event.dataID()
	requestID := r.Header.Get("x-request-id")

	if err := mercadopago.ValidateSignature(r.Header.Get("x-signature"), requestID, dataID, []byte(h.cfg.MPWebhookSecret)); err != nil {
		log.WithError(err).WithField("request_id", requestID).Warn("webhook signature rejected")
		respondError(w, http.StatusUnauthorized, "assinatura inválida")
		return
	}

	logCtx := log.WithFields(log.Fields{
		"request_id": requestID,
		"data_id":    dataID,
		"type":       event.Type,
		"action":     event.Action,
	})

	if event.Type != "payment" || dataID == "" {
		logCtx.Info("webhook event ignored")
		respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	if repository.WebhookEventExists(h.db, requestID, dataID) {
		logCtx.Info("webhook event already received, ignoring")
		respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	if err := repository.InsertWebhookEvent(h.db, requestID, dataID, event.Type); err != nil {
		logCtx.WithError(err).Error("failed to record webhook event")
	}

	if err := h.reconciler.ReconcileGatewayID(r.Context(), dataID); err != nil {
		// absorbed: the provider must not retry because reconciliation
		// logged an error
		logCtx.WithError(err).Error("webhook reconciliation failed")
	} else if err := repository.MarkWebhookEventProcessed(h.db, requestID, dataID); err != nil {
		logCtx.WithError(err).Error("failed to mark webhook event processed")
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
