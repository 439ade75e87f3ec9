package mercadopago

import (
	"strings"

	"rifa/api/internal/models"
)

// MapStatus translates a gateway status string into the internal payment
// state. Matching is case-insensitive; anything unrecognized maps to
// Pending so a new gateway status can never confirm or kill a payment.
func MapStatus(gatewayStatus string) models.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "approved", "authorized":
		return models.PaymentConfirmed
	case "in_process", "in_mediation", "pending":
		return models.PaymentPending
	case "rejected", "cancelled", "refunded", "charged_back":
		return models.PaymentExpired
	default:
		return models.PaymentPending
	}
}
