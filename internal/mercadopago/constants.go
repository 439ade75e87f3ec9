package mercadopago

import (
	"fmt"
	"regexp"
)

const (
	// AllowedPaymentMethod is the only payment method the platform takes.
	AllowedPaymentMethod = "pix"

	// PixExpirationMinutes is how long a PIX charge stays payable.
	PixExpirationMinutes = 30

	// AllowedDocumentType is the payer document type sent to the gateway.
	AllowedDocumentType = "CPF"
)

var nonDigits = regexp.MustCompile(`[^\d]`)

// ValidatePaymentMethod rejects any method other than PIX.
func ValidatePaymentMethod(method string) error {
	if method == "" {
		return fmt.Errorf("método de pagamento não pode estar vazio")
	}
	if method != AllowedPaymentMethod {
		return fmt.Errorf("método de pagamento inválido: apenas '%s' é permitido, recebido '%s'", AllowedPaymentMethod, method)
	}
	return nil
}

// sanitizeDocument strips every non digit from a CPF.
func sanitizeDocument(doc string) string {
	return nonDigits.ReplaceAllString(doc, "")
}

// ValidateCPF checks a buyer document after sanitizing it.
func ValidateCPF(doc string) error {
	if n := len(sanitizeDocument(doc)); n != 11 {
		return fmt.Errorf("CPF inválido: deve conter 11 dígitos (recebido %d)", n)
	}
	return nil
}
