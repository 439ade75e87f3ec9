package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ValidateSignature checks the x-signature header of a Mercado Pago
// webhook. The header carries "ts={ts},v1={hex}" and the signed manifest is
// "id:{dataID};request-id:{requestID};ts:{ts};" keyed by the shared webhook
// secret. Comparison is constant time.
func ValidateSignature(xSignature, xRequestID, dataID string, secret []byte) error {
	if xSignature == "" {
		return fmt.Errorf("missing x-signature header")
	}

	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	if ts == "" || v1 == "" {
		return fmt.Errorf("malformed x-signature header")
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, xRequestID, ts)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(manifest))

	provided, err := hex.DecodeString(v1)
	if err != nil {
		return fmt.Errorf("signature is not hex")
	}
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
