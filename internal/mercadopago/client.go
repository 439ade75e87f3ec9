package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks to the Mercado Pago REST API for PIX payments.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// mpExpirationFormat is the timestamp layout Mercado Pago expects on
// date_of_expiration (RFC3339 with milliseconds and numeric offset).
const mpExpirationFormat = "2006-01-02T15:04:05.000-07:00"

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost {
		req.Header.Set("X-Idempotency-Key", uuid.New().String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 {
		msg, _ := result["message"].(string)
		return nil, fmt.Errorf("mercadopago status %d: %s", resp.StatusCode, msg)
	}
	return result, nil
}

// PixPaymentParams holds everything needed to open a PIX charge.
type PixPaymentParams struct {
	Amount      int64 // centavos
	Description string
	ExpiresAt   time.Time
	PayerName   string
	PayerEmail  string
	PayerCPF    string
	PayerPhone  string // raw, split heuristically before sending
}

// PixPaymentResult is the payment intent returned by the gateway.
type PixPaymentResult struct {
	GatewayID    string    `json:"gateway_id"`
	Status       string    `json:"status"`
	QRCode       string    `json:"qr_code"`
	QRCodeBase64 string    `json:"qr_code_base64"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CreatePixPayment opens a PIX charge at Mercado Pago and returns the QR
// payload the customer pays with.
func (c *Client) CreatePixPayment(ctx context.Context, params PixPaymentParams) (*PixPaymentResult, error) {
	first, last := splitName(params.PayerName)

	payer := map[string]interface{}{
		"email":      params.PayerEmail,
		"first_name": first,
		"last_name":  last,
		"identification": map[string]interface{}{
			"type":   AllowedDocumentType,
			"number": sanitizeDocument(params.PayerCPF),
		},
	}
	if phone := SplitPhone(params.PayerPhone); phone != nil {
		payer["phone"] = map[string]interface{}{
			"area_code": phone.AreaCode,
			"number":    phone.Number,
		}
	}

	body := map[string]interface{}{
		"transaction_amount": float64(params.Amount) / 100,
		"description":        params.Description,
		"payment_method_id":  AllowedPaymentMethod,
		"date_of_expiration": params.ExpiresAt.Format(mpExpirationFormat),
		"payer":              payer,
	}

	result, err := c.doRequest(ctx, http.MethodPost, "/v1/payments", body)
	if err != nil {
		return nil, fmt.Errorf("create pix payment: %w", err)
	}

	id, err := extractID(result)
	if err != nil {
		return nil, err
	}
	status, _ := result["status"].(string)

	var qrCode, qrCodeBase64 string
	if poi, ok := result["point_of_interaction"].(map[string]interface{}); ok {
		if td, ok := poi["transaction_data"].(map[string]interface{}); ok {
			qrCode, _ = td["qr_code"].(string)
			qrCodeBase64, _ = td["qr_code_base64"].(string)
		}
	}

	return &PixPaymentResult{
		GatewayID:    id,
		Status:       status,
		QRCode:       qrCode,
		QRCodeBase64: qrCodeBase64,
		ExpiresAt:    params.ExpiresAt,
	}, nil
}

// GetPaymentStatus returns the gateway's raw status string for a payment.
// Errors are retryable: the caller must leave internal state unchanged and
// try again on the next reconciliation pass.
func (c *Client) GetPaymentStatus(ctx context.Context, gatewayID string) (string, error) {
	result, err := c.doRequest(ctx, http.MethodGet, "/v1/payments/"+gatewayID, nil)
	if err != nil {
		return "", fmt.Errorf("get payment status: %w", err)
	}
	status, _ := result["status"].(string)
	if status == "" {
		return "", fmt.Errorf("no status in response for payment %s", gatewayID)
	}
	return status, nil
}

// extractID normalizes the numeric payment id Mercado Pago returns.
func extractID(result map[string]interface{}) (string, error) {
	switch v := result["id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	case json.Number:
		return v.String(), nil
	}
	return "", fmt.Errorf("no payment id in response")
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
