package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
)

const (
	defaultBaseURL = "https://api.paystack.co"
	defaultTimeout = 10 * time.Second

	// SignatureHeader carries the HMAC-SHA512 digest of the webhook body.
	SignatureHeader = "x-paystack-signature"
)

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	errLoggerRequired    = errors.New("paystack logger is required")
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to Paystack's REST API with centralized auth, logging, and error mapping.
type Client struct {
	http      httpDoer
	baseURL   string
	secretKey string
	logger    *logger.Logger
}

// NewClient validates credentials and builds the Paystack wrapper.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		secretKey: secretKey,
		logger:    logg,
	}

	logg.Info(ctx, "paystack client initialized")
	return c, nil
}

// Transaction is the subset of Paystack's verify payload the settlement core reads.
// Amounts are in kobo, matching the gateway's own unit.
type Transaction struct {
	ID         int64           `json:"id"`
	Status     string          `json:"status"`
	Reference  string          `json:"reference"`
	AmountKobo int64           `json:"amount"`
	Currency   string          `json:"currency"`
	Channel    string          `json:"channel"`
	GatewayRes string          `json:"gateway_response"`
	PaidAt     *time.Time      `json:"paid_at"`
	Customer   Customer        `json:"customer"`
	Metadata   json.RawMessage `json:"metadata"`
}

// Customer is the payer identity attached to a transaction.
type Customer struct {
	Email string `json:"email"`
}

type verifyResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

// WebhookEvent is the envelope Paystack posts to the webhook endpoint.
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// VerifyTransaction calls GET /transaction/verify/:reference and returns the
// gateway's view of the charge. Never trust webhook bodies for money fields;
// this call is the source of truth.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}

	endpoint := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building paystack verify request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	c.log(ctx, "request", "verify_transaction", map[string]any{"reference": reference})

	resp, err := c.http.Do(req)
	if err != nil {
		c.log(ctx, "error", "verify_transaction", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paystack verify failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading paystack response")
	}

	if resp.StatusCode != http.StatusOK {
		c.log(ctx, "error", "verify_transaction", map[string]any{
			"status_code": resp.StatusCode,
			"error":       apiMessage(body),
		})
		return nil, mapStatusError(resp.StatusCode, apiMessage(body))
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding paystack response")
	}
	if !parsed.Status {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paystack verify rejected: %s", parsed.Message))
	}

	c.log(ctx, "response", "verify_transaction", map[string]any{
		"reference":   parsed.Data.Reference,
		"status":      parsed.Data.Status,
		"amount_kobo": parsed.Data.AmountKobo,
		"currency":    parsed.Data.Currency,
	})
	return &parsed.Data, nil
}

// ValidateSignature checks the webhook body against the HMAC-SHA512 digest
// Paystack sends in the x-paystack-signature header.
func (c *Client) ValidateSignature(payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// ParseWebhookEvent decodes the webhook envelope after the signature is validated.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding paystack webhook payload")
	}
	if strings.TrimSpace(event.Event) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paystack webhook event type missing")
	}
	return &event, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paystack %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paystack %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "token", "email", "phone", "authorization"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		return "unexpected paystack response"
	}
	return payload.Message
}

func mapStatusError(status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, fmt.Sprintf("paystack auth failed: %s", message))
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("paystack transaction not found: %s", message))
	case http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.CodeRateLimit, fmt.Sprintf("paystack rate limited: %s", message))
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("paystack rejected request: %s", message))
		}
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paystack unavailable: %s", message))
	}
}
