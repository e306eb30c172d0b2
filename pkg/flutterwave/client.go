package flutterwave

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tobiafolabi/nairamart-backend/pkg/config"
	pkgerrors "github.com/tobiafolabi/nairamart-backend/pkg/errors"
	"github.com/tobiafolabi/nairamart-backend/pkg/logger"
)

const (
	defaultBaseURL = "https://api.flutterwave.com"
	defaultTimeout = 10 * time.Second

	// SignatureHeader carries the merchant's configured secret hash verbatim.
	SignatureHeader = "verif-hash"
)

var (
	errSecretKeyRequired  = errors.New("flutterwave secret key is required")
	errSecretHashRequired = errors.New("flutterwave secret hash is required")
	errLoggerRequired     = errors.New("flutterwave logger is required")

	koboPerNaira = decimal.NewFromInt(100)
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to Flutterwave's v3 REST API with centralized auth, logging, and error mapping.
type Client struct {
	http       httpDoer
	baseURL    string
	secretKey  string
	secretHash string
	logger     *logger.Logger
}

// NewClient validates credentials and builds the Flutterwave wrapper.
func NewClient(ctx context.Context, cfg config.FlutterwaveConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}
	secretHash := strings.TrimSpace(cfg.SecretHash)
	if secretHash == "" {
		return nil, errSecretHashRequired
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
		http:       &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		secretKey:  secretKey,
		secretHash: secretHash,
		logger:     logg,
	}

	logg.Info(ctx, "flutterwave client initialized")
	return c, nil
}

// Transaction is the subset of Flutterwave's verify payload the settlement core
// reads. Flutterwave reports amounts in naira; AmountKobo converts at 100:1.
type Transaction struct {
	ID       int64           `json:"id"`
	TxRef    string          `json:"tx_ref"`
	FlwRef   string          `json:"flw_ref"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Channel  string          `json:"payment_type"`
	Customer Customer        `json:"customer"`
	Meta     json.RawMessage `json:"meta"`
}

// Customer is the payer identity attached to a transaction.
type Customer struct {
	Email string `json:"email"`
}

// AmountKobo converts the naira amount to kobo, truncating sub-kobo dust.
func (t Transaction) AmountKobo() int64 {
	return t.Amount.Mul(koboPerNaira).IntPart()
}

type verifyResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

// WebhookEvent is the envelope Flutterwave posts to the webhook endpoint.
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// VerifyTransactionByReference calls GET /v3/transactions/verify_by_reference
// and returns the gateway's view of the charge. Webhook bodies are untrusted;
// this call is the source of truth for money fields.
func (c *Client) VerifyTransactionByReference(ctx context.Context, txRef string) (*Transaction, error) {
	txRef = strings.TrimSpace(txRef)
	if txRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}

	endpoint := fmt.Sprintf("%s/v3/transactions/verify_by_reference?tx_ref=%s", c.baseURL, url.QueryEscape(txRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building flutterwave verify request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	c.log(ctx, "request", "verify_transaction", map[string]any{"tx_ref": txRef})

	resp, err := c.http.Do(req)
	if err != nil {
		c.log(ctx, "error", "verify_transaction", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flutterwave verify failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading flutterwave response")
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding flutterwave response")
	}
	if !strings.EqualFold(parsed.Status, "success") {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("flutterwave verify rejected: %s", parsed.Message))
	}

	c.log(ctx, "response", "verify_transaction", map[string]any{
		"tx_ref":      parsed.Data.TxRef,
		"status":      parsed.Data.Status,
		"amount_kobo": parsed.Data.AmountKobo(),
		"currency":    parsed.Data.Currency,
	})
	return &parsed.Data, nil
}

// ValidateSignature checks the verif-hash header against the configured secret
// hash. Flutterwave sends the raw hash, not an HMAC of the body.
func (c *Client) ValidateSignature(signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.secretHash), []byte(signature)) == 1
}

// ParseWebhookEvent decodes the webhook envelope after the signature is validated.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding flutterwave webhook payload")
	}
	if strings.TrimSpace(event.Event) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flutterwave webhook event type missing")
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
		c.logger.Error(ctx, fmt.Sprintf("flutterwave %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("flutterwave %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "token", "email", "phone", "authorization", "hash"} {
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
		return "unexpected flutterwave response"
	}
	return payload.Message
}

func mapStatusError(status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, fmt.Sprintf("flutterwave auth failed: %s", message))
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("flutterwave transaction not found: %s", message))
	case http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.CodeRateLimit, fmt.Sprintf("flutterwave rate limited: %s", message))
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("flutterwave rejected request: %s", message))
		}
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("flutterwave unavailable: %s", message))
	}
}
