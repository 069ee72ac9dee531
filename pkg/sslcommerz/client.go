package sslcommerz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/studyshare/studyshare-backend/pkg/config"
	pkgerrors "github.com/studyshare/studyshare-backend/pkg/errors"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	sessionPath    = "/gwprocess/v4/api.php"
	validationPath = "/validator/api/validationserverAPI.php"

	// SessionStatusSuccess is the gateway's accept marker for a new session.
	SessionStatusSuccess = "SUCCESS"
)

var (
	errStoreIDRequired  = errors.New("sslcommerz store id is required")
	errPasswordRequired = errors.New("sslcommerz store password is required")
	errLoggerRequired   = errors.New("sslcommerz logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://sandbox.sslcommerz.com",
	productionEnv: "https://securepay.sslcommerz.com",
}

// PaymentData carries everything the gateway needs to open a checkout session.
type PaymentData struct {
	TransactionID   string
	Amount          decimal.Decimal
	Currency        string
	SuccessURL      string
	FailURL         string
	CancelURL       string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ProductName     string
	ProductCategory string
}

// SessionResponse is the gateway's reply to a session create request.
type SessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// ValidationResponse is the gateway's reply to a transaction validation probe.
type ValidationResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"tran_id"`
	ValidationID  string `json:"val_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CardType      string `json:"card_type"`
	BankTranID    string `json:"bank_tran_id"`
}

// IsValid reports whether the gateway confirmed the transaction. Both VALID
// and VALIDATED mean the money moved.
func (v *ValidationResponse) IsValid() bool {
	switch v.Status {
	case "VALID", "VALIDATED":
		return true
	default:
		return false
	}
}

// Gateway is the payment surface enrollment flows depend on.
type Gateway interface {
	CreateSession(ctx context.Context, data PaymentData) (*SessionResponse, error)
	ValidateTransaction(ctx context.Context, validationID string) (*ValidationResponse, error)
}

// Client talks to SSLCommerz over its form-encoded HTTP API with centralized
// credentials, logging, and error mapping.
type Client struct {
	http          *resty.Client
	storeID       string
	storePassword string
	environment   string
	logger        *logger.Logger
}

// NewClient initializes the SSLCommerz wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SSLCommerzConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	storeID := strings.TrimSpace(cfg.StoreID)
	if storeID == "" {
		return nil, errStoreIDRequired
	}
	storePassword := strings.TrimSpace(cfg.StorePassword)
	if storePassword == "" {
		return nil, errPasswordRequired
	}

	env := productionEnv
	if cfg.Sandbox {
		env = sandboxEnv
	}

	httpClient := resty.New().
		SetBaseURL(baseURLs[env]).
		SetTimeout(cfg.RequestTimeout)

	c := &Client{
		http:          httpClient,
		storeID:       storeID,
		storePassword: storePassword,
		environment:   env,
		logger:        logg,
	}

	logg.Info(ctx, fmt.Sprintf("sslcommerz client initialized (%s)", env))
	return c, nil
}

// Environment reports the normalized gateway environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// IsSandbox reports whether the client targets the sandbox gateway.
func (c *Client) IsSandbox() bool {
	return c != nil && c.environment == sandboxEnv
}

// CreateSession opens a hosted checkout session for the transaction. A
// transport failure maps to a dependency error; a gateway-side rejection comes
// back as a gateway error carrying the failure reason.
func (c *Client) CreateSession(ctx context.Context, data PaymentData) (*SessionResponse, error) {
	if data.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if data.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	form := map[string]string{
		"store_id":         c.storeID,
		"store_passwd":     c.storePassword,
		"total_amount":     data.Amount.StringFixed(2),
		"currency":         data.Currency,
		"tran_id":          data.TransactionID,
		"success_url":      data.SuccessURL,
		"fail_url":         data.FailURL,
		"cancel_url":       data.CancelURL,
		"cus_name":         data.CustomerName,
		"cus_email":        data.CustomerEmail,
		"cus_phone":        data.CustomerPhone,
		"product_name":     data.ProductName,
		"product_category": data.ProductCategory,
		"product_profile":  "non-physical-goods",
		"shipping_method":  "NO",
	}

	c.log(ctx, "request", "create_session", map[string]any{
		"tran_id":  data.TransactionID,
		"amount":   data.Amount.StringFixed(2),
		"currency": data.Currency,
	})

	var parsed SessionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&parsed).
		Post(sessionPath)
	if err != nil {
		c.log(ctx, "error", "create_session", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sslcommerz session request failed")
	}
	if resp.IsError() {
		c.log(ctx, "error", "create_session", map[string]any{"status_code": resp.StatusCode()})
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sslcommerz session request returned %d", resp.StatusCode()))
	}

	if parsed.Status != SessionStatusSuccess {
		c.log(ctx, "error", "create_session", map[string]any{
			"status": parsed.Status,
			"reason": parsed.FailedReason,
		})
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "payment session rejected").
			WithDetails(map[string]any{"reason": parsed.FailedReason})
	}

	c.log(ctx, "response", "create_session", map[string]any{
		"tran_id":     data.TransactionID,
		"session_key": parsed.SessionKey,
	})
	return &parsed, nil
}

// ValidateTransaction confirms a completed payment with the gateway using the
// validation id the IPN callback carries.
func (c *Client) ValidateTransaction(ctx context.Context, validationID string) (*ValidationResponse, error) {
	if strings.TrimSpace(validationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation id is required")
	}

	c.log(ctx, "request", "validate_transaction", map[string]any{"val_id": validationID})

	var parsed ValidationResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"val_id":       validationID,
			"store_id":     c.storeID,
			"store_passwd": c.storePassword,
			"format":       "json",
		}).
		SetResult(&parsed).
		Get(validationPath)
	if err != nil {
		c.log(ctx, "error", "validate_transaction", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sslcommerz validation request failed")
	}
	if resp.IsError() {
		c.log(ctx, "error", "validate_transaction", map[string]any{"status_code": resp.StatusCode()})
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sslcommerz validation request returned %d", resp.StatusCode()))
	}

	c.log(ctx, "response", "validate_transaction", map[string]any{
		"val_id": validationID,
		"status": parsed.Status,
	})
	return &parsed, nil
}

func (c *Client) log(ctx context.Context, phase, operation string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	entry := map[string]any{"gateway": "sslcommerz", "phase": phase, "operation": operation}
	for key, value := range fields {
		entry[key] = c.redact(key, value)
	}
	ctx = c.logger.WithFields(ctx, entry)
	c.logger.Info(ctx, "sslcommerz "+operation)
}

func (c *Client) redact(key string, value any) any {
	switch key {
	case "store_passwd", "session_key":
		return "[REDACTED]"
	default:
		return value
	}
}
