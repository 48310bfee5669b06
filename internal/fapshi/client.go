// Package fapshi is a client for the Fapshi mobile-money payment API.
package fapshi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
)

const (
	LiveBaseURL    = "https://live.fapshi.com"
	SandboxBaseURL = "https://sandbox.fapshi.com"

	DefaultTimeout = 30 * time.Second
	MinAmount      = 100
)

var (
	phonePattern   = regexp.MustCompile(`^6\d{8}$`)
	transIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8,10}$`)
)

// Client talks to one Fapshi environment with one set of credentials.
type Client struct {
	BaseURL    string
	APIUser    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient builds a client. A zero timeout means DefaultTimeout.
func NewClient(baseURL, apiUser, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = LiveBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIUser: apiUser,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// InitiateRedirectPayment creates a hosted payment link.
func (c *Client) InitiateRedirectPayment(ctx context.Context, req RedirectPaymentRequest) (*RedirectPaymentResponse, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	var resp RedirectPaymentResponse
	if err := c.do(ctx, http.MethodPost, "/initiate-pay", req, &resp); err != nil {
		return nil, err
	}
	if resp.TransID == "" || resp.Link == "" {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "initiate-pay response missing transId or link"}
	}
	return &resp, nil
}

// InitiateDirectPayment pushes a payment request to the payer's phone.
func (c *Client) InitiateDirectPayment(ctx context.Context, req DirectPaymentRequest) (*DirectPaymentResponse, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Phone == "" {
		return nil, &Error{StatusCode: http.StatusBadRequest, Message: "Phone number required"}
	}
	if !phonePattern.MatchString(req.Phone) {
		return nil, &Error{StatusCode: http.StatusBadRequest, Message: "Invalid phone number format"}
	}

	var resp DirectPaymentResponse
	if err := c.do(ctx, http.MethodPost, "/direct-pay", req, &resp); err != nil {
		return nil, err
	}
	if resp.TransID == "" {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "direct-pay response missing transId"}
	}
	return &resp, nil
}

// GetPaymentStatus fetches the authoritative state of a transaction.
func (c *Client) GetPaymentStatus(ctx context.Context, transID string) (*PaymentStatus, error) {
	if err := validateTransID(transID); err != nil {
		return nil, err
	}

	var resp PaymentStatus
	if err := c.do(ctx, http.MethodGet, "/payment-status/"+transID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExpirePayment invalidates a payment link so it can no longer be paid.
func (c *Client) ExpirePayment(ctx context.Context, transID string) error {
	if err := validateTransID(transID); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/expire-pay", map[string]string{"transId": transID}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, target interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal fapshi request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create fapshi request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiuser", c.APIUser)
	req.Header.Set("apikey", c.APIKey)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			logger.CtxWarn(ctx, "fapshi request timed out", "path", path, "elapsed_ms", time.Since(start).Milliseconds())
			return &Error{StatusCode: http.StatusGatewayTimeout, Message: "payment provider timed out", Timeout: true, Err: err}
		}
		return &Error{StatusCode: http.StatusBadGateway, Message: "payment provider unreachable", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read fapshi response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &errResp) == nil && errResp.Message != "" {
			msg = errResp.Message
		}
		logger.CtxWarn(ctx, "fapshi non-2xx response", "path", path, "status", resp.StatusCode, "message", msg)
		return &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if target == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode fapshi response: %w", err)
	}
	return nil
}

func validateAmount(amount int64) error {
	if amount == 0 {
		return &Error{StatusCode: http.StatusBadRequest, Message: "Amount required"}
	}
	if amount < MinAmount {
		return &Error{StatusCode: http.StatusBadRequest, Message: "Amount cannot be less than 100 XAF"}
	}
	return nil
}

func validateTransID(transID string) error {
	if !transIDPattern.MatchString(transID) {
		return &Error{StatusCode: http.StatusBadRequest, Message: "Invalid transaction ID"}
	}
	return nil
}

// ValidTransID reports whether s has the provider's transaction id shape.
func ValidTransID(s string) bool {
	return transIDPattern.MatchString(s)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ValidPhone reports whether s is a Cameroonian mobile number in the
// provider's nine-digit form.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}
