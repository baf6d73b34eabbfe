// Package validation implements the receipt validator against the remote
// validation endpoint.
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-retry"

	"iapgate/internal/application/receipt"
	"iapgate/internal/domain/purchase"
	"iapgate/internal/infrastructure/auth"
	sharedConfig "iapgate/internal/shared/config"
	"iapgate/internal/shared/logger"
)

const (
	// Maximum response body size accepted from the validation endpoint (64KB)
	maxResponseSize = 64 << 10
	// client claim carried by the bearer token
	tokenClient = "purchaseflow"
)

// StatusError is a non-200 answer from the validation endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Retryable reports whether the request may be resubmitted.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client posts receipts to the validation endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	tokens     *auth.ServiceTokenService
	validate   *validator.Validate
	logger     logger.Interface

	timeout        time.Duration
	attemptTimeout time.Duration
	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a Client from cfg. Requests carry a bearer token when
// cfg.AuthSecret is set.
func NewClient(cfg sharedConfig.ValidatorConfig, log logger.Interface, opts ...Option) *Client {
	c := &Client{
		endpoint:       cfg.Endpoint,
		httpClient:     &http.Client{},
		validate:       validator.New(),
		logger:         log.Named("validation"),
		timeout:        cfg.Timeout,
		attemptTimeout: cfg.AttemptTimeout,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
	if cfg.MaxRetries > 0 {
		c.maxRetries = uint64(cfg.MaxRetries)
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = 200 * time.Millisecond
	}
	if c.maxBackoff < c.initialBackoff {
		c.maxBackoff = c.initialBackoff
	}
	if cfg.AuthSecret != "" {
		c.tokens = auth.NewServiceTokenService(cfg.AuthSecret, auth.DefaultServiceTokenTTL)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ receipt.Validator = (*Client)(nil)

// Validate submits receiptToken and returns the decoded result. Transport
// errors, 429 and 5xx answers are retried with capped exponential backoff
// until the overall timeout; other failures return immediately.
func (c *Client) Validate(ctx context.Context, receiptToken string) (*purchase.ValidationResult, error) {
	if receiptToken == "" {
		return nil, purchase.ErrEmptyReceipt
	}

	body, err := json.Marshal(purchase.ValidationRequest{Data: receiptToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	backoff := retry.NewExponential(c.initialBackoff)
	backoff = retry.WithCappedDuration(c.maxBackoff, backoff)
	backoff = retry.WithMaxRetries(c.maxRetries, backoff)

	var result *purchase.ValidationResult
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		res, err := c.post(ctx, body)
		if err != nil {
			if isRetryable(ctx, err) {
				c.logger.Debugw("validation attempt failed, retrying",
					"attempt", attempt,
					"error", err,
				)
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("receipt validation failed after %d attempt(s): %w", attempt, err)
	}

	return result, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*purchase.ValidationResult, error) {
	if c.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Generate(tokenClient)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach validation endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var envelope purchase.ValidationEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", purchase.ErrInvalidEnvelope, err)
	}
	if err := c.validate.Struct(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", purchase.ErrInvalidEnvelope, err)
	}

	return envelope.Result, nil
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, purchase.ErrInvalidEnvelope) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// transport failure, including a per-attempt timeout
	return true
}
