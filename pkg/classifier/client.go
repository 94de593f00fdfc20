// Package classifier calls the external document classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/ipcr-api/internal/models"
)

const maxResponseBytes = 1 << 20

// Error is returned for every classification failure: empty input, transport
// errors, timeouts, non-2xx answers, and invalid labels or confidences.
type Error struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("classifier: %s (status %d): %v", e.Reason, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("classifier: %s (status %d)", e.Reason, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("classifier: %s: %v", e.Reason, e.Err)
	default:
		return "classifier: " + e.Reason
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Result is a validated classification.
type Result struct {
	Category      models.Category
	Label         string
	Confidence    float64
	Probabilities map[string]float64
}

// Config tunes the client.
type Config struct {
	BaseURL                 string
	Timeout                 time.Duration
	RateLimit               float64
	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// Client talks to the classification endpoint. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*Result]
	logger     *zap.Logger
}

type classifyResponse struct {
	Success       bool               `json:"success"`
	Category      string             `json:"category"`
	Confidence    *float64           `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Error         string             `json:"error"`
}

// New builds a client. A nil httpClient gets one bounded by cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	if cfg.BreakerEnabled {
		c.breaker = newBreaker(cfg, logger)
	}
	return c
}

func newBreaker(cfg Config, logger *zap.Logger) *gobreaker.CircuitBreaker[*Result] {
	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := cfg.BreakerFailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}
	return gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		// Only outages trip the breaker.
		IsSuccessful: func(err error) bool {
			return !isOutage(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change",
				zap.String("operation", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Classify sends content to the classifier and validates its answer.
func (c *Client) Classify(ctx context.Context, content []byte, fileName string) (*Result, error) {
	if len(content) == 0 {
		return nil, &Error{Reason: "empty file"}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Reason: "rate limited", Err: err}
		}
	}
	if c.breaker == nil {
		return c.classify(ctx, content, fileName)
	}
	result, err := c.breaker.Execute(func() (*Result, error) {
		return c.classify(ctx, content, fileName)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &Error{Reason: "circuit open", Err: err}
	}
	return result, err
}

func (c *Client) classify(ctx context.Context, content []byte, fileName string) (*Result, error) {
	body, contentType, err := multipartBody(content, fileName)
	if err != nil {
		return nil, &Error{Reason: "build request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", body)
	if err != nil {
		return nil, &Error{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Reason: "transport failure", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Reason: "transport failure", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Reason: "unexpected response", StatusCode: resp.StatusCode, Err: errorDetail(raw)}
	}

	var payload classifyResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Reason: "undecodable response", StatusCode: resp.StatusCode, Err: err}
	}
	if !payload.Success {
		return nil, &Error{Reason: "classification unsuccessful", StatusCode: resp.StatusCode, Err: errorDetail(raw)}
	}
	category, ok := models.CategoryFromLabel(payload.Category)
	if !ok {
		return nil, &Error{Reason: fmt.Sprintf("unknown category %q", payload.Category), StatusCode: resp.StatusCode}
	}
	if payload.Confidence == nil || *payload.Confidence < 0 || *payload.Confidence > 100 {
		return nil, &Error{Reason: "confidence out of range", StatusCode: resp.StatusCode}
	}

	return &Result{
		Category:      category,
		Label:         category.Label(),
		Confidence:    *payload.Confidence,
		Probabilities: payload.Probabilities,
	}, nil
}

// Health reports whether the classifier answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Reason: "transport failure", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode != http.StatusOK {
		return &Error{Reason: "unhealthy", StatusCode: resp.StatusCode}
	}
	return nil
}

func isOutage(err error) bool {
	if err == nil {
		return false
	}
	var cErr *Error
	if !errors.As(err, &cErr) {
		return true
	}
	return cErr.StatusCode == 0 || cErr.StatusCode >= http.StatusInternalServerError
}

func multipartBody(content []byte, fileName string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf, writer.FormDataContentType(), nil
}

func errorDetail(raw []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return errors.New(text)
}
