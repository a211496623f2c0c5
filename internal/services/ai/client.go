package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/persona-chat-go/internal/config"
	"github.com/persona-chat-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 4 << 20

var (
	// ErrUpstreamUnreachable wraps transport failures: DNS, connection,
	// timeouts and cancellations.
	ErrUpstreamUnreachable = errors.New("completion provider unreachable")

	// ErrInvalidResponse is returned when a successful response is not JSON.
	ErrInvalidResponse = errors.New("completion provider returned an invalid response")
)

// StatusError is returned when the provider answers with a non-2xx status.
// Body holds the raw response for server-side diagnostics.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion provider returned status %d", e.StatusCode)
}

// Service represents the AI service interface
type Service interface {
	Complete(ctx context.Context, apiKey string, req *models.CompletionRequest) (string, error)
}

// Client calls an OpenAI-compatible chat completions endpoint. It makes a
// single attempt per call.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a completion client for the configured provider
func NewClient(cfg *config.UpstreamConfig, logger *logrus.Logger) *Client {
	logger.WithFields(logrus.Fields{
		"baseURL": cfg.BaseURL,
		"model":   cfg.Model,
		"timeout": cfg.Timeout,
	}).Info("Completion client initialized")

	return &Client{
		endpoint: fmt.Sprintf("%s/chat/completions", strings.TrimSuffix(cfg.BaseURL, "/")),
		timeout:  cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Complete sends req and returns the first choice's message content, or ""
// when the response has no such field.
func (c *Client) Complete(ctx context.Context, apiKey string, req *models.CompletionRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	c.logger.WithFields(logrus.Fields{
		"model":    req.Model,
		"url":      c.endpoint,
		"messages": len(req.Messages),
	}).Debug("Sending completion request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrUpstreamUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidResponse, len(body))
	}

	return gjson.GetBytes(body, "choices.0.message.content").String(), nil
}
