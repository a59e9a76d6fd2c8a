package messaging

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

	"github.com/tidwall/gjson"

	"github.com/salonhub/booking-sync/internal/retry"
)

const (
	// DefaultTelegramAPI is the public Bot API endpoint
	DefaultTelegramAPI = "https://api.telegram.org"

	// DefaultTimeout bounds a single sendMessage call
	DefaultTimeout = 10 * time.Second

	maxResponseSize = 1 << 20
)

// APIError is a Bot API response with "ok": false
type APIError struct {
	StatusCode  int
	Code        int64
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram error %d: %s (retry after %s)", e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Description)
}

// TelegramOptions configures the Telegram transport
type TelegramOptions struct {
	Token      string
	APIBaseURL string
	Timeout    time.Duration
	// HTTPClient overrides the client built from Timeout
	HTTPClient *http.Client
}

// Telegram sends messages through the Telegram Bot API
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewTelegram creates a Telegram transport
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	baseURL := opts.APIBaseURL
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Telegram{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   opts.Token,
	}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send implements Transport. Throttling responses are returned as
// retry.RateLimited errors.
func (t *Telegram) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/bot"+t.token+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		// the URL carries the token, so the underlying error is not wrapped
		return errors.New("failed to create telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.Transient(fmt.Errorf("telegram request failed: %w", redact(err, t.token)))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return retry.Transient(fmt.Errorf("failed to read telegram response: %w", err))
	}

	reply := gjson.ParseBytes(raw)
	if reply.Get("ok").Bool() {
		return nil
	}

	apiErr := &APIError{
		StatusCode:  resp.StatusCode,
		Code:        reply.Get("error_code").Int(),
		Description: reply.Get("description").String(),
		RetryAfter:  time.Duration(reply.Get("parameters.retry_after").Int()) * time.Second,
	}
	if apiErr.Code == 0 {
		apiErr.Code = int64(resp.StatusCode)
	}
	if apiErr.Description == "" {
		apiErr.Description = resp.Status
	}
	if resp.StatusCode == http.StatusTooManyRequests || apiErr.Code == http.StatusTooManyRequests {
		return retry.RateLimited(apiErr)
	}
	return apiErr
}

// SendBatch implements Transport
func (t *Telegram) SendBatch(ctx context.Context, chatIDs []string, text string) BatchResult {
	return SendEach(ctx, t.Send, chatIDs, text)
}

// redact removes the bot token from transport errors, which include the URL
func redact(err error, token string) error {
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<redacted>"))
}
