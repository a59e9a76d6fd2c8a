package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonhub/booking-sync/internal/retry"
)

const testToken = "123:secret"

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tg, err := NewTelegram(TelegramOptions{Token: testToken, APIBaseURL: server.URL + "/"})
	require.NoError(t, err)
	return tg
}

func TestNewTelegram_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewTelegram(TelegramOptions{})
	assert.Error(t, err)
}

func TestTelegram_Send(t *testing.T) {
	t.Parallel()

	var got sendMessageRequest
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bot"+testToken+"/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	require.NoError(t, tg.Send(context.Background(), "1001", "See you tomorrow"))
	assert.Equal(t, sendMessageRequest{ChatID: "1001", Text: "See you tomorrow"}, got)
}

func TestTelegram_SendErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  retry.Kind
		wantAPI   *APIError
		wantInMsg string
	}{
		{
			name:     "blocked by user",
			status:   http.StatusForbidden,
			body:     `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`,
			wantKind: retry.KindTransient,
			wantAPI: &APIError{
				StatusCode:  http.StatusForbidden,
				Code:        403,
				Description: "Forbidden: bot was blocked by the user",
			},
			wantInMsg: "bot was blocked",
		},
		{
			name:     "throttled",
			status:   http.StatusTooManyRequests,
			body:     `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":7}}`,
			wantKind: retry.KindRateLimited,
			wantAPI: &APIError{
				StatusCode:  http.StatusTooManyRequests,
				Code:        429,
				Description: "Too Many Requests",
				RetryAfter:  7 * time.Second,
			},
			wantInMsg: "retry after 7s",
		},
		{
			name:      "gateway error without body",
			status:    http.StatusBadGateway,
			body:      ``,
			wantKind:  retry.KindTransient,
			wantInMsg: "telegram error 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tg := newTestTelegram(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := tg.Send(context.Background(), "1001", "hi")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, retry.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantInMsg)
			assert.NotContains(t, err.Error(), testToken)

			if tt.wantAPI != nil {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, tt.wantAPI, apiErr)
			}
		})
	}
}

func TestTelegram_SendBatch(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req sendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ChatID == "2002" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	result := tg.SendBatch(context.Background(), []string{"1001", "2002", "3003"}, "Closed on Monday")
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "2002: telegram error 400: Bad Request: chat not found")
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendEach_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	sent := 0
	send := func(context.Context, string, string) error {
		sent++
		cancel()
		return nil
	}

	result := SendEach(ctx, send, []string{"a", "b", "c"}, "x")
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors, 2)
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	var d Disabled
	assert.ErrorIs(t, d.Send(context.Background(), "1", "hi"), ErrDisabled)

	result := d.SendBatch(context.Background(), []string{"1", "2"}, "hi")
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, []string{"1: messaging is not configured", "2: messaging is not configured"}, result.Errors)
}
