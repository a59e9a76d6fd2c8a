package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// SentMessage is a message received by the Telegram fake
type SentMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// TelegramFake accepts Bot API sendMessage calls and records them
type TelegramFake struct {
	server *httptest.Server

	mu       sync.Mutex
	messages []SentMessage
}

// NewTelegramFake starts a Telegram fake accepting any bot token
func NewTelegramFake() *TelegramFake {
	f := &TelegramFake{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
			return
		}

		var msg SentMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request"}`))
			return
		}

		f.mu.Lock()
		f.messages = append(f.messages, msg)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	return f
}

// URL returns the base URL of the fake
func (f *TelegramFake) URL() string {
	return f.server.URL
}

// Close stops the fake
func (f *TelegramFake) Close() {
	f.server.Close()
}

// Messages returns a copy of the received messages
func (f *TelegramFake) Messages() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.messages...)
}
