// Package messaging delivers text messages to client chat channels.
package messaging

import (
	"context"
	"fmt"
)

// BatchResult counts the outcome of a SendBatch call
type BatchResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors"`
}

// Transport sends messages to chat ids
//
//go:generate mockgen -destination=mocks/mock_transport.go -package=mocks -source=transport.go Transport
type Transport interface {
	// Send delivers text to one chat. A nil error means the message was accepted.
	Send(ctx context.Context, chatID, text string) error
	// SendBatch delivers text to every chat id in order and never stops at a
	// failed recipient
	SendBatch(ctx context.Context, chatIDs []string, text string) BatchResult
}

// SendEach is a SendBatch built on top of send. Recipients are served
// sequentially; a cancelled context fails the remaining ones.
func SendEach(ctx context.Context, send func(ctx context.Context, chatID, text string) error, chatIDs []string, text string) BatchResult {
	result := BatchResult{Errors: []string{}}
	for _, chatID := range chatIDs {
		if err := ctx.Err(); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", chatID, err))
			continue
		}
		if err := send(ctx, chatID, text); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", chatID, err))
			continue
		}
		result.Sent++
	}
	return result
}
