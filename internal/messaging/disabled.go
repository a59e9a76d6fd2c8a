package messaging

import (
	"context"
	"errors"
)

// ErrDisabled is returned for every delivery through Disabled
var ErrDisabled = errors.New("messaging is not configured")

// Disabled is a Transport used when no messenger credentials are set.
// Deliveries fail without marking anything sent, so they are retried once
// a real transport is configured.
type Disabled struct{}

var _ Transport = Disabled{}

// Send always fails with ErrDisabled
func (Disabled) Send(context.Context, string, string) error {
	return ErrDisabled
}

// SendBatch fails every recipient
func (d Disabled) SendBatch(ctx context.Context, chatIDs []string, text string) BatchResult {
	return SendEach(ctx, d.Send, chatIDs, text)
}
