// Package directory maps normalized client phone numbers to messaging
// channel ids. Links are created when a client starts a conversation with
// the salon bot and are read by the notification dispatcher.
package directory

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidLink is returned when a link has an empty phone or chat id
var ErrInvalidLink = errors.New("phone and chat id are required")

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone strips every non-digit character and rewrites the local
// 8XXXXXXXXXX and 10-digit forms to the 7XXXXXXXXXX international form.
// Anything else is returned as digits only.
func NormalizePhone(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	switch {
	case len(digits) == 11 && strings.HasPrefix(digits, "8"):
		return "7" + digits[1:]
	case len(digits) == 10:
		return "7" + digits
	default:
		return digits
	}
}

// Directory is the channel-link directory. Phones are normalized by the
// implementation, so callers may pass them in any format.
//
//go:generate mockgen -destination=mocks/mock_directory.go -package=mocks -source=directory.go Directory
type Directory interface {
	// Lookup returns the chat id linked to phone
	Lookup(ctx context.Context, phone string) (chatID string, found bool, err error)
	// Link stores or replaces the chat id for phone
	Link(ctx context.Context, phone, chatID string) error
}

func validateLink(phone, chatID string) (string, error) {
	normalized := NormalizePhone(phone)
	if normalized == "" || strings.TrimSpace(chatID) == "" {
		return "", ErrInvalidLink
	}
	return normalized, nil
}
