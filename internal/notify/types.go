package notify

import (
	"context"
	"time"

	"github.com/salonhub/booking-sync/internal/messaging"
)

// Type is a notification type
type Type string

const (
	// TypeReminderDay is the reminder sent the day before a booking
	TypeReminderDay Type = "booking_reminder_day"
	// TypeReminderHour is the reminder sent an hour before a booking
	TypeReminderHour Type = "booking_reminder_hour"
	// TypePostVisit is the follow-up sent after a completed visit
	TypePostVisit Type = "post_visit"
)

// Types lists every notification type in dispatch order
var Types = []Type{TypeReminderDay, TypeReminderHour, TypePostVisit}

// Counts is the outcome of one category
type Counts struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Results holds the counts per category
type Results struct {
	ReminderDay  Counts `json:"reminderDay"`
	ReminderHour Counts `json:"reminderHour"`
	PostVisit    Counts `json:"postVisit"`
}

func (r *Results) of(t Type) *Counts {
	switch t {
	case TypeReminderDay:
		return &r.ReminderDay
	case TypeReminderHour:
		return &r.ReminderHour
	default:
		return &r.PostVisit
	}
}

// Summary is the result of one Dispatch
type Summary struct {
	// OK is false when a top-level step such as reading the snapshot failed
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp"`
	Results   Results   `json:"results"`
	Cleaned   int       `json:"cleaned"`
	Errors    []string  `json:"errors"`
}

// BroadcastResult is the outcome of a Broadcast
type BroadcastResult struct {
	messaging.BatchResult
	// Unlinked counts phones without a channel link
	Unlinked int `json:"unlinked"`
}

// Dispatcher runs notification passes
//
//go:generate mockgen -destination=mocks/mock_dispatcher.go -package=mocks -source=types.go Dispatcher
type Dispatcher interface {
	// Dispatch runs one pass over the current snapshot
	Dispatch(ctx context.Context) Summary
	// Broadcast sends text to the given phones, or to every client in the
	// snapshot when phones is empty
	Broadcast(ctx context.Context, phones []string, text string) (BroadcastResult, error)
}
