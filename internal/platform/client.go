// Package platform provides a client for the external booking platform REST API.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/salonhub/booking-sync/internal/booking"
)

// RecordQuery selects one page of bookings in a date range (inclusive)
type RecordQuery struct {
	Page      int
	Count     int
	StartDate time.Time
	EndDate   time.Time
}

// RecordInput is the payload for creating or updating a booking.
// SeanceLength is in seconds.
type RecordInput struct {
	StaffID      int64                `json:"staff_id"`
	ServiceIDs   []int64              `json:"services"`
	Datetime     time.Time            `json:"datetime"`
	SeanceLength int64                `json:"seance_length,omitempty"`
	Client       booking.RecordClient `json:"client"`
	Comment      string               `json:"comment,omitempty"`
}

// Client is the booking platform API used by sync and by operators
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client
type Client interface {
	// ListStaff returns every staff member of the company
	ListStaff(ctx context.Context) ([]booking.Staff, error)
	// ListServices returns every bookable service
	ListServices(ctx context.Context) ([]booking.Service, error)
	// ListClients returns one page of clients (pages start at 1)
	ListClients(ctx context.Context, page, count int) ([]booking.Client, error)
	// ListRecords returns one page of bookings in the query's date range
	ListRecords(ctx context.Context, query RecordQuery) ([]booking.Record, error)
	// CreateRecord creates a booking
	CreateRecord(ctx context.Context, input RecordInput) (booking.Record, error)
	// UpdateRecord replaces a booking
	UpdateRecord(ctx context.Context, id int64, input RecordInput) (booking.Record, error)
	// DeleteRecord deletes a booking
	DeleteRecord(ctx context.Context, id int64) error
}

// HTTPError represents an unexpected HTTP response from the platform
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, url, message string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, URL: url, Message: message}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Message)
}
