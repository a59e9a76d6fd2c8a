// Package booking contains the normalized data model synced from the booking platform.
package booking

import (
	"fmt"
	"time"
)

// Attendance is the platform's visit attendance marker
type Attendance int

const (
	// AttendanceNoShow means the client did not come
	AttendanceNoShow Attendance = -1
	// AttendancePending means the visit has not happened yet
	AttendancePending Attendance = 0
	// AttendanceCompleted means the visit was closed by staff
	AttendanceCompleted Attendance = 1
	// AttendanceAttended means the client arrived and the visit counts towards statistics
	AttendanceAttended Attendance = 2
)

const (
	// DateLayout is the layout of Record.Date
	DateLayout = "2006-01-02"

	// datetimeLayout is the offset-less layout some platform endpoints return
	datetimeLayout = "2006-01-02 15:04:05"
)

// Staff is a salon employee
type Staff struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization,omitempty"`
}

// Service is a bookable salon service
type Service struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	PriceMin float64 `json:"priceMin"`
	PriceMax float64 `json:"priceMax"`
}

// Client is a salon client. VisitCount and AvgSum are derived during sync.
type Client struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Email      string  `json:"email,omitempty"`
	Spent      float64 `json:"spent"`
	VisitCount int     `json:"visitCount"`
	AvgSum     float64 `json:"avgSum"`
}

// RecordService is a service line on a booking
type RecordService struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Cost  float64 `json:"cost"`
}

// RecordClient is the client reference embedded in a booking
type RecordClient struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Record is a normalized booking
type Record struct {
	ID         int64           `json:"id"`
	Date       string          `json:"date"`
	Datetime   string          `json:"datetime"`
	StaffID    int64           `json:"staffId"`
	Services   []RecordService `json:"services"`
	Client     *RecordClient   `json:"client,omitempty"`
	Attendance Attendance      `json:"attendance"`
	Confirmed  bool            `json:"confirmed"`
	Deleted    bool            `json:"deleted"`
	Comment    string          `json:"comment,omitempty"`
}

// ScheduledAt parses the record's datetime. Values without an offset are
// interpreted in loc.
func (r *Record) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, r.Datetime); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation(datetimeLayout, r.Datetime, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("record %d: unparseable datetime %q", r.ID, r.Datetime)
}

// Snapshot is the full set of synced data. A published snapshot is never
// mutated; a sync builds a new one and replaces it wholesale.
type Snapshot struct {
	Staff      []Staff    `json:"staff"`
	Services   []Service  `json:"services"`
	Clients    []Client   `json:"clients"`
	Records    []Record   `json:"records"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
}

// StaffByID returns the staff member with the given id
func (s *Snapshot) StaffByID(id int64) (Staff, bool) {
	for _, st := range s.Staff {
		if st.ID == id {
			return st, true
		}
	}
	return Staff{}, false
}

// ClientByID returns the client with the given id
func (s *Snapshot) ClientByID(id int64) (Client, bool) {
	for _, c := range s.Clients {
		if c.ID == id {
			return c, true
		}
	}
	return Client{}, false
}

// Clone returns a copy that shares no slices with s
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Staff:    append([]Staff(nil), s.Staff...),
		Services: append([]Service(nil), s.Services...),
		Clients:  append([]Client(nil), s.Clients...),
		Records:  make([]Record, len(s.Records)),
	}
	for i, r := range s.Records {
		r.Services = append([]RecordService(nil), r.Services...)
		if r.Client != nil {
			c := *r.Client
			r.Client = &c
		}
		out.Records[i] = r
	}
	if s.LastSyncAt != nil {
		t := *s.LastSyncAt
		out.LastSyncAt = &t
	}
	return out
}
