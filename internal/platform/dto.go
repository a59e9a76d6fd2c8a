package platform

import (
	"time"

	"github.com/salonhub/booking-sync/internal/booking"
)

type staffDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

func (d staffDTO) toModel() booking.Staff {
	return booking.Staff{ID: d.ID, Name: d.Name, Specialization: d.Specialization}
}

type serviceDTO struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	PriceMin float64 `json:"price_min"`
	PriceMax float64 `json:"price_max"`
}

func (d serviceDTO) toModel() booking.Service {
	return booking.Service{ID: d.ID, Title: d.Title, PriceMin: d.PriceMin, PriceMax: d.PriceMax}
}

type clientDTO struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email string  `json:"email"`
	Spent float64 `json:"spent"`
}

func (d clientDTO) toModel() booking.Client {
	return booking.Client{ID: d.ID, Name: d.Name, Phone: d.Phone, Email: d.Email, Spent: d.Spent}
}

type recordServiceDTO struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Cost  float64 `json:"cost"`
}

type recordClientDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// recordDTO mirrors the platform's booking. "date" carries a full
// "YYYY-MM-DD HH:MM:SS" value and confirmed is numeric.
type recordDTO struct {
	ID         int64              `json:"id"`
	StaffID    int64              `json:"staff_id"`
	Date       string             `json:"date"`
	Datetime   string             `json:"datetime"`
	Services   []recordServiceDTO `json:"services"`
	Client     *recordClientDTO   `json:"client"`
	Attendance int                `json:"attendance"`
	Confirmed  int                `json:"confirmed"`
	Deleted    bool               `json:"deleted"`
	Comment    string             `json:"comment"`
}

func (d recordDTO) toModel() booking.Record {
	datetime := d.Datetime
	if datetime == "" {
		datetime = d.Date
	}
	date := d.Date
	if len(date) > len(booking.DateLayout) {
		date = date[:len(booking.DateLayout)]
	}
	if date == "" && len(datetime) >= len(booking.DateLayout) {
		date = datetime[:len(booking.DateLayout)]
	}

	rec := booking.Record{
		ID:         d.ID,
		Date:       date,
		Datetime:   datetime,
		StaffID:    d.StaffID,
		Services:   make([]booking.RecordService, 0, len(d.Services)),
		Attendance: booking.Attendance(d.Attendance),
		Confirmed:  d.Confirmed == 1,
		Deleted:    d.Deleted,
		Comment:    d.Comment,
	}
	for _, s := range d.Services {
		rec.Services = append(rec.Services, booking.RecordService{ID: s.ID, Title: s.Title, Cost: s.Cost})
	}
	// The platform sends an empty client object for walk-in bookings
	if d.Client != nil && d.Client.ID != 0 {
		rec.Client = &booking.RecordClient{ID: d.Client.ID, Name: d.Client.Name, Phone: d.Client.Phone}
	}
	return rec
}

type recordPayloadService struct {
	ID int64 `json:"id"`
}

type recordPayload struct {
	StaffID      int64                  `json:"staff_id"`
	Services     []recordPayloadService `json:"services"`
	Client       recordClientDTO        `json:"client"`
	Datetime     string                 `json:"datetime"`
	SeanceLength int64                  `json:"seance_length,omitempty"`
	Comment      string                 `json:"comment,omitempty"`
}

func newRecordPayload(in RecordInput) recordPayload {
	p := recordPayload{
		StaffID:      in.StaffID,
		Services:     make([]recordPayloadService, 0, len(in.ServiceIDs)),
		Client:       recordClientDTO{ID: in.Client.ID, Name: in.Client.Name, Phone: in.Client.Phone},
		Datetime:     in.Datetime.Format(time.RFC3339),
		SeanceLength: in.SeanceLength,
		Comment:      in.Comment,
	}
	for _, id := range in.ServiceIDs {
		p.Services = append(p.Services, recordPayloadService{ID: id})
	}
	return p
}
