package notify

import (
	"context"
	"strings"
	"time"

	"github.com/salonhub/booking-sync/internal/booking"
)

// Template variables
const (
	VarClientName  = "{client_name}"
	VarClientPhone = "{client_phone}"
	VarServiceName = "{service_name}"
	VarStaffName   = "{staff_name}"
	VarDate        = "{date}"
	VarTime        = "{time}"
	VarSalonName   = "{salon_name}"
)

const (
	dateFormat = "02.01.2006"
	timeFormat = "15:04"

	fallbackService = "your service"
	fallbackStaff   = "our specialist"
)

// Template is a message template
type Template struct {
	Text   string
	Active bool
}

// TemplateRegistry looks up message templates
//
//go:generate mockgen -destination=mocks/mock_templates.go -package=mocks -source=templates.go TemplateRegistry
type TemplateRegistry interface {
	// Template returns the template for t; found is false when none exists
	Template(ctx context.Context, t Type) (tmpl Template, found bool, err error)
}

// StaticTemplates is a TemplateRegistry over a fixed map
type StaticTemplates map[Type]Template

// Template implements TemplateRegistry
func (s StaticTemplates) Template(_ context.Context, t Type) (Template, bool, error) {
	tmpl, ok := s[t]
	return tmpl, ok, nil
}

// renderData is everything a template can refer to
type renderData struct {
	ClientName  string
	ClientPhone string
	ServiceName string
	StaffName   string
	At          time.Time
	SalonName   string
}

func newRenderData(snap *booking.Snapshot, r *booking.Record, at time.Time, salon string) renderData {
	data := renderData{
		ServiceName: fallbackService,
		StaffName:   fallbackStaff,
		At:          at,
		SalonName:   salon,
	}
	if r.Client != nil {
		data.ClientName = r.Client.Name
		data.ClientPhone = r.Client.Phone
	}
	if len(r.Services) > 0 && r.Services[0].Title != "" {
		data.ServiceName = r.Services[0].Title
	}
	if st, ok := snap.StaffByID(r.StaffID); ok && st.Name != "" {
		data.StaffName = st.Name
	}
	return data
}

// render substitutes the template variables in text. Unknown placeholders
// are left as they are.
func render(text string, data renderData) string {
	return strings.NewReplacer(
		VarClientName, data.ClientName,
		VarClientPhone, data.ClientPhone,
		VarServiceName, data.ServiceName,
		VarStaffName, data.StaffName,
		VarDate, data.At.Format(dateFormat),
		VarTime, data.At.Format(timeFormat),
		VarSalonName, data.SalonName,
	).Replace(text)
}
