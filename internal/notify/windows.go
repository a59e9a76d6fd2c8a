package notify

import (
	"log/slog"
	"time"

	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/idempotency"
)

const dedupeMinuteLayout = "2006-01-02 15:04"

// candidate is one record eligible for a notification type
type candidate struct {
	record *booking.Record
	at     time.Time
	key    idempotency.Key
}

// windows evaluates the time rules against a snapshot at a fixed instant
type windows struct {
	now time.Time
	loc *time.Location
	cfg Config
}

func newWindows(now time.Time, cfg Config) windows {
	local := now.In(cfg.Location)
	return windows{now: local, loc: cfg.Location, cfg: cfg}
}

// eligible is shared by all three rules
func eligible(r *booking.Record) bool {
	return !r.Deleted && r.Client != nil
}

func (w windows) today() string {
	return w.now.Format(booking.DateLayout)
}

func (w windows) tomorrow() string {
	return w.now.AddDate(0, 0, 1).Format(booking.DateLayout)
}

// recordDate returns the record's calendar date, falling back to the date of
// its datetime
func (w windows) recordDate(r *booking.Record, at time.Time) string {
	if r.Date != "" {
		return r.Date
	}
	if at.IsZero() {
		return ""
	}
	return at.Format(booking.DateLayout)
}

// dayReminderOpen reports whether now is inside [trigger hour, +tolerance)
func (w windows) dayReminderOpen() bool {
	open := time.Date(w.now.Year(), w.now.Month(), w.now.Day(), w.cfg.DayReminderHour, 0, 0, 0, w.loc)
	return !w.now.Before(open) && w.now.Sub(open) < w.cfg.DayReminderTolerance
}

func (w windows) candidates(snap *booking.Snapshot, t Type) []candidate {
	if t == TypeReminderDay && !w.dayReminderOpen() {
		return nil
	}

	var out []candidate
	for i := range snap.Records {
		r := &snap.Records[i]
		if !eligible(r) {
			continue
		}

		at, err := r.ScheduledAt(w.loc)
		if err != nil {
			slog.Debug("Skipping record with unparseable datetime", "record_id", r.ID, "error", err)
			continue
		}

		var dedupe string
		switch t {
		case TypeReminderDay:
			if r.Attendance == booking.AttendanceNoShow || w.recordDate(r, at) != w.tomorrow() {
				continue
			}
			dedupe = w.recordDate(r, at)
		case TypeReminderHour:
			if r.Attendance == booking.AttendanceNoShow || !w.withinHourReminder(at) {
				continue
			}
			dedupe = at.Format(dedupeMinuteLayout)
		case TypePostVisit:
			if r.Attendance != booking.AttendanceCompleted || w.recordDate(r, at) != w.today() {
				continue
			}
			if at.Hour() != w.now.Add(-w.cfg.PostVisitOffset).Hour() {
				continue
			}
			dedupe = w.recordDate(r, at) + ":post"
		default:
			continue
		}

		out = append(out, candidate{
			record: r,
			at:     at,
			key:    idempotency.Key{RecordID: r.ID, Type: string(t), DedupeKey: dedupe},
		})
	}
	return out
}

func (w windows) withinHourReminder(at time.Time) bool {
	diff := at.Sub(w.now.Add(time.Hour))
	if diff < 0 {
		diff = -diff
	}
	return diff <= w.cfg.HourReminderTolerance
}
