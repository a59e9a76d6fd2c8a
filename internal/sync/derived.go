package sync

import "github.com/salonhub/booking-sync/internal/booking"

// Classification holds the client statistics of one run
type Classification struct {
	Created int
	Updated int
	Skipped int
}

// ApplyDerivedMetrics recomputes VisitCount and AvgSum for every client in
// place from the fetched records and classifies each client. Clients below
// minVisits are counted as skipped but are never removed. A client is
// created when it is absent from previous.
func ApplyDerivedMetrics(
	clients []booking.Client,
	records []booking.Record,
	previous *booking.Snapshot,
	minVisits int,
) Classification {
	visits := make(map[int64]int, len(clients))
	for _, r := range records {
		if r.Client != nil && r.Attendance == booking.AttendanceAttended {
			visits[r.Client.ID]++
		}
	}

	known := make(map[int64]struct{})
	if previous != nil {
		for _, c := range previous.Clients {
			known[c.ID] = struct{}{}
		}
	}

	var out Classification
	for i := range clients {
		c := &clients[i]
		c.VisitCount = visits[c.ID]
		if c.VisitCount > 0 {
			c.AvgSum = c.Spent / float64(c.VisitCount)
		} else {
			c.AvgSum = 0
		}

		if c.VisitCount < minVisits {
			out.Skipped++
		} else {
			out.Updated++
		}
		if _, ok := known[c.ID]; !ok {
			out.Created++
		}
	}
	return out
}
