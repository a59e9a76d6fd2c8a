// Package helpers provides fakes and server helpers for the integration suite.
package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
)

// PlatformFake serves the booking platform endpoints used by sync from
// in-memory data
type PlatformFake struct {
	server    *httptest.Server
	companyID int64

	mu       sync.Mutex
	staff    []map[string]any
	services []map[string]any
	clients  []map[string]any
	records  []map[string]any

	// failStaff makes the staff endpoint answer 500
	failStaff atomic.Bool
	requests  atomic.Int64
}

// NewPlatformFake starts a fake platform for companyID
func NewPlatformFake(companyID int64) *PlatformFake {
	f := &PlatformFake{companyID: companyID}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("GET /company/%d/staff", companyID), func(w http.ResponseWriter, _ *http.Request) {
		if f.failStaff.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"meta":{"message":"staff unavailable"}}`))
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeEnvelope(w, f.staff)
	})
	mux.HandleFunc(fmt.Sprintf("GET /company/%d/services", companyID), func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeEnvelope(w, f.services)
	})
	mux.HandleFunc(fmt.Sprintf("GET /clients/%d", companyID), func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeEnvelope(w, page(f.clients, r))
	})
	mux.HandleFunc(fmt.Sprintf("GET /records/%d", companyID), func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeEnvelope(w, page(f.records, r))
	})

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	return f
}

// URL returns the base URL of the fake
func (f *PlatformFake) URL() string {
	return f.server.URL
}

// Close stops the fake
func (f *PlatformFake) Close() {
	f.server.Close()
}

// Requests returns the number of requests served
func (f *PlatformFake) Requests() int64 {
	return f.requests.Load()
}

// FailStaff toggles failures of the staff endpoint
func (f *PlatformFake) FailStaff(fail bool) {
	f.failStaff.Store(fail)
}

// AddStaff adds a staff member
func (f *PlatformFake) AddStaff(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staff = append(f.staff, map[string]any{"id": id, "name": name, "specialization": "Stylist"})
}

// AddService adds a service
func (f *PlatformFake) AddService(id int64, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services = append(f.services, map[string]any{"id": id, "title": title, "price_min": 1000, "price_max": 2000})
}

// AddClient adds a client
func (f *PlatformFake) AddClient(id int64, name, phone string, spent float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = append(f.clients, map[string]any{"id": id, "name": name, "phone": phone, "spent": spent})
}

// AddRecord adds a booking. datetime is RFC 3339.
func (f *PlatformFake) AddRecord(id, staffID, clientID int64, datetime string, attendance int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var client map[string]any
	for _, c := range f.clients {
		if c["id"] == clientID {
			client = map[string]any{"id": clientID, "name": c["name"], "phone": c["phone"]}
		}
	}
	f.records = append(f.records, map[string]any{
		"id":         id,
		"staff_id":   staffID,
		"date":       datetime[:10],
		"datetime":   datetime,
		"services":   []map[string]any{{"id": 1, "title": "Haircut", "cost": 1500}},
		"client":     client,
		"attendance": attendance,
		"confirmed":  1,
	})
}

// page slices items by the page and count query parameters (pages start at 1)
func page(items []map[string]any, r *http.Request) []map[string]any {
	p, _ := strconv.Atoi(r.URL.Query().Get("page"))
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	if p < 1 || count < 1 {
		return items
	}
	start := (p - 1) * count
	if start >= len(items) {
		return []map[string]any{}
	}
	end := min(start+count, len(items))
	return items[start:end]
}

func writeEnvelope(w http.ResponseWriter, data any) {
	if data == nil {
		data = []any{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
		"meta":    map[string]any{"count": 0},
	})
}
