// Package v1 provides the /api/v1 handlers.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/salonhub/booking-sync/internal/api/common"
	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/notify"
	"github.com/salonhub/booking-sync/internal/notify/directory"
	"github.com/salonhub/booking-sync/internal/platform"
	"github.com/salonhub/booking-sync/internal/retry"
	"github.com/salonhub/booking-sync/internal/state"
	pkgsync "github.com/salonhub/booking-sync/internal/sync"
)

// Dependencies are the components the handlers operate on
type Dependencies struct {
	Orchestrator pkgsync.Orchestrator
	Store        state.Store
	Dispatcher   notify.Dispatcher
	Directory    directory.Directory
	// Platform serves the booking mutation endpoints; it should retry
	Platform platform.Client
}

// Routes holds the handlers
type Routes struct {
	deps Dependencies
}

// Router creates the /api/v1 router
func Router(deps Dependencies) http.Handler {
	routes := &Routes{deps: deps}

	r := chi.NewRouter()

	r.Route("/sync", func(r chi.Router) {
		r.Post("/", routes.startSync)
		r.Get("/status", routes.syncStatus)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Post("/dispatch", routes.dispatch)
		r.Post("/broadcast", routes.broadcast)
	})

	r.Post("/channel-links", routes.linkChannel)

	r.Route("/snapshot", func(r chi.Router) {
		r.Get("/", routes.snapshotSummary)
		r.Get("/clients/{id}", routes.snapshotClient)
	})

	r.Route("/records", func(r chi.Router) {
		r.Post("/", routes.createRecord)
		r.Put("/{id}", routes.updateRecord)
		r.Delete("/{id}", routes.deleteRecord)
	})

	return r
}

// StartSyncResponse is returned when a sync run was accepted
type StartSyncResponse struct {
	RunID string `json:"runId"`
}

// BroadcastRequest is the body of POST /notifications/broadcast
type BroadcastRequest struct {
	// Phones limits the broadcast; empty means every client in the snapshot
	Phones []string `json:"phones,omitempty"`
	Text   string   `json:"text"`
}

// LinkRequest is the body of POST /channel-links
type LinkRequest struct {
	Phone  string `json:"phone"`
	ChatID string `json:"chatId"`
}

// SnapshotCounts holds the number of items per entity
type SnapshotCounts struct {
	Staff    int `json:"staff"`
	Services int `json:"services"`
	Clients  int `json:"clients"`
	Records  int `json:"records"`
}

// SnapshotSummaryResponse describes the published snapshot
type SnapshotSummaryResponse struct {
	LastSyncAt *time.Time     `json:"lastSyncAt,omitempty"`
	Counts     SnapshotCounts `json:"counts"`
}

// startSync handles POST /api/v1/sync
func (rr *Routes) startSync(w http.ResponseWriter, r *http.Request) {
	handle, err := rr.deps.Orchestrator.Start(r.Context())
	if errors.Is(err, pkgsync.ErrConflict) {
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to start sync", "error", err)
		common.WriteErrorResponse(w, "failed to start sync", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, StartSyncResponse{RunID: handle.ID}, http.StatusAccepted)
}

// syncStatus handles GET /api/v1/sync/status
func (rr *Routes) syncStatus(w http.ResponseWriter, r *http.Request) {
	run, err := rr.deps.Store.CurrentRun(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to read sync status", "error", err)
		common.WriteErrorResponse(w, "failed to read sync status", http.StatusInternalServerError)
		return
	}
	if run == nil {
		common.WriteErrorResponse(w, "no sync run yet", http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, run, http.StatusOK)
}

// dispatch handles POST /api/v1/notifications/dispatch
func (rr *Routes) dispatch(w http.ResponseWriter, r *http.Request) {
	common.WriteJSONResponse(w, rr.deps.Dispatcher.Dispatch(r.Context()), http.StatusOK)
}

// broadcast handles POST /api/v1/notifications/broadcast
func (rr *Routes) broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		common.WriteErrorResponse(w, "text is required", http.StatusBadRequest)
		return
	}

	result, err := rr.deps.Dispatcher.Broadcast(r.Context(), req.Phones, req.Text)
	if errors.Is(err, state.ErrNoSnapshot) {
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Broadcast failed", "error", err)
		common.WriteErrorResponse(w, "broadcast failed", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, result, http.StatusOK)
}

// linkChannel handles POST /api/v1/channel-links
func (rr *Routes) linkChannel(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := rr.deps.Directory.Link(r.Context(), req.Phone, req.ChatID)
	if errors.Is(err, directory.ErrInvalidLink) {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to store channel link", "error", err)
		common.WriteErrorResponse(w, "failed to store channel link", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// snapshotSummary handles GET /api/v1/snapshot
func (rr *Routes) snapshotSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := rr.snapshot(w, r)
	if !ok {
		return
	}
	common.WriteJSONResponse(w, SnapshotSummaryResponse{
		LastSyncAt: snap.LastSyncAt,
		Counts: SnapshotCounts{
			Staff:    len(snap.Staff),
			Services: len(snap.Services),
			Clients:  len(snap.Clients),
			Records:  len(snap.Records),
		},
	}, http.StatusOK)
}

// snapshotClient handles GET /api/v1/snapshot/clients/{id}
func (rr *Routes) snapshotClient(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetIDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, ok := rr.snapshot(w, r)
	if !ok {
		return
	}
	client, found := snap.ClientByID(id)
	if !found {
		common.WriteErrorResponse(w, "client not found", http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, client, http.StatusOK)
}

func (rr *Routes) snapshot(w http.ResponseWriter, r *http.Request) (*booking.Snapshot, bool) {
	snap, err := rr.deps.Store.Snapshot(r.Context())
	if errors.Is(err, state.ErrNoSnapshot) {
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to read snapshot", "error", err)
		common.WriteErrorResponse(w, "failed to read snapshot", http.StatusInternalServerError)
		return nil, false
	}
	return snap, true
}

// createRecord handles POST /api/v1/records
func (rr *Routes) createRecord(w http.ResponseWriter, r *http.Request) {
	var input platform.RecordInput
	if err := common.DecodeJSONBody(w, r, &input); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	record, err := rr.deps.Platform.CreateRecord(r.Context(), input)
	if err != nil {
		writePlatformError(w, r, "create record", err)
		return
	}
	common.WriteJSONResponse(w, record, http.StatusCreated)
}

// updateRecord handles PUT /api/v1/records/{id}
func (rr *Routes) updateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetIDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var input platform.RecordInput
	if err := common.DecodeJSONBody(w, r, &input); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	record, err := rr.deps.Platform.UpdateRecord(r.Context(), id, input)
	if err != nil {
		writePlatformError(w, r, "update record", err)
		return
	}
	common.WriteJSONResponse(w, record, http.StatusOK)
}

// deleteRecord handles DELETE /api/v1/records/{id}
func (rr *Routes) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetIDParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rr.deps.Platform.DeleteRecord(r.Context(), id); err != nil {
		writePlatformError(w, r, "delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writePlatformError maps upstream failures to 502 and everything else to 500
func writePlatformError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.ErrorContext(r.Context(), "Booking platform call failed", "op", op, "error", err)
	var httpErr *platform.HTTPError
	if retry.IsExhausted(err) || errors.As(err, &httpErr) {
		common.WriteErrorResponse(w, op+": booking platform unavailable", http.StatusBadGateway)
		return
	}
	common.WriteErrorResponse(w, op+" failed", http.StatusInternalServerError)
}
