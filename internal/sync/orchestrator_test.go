package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/platform"
	platformmocks "github.com/salonhub/booking-sync/internal/platform/mocks"
	"github.com/salonhub/booking-sync/internal/retry"
	"github.com/salonhub/booking-sync/internal/state"
	statemocks "github.com/salonhub/booking-sync/internal/state/mocks"
	"github.com/salonhub/booking-sync/internal/status"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newTestOrchestrator(client platform.Client, store state.Store, opts ...Option) Orchestrator {
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "run-1" }),
	}, opts...)
	return NewOrchestrator(client, noDelayExecutor(), store, Config{
		MinVisits:       2,
		ClientsPageSize: 2,
		RecordsPageSize: 10,
		Location:        time.UTC,
	}, opts...)
}

func waitForRun(t *testing.T, handle *RunHandle) {
	t.Helper()
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("sync run did not finish")
	}
}

// expectHappyPath sets up the platform with two staff, one service, three
// clients over two pages and four bookings
func expectHappyPath(client *platformmocks.MockClient) {
	client.EXPECT().ListStaff(gomock.Any()).Return([]booking.Staff{{ID: 1, Name: "Anna"}, {ID: 2, Name: "Olga"}}, nil)
	client.EXPECT().ListServices(gomock.Any()).Return([]booking.Service{{ID: 10, Title: "Haircut"}}, nil)
	client.EXPECT().ListClients(gomock.Any(), gomock.Any(), 2).DoAndReturn(
		func(_ context.Context, page, _ int) ([]booking.Client, error) {
			switch page {
			case 1:
				return []booking.Client{{ID: 100, Spent: 6000}, {ID: 101, Spent: 500}}, nil
			case 2:
				return []booking.Client{{ID: 102}}, nil
			default:
				return nil, nil
			}
		}).Times(3)
	client.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return([]booking.Record{
		{ID: 1, Client: &booking.RecordClient{ID: 100}, Attendance: booking.AttendanceAttended},
		{ID: 2, Client: &booking.RecordClient{ID: 100}, Attendance: booking.AttendanceAttended},
		{ID: 3, Client: &booking.RecordClient{ID: 100}, Attendance: booking.AttendanceAttended},
		{ID: 4, Client: &booking.RecordClient{ID: 101}, Attendance: booking.AttendancePending},
	}, nil)
}

func TestOrchestrator_SuccessfulRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)
	expectHappyPath(client)

	store := state.NewStore()
	o := newTestOrchestrator(client, store)

	handle, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", handle.ID)
	waitForRun(t, handle)

	run, err := store.CurrentRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.RunStatusSuccess, run.Status)
	assert.Equal(t, status.PhaseFinished, run.Phase)
	assert.Empty(t, run.Errors)
	assert.Empty(t, run.ErrorMessage)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, status.Progress{Staff: 2, Services: 1, Clients: 3, Records: 4}, run.Progress)
	assert.Equal(t, 3, run.Created)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 2, run.Skipped)

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Staff, 2)
	assert.Len(t, snap.Clients, 3)
	client100 := snap.ClientByID(100)
	require.NotNil(t, client100)
	assert.Equal(t, 3, client100.VisitCount)
	assert.InDelta(t, 2000.0, client100.AvgSum, 0.001)
	require.NotNil(t, snap.LastSyncAt)
	assert.True(t, fixedNow.Equal(*snap.LastSyncAt))
}

func TestOrchestrator_FailedPhaseDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)
	client.EXPECT().ListStaff(gomock.Any()).Return([]booking.Staff{{ID: 1}}, nil)
	client.EXPECT().ListServices(gomock.Any()).
		Return(nil, retry.Transient(errors.New("HTTP 502"))).Times(3)
	client.EXPECT().ListClients(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, page, _ int) ([]booking.Client, error) {
			if page == 1 {
				return []booking.Client{{ID: 7}}, nil
			}
			return nil, nil
		}).Times(2)
	client.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return([]booking.Record{{ID: 1}}, nil)

	store := state.NewStore()
	handle, err := newTestOrchestrator(client, store).Start(context.Background())
	require.NoError(t, err)
	waitForRun(t, handle)

	run, err := store.CurrentRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, status.RunStatusPartial, run.Status)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "services:")
	assert.Contains(t, run.Errors[0], "exhausted after 3 attempts")

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Staff, 1)
	assert.Empty(t, snap.Services)
	assert.Len(t, snap.Clients, 1)
	assert.Len(t, snap.Records, 1)
}

func TestOrchestrator_PanickingPhaseIsRecorded(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)
	client.EXPECT().ListStaff(gomock.Any()).DoAndReturn(func(context.Context) ([]booking.Staff, error) {
		panic("nil map")
	})
	client.EXPECT().ListServices(gomock.Any()).Return(nil, nil)
	client.EXPECT().ListClients(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	client.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(nil, nil)

	store := state.NewStore()
	handle, err := newTestOrchestrator(client, store).Start(context.Background())
	require.NoError(t, err)
	waitForRun(t, handle)

	run, _ := store.CurrentRun(context.Background())
	assert.Equal(t, status.RunStatusPartial, run.Status)
	require.Len(t, run.Errors, 1)
	assert.Contains(t, run.Errors[0], "staff: panic: nil map")
}

func TestOrchestrator_ConflictWhileRunning(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)

	release := make(chan struct{})
	client.EXPECT().ListStaff(gomock.Any()).DoAndReturn(func(context.Context) ([]booking.Staff, error) {
		<-release
		return nil, nil
	})
	client.EXPECT().ListServices(gomock.Any()).Return(nil, nil)
	client.EXPECT().ListClients(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	client.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(nil, nil)

	store := state.NewStore()
	o := newTestOrchestrator(client, store)

	handle, err := o.Start(context.Background())
	require.NoError(t, err)

	_, err = o.Start(context.Background())
	require.ErrorIs(t, err, ErrConflict)

	run, _ := store.CurrentRun(context.Background())
	assert.True(t, run.IsRunning())
	assert.Equal(t, status.PhaseStaff, run.Phase)

	close(release)
	waitForRun(t, handle)
	require.NoError(t, o.Shutdown(context.Background()))

	run, _ = store.CurrentRun(context.Background())
	assert.Equal(t, "run-1", run.ID)
	assert.False(t, run.IsRunning())
}

func TestOrchestrator_RequestCancellationDoesNotStopRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)
	expectHappyPath(client)

	store := state.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	handle, err := newTestOrchestrator(client, store).Start(ctx)
	require.NoError(t, err)
	cancel()
	waitForRun(t, handle)

	run, _ := store.CurrentRun(context.Background())
	assert.Equal(t, status.RunStatusSuccess, run.Status)
}

func TestOrchestrator_RecordsWindow(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)
	client.EXPECT().ListStaff(gomock.Any()).Return(nil, nil)
	client.EXPECT().ListServices(gomock.Any()).Return(nil, nil)
	client.EXPECT().ListClients(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	var got platform.RecordQuery
	client.EXPECT().ListRecords(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, q platform.RecordQuery) ([]booking.Record, error) {
			got = q
			return nil, nil
		})

	store := state.NewStore()
	handle, err := newTestOrchestrator(client, store).Start(context.Background())
	require.NoError(t, err)
	waitForRun(t, handle)

	assert.Equal(t, 1, got.Page)
	assert.Equal(t, 10, got.Count)
	assert.Equal(t, "2026-07-17", got.StartDate.Format(booking.DateLayout))
	assert.Equal(t, "2026-10-29", got.EndDate.Format(booking.DateLayout))
}

func TestOrchestrator_SnapshotReadFailureFailsRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)
	store := statemocks.NewMockStore(ctrl)

	current := &status.SyncRun{}
	store.EXPECT().UpdateRunAtomically(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, fn func(*status.SyncRun) bool) (bool, error) {
			return fn(current), nil
		}).AnyTimes()
	store.EXPECT().Snapshot(gomock.Any()).Return(nil, errors.New("corrupt snapshot"))

	var published *booking.Snapshot
	store.EXPECT().PublishSnapshot(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s *booking.Snapshot) error {
			published = s
			return nil
		})

	handle, err := newTestOrchestrator(client, store).Start(context.Background())
	require.NoError(t, err)
	waitForRun(t, handle)

	assert.Equal(t, status.RunStatusError, current.Status)
	assert.Contains(t, current.ErrorMessage, "corrupt snapshot")
	assert.Equal(t, status.PhaseFinished, current.Phase)
	require.NotNil(t, published, "a best-effort snapshot is still published")
}

func TestOrchestrator_StartFailsWhenStatusCannotBeRead(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	store := statemocks.NewMockStore(ctrl)
	store.EXPECT().UpdateRunAtomically(gomock.Any(), gomock.Any()).Return(false, errors.New("db down"))

	_, err := newTestOrchestrator(platformmocks.NewMockClient(ctrl), store).Start(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "db down")
}

func TestOrchestrator_Spans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)
	expectHappyPath(client)

	handle, err := newTestOrchestrator(client, state.NewStore(), WithTracer(tp.Tracer("test"))).
		Start(context.Background())
	require.NoError(t, err)
	waitForRun(t, handle)

	names := make(map[string]bool)
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
	}
	for _, want := range []string{"sync.run", "sync.phase.staff", "sync.phase.services", "sync.phase.clients", "sync.phase.records"} {
		assert.True(t, names[want], "missing span %s", want)
	}
}

func TestOrchestrator_ShutdownTimesOut(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)

	release := make(chan struct{})
	client.EXPECT().ListStaff(gomock.Any()).DoAndReturn(func(context.Context) ([]booking.Staff, error) {
		<-release
		return nil, nil
	})
	client.EXPECT().ListServices(gomock.Any()).Return(nil, nil)
	client.EXPECT().ListClients(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	client.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(nil, nil)

	o := newTestOrchestrator(client, state.NewStore())
	handle, err := o.Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, o.Shutdown(ctx))

	close(release)
	waitForRun(t, handle)
	assert.NoError(t, o.Shutdown(context.Background()))
}
