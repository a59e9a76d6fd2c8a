package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	storagemocks "github.com/salonhub/booking-sync/internal/app/storage/mocks"
	"github.com/salonhub/booking-sync/internal/booking"
	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/messaging"
	messagingmocks "github.com/salonhub/booking-sync/internal/messaging/mocks"
	"github.com/salonhub/booking-sync/internal/notify"
	"github.com/salonhub/booking-sync/internal/platform"
	platformmocks "github.com/salonhub/booking-sync/internal/platform/mocks"
	"github.com/salonhub/booking-sync/internal/sync/coordinator"
)

// createValidTestConfig creates a minimal valid config storing files under a temp dir
func createValidTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dataDir := t.TempDir()
	return &config.Config{
		Platform: config.PlatformConfig{ClientsPageSize: 50, RecordsPageSize: 50},
		Notifications: config.NotificationsConfig{
			SalonName: "Salon",
			Timezone:  "UTC",
			Interval:  time.Minute,
			Templates: map[string]config.TemplateConfig{
				string(notify.TypePostVisit): {Text: "Thanks, {client_name}!", Active: true},
			},
		},
		Storage: config.StorageConfig{
			Type:       config.StorageTypeFile,
			DataDir:    dataDir,
			SQLitePath: filepath.Join(dataDir, "booking-sync.db"),
		},
	}
}

func TestBaseConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		built, err := baseConfig(WithConfig(createValidTestConfig(t)))
		require.NoError(t, err)
		assert.Equal(t, defaultHTTPAddress, built.address)
		assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	})

	t.Run("chained options", func(t *testing.T) {
		t.Parallel()
		mw := func(next http.Handler) http.Handler { return next }
		built, err := baseConfig(
			WithConfig(createValidTestConfig(t)),
			WithAddress(":8888"),
			WithMiddlewares(mw),
			WithTransport(messaging.Disabled{}),
		)
		require.NoError(t, err)
		assert.Equal(t, ":8888", built.address)
		assert.Len(t, built.middlewares, 1)
		assert.Equal(t, messaging.Disabled{}, built.transport)
	})

	t.Run("option error", func(t *testing.T) {
		t.Parallel()
		built, err := baseConfig(WithConfig(createValidTestConfig(t)), WithAddress(":"))
		require.Error(t, err)
		assert.Nil(t, built)
	})

	t.Run("config is required", func(t *testing.T) {
		t.Parallel()
		_, err := baseConfig(WithAddress(":9090"))
		assert.EqualError(t, err, "config cannot be nil")
	})
}

func TestWithAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "valid address", address: ":9999", want: ":9999"},
		{name: "valid address with host", address: "127.0.0.1:9999", want: "127.0.0.1:9999"},
		{name: "valid address with localhost", address: "localhost:9999", want: "localhost:9999"},
		{name: "invalid empty address", address: "", wantErr: true},
		{name: "invalid empty port", address: ":", wantErr: true},
		{name: "invalid missing port", address: "localhost", wantErr: true},
		{name: "invalid port out of range", address: "localhost:999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &bookingAppConfig{}
			err := WithAddress(tt.address)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.address)
		})
	}
}

func TestBuildJobs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sync      time.Duration
		notify    bool
		wantNames []string
	}{
		{name: "nothing scheduled"},
		{name: "sync only", sync: time.Hour, wantNames: []string{coordinator.SyncJobName}},
		{name: "dispatch only", notify: true, wantNames: []string{coordinator.DispatchJobName}},
		{
			name:      "both",
			sync:      time.Hour,
			notify:    true,
			wantNames: []string{coordinator.SyncJobName, coordinator.DispatchJobName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := createValidTestConfig(t)
			cfg.Sync.Interval = tt.sync
			cfg.Notifications.Enabled = tt.notify

			var names []string
			for _, job := range buildJobs(cfg, &AppComponents{}) {
				names = append(names, job.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestBuildTemplates(t *testing.T) {
	t.Parallel()

	registry := buildTemplates(map[string]config.TemplateConfig{
		"post_visit":            {Text: "Thanks", Active: true},
		"booking_reminder_hour": {Text: "Soon", Active: false},
	})

	tmpl, found, err := registry.Template(context.Background(), notify.TypePostVisit)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, notify.Template{Text: "Thanks", Active: true}, tmpl)

	tmpl, found, err = registry.Template(context.Background(), notify.TypeReminderHour)
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, tmpl.Active)

	_, found, err = registry.Template(context.Background(), notify.TypeReminderDay)
	require.NoError(t, err)
	assert.False(t, found)
}

// stubManager is a config.Manager whose configuration is swapped by the test
type stubManager struct {
	cfg *config.Config
}

func (m *stubManager) GetConfig() *config.Config { return m.cfg }

func (*stubManager) ReloadConfig() error { return nil }

func (*stubManager) WatchConfig(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (*stubManager) Close() error { return nil }

func TestManagedTemplates(t *testing.T) {
	t.Parallel()

	mgr := &stubManager{cfg: createValidTestConfig(t)}
	registry := managedTemplates{manager: mgr}

	tmpl, found, err := registry.Template(context.Background(), notify.TypePostVisit)
	require.NoError(t, err)
	require.True(t, found)
	original := tmpl.Text

	updated := *mgr.cfg
	updated.Notifications.Templates = map[string]config.TemplateConfig{
		"post_visit": {Text: "Thank you for visiting", Active: true},
	}
	mgr.cfg = &updated

	tmpl, found, err = registry.Template(context.Background(), notify.TypePostVisit)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Thank you for visiting", tmpl.Text)
	assert.NotEqual(t, original, tmpl.Text)
}

func TestWithConfigManager(t *testing.T) {
	t.Parallel()

	_, err := baseConfig(WithConfigManager(nil))
	assert.EqualError(t, err, "config manager cannot be nil")

	mgr := &stubManager{cfg: createValidTestConfig(t)}
	cfg, err := baseConfig(WithConfigManager(mgr))
	require.NoError(t, err)
	assert.Same(t, mgr.cfg, cfg.config)
}

func TestBuildTransport(t *testing.T) {
	t.Setenv(config.EnvTelegramToken, "")

	assert.Equal(t, messaging.Disabled{}, buildTransport(&config.TelegramConfig{}))
	assert.IsType(t, &messaging.Telegram{}, buildTransport(&config.TelegramConfig{Token: "123:abc"}))
}

func TestBuildPlatformClient(t *testing.T) {
	t.Setenv(config.EnvPlatformPartnerToken, "")
	t.Setenv(config.EnvPlatformUserToken, "")

	_, err := buildPlatformClient(&config.PlatformConfig{BaseURL: "https://platform.test", CompanyID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no platform partner token configured")

	_, err = buildPlatformClient(&config.PlatformConfig{
		BaseURL:       "https://platform.test",
		CompanyID:     1,
		PartnerToken:  "partner",
		UserTokenFile: filepath.Join(t.TempDir(), "missing"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read platform user token")

	client, err := buildPlatformClient(&config.PlatformConfig{
		BaseURL:      "https://platform.test",
		CompanyID:    1,
		PartnerToken: "partner",
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestBuildComponents(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)
	transport := messagingmocks.NewMockTransport(ctrl)

	client.EXPECT().ListStaff(gomock.Any()).Return([]booking.Staff{{ID: 1, Name: "Anna"}}, nil)
	client.EXPECT().ListServices(gomock.Any()).Return(nil, nil)
	client.EXPECT().ListClients(gomock.Any(), 1, 50).
		Return([]booking.Client{{ID: 100, Name: "Maria", Phone: "89991234567"}}, nil)
	client.EXPECT().ListClients(gomock.Any(), 2, 50).Return(nil, nil)
	client.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(nil, nil)

	ctx := context.Background()
	components, err := BuildComponents(ctx,
		WithConfig(createValidTestConfig(t)),
		WithPlatformClient(client),
		WithTransport(transport),
	)
	require.NoError(t, err)
	t.Cleanup(func() { components.Close(ctx) })

	require.NoError(t, components.Storage.CheckReadiness(ctx))

	// A sync publishes the snapshot the dispatcher reads
	handle, err := components.Orchestrator.Start(ctx)
	require.NoError(t, err)
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("sync run did not finish")
	}

	snap, err := components.Store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Clients, 1)

	require.NoError(t, components.Directory.Link(ctx, "+7 999 123-45-67", "555"))
	transport.EXPECT().SendBatch(gomock.Any(), []string{"555"}, "Closed tomorrow").
		Return(messaging.BatchResult{Sent: 1, Errors: []string{}})

	result, err := components.Dispatcher.Broadcast(ctx, nil, "Closed tomorrow")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 0, result.Unlinked)
}

func TestBuildComponents_StorageFailureCleansUp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := storagemocks.NewMockFactory(ctrl)
	factory.EXPECT().CreateStateStore(gomock.Any()).Return(nil, errors.New("disk full"))
	factory.EXPECT().Cleanup()

	_, err := BuildComponents(context.Background(),
		WithConfig(createValidTestConfig(t)),
		WithStorageFactory(factory),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create state store: disk full")
}

func TestNewBookingApp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := platformmocks.NewMockClient(ctrl)

	cfg := createValidTestConfig(t)
	cfg.Notifications.Enabled = true

	ctx := context.Background()
	app, err := NewBookingApp(ctx,
		WithConfig(cfg),
		WithAddress("127.0.0.1:0"),
		WithPlatformClient(client),
		WithTransport(messaging.Disabled{}),
		WithMetricsHandler(http.NotFoundHandler()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { app.components.Close(ctx) })

	assert.Equal(t, cfg, app.GetConfig())
	assert.Equal(t, "127.0.0.1:0", app.GetHTTPServer().Addr)
	assert.NotNil(t, app.Components().Coordinator)
	assert.Implements(t, (*platform.Client)(nil), app.Components().Platform)
}
