package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/salonhub/booking-sync/internal/api"
	v1 "github.com/salonhub/booking-sync/internal/api/v1"
	"github.com/salonhub/booking-sync/internal/app/storage"
	"github.com/salonhub/booking-sync/internal/config"
	"github.com/salonhub/booking-sync/internal/messaging"
	"github.com/salonhub/booking-sync/internal/notify"
	"github.com/salonhub/booking-sync/internal/otel"
	"github.com/salonhub/booking-sync/internal/platform"
	"github.com/salonhub/booking-sync/internal/retry"
	pkgsync "github.com/salonhub/booking-sync/internal/sync"
	"github.com/salonhub/booking-sync/internal/sync/coordinator"
	"github.com/salonhub/booking-sync/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 30 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 35 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	tracerName = "github.com/salonhub/booking-sync"
)

// BookingAppOptions is a function that configures the booking app builder
type BookingAppOptions func(*bookingAppConfig) error

// bookingAppConfig holds the builder state.
// It supports dependency injection for testing while providing defaults for production
type bookingAppConfig struct {
	config *config.Config

	// configManager, when set, serves live-reloaded message templates
	configManager config.Manager

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	platformClient platform.Client
	transport      messaging.Transport

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...BookingAppOptions) (*bookingAppConfig, error) {
	cfg := &bookingAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewBookingApp builds the components and the HTTP server
func NewBookingApp(
	ctx context.Context,
	opts ...BookingAppOptions,
) (*BookingApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	components, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		components.Close(ctx)
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return &BookingApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
	}, nil
}

// BuildComponents wires the sync and notification components without the
// HTTP server, for one-shot commands. The caller must Close the result.
func BuildComponents(ctx context.Context, opts ...BookingAppOptions) (*AppComponents, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildComponents(ctx, cfg)
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithConfigManager sets the configuration from a manager. Message
// templates are then read from the manager's current configuration on
// every dispatch pass, so edits to the file apply without a restart.
func WithConfigManager(m config.Manager) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		if m == nil {
			return fmt.Errorf("config manager cannot be nil")
		}
		cfg.configManager = m
		cfg.config = m.GetConfig()
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithPlatformClient allows injecting a platform client (for testing).
// The client must not retry on its own.
func WithPlatformClient(c platform.Client) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		cfg.platformClient = c
		return nil
	}
}

// WithTransport allows injecting a messaging transport (for testing)
func WithTransport(t messaging.Transport) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		cfg.transport = t
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider
func WithMeterProvider(mp metric.MeterProvider) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) BookingAppOptions {
	return func(cfg *bookingAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildComponents creates every component from the storage factory. On
// error, everything created so far is released.
func buildComponents(ctx context.Context, b *bookingAppConfig) (components *AppComponents, err error) {
	if b.storageFactory == nil {
		b.storageFactory, err = storage.NewStorageFactory(ctx, b.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}
	defer func() {
		if err != nil {
			b.storageFactory.Cleanup()
		}
	}()

	components = &AppComponents{Storage: b.storageFactory}
	tracer := otel.Tracer(b.tracerProvider, tracerName)

	components.Store, err = b.storageFactory.CreateStateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}
	if err = components.Store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	if err = buildSyncComponents(b, components, tracer); err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}
	if err = buildNotifyComponents(ctx, b, components, tracer); err != nil {
		return nil, fmt.Errorf("failed to build notification components: %w", err)
	}

	components.Coordinator = coordinator.New(buildJobs(b.config, components))
	return components, nil
}

// buildSyncComponents builds the retry executor, the platform clients and
// the orchestrator
func buildSyncComponents(b *bookingAppConfig, c *AppComponents, tracer trace.Tracer) error {
	slog.Info("Initializing sync components")

	exec, err := buildRetryExecutor(b)
	if err != nil {
		return err
	}

	client := b.platformClient
	if client == nil {
		client, err = buildPlatformClient(&b.config.Platform)
		if err != nil {
			return err
		}
	}
	c.Platform = platform.NewRetryingClient(client, exec)

	syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}

	c.Orchestrator = pkgsync.NewOrchestrator(client, exec, c.Store, pkgsync.Config{
		MinVisits:        b.config.Sync.MinVisits,
		WindowPastDays:   b.config.Sync.WindowPastDays,
		WindowFutureDays: b.config.Sync.WindowFutureDays,
		ClientsPageSize:  b.config.Platform.ClientsPageSize,
		RecordsPageSize:  b.config.Platform.RecordsPageSize,
		Location:         b.config.Notifications.Location(),
	},
		pkgsync.WithSyncMetrics(syncMetrics),
		pkgsync.WithTracer(tracer),
	)
	return nil
}

func buildRetryExecutor(b *bookingAppConfig) (*retry.Executor, error) {
	retryMetrics, err := telemetry.NewRetryMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry metrics: %w", err)
	}

	rc := b.config.Sync.Retry
	return retry.NewExecutor(retry.Config{
		MaxAttempts:    rc.MaxAttempts,
		RateLimitDelay: rc.RateLimitDelay,
		TransientDelay: rc.TransientDelay,
		InterCallDelay: rc.InterCallDelay,
	}, retry.WithNotify(func(ev retry.Event) {
		retryMetrics.RecordRetry(context.Background(), ev.Kind.String())
	})), nil
}

func buildPlatformClient(pc *config.PlatformConfig) (platform.Client, error) {
	partnerToken, err := pc.GetPartnerToken()
	if err != nil {
		return nil, err
	}
	// The user token is optional unless a token file is configured
	userToken, err := pc.GetUserToken()
	if err != nil && pc.UserTokenFile != "" {
		return nil, err
	}

	return platform.NewHTTPClient(platform.Options{
		BaseURL:      pc.BaseURL,
		CompanyID:    pc.CompanyID,
		PartnerToken: partnerToken,
		UserToken:    userToken,
		Timeout:      pc.Timeout,
	})
}

// buildNotifyComponents builds the dispatcher and its stores
func buildNotifyComponents(ctx context.Context, b *bookingAppConfig, c *AppComponents, tracer trace.Tracer) error {
	slog.Info("Initializing notification components")

	sent, err := b.storageFactory.CreateIdempotencyStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create idempotency store: %w", err)
	}
	c.Directory, err = b.storageFactory.CreateDirectory(ctx)
	if err != nil {
		return fmt.Errorf("failed to create channel-link directory: %w", err)
	}

	transport := b.transport
	if transport == nil {
		transport = buildTransport(&b.config.Messaging.Telegram)
	}

	dispatchMetrics, err := telemetry.NewDispatchMetrics(b.meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create dispatch metrics: %w", err)
	}

	nc := b.config.Notifications
	var templates notify.TemplateRegistry = buildTemplates(nc.Templates)
	if b.configManager != nil {
		templates = managedTemplates{manager: b.configManager}
	}

	c.Dispatcher = notify.NewDispatcher(c.Store, sent, templates, c.Directory, transport,
		notify.Config{
			SalonName:             nc.SalonName,
			Location:              nc.Location(),
			DayReminderHour:       nc.DayReminderHour,
			DayReminderTolerance:  nc.DayReminderTolerance,
			HourReminderTolerance: nc.HourReminderTolerance,
			PostVisitOffset:       nc.PostVisitOffset,
			CleanupAfter:          nc.CleanupAfter,
		},
		notify.WithDispatchMetrics(dispatchMetrics),
		notify.WithTracer(tracer),
	)
	return nil
}

// buildTransport returns the Telegram transport, or a disabled one when no
// bot token is configured
func buildTransport(tc *config.TelegramConfig) messaging.Transport {
	token, err := tc.GetToken()
	if err == nil {
		var tg *messaging.Telegram
		tg, err = messaging.NewTelegram(messaging.TelegramOptions{
			Token:      token,
			APIBaseURL: tc.APIBaseURL,
			Timeout:    tc.Timeout,
		})
		if err == nil {
			return tg
		}
	}
	slog.Warn("Telegram is not configured, notifications will fail until it is", "error", err)
	return messaging.Disabled{}
}

func buildTemplates(templates map[string]config.TemplateConfig) notify.StaticTemplates {
	registry := make(notify.StaticTemplates, len(templates))
	for name, tmpl := range templates {
		registry[notify.Type(name)] = notify.Template{Text: tmpl.Text, Active: tmpl.Active}
	}
	return registry
}

// managedTemplates serves the templates of the manager's current configuration
type managedTemplates struct {
	manager config.Manager
}

func (m managedTemplates) Template(ctx context.Context, t notify.Type) (notify.Template, bool, error) {
	return buildTemplates(m.manager.GetConfig().Notifications.Templates).Template(ctx, t)
}

// buildJobs returns the background jobs enabled by the configuration
func buildJobs(cfg *config.Config, c *AppComponents) []coordinator.Job {
	var jobs []coordinator.Job
	if cfg.Sync.Interval > 0 {
		jobs = append(jobs, coordinator.SyncJob(c.Orchestrator, cfg.Sync.Interval))
	}
	if cfg.Notifications.Enabled {
		jobs = append(jobs, coordinator.DispatchJob(c.Dispatcher, cfg.Notifications.Interval))
	}
	return jobs
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *bookingAppConfig, c *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry goes first to capture every request
	prefix := []func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)}
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			prefix = append(prefix, metricsMiddleware)
			slog.Info("HTTP metrics middleware enabled")
		}
	}
	middlewares := append(prefix, b.middlewares...)

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(middlewares...),
		api.WithReadinessCheck(c.Storage.CheckReadiness),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}

	router := api.NewServer(v1.Dependencies{
		Orchestrator: c.Orchestrator,
		Store:        c.Store,
		Dispatcher:   c.Dispatcher,
		Directory:    c.Directory,
		Platform:     c.Platform,
	}, serverOpts...)

	server := &http.Server{
		Addr:              b.address,
		Handler:           router,
		ReadTimeout:       b.readTimeout,
		ReadHeaderTimeout: b.readTimeout,
		WriteTimeout:      b.writeTimeout,
		IdleTimeout:       b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
