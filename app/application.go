// Package app wires the application's components together
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ekadashi.app/api"
	"ekadashi.app/config"
	"ekadashi.app/database"
	"ekadashi.app/dataset"
	"ekadashi.app/i18n"
	"ekadashi.app/metrics"
	"ekadashi.app/models"
	"ekadashi.app/providers"
	"ekadashi.app/repository"
	"ekadashi.app/scheduler"
	"ekadashi.app/service"
	"gorm.io/gorm"
)

// Application represents the main application with all its dependencies
type Application struct {
	config              *config.Config
	db                  *gorm.DB
	store               *dataset.Store
	dict                *i18n.Dictionary
	server              *api.Server
	scheduler           *scheduler.Scheduler
	locationService     *service.LocationService
	notificationService *service.NotificationService
	settingsService     *service.SettingsService
}

// NewApplication creates and initializes a new application instance
func NewApplication() (*Application, error) {
	app := &Application{}

	if err := app.loadConfiguration(); err != nil {
		return nil, err
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, err
	}

	if err := app.loadAssets(); err != nil {
		return nil, err
	}

	if err := app.initializeServices(); err != nil {
		return nil, err
	}

	return app, nil
}

// Config returns the loaded configuration
func (app *Application) Config() *config.Config {
	return app.config
}

func (app *Application) loadConfiguration() error {
	slog.Info("Loading configuration...")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("load application configuration: %w", err)
	}

	app.config = cfg
	slog.Info("Configuration loaded successfully")
	return nil
}

func (app *Application) initializeDatabase() error {
	slog.Info("Initializing database...")

	db, err := database.InitDB(app.config.Database)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		return fmt.Errorf("initialize database connection: %w", err)
	}

	if err := database.RunMigrations(db); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		return fmt.Errorf("run database migrations: %w", err)
	}

	app.db = db
	slog.Info("Database initialized successfully")
	return nil
}

func (app *Application) loadAssets() error {
	slog.Info("Loading dataset assets...")

	store, err := dataset.LoadFromFile(app.config.Dataset.EventsPath, app.config.Dataset.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("load event dataset: %w", err)
	}
	for _, problem := range store.Validate() {
		slog.Warn("dataset invariant violation", "problem", problem)
	}
	app.store = store

	dict, err := i18n.LoadFromFile(app.config.Dataset.MessagesPath, app.config.Dataset.DefaultLanguage)
	if err != nil {
		slog.Warn("messages asset unavailable, using built-in defaults", "error", err)
		dict = i18n.Empty(app.config.Dataset.DefaultLanguage)
	}
	app.dict = dict

	meta := store.Metadata()
	slog.Info("Dataset loaded", "version", meta.Version, "year", meta.Year, "events", len(store.All()))
	return nil
}

func (app *Application) initializeServices() error {
	slog.Info("Initializing services...")

	fused := app.positioningProvider("fused", app.config.Location.FusedAgentURL)
	legacy := app.positioningProvider("legacy", app.config.Location.LegacyAgentURL)

	geocodeCache := providers.NewCacheFromConfig(&app.config.Cache)
	cityResolver := providers.NewCityResolver(
		providers.NewHTTPGeocodeProvider(&app.config.Geocode),
		providers.NewStaticGeocodeProvider(app.config.Geocode.FallbackRadius),
		geocodeCache,
		app.config.Cache.TTL,
		metrics.NewCacheMetrics(app.config.Cache.Type),
	)

	locationCacheRepo := repository.NewLocationCacheRepository(app.db)
	preferencesRepo := repository.NewPreferencesRepository(app.db)
	workRepo := repository.NewScheduledWorkRepository(app.db)

	app.locationService = service.NewLocationService(
		fused,
		legacy,
		locationCacheRepo,
		cityResolver,
		&app.config.Location,
		metrics.NewResolutionMetrics(),
	)

	notifier, err := providers.NewNotifierFromConfig(&app.config.Notifier)
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	schedMetrics := metrics.NewSchedulerMetrics()
	queue := scheduler.NewQueue(workRepo, notifier, &app.config.Scheduler, schedMetrics)

	app.settingsService = service.NewSettingsService(preferencesRepo, app.store)
	app.notificationService = service.NewNotificationService(queue, app.store, app.dict, notifier, schedMetrics)

	sched, err := scheduler.NewScheduler(&app.config.Scheduler, queue, app.reconcileReminders)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	app.scheduler = sched

	app.server = api.NewServer(
		app.config,
		app.store,
		app.locationService,
		app.notificationService,
		app.settingsService,
	)

	slog.Info("Services initialized successfully")
	return nil
}

func (app *Application) positioningProvider(name, url string) providers.PositioningProvider {
	if url == "" {
		slog.Info("no positioning agent configured", "provider", name)
		return providers.NewUnavailableProvider(name)
	}
	return providers.NewHTTPPositioningAgent(name, url)
}

// Start runs the launch flow and begins serving
func (app *Application) Start() error {
	app.scheduler.Start()

	go app.runLaunchFlow()

	return app.server.Start()
}

// runLaunchFlow mirrors the on-launch control flow: preferences decide
// between automatic resolution and the manually selected city, and the
// resulting bucket drives the initial reminder reconciliation.
func (app *Application) runLaunchFlow() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	prefs, err := app.settingsService.Get()
	if err != nil {
		slog.Error("launch flow aborted, preferences unavailable", "error", err)
		return
	}

	bucket := prefs.CurrentTimezoneBucket

	if prefs.AutoDetectEnabled {
		result := app.locationService.ResolveCurrentLocation(ctx)
		switch result.Outcome {
		case service.LocationSuccess:
			bucket = result.Location.TimezoneBucket
			slog.Info("location resolved on launch",
				"city", result.Location.CityName, "bucket", bucket)
		case service.LocationPermissionDenied, service.LocationServicesDisabled, service.LocationNoLocation:
			slog.Warn("location unavailable on launch, keeping stored bucket",
				"outcome", result.Outcome, "bucket", bucket)
		}
	} else if prefs.SelectedCityID != "" {
		bucket = app.store.BucketForCity(prefs.SelectedCityID)
	}

	app.settingsService.SetCurrentBucket(bucket)
	app.reconcileReminders()
}

// reconcileReminders recomputes the durable queue for the current bucket
func (app *Application) reconcileReminders() {
	prefs, err := app.settingsService.Get()
	if err != nil {
		slog.Error("reminder reconciliation skipped, preferences unavailable", "error", err)
		return
	}

	if !prefs.NotificationsEnabled {
		if err := app.notificationService.CancelAll(); err != nil {
			slog.Error("failed to cancel reminders", "error", err)
		}
		return
	}

	bucket := prefs.CurrentTimezoneBucket
	if !bucket.Valid() {
		bucket = models.DefaultBucket
	}
	app.notificationService.RescheduleAll(bucket, prefs.EnabledReminderTypes(), app.config.Dataset.DefaultLanguage)
}

// Shutdown stops background work and closes the database
func (app *Application) Shutdown() error {
	slog.Info("Shutting down...")
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.db != nil {
		return database.CloseDB(app.db)
	}
	return nil
}
