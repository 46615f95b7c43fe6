package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"rosterd/internal/config"
	"rosterd/internal/health"
	"rosterd/internal/logger"
	"rosterd/internal/messaging"
	"rosterd/internal/metrics"
	"rosterd/internal/middleware"
	"rosterd/internal/storage"
	"rosterd/internal/student"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

type App struct {
	config   *config.Config
	router   chi.Router
	server   *http.Server
	logger   *slog.Logger
	producer *messaging.Producer
}

func New() *App {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		// The one fatal startup condition: no database credential.
		log.Fatalf("invalid config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	m, err := metrics.New(otel.Meter(ServiceName))
	if err != nil {
		slogLogger.Warn("failed to initialize metrics", "error", err)
		m = metrics.NewMock()
	}

	connector := storage.NewConnector(cfg.Database, slogLogger)

	ctx := context.Background()
	if err := connector.EnsureSchema(ctx, (*student.Student)(nil)); err != nil {
		// Per-operation errors are never fatal; requests will keep
		// failing until the database comes back.
		slogLogger.Error("failed to ensure schema", "error", err)
	}

	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	// NATS producer setup (optional: service runs without events)
	producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize NATS producer", "error", err)
		producer = nil
	} else {
		slogLogger.Info("NATS producer initialized successfully")
	}
	app.producer = producer

	studentRepo := student.NewRepository(connector, m)

	var publisher student.EventPublisher
	if producer != nil {
		publisher = producer
	}
	studentService := student.NewService(studentRepo, publisher, slogLogger)
	studentHandler := student.NewHandler(studentService, slogLogger, m)

	app.router.Route("/api", func(r chi.Router) {
		studentHandler.RegisterRoutes(r)
	})

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", a.config.Server.Port),
		Handler: a.router,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")
	if a.producer != nil {
		a.producer.Close()
	}
	return a.server.Shutdown(ctx)
}
