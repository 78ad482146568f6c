package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"smartTodo/internal/config"
	"smartTodo/internal/handlers"
	"smartTodo/internal/llm"
	"smartTodo/internal/logger"
	"smartTodo/internal/middleware"
	"smartTodo/internal/parser"
	"smartTodo/internal/repository/task/datastore"
	"smartTodo/internal/repository/task/inmemory"
	"smartTodo/internal/repository/task/mongodb"
	"smartTodo/internal/repository/task/postgres"
	"smartTodo/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

type App struct {
	config     *config.Config
	server     *http.Server
	router     *chi.Mux
	repository service.TaskRepository
	service    *service.TaskService
	shutdowns  []func() // run in reverse order on Close
	closeOnce  sync.Once
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: flushing logs")
		logger.Sync()
	})

	repo, closeRepo, err := OpenRepository(ctx, a.config)
	if err != nil {
		return fmt.Errorf("repository init: %w", err)
	}
	a.repository = repo
	a.shutdowns = append(a.shutdowns, closeRepo)

	a.service = service.NewTaskService(a.repository, NewParser(ctx, a.config))

	a.router = a.newRouter(handlers.NewTaskHandler(a.service))
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("App: initialized",
		zap.String("repository", a.config.Repository.Type),
		zap.Bool("parser_available", a.service.ParserAvailable()))
	return nil
}

func (a *App) newRouter(h *handlers.TaskHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", h.Info)
	r.Get("/health", h.HealthCheck)
	r.Mount("/api/tasks", h.Routes())
	return r
}

func (a *App) Router() http.Handler {
	return a.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("App: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Close()
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("App: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() {
	a.closeOnce.Do(func() {
		for _, fn := range slices.Backward(a.shutdowns) {
			fn()
		}
	})
}

// OpenRepository connects the backend named in cfg and returns a func releasing it.
func OpenRepository(ctx context.Context, cfg *config.Config) (service.TaskRepository, func(), error) {
	switch cfg.Repository.Type {
	case config.RepositoryMongo:
		storage, err := mongodb.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := storage.Close(closeCtx); err != nil {
				logger.Warn("App: closing MongoDB", zap.Error(err))
			}
		}, nil

	case config.RepositoryPostgres:
		storage, err := postgres.New(ctx, cfg.Database.URL, postgres.Options{
			MaxConns:        cfg.Database.MaxConnections,
			MinConns:        cfg.Database.MinConnections,
			MaxConnIdleTime: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(ctx); err != nil {
			storage.Close()
			return nil, nil, err
		}
		return storage, storage.Close, nil

	case config.RepositoryDatastore:
		storage, err := datastore.New(ctx, cfg.Datastore.ProjectID, cfg.Datastore.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return storage, func() {
			if err := storage.Close(); err != nil {
				logger.Warn("App: closing Datastore", zap.Error(err))
			}
		}, nil

	case config.RepositoryInMemory:
		logger.Warn("App: using in-memory storage, tasks are lost on restart")
		return inmemory.NewTaskStorage(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown repository type %q", cfg.Repository.Type)
}

// NewParser never fails: without a usable model the parser reports itself unavailable.
func NewParser(ctx context.Context, cfg *config.Config) *parser.Parser {
	opts := []parser.Option{
		parser.WithLocation(cfg.Location()),
		parser.WithCallOptions(llms.WithTemperature(cfg.LLM.Temperature)),
	}

	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		if errors.Is(err, llm.ErrMissingCredential) {
			logger.Warn("App: no LLM API key configured, parsing is disabled")
		} else {
			logger.Error("App: LLM client init failed, parsing is disabled", err)
		}
		return parser.New(nil, opts...)
	}
	return parser.New(model, opts...)
}
