package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/dispatcher"
	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/application/service"
	"github.com/garyjia/emission-workflow/internal/application/workflow"
	"github.com/garyjia/emission-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/emission-workflow/internal/infrastructure/report"
	"github.com/garyjia/emission-workflow/internal/infrastructure/worker"
	httpapi "github.com/garyjia/emission-workflow/internal/interfaces/http"
	"github.com/garyjia/emission-workflow/pkg/database"
	"github.com/garyjia/emission-workflow/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Data
	rawDB        *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// External
	notifier port.Notifier
	reports  port.FileStorage

	// Application
	observability *ObservabilityBundle
	dispatcher    dispatcher.Dispatcher
	orchestrator  workflow.Orchestrator
	services      *ServiceBundle

	// Background and transport
	workers *worker.Manager
	sweeper *worker.SLASweeper
	http    *httpapi.Server

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Cases        port.CaseRepository
	Documents    port.DocumentRepository
	MissingItems port.MissingItemRepository
	History      port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Cases        service.CaseService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components; call Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and starts the background workers:
//  1. database, migrations and repositories
//  2. notifier and report archive
//  3. metrics, dispatcher, orchestrator and services
//  4. workers and HTTP server
//
// A failed start releases whatever was already opened.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database", c.initDatabase},
		{"external clients", c.initExternal},
		{"application", c.initApplication},
		{"workers", c.initWorkers},
		{"http", c.initHTTP},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %v", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown stops workers, drains the dispatcher and closes the database
func (c *Container) teardown() []error {
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// waits for in-flight notifications before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.rawDB != nil {
		if err := c.rawDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.rawDB = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	if c.rawDB == nil {
		set("database", false, "not initialized")
	} else if err := c.rawDB.PingContext(ctx); err != nil {
		set("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		set("database", true, "")
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.Count()))
	}

	if c.sweeper != nil {
		runs, last, err := c.sweeper.Stats()
		msg := fmt.Sprintf("runs: %d", runs)
		if last != "" {
			msg += ", last report: " + last
		}
		if err != nil {
			msg += ", last error: " + err.Error()
		}
		set("sla_sweeper", err == nil, msg)
	}

	set("dispatcher", c.dispatcher != nil, "")
	return status
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger.Named("database"))
	if err != nil {
		return err
	}
	c.rawDB = bundle.Raw
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger.Named("repository"))
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternal(ctx context.Context) error {
	notifier, err := ProvideNotifier(&c.config.Lark, c.logger.Named("lark"))
	if err != nil {
		return err
	}
	c.notifier = notifier

	reports, err := ProvideReportStorage(&c.config.Reports, c.logger.Named("storage"))
	if err != nil {
		return err
	}
	c.reports = reports
	return nil
}

func (c *Container) initApplication(ctx context.Context) error {
	c.observability = ProvideObservability()

	disp, err := ProvideDispatcher(c.logger, c.observability.Metrics)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	orch, err := ProvideOrchestrator(&OrchestratorDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Metrics:    c.observability.Metrics,
		Rules:      c.config.Rules,
		SLA:        &c.config.SLA,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.orchestrator = orch

	services, err := ProvideServices(&ServiceDeps{
		Repos:        c.repositories,
		Orchestrator: c.orchestrator,
		Notifier:     c.notifier,
		Dispatcher:   c.dispatcher,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkers(ctx context.Context) error {
	manager, sweeper, err := ProvideWorkers(&WorkerDeps{
		Orchestrator: c.orchestrator,
		Reports:      c.reports,
		SLA:          &c.config.SLA,
		ReportsCfg:   &c.config.Reports,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = manager
	c.sweeper = sweeper

	return c.workers.StartAll(ctx)
}

func (c *Container) initHTTP(ctx context.Context) error {
	deps := httpapi.Dependencies{
		Cases:        c.services.Cases,
		Orchestrator: c.orchestrator,
		Sweeper:      c.sweeper,
		Reports:      c.reports,
		Gatherer:     c.observability.Registry,
		Observer:     c.observability.Metrics,
	}
	if c.reports != nil {
		deps.Renderer = report.NewSweepWorkbook(c.logger.Named("report"))
	}

	c.http = httpapi.NewServer(httpapi.ServerConfig{
		Host:         c.config.Server.Host,
		Port:         c.config.Server.Port,
		ReadTimeout:  c.config.Server.ReadTimeout,
		WriteTimeout: c.config.Server.WriteTimeout,
	}, deps, utils.NewKVLogger(c.logger.Named("http")))
	return nil
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Orchestrator returns the workflow orchestrator.
func (c *Container) Orchestrator() workflow.Orchestrator {
	return c.orchestrator
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// SLASweeper returns the SLA sweep worker.
func (c *Container) SLASweeper() *worker.SLASweeper {
	return c.sweeper
}

// HTTPServer returns the HTTP adapter; it is started by the caller.
func (c *Container) HTTPServer() *httpapi.Server {
	return c.http
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
