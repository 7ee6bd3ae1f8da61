package container

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/dispatcher"
	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/application/service"
	"github.com/garyjia/emission-workflow/internal/application/workflow"
	"github.com/garyjia/emission-workflow/internal/domain/requirement"
	infraLark "github.com/garyjia/emission-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/emission-workflow/internal/infrastructure/metrics"
	"github.com/garyjia/emission-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/emission-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/emission-workflow/internal/infrastructure/report"
	"github.com/garyjia/emission-workflow/internal/infrastructure/storage"
	"github.com/garyjia/emission-workflow/internal/infrastructure/worker"
	"github.com/garyjia/emission-workflow/migrations"
	"github.com/garyjia/emission-workflow/pkg/database"
	"github.com/garyjia/emission-workflow/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Raw            *database.DB
	TransactionMgr *sqlite.DB
}

// ObservabilityBundle holds the metrics registry and collectors.
type ObservabilityBundle struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// ProvideDatabase opens the SQLite file, applies pending migrations and
// wraps the pool in the transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	raw, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(raw, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrationsFS(migrations.FS)
	}
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Raw:            raw,
		TransactionMgr: sqlite.NewDB(raw.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Cases:        repository.NewCaseRepository(db, logger),
		Documents:    repository.NewDocumentRepository(db, logger),
		MissingItems: repository.NewMissingItemRepository(db, logger),
		History:      repository.NewHistoryRepository(db, logger),
	}, nil
}

// ProvideNotifier returns the Lark notifier, or a log-only notifier when the
// bot is not configured.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	larkCfg := infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		Chats:         cfg.Chats,
		DefaultChatID: cfg.DefaultChatID,
	}
	if !larkCfg.Enabled() {
		logger.Info("Lark is not configured, notifications will only be logged")
		return infraLark.NewLogNotifier(logger), nil
	}

	sdkClient := infraLark.NewSDKClient(larkCfg, logger)
	return infraLark.NewNotifier(sdkClient, larkCfg, logger), nil
}

// ProvideReportStorage returns the SLA report archive, or nil when disabled.
func ProvideReportStorage(cfg *ReportsConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("reports config is required")
	}
	if cfg.Dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	return storage.NewLocalFileStorage(cfg.Dir, logger), nil
}

// ProvideObservability creates a registry carrying the engine metrics and
// the standard Go and process collectors.
func ProvideObservability() *ObservabilityBundle {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &ObservabilityBundle{
		Registry: reg,
		Metrics:  metrics.New(reg),
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger, observer dispatcher.Observer) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher")))}
	if observer != nil {
		opts = append(opts, dispatcher.WithObserver(observer))
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// OrchestratorDeps holds the dependencies of the workflow orchestrator.
type OrchestratorDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    workflow.Metrics
	Rules      requirement.RuleSet
	SLA        *SLAConfig
	Logger     *zap.Logger
}

// ProvideOrchestrator creates the workflow orchestrator.
func ProvideOrchestrator(deps *OrchestratorDeps) (workflow.Orchestrator, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.SLA == nil {
		return nil, fmt.Errorf("sla config is required")
	}

	return workflow.NewOrchestrator(
		workflow.Repositories{
			Cases:        deps.Repos.Cases,
			Documents:    deps.Repos.Documents,
			MissingItems: deps.Repos.MissingItems,
			History:      deps.Repos.History,
			TxManager:    deps.TxManager,
		},
		requirement.NewEngine(deps.Rules),
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithMetrics(deps.Metrics),
		workflow.WithLogger(deps.Logger.Named("workflow")),
		workflow.WithSLAPolicy(deps.SLA.Policy),
		workflow.WithSweepConcurrency(deps.SLA.SweepConcurrency),
	), nil
}

// ServiceDeps holds the dependencies of the application services.
type ServiceDeps struct {
	Repos        *RepositoryBundle
	Orchestrator workflow.Orchestrator
	Notifier     port.Notifier
	Dispatcher   dispatcher.Dispatcher
	Logger       *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification handlers to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}

	kv := utils.NewKVLogger(deps.Logger.Named("service"))

	notifications := service.NewNotificationService(deps.Notifier, kv)
	if deps.Dispatcher != nil {
		notifications.Register(deps.Dispatcher)
	}

	return &ServiceBundle{
		Cases: service.NewCaseService(
			deps.Repos.Cases,
			deps.Repos.Documents,
			deps.Repos.History,
			deps.Orchestrator,
			kv,
		),
		Notification: notifications,
	}, nil
}

// WorkerDeps holds the dependencies of the background workers.
type WorkerDeps struct {
	Orchestrator workflow.Orchestrator
	Reports      port.FileStorage
	SLA          *SLAConfig
	ReportsCfg   *ReportsConfig
	Logger       *zap.Logger
}

// ProvideWorkers creates the worker manager with the SLA sweeper registered.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, *worker.SLASweeper, error) {
	if deps == nil || deps.Orchestrator == nil {
		return nil, nil, fmt.Errorf("orchestrator is required")
	}
	if deps.SLA == nil || deps.ReportsCfg == nil {
		return nil, nil, fmt.Errorf("sla and reports config are required")
	}

	var renderer worker.ReportRenderer
	if deps.Reports != nil {
		renderer = report.NewSweepWorkbook(deps.Logger.Named("report"))
	}

	sweeper := worker.NewSLASweeper(deps.Orchestrator, renderer, deps.Reports, worker.SLASweeperConfig{
		Interval:   deps.SLA.SweepInterval,
		RunOnStart: deps.SLA.SweepOnStart,
		ArchiveDir: deps.ReportsCfg.ArchiveDir,
		Retention:  deps.ReportsCfg.Retention,
	}, deps.Logger.Named("sla_sweeper"))

	manager := worker.NewManager(deps.Logger.Named("workers"))
	manager.Register(sweeper)

	return manager, sweeper, nil
}
