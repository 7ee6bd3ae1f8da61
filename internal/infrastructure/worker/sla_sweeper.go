package worker

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/application/workflow"
)

// Sweeper runs one SLA sweep over the active cases
type Sweeper interface {
	SweepSLA(ctx context.Context) (*workflow.SweepReport, error)
}

// ReportRenderer turns a sweep report into an archivable file
type ReportRenderer interface {
	Render(report *workflow.SweepReport) ([]byte, error)
}

// SLASweeperConfig holds the sweeper settings
type SLASweeperConfig struct {
	Interval   time.Duration
	RunOnStart bool

	// ArchiveDir is the storage directory for rendered reports. Reports are
	// only archived when both a renderer and a storage are configured.
	ArchiveDir string

	// Retention is the number of archived reports kept; 0 keeps all
	Retention int
}

// DefaultSLASweeperConfig returns the default sweeper settings
func DefaultSLASweeperConfig() SLASweeperConfig {
	return SLASweeperConfig{
		Interval:   15 * time.Minute,
		RunOnStart: true,
		ArchiveDir: "sla",
		Retention:  96,
	}
}

// SLASweeper periodically runs the SLA sweep and archives each report
type SLASweeper struct {
	sweeper  Sweeper
	renderer ReportRenderer
	storage  port.FileStorage
	config   SLASweeperConfig
	logger   *zap.Logger
	clock    func() time.Time

	// runMu serializes sweeps so the ticker and on-demand runs never overlap
	runMu sync.Mutex

	mu         sync.RWMutex
	isRunning  bool
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	lastReport *workflow.SweepReport
	lastPath   string
	lastError  error
	runs       int
}

// NewSLASweeper creates a new SLA sweep worker. renderer and storage may be
// nil, in which case reports are kept in memory only.
func NewSLASweeper(sweeper Sweeper, renderer ReportRenderer, storage port.FileStorage, config SLASweeperConfig, logger *zap.Logger) *SLASweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSLASweeperConfig().Interval
	}
	if config.ArchiveDir == "" {
		config.ArchiveDir = DefaultSLASweeperConfig().ArchiveDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLASweeper{
		sweeper:  sweeper,
		renderer: renderer,
		storage:  storage,
		config:   config,
		logger:   logger,
		clock:    time.Now,
	}
}

// Name returns the worker name
func (w *SLASweeper) Name() string {
	return "SLASweeper"
}

// Start launches the ticker loop
func (w *SLASweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("SLA sweeper starting",
		zap.Duration("interval", w.config.Interval),
		zap.Bool("run_on_start", w.config.RunOnStart),
		zap.Bool("archive", w.archiving()))

	go w.loop(w.ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (w *SLASweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("SLA sweeper stopped")
	return nil
}

func (w *SLASweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if w.config.RunOnStart {
		w.tick(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SLASweeper) tick(ctx context.Context) {
	if _, _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("SLA sweep failed", zap.Error(err))
	}
}

// RunOnce sweeps immediately and archives the report. It returns the report
// and the archive path, which is empty when archiving is disabled or failed.
// An archive failure is logged and does not fail the sweep.
func (w *SLASweeper) RunOnce(ctx context.Context) (*workflow.SweepReport, string, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	report, err := w.sweeper.SweepSLA(ctx)
	if err != nil {
		w.mu.Lock()
		w.lastError = err
		w.mu.Unlock()
		return nil, "", fmt.Errorf("failed to sweep: %w", err)
	}

	archived := ""
	if w.archiving() {
		p, err := w.archive(ctx, report)
		if err != nil {
			w.logger.Error("Failed to archive SLA report", zap.Error(err))
		} else {
			archived = p
			w.prune(ctx)
		}
	}

	w.mu.Lock()
	w.lastReport = report
	w.lastPath = archived
	w.lastError = nil
	w.runs++
	w.mu.Unlock()

	return report, archived, nil
}

// LastReport returns the most recent successful report, or nil
func (w *SLASweeper) LastReport() *workflow.SweepReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastReport
}

// Stats returns the run count, the last archive path and the last error
func (w *SLASweeper) Stats() (runs int, lastPath string, lastErr error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs, w.lastPath, w.lastError
}

// IsRunning reports whether the ticker loop is active
func (w *SLASweeper) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

func (w *SLASweeper) archiving() bool {
	return w.renderer != nil && w.storage != nil
}

// archive writes the report under <dir>/YYYY/MM/sweep-<timestamp>.xlsx
func (w *SLASweeper) archive(ctx context.Context, report *workflow.SweepReport) (string, error) {
	content, err := w.renderer.Render(report)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	at := report.StartedAt
	if at.IsZero() {
		at = w.clock()
	}
	at = at.UTC()
	p := path.Join(w.config.ArchiveDir, at.Format("2006"), at.Format("01"),
		fmt.Sprintf("sweep-%s.xlsx", at.Format("20060102T150405.000Z")))

	if err := w.storage.Save(ctx, p, content); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	w.logger.Info("SLA report archived", zap.String("path", p), zap.Int("size", len(content)))
	return p, nil
}

// prune deletes the oldest archived reports beyond the retention count
func (w *SLASweeper) prune(ctx context.Context) {
	if w.config.Retention <= 0 {
		return
	}

	files, err := w.storage.List(ctx, w.config.ArchiveDir)
	if err != nil {
		w.logger.Error("Failed to list archived SLA reports", zap.Error(err))
		return
	}

	var reports []string
	for _, f := range files {
		if strings.HasSuffix(f, ".xlsx") {
			reports = append(reports, f)
		}
	}
	if len(reports) <= w.config.Retention {
		return
	}

	// names embed the timestamp, so lexical order is chronological
	sort.Strings(reports)
	for _, f := range reports[:len(reports)-w.config.Retention] {
		if err := w.storage.Delete(ctx, f); err != nil {
			w.logger.Error("Failed to delete archived SLA report", zap.String("path", f), zap.Error(err))
			continue
		}
		w.logger.Info("Archived SLA report pruned", zap.String("path", f))
	}
}

var _ Worker = (*SLASweeper)(nil)
