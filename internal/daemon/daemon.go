package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"greylit/internal/api"
	"greylit/internal/config"
	"greylit/internal/ingest"
	"greylit/internal/logging"
	"greylit/internal/metrics"
	"greylit/internal/notifications"
	"greylit/internal/pipeline"
	"greylit/internal/store"
)

// ErrNotRunning is returned by operations that need a started daemon.
var ErrNotRunning = errors.New("daemon not running")

// Daemon coordinates processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	registry *metrics.Registry
	notifier notifications.Service
	importer *ingest.Importer
	reader   *api.Service

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	pipeline *pipeline.Service
	apiSrv   *apiServer
	running  atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	RunStats     map[store.RunStatus]int
	ActiveRuns   []*store.ProcessingRun
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, registry *metrics.Registry) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if registry == nil {
		registry = metrics.New()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		registry: registry,
		notifier: notifications.NewService(cfg),
		importer: ingest.NewImporter(st),
		reader:   api.NewService(st),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock, fails over runs abandoned by a
// previous process, and brings up the pipeline service.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another greylit daemon instance is already running")
	}

	// Safe only while holding the lock: any pending or running run in the
	// store was abandoned by a dead process.
	failed, err := d.store.FailAbandonedRuns(ctx, "daemon restarted")
	if err != nil {
		d.logger.Warn("failed to fail over abandoned runs", logging.Error(err))
	} else if failed > 0 {
		d.logger.Info("abandoned runs failed over", logging.Int64("count", failed))
	}

	svc, err := pipeline.NewServiceWith(d.cfg, d.store, d.logger, d.notifier, d.registry)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start pipeline: %w", err)
	}

	d.mu.Lock()
	d.pipeline = svc
	needAPI := d.apiSrv == nil
	d.mu.Unlock()

	// The HTTP API lives for the process lifetime so read endpoints keep
	// answering while processing is stopped.
	if needAPI {
		apiSrv, err := newAPIServer(d.cfg, d, d.logger)
		if err != nil {
			svc.Close()
			_ = d.lock.Unlock()
			return fmt.Errorf("configure api server: %w", err)
		}
		if apiSrv != nil {
			if err := apiSrv.start(ctx); err != nil {
				svc.Close()
				_ = d.lock.Unlock()
				return err
			}
			d.mu.Lock()
			d.apiSrv = apiSrv
			d.mu.Unlock()
		}
	}

	d.running.Store(true)
	d.logger.Info("greylit daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels active runs, waits for them to finalize, and releases the
// daemon lock. Read operations keep working after Stop.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	svc := d.pipeline
	d.pipeline = nil
	d.mu.Unlock()
	if svc != nil {
		svc.Close()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("greylit daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.mu.Lock()
	apiSrv := d.apiSrv
	d.apiSrv = nil
	d.mu.Unlock()
	apiSrv.stop()
	var errs []error
	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Registry exposes the metrics registry for the HTTP server.
func (d *Daemon) Registry() *metrics.Registry {
	return d.registry
}

func (d *Daemon) pipelineService() (*pipeline.Service, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pipeline == nil {
		return nil, ErrNotRunning
	}
	return d.pipeline, nil
}

// Process starts a processing run for the session.
func (d *Daemon) Process(ctx context.Context, sessionID int64, force bool) (int64, error) {
	svc, err := d.pipelineService()
	if err != nil {
		return 0, err
	}
	return svc.StartProcessing(ctx, sessionID, force)
}

// CancelRun requests cancellation of an in-flight run.
func (d *Daemon) CancelRun(ctx context.Context, runID int64) (bool, error) {
	svc, err := d.pipelineService()
	if err != nil {
		return false, err
	}
	return svc.Cancel(ctx, runID)
}

// Sessions lists review sessions with raw counts.
func (d *Daemon) Sessions(ctx context.Context) (*api.SessionListResponse, error) {
	return d.reader.Sessions(ctx)
}

// Runs lists processing runs, optionally scoped to one session.
func (d *Daemon) Runs(ctx context.Context, sessionID int64) (*api.RunListResponse, error) {
	return d.reader.Runs(ctx, sessionID)
}

// DescribeRun returns one run with its errors and progress feed.
func (d *Daemon) DescribeRun(ctx context.Context, runID int64) (*api.Run, error) {
	return d.reader.DescribeRun(ctx, runID)
}

// SessionResults returns a session's processed results and duplicate groups.
func (d *Daemon) SessionResults(ctx context.Context, sessionID int64) (*api.SessionResults, error) {
	return d.reader.SessionResults(ctx, sessionID)
}

// Import appends raw results to a session. When sessionID is zero and a name
// is given, the session is created first.
func (d *Daemon) Import(ctx context.Context, sessionID int64, sessionName string, payload []byte) (int64, int, error) {
	if sessionID == 0 {
		name := strings.TrimSpace(sessionName)
		if name == "" {
			return 0, 0, fmt.Errorf("%w: session id or name is required", ingest.ErrInvalid)
		}
		session, err := d.store.CreateSession(ctx, name, store.SessionCreated)
		if err != nil {
			return 0, 0, fmt.Errorf("create session %q: %w", name, err)
		}
		sessionID = session.ID
		d.logger.Info("session created for import",
			logging.Int64(logging.FieldSessionID, sessionID),
			logging.String("name", name))
	}

	results, err := d.importer.ImportReader(ctx, sessionID, bytes.NewReader(payload))
	if err != nil {
		return sessionID, 0, err
	}
	d.logger.Info("raw results imported",
		logging.Int64(logging.FieldSessionID, sessionID),
		logging.Int("count", len(results)))
	return sessionID, len(results), nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	stats, err := d.store.RunStats(ctx)
	if err != nil {
		d.logger.Warn("failed to read run stats", logging.Error(err))
	} else {
		status.RunStats = stats
	}
	runs, err := d.store.ListRuns(ctx, 0)
	if err != nil {
		d.logger.Warn("failed to list runs for status", logging.Error(err))
		return status
	}
	for _, run := range runs {
		if !run.IsTerminal() {
			status.ActiveRuns = append(status.ActiveRuns, run)
		}
	}
	return status
}
