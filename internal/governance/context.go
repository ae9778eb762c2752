// Package governance wires the activity-governance components together and
// dispatches host hook events through them.
package governance

import (
	"path/filepath"
	"time"

	"github.com/jvs-project/warden/internal/backup"
	"github.com/jvs-project/warden/internal/intent"
	"github.com/jvs-project/warden/internal/ledger"
	"github.com/jvs-project/warden/internal/perf"
	"github.com/jvs-project/warden/internal/review"
	"github.com/jvs-project/warden/internal/session"
	"github.com/jvs-project/warden/internal/tracker"
	"github.com/jvs-project/warden/internal/workspace"
	"github.com/jvs-project/warden/pkg/config"
	"github.com/jvs-project/warden/pkg/logging"
)

// GovernanceContext carries the loaded configuration and every component
// for one process. It replaces process-wide globals: handlers receive it
// explicitly.
type GovernanceContext struct {
	StateDir string
	Config   *config.Config
	// ConfigErr is the error that made Config fall back to defaults, if any.
	ConfigErr error
	Logger    *logging.Logger
	Now       func() time.Time

	Ledger     *ledger.Ledger
	Backups    *backup.Manager
	Reviews    *review.Gate
	Tracker    *tracker.Tracker
	Sessions   *session.Manager
	Perf       *perf.Monitor
	Classifier *intent.Classifier
}

type options struct {
	cfg    *config.Config
	logger *logging.Logger
	now    func() time.Time
}

// Option customizes New.
type Option func(*options)

// WithConfig uses cfg instead of loading config.yaml.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the time source for every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a context over stateDir. A missing or malformed config falls
// back to the defaults; the reason is kept in ConfigErr and logged.
func New(stateDir string, opts ...Option) *GovernanceContext {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	var cfgErr error
	if cfg == nil {
		cfg, cfgErr = config.Load(stateDir)
	}

	logger := o.logger
	if logger == nil {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			level = logging.LevelWarn
		}
		logger = logging.NewLogger(level)
	}
	if cfgErr != nil {
		logger.ErrorErr("configuration invalid, using defaults", cfgErr, map[string]any{"path": config.Path(stateDir)})
	}

	g := &GovernanceContext{
		StateDir:  stateDir,
		Config:    cfg,
		ConfigErr: cfgErr,
		Logger:    logger,
		Now:       o.now,
	}

	lockTimeout := cfg.LockTimeout()
	g.Ledger = ledger.New(g.path(workspace.LedgerDir), ledger.Options{LockTimeout: lockTimeout})
	g.Backups = backup.NewManager(g.path(workspace.BackupsDir), cfg.Retention(),
		backup.WithClock(o.now),
		backup.WithLogger(logger.WithFields(map[string]any{"component": "backup"})))
	g.Reviews = review.NewGate(g.path(workspace.ReviewsDir), lockTimeout, review.WithClock(o.now))

	trackerOpts := tracker.OptionsFromConfig(cfg, g.Backups)
	trackerOpts.Now = o.now
	trackerOpts.Logger = logger.WithFields(map[string]any{"component": "tracker"})
	g.Tracker = tracker.New(g.path(workspace.UsageDir), g.Ledger, trackerOpts)

	g.Sessions = session.NewManager(g.path(workspace.SessionsDir), g.Ledger,
		session.WithClock(o.now),
		session.WithIdleTimeout(cfg.IdleTimeout()),
		session.WithLockTimeout(lockTimeout))
	g.Perf = perf.NewMonitor(perf.ThresholdsFromConfig(cfg.Performance), g.Ledger)
	g.Classifier = intent.New(cfg.Intent)
	return g
}

func (g *GovernanceContext) path(elem string) string {
	return filepath.Join(g.StateDir, elem)
}

// StartupSweep expires old snapshots when backups are enabled. Failures are
// logged and never returned.
func (g *GovernanceContext) StartupSweep() {
	if !g.Config.Backup.Enabled {
		return
	}
	if _, err := g.Backups.Sweep(); err != nil {
		g.Logger.ErrorErr("startup sweep", err)
	}
}
