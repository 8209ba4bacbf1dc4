package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/foreman/internal/agentexec"
	"github.com/ShayCichocki/foreman/internal/config"
	"github.com/ShayCichocki/foreman/internal/events"
	"github.com/ShayCichocki/foreman/internal/llm"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/manager"
	"github.com/ShayCichocki/foreman/internal/monitor"
	"github.com/ShayCichocki/foreman/internal/orchestrator"
	"github.com/ShayCichocki/foreman/internal/planner"
	"github.com/ShayCichocki/foreman/internal/schedule"
	"github.com/ShayCichocki/foreman/internal/state"
	"github.com/ShayCichocki/foreman/internal/store"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// errNoRunner is what task dispatch reports outside `foreman run`.
var errNoRunner = errors.New("no active run; the task starts once `foreman run` is driving the project")

// appMode selects how much of the engine a command needs.
type appMode int

const (
	// modeOffline reads and edits stored projects. Dispatch is refused.
	modeOffline appMode = iota
	// modePlanning also needs the planning model.
	modePlanning
	// modeRunner runs executions in-process.
	modeRunner
)

// app is the explicitly wired engine for one command invocation.
type app struct {
	cfg      *config.Config
	dataDir  string
	db       *state.DB
	logger   *logging.DebugLogger
	emitter  *events.Emitter
	notifier events.Notifier

	model   llm.Completer
	store   *store.Store
	planner *planner.Engine
	exec    *agentexec.Service
	orch    *orchestrator.Orchestrator
	sched   *schedule.CronScheduler
	mon     *monitor.Monitor
	mgr     *manager.Manager
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.LoadFromPath(flagConfig)
	}
	return config.Load()
}

func newApp(mode appMode) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, dataDir: state.DataDir()}

	if flagDebug {
		a.logger = logging.NewWriterLogger(os.Stderr)
	} else {
		a.logger = logging.NewDebugLoggerForDataDir(a.dataDir)
	}

	dbPath := flagDB
	if dbPath == "" {
		dbPath = cfg.Storage.Path
	}
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.db = db

	a.model, err = newCompleter(cfg, mode != modeOffline)
	if err != nil {
		db.Close()
		return nil, err
	}

	a.emitter = events.NewEmitter(cfg.Engine.EventBuffer)
	a.notifier = events.NewConsoleNotifier(os.Stdout)

	a.store = store.New(db, store.WithLogger(a.logger), store.WithFallbackSettings(cfg.Defaults))
	a.planner = planner.New(a.model, planner.WithLogger(a.logger))

	registry := make(orchestrator.StaticRegistry, 0, len(cfg.Agents))
	for _, id := range cfg.Agents {
		registry = append(registry, models.Agent{ID: id})
	}

	var exec orchestrator.ExecutionService = offlineExec{}
	if mode == modeRunner {
		a.exec = agentexec.New(a.model,
			agentexec.WithLogger(a.logger),
			agentexec.WithUpdateHandler(func(ctx context.Context, u orchestrator.ExecutionUpdate) error {
				return a.orch.HandleExecutionUpdate(ctx, u)
			}),
			agentexec.WithMessageHandler(func(m orchestrator.ExecutionMessage) {
				a.orch.HandleExecutionMessage(m)
			}),
			agentexec.WithTrackedCheck(func(id string) bool { return a.orch.Tracking(id) }),
		)
		exec = a.exec
	}
	a.orch = orchestrator.New(exec, registry,
		orchestrator.WithMaxConcurrent(cfg.Engine.MaxConcurrent),
		orchestrator.WithQueueSize(cfg.Engine.QueueSize),
		orchestrator.WithAgentLoadLimit(cfg.Engine.AgentLoadLimit),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithEmitter(a.emitter),
	)

	a.sched = schedule.New(a.scheduledCheck, schedule.WithLogger(a.logger))
	a.mon = monitor.New(a.sched, a.model,
		monitor.WithLogger(a.logger),
		monitor.WithEmitter(a.emitter),
		monitor.WithNotifier(a.notifier),
		monitor.WithStaleFactor(cfg.Engine.StaleFactor),
		monitor.WithAtRiskThreshold(cfg.Engine.AtRiskWarnings),
	)
	a.mgr = manager.New(a.store, a.planner, a.orch, a.mon,
		manager.WithLogger(a.logger),
		manager.WithEmitter(a.emitter),
		manager.WithNotifier(a.notifier),
	)
	return a, nil
}

// scheduledCheck runs on every cron tick of a monitored project. The
// report reaches the console through the health update event.
func (a *app) scheduledCheck(ctx context.Context, projectID string) {
	if _, err := a.mgr.GetProjectReport(ctx, projectID); err != nil {
		a.logger.Log("[foreman] scheduled check %s: %v", projectID, err)
	}
}

func (a *app) close() {
	if a.exec != nil {
		a.exec.Close()
	}
	a.sched.Stop()
	a.emitter.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Log("[foreman] close database: %v", err)
	}
	_ = a.logger.Close()
}

// newCompleter builds the Anthropic completer. When the model is optional
// and no credentials are configured, a completer that always fails is
// returned so the deterministic parts of the engine still work.
func newCompleter(cfg *config.Config, required bool) (llm.Completer, error) {
	key, _, err := config.APIKey(cfg)
	if err != nil {
		if required {
			return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or anthropic.api_key, or enable anthropic.use_bedrock", err)
		}
		return llm.CompleterFunc(func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, err
		}), nil
	}

	c, err := llm.NewAnthropicCompleter(llm.AnthropicConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create planning model: %w", err)
	}
	return c, nil
}

// offlineExec refuses every start; it stands in for the execution service
// in commands that do not drive a run.
type offlineExec struct{}

func (offlineExec) StartTask(context.Context, orchestrator.StartRequest) (string, error) {
	return "", errNoRunner
}

func (offlineExec) CancelTask(context.Context, string) error {
	return nil
}

// Run locks keep offline edits from racing a `foreman run` of the same
// project, whose cached copy would overwrite them.

func runLockPath(dataDir, projectID string) string {
	return filepath.Join(dataDir, "runs", projectID+".pid")
}

func acquireRunLock(dataDir, projectID string) (func(), error) {
	path := runLockPath(dataDir, projectID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create run lock directory: %w", err)
	}
	if pid, ok := lockHolder(path); ok {
		return nil, fmt.Errorf("project %s is already running (pid %d)", projectID, pid)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create run lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return func() { _ = os.Remove(path) }, nil
}

// lockHolder returns the pid recorded in a run lock whose process is
// still alive.
func lockHolder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !processAlive(pid) {
		return 0, false
	}
	return pid, true
}

// ensureNotRunning rejects offline edits to a project a run is driving.
func (a *app) ensureNotRunning(projectID string) error {
	if pid, ok := lockHolder(runLockPath(a.dataDir, projectID)); ok {
		return fmt.Errorf("project %s is being run by pid %d; use `foreman signal` instead", projectID, pid)
	}
	return nil
}
