package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/manthysbr/freeroute/internal/adapters/docker"
	"github.com/manthysbr/freeroute/internal/adapters/duckdb"
	"github.com/manthysbr/freeroute/internal/adapters/routing"
	"github.com/manthysbr/freeroute/internal/config"
	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/internal/core/ports"
	"github.com/manthysbr/freeroute/internal/core/services"
	"github.com/manthysbr/freeroute/internal/observability"
)

// app carries what every command needs. Dependencies are built lazily so that
// config and remote commands never touch the container runtime.
type app struct {
	logger *slog.Logger
	level  *slog.LevelVar

	// flags
	configPath string
	verbose    bool
	apiURL     string
	profileID  string
	envHost    string

	store    *config.Store
	contract *routing.Contract
	shutdown observability.ShutdownFunc
}

func newApp(logger *slog.Logger, level *slog.LevelVar) *app {
	return &app{logger: logger, level: level}
}

// setup runs before every command.
func (a *app) setup(ctx context.Context) error {
	if a.verbose {
		a.level.Set(slog.LevelDebug)
	}

	path := a.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	store, err := config.NewStore(a.logger, path, config.DefaultConfig(docker.DefaultHost()))
	if err != nil {
		return err
	}
	a.store = store

	contract, err := routing.LoadContract()
	if err != nil {
		return err
	}
	a.contract = contract

	shutdown, err := observability.InitTracer(ctx, "freeroute", a.config().OTLPEndpoint)
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(ctx context.Context) {
	if a.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush traces", "error", err)
	}
}

// config is the effective configuration: file, then environment, then flags.
func (a *app) config() *config.Config {
	cfg := a.store.Get()
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.profileID != "" {
		cfg.ProfileID = a.profileID
	}
	if a.envHost != "" {
		cfg.EnvironmentHost = a.envHost
	}
	return cfg
}

func (a *app) clientFor(baseURL string) *routing.Client {
	cfg := a.config()
	return routing.NewClient(baseURL,
		routing.WithIdentity(cfg.ProfileID, cfg.EnvironmentHost),
		routing.WithContract(a.contract),
	)
}

// remote is the client for the hosted API used by the session/job/system commands.
func (a *app) remote() *routing.Client {
	return a.clientFor(a.config().APIURL)
}

func (a *app) dockerManager() (*docker.Manager, error) {
	cfg := a.config()
	return docker.NewManager(a.logger, docker.Config{
		Image:       cfg.Docker.Image,
		Host:        cfg.Docker.Host,
		StopTimeout: cfg.Docker.StopTimeout,
	})
}

// history opens the run store. Failures only disable recording.
func (a *app) history() (ports.RunRecorder, func()) {
	path := a.config().HistoryDB
	if path == "" {
		return nil, func() {}
	}
	repo, err := duckdb.NewRepository(path)
	if err != nil {
		a.logger.Warn("run history disabled", "path", path, "error", err)
		return nil, func() {}
	}
	return repo, func() { _ = repo.Close() }
}

// workflow wires the facade against the local container runtime.
func (a *app) workflow(supervisor ports.ContainerSupervisor, recorder ports.RunRecorder) *services.Workflow {
	factory := func(baseURL string) ports.RoutingService {
		return a.clientFor(baseURL)
	}
	return services.NewWorkflow(a.logger, supervisor, factory, recorder, workflowConfig(a.config()))
}

// workflowConfig maps the persisted settings onto the workflow policies.
func workflowConfig(cfg *config.Config) services.WorkflowConfig {
	return services.WorkflowConfig{
		Host: cfg.Engine.Host,
		Readiness: services.ReadinessPolicy{
			MaxAttempts: cfg.Readiness.MaxAttempts,
			Interval:    cfg.Readiness.Interval,
		},
		Poll: services.PollPolicy{
			MaxAttempts: cfg.Poll.MaxAttempts,
			Intervals: map[domain.JobState]time.Duration{
				domain.JobStateRunning: cfg.Poll.RunningInterval,
			},
			PendingInterval: cfg.Poll.PendingInterval,
		},
		Job: services.JobOptions{
			Name:     cfg.Job.Name,
			Priority: cfg.Job.Priority,
		},
		// Room for the container's own stop grace period plus removal.
		StopTimeout: cfg.Docker.StopTimeout + 20*time.Second,
	}
}

func (a *app) remember(sessionID domain.SessionID, jobID domain.JobID) {
	err := a.store.Update(func(c *config.Config) error {
		if sessionID != "" {
			c.LastSessionID = string(sessionID)
		}
		if jobID != "" {
			c.LastJobID = string(jobID)
		}
		return nil
	})
	if err != nil {
		a.logger.Warn("failed to remember ids", "error", err)
	}
}

// orLast falls back to a remembered id when none was given.
func orLast(given, last, what string) (string, error) {
	if given != "" {
		return given, nil
	}
	if last != "" {
		return last, nil
	}
	return "", fmt.Errorf("%s is required (none remembered from a previous command)", what)
}
