package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/internal/core/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WorkflowConfig holds the knobs of one provision -> route -> teardown cycle
type WorkflowConfig struct {
	// Host the container port is published on, as seen from this process.
	Host        string
	Readiness   ReadinessPolicy
	Poll        PollPolicy
	Job         JobOptions
	StopTimeout time.Duration
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Host:        "localhost",
		Readiness:   DefaultReadinessPolicy(),
		Poll:        DefaultPollPolicy(),
		Job:         DefaultJobOptions(),
		StopTimeout: 30 * time.Second,
	}
}

// Workflow is the single entry point for routing a design file in a disposable container.
// It keeps no per-run state, so concurrent Runs on distinct ports are independent.
type Workflow struct {
	logger     *slog.Logger
	supervisor ports.ContainerSupervisor
	services   ports.RoutingServiceFactory
	recorder   ports.RunRecorder
	cfg        WorkflowConfig
	tracer     trace.Tracer
}

// NewWorkflow wires the facade. recorder may be nil.
func NewWorkflow(
	logger *slog.Logger,
	supervisor ports.ContainerSupervisor,
	services ports.RoutingServiceFactory,
	recorder ports.RunRecorder,
	cfg WorkflowConfig,
) *Workflow {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	return &Workflow{
		logger:     logger,
		supervisor: supervisor,
		services:   services,
		recorder:   recorder,
		cfg:        cfg,
		tracer:     otel.Tracer(tracerName),
	}
}

// Run routes the file at inputPath using a fresh container on port.
// The container is stopped on every exit path; teardown failures are logged and
// recorded but never returned, so the error (if any) is the first fatal one.
func (w *Workflow) Run(ctx context.Context, inputPath string, port int) (domain.OutputArtifact, error) {
	rec := &domain.RunRecord{
		ID:        domain.RunID(uuid.New().String()),
		InputPath: inputPath,
		Port:      port,
		StartedAt: time.Now().UTC(),
	}
	logger := w.logger.With("run_id", rec.ID, "port", port)

	ctx, span := w.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("freeroute.run_id", string(rec.ID)),
		attribute.String("freeroute.input", inputPath),
		attribute.Int("freeroute.port", port),
	))
	defer span.End()

	out, err := w.run(ctx, logger, rec, inputPath, port)

	rec.FinishedAt = time.Now().UTC()
	rec.OutputBytes = len(out.Data)
	switch {
	case err == nil:
		rec.Outcome = domain.RunOutcomeSucceeded
		logger.Info("routing finished", "output_bytes", rec.OutputBytes, "duration", rec.Duration())
	case errors.Is(err, context.Canceled):
		rec.Outcome = domain.RunOutcomeCancelled
		rec.Error = err.Error()
	default:
		rec.Outcome = domain.RunOutcomeFailed
		rec.Error = err.Error()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("routing failed", "error", err)
	}

	w.record(ctx, logger, *rec)
	return out, err
}

func (w *Workflow) run(ctx context.Context, logger *slog.Logger, rec *domain.RunRecord, inputPath string, port int) (domain.OutputArtifact, error) {
	// Fail before paying for a container.
	input, err := domain.LoadInput(inputPath)
	if err != nil {
		return domain.OutputArtifact{}, err
	}

	handle, err := w.supervisor.Start(ctx, port)
	if err != nil {
		if domain.Classify(err) == nil {
			err = fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
		}
		return domain.OutputArtifact{}, err
	}
	rec.ContainerID = handle.ID
	logger = logger.With("container_id", handle.ID)
	defer w.release(ctx, logger, rec, handle)

	svc := w.services(BaseURL(w.cfg.Host, port))

	if err := AwaitReady(ctx, logger, svc.Status, w.cfg.Readiness); err != nil {
		return domain.OutputArtifact{}, err
	}

	res, err := NewOrchestrator(logger, svc, w.cfg.Poll, w.cfg.Job).Run(ctx, input)
	rec.SessionID = res.Session.ID
	rec.JobID = res.Job.ID
	rec.JobState = res.Job.State
	if err != nil {
		return domain.OutputArtifact{}, err
	}
	return res.Output, nil
}

// release stops the container with a context that survives cancellation of the run.
func (w *Workflow) release(ctx context.Context, logger *slog.Logger, rec *domain.RunRecord, handle domain.ContainerHandle) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.StopTimeout)
	defer cancel()

	if err := w.supervisor.Stop(stopCtx, handle); err != nil {
		logger.Error("error during container cleanup", "error", err)
		rec.CleanupError = err.Error()
	}
}

func (w *Workflow) record(ctx context.Context, logger *slog.Logger, rec domain.RunRecord) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

// BaseURL is the engine root for a container published on host:port.
func BaseURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}
