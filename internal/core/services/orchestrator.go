package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/internal/core/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/manthysbr/freeroute/internal/core/services"

// PollPolicy controls the completion loop. Intervals is looked up by the observed
// state; states without an entry (including unknown labels) use PendingInterval.
type PollPolicy struct {
	MaxAttempts     int
	Intervals       map[domain.JobState]time.Duration
	PendingInterval time.Duration
}

// DefaultPollPolicy polls a running job every 3s and anything else every 1s.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		MaxAttempts: 20,
		Intervals: map[domain.JobState]time.Duration{
			domain.JobStateRunning: 3 * time.Second,
		},
		PendingInterval: time.Second,
	}
}

func (p PollPolicy) IntervalFor(state domain.JobState) time.Duration {
	if d, ok := p.Intervals[state]; ok {
		return d
	}
	return p.PendingInterval
}

// JobOptions are the enqueue parameters
type JobOptions struct {
	Name     string
	Priority string
}

func DefaultJobOptions() JobOptions {
	return JobOptions{Name: domain.DefaultJobName, Priority: domain.DefaultJobPriority}
}

// JobResult is what the orchestrator learned. On failure it holds whatever
// was known before the failing step.
type JobResult struct {
	Session domain.Session
	Job     domain.Job
	Output  domain.OutputArtifact
	Polls   int
}

// Orchestrator drives one routing job through the engine API.
type Orchestrator struct {
	logger *slog.Logger
	svc    ports.RoutingService
	poll   PollPolicy
	job    JobOptions
	tracer trace.Tracer
}

func NewOrchestrator(logger *slog.Logger, svc ports.RoutingService, poll PollPolicy, job JobOptions) *Orchestrator {
	if job.Name == "" {
		job.Name = domain.DefaultJobName
	}
	if job.Priority == "" {
		job.Priority = domain.DefaultJobPriority
	}
	return &Orchestrator{
		logger: logger,
		svc:    svc,
		poll:   poll,
		job:    job,
		tracer: otel.Tracer(tracerName),
	}
}

// Run creates a session, enqueues, uploads, starts, waits for completion and
// fetches the output. The first failing step ends the sequence.
func (o *Orchestrator) Run(ctx context.Context, input domain.InputArtifact) (JobResult, error) {
	var res JobResult

	err := o.step(ctx, "session.create", func(ctx context.Context) error {
		session, err := o.svc.CreateSession(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrSessionCreation, err)
		}
		res.Session = session
		o.logger.Info("session created", "session_id", session.ID)
		return nil
	})
	if err != nil {
		return res, err
	}

	err = o.step(ctx, "job.enqueue", func(ctx context.Context) error {
		job, err := o.svc.EnqueueJob(ctx, domain.JobRequest{
			SessionID: res.Session.ID,
			Name:      o.job.Name,
			Priority:  o.job.Priority,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrJobCreation, err)
		}
		res.Job = job
		o.logger.Info("job created", "job_id", job.ID, "session_id", res.Session.ID)
		return nil
	})
	if err != nil {
		return res, err
	}

	err = o.step(ctx, "job.upload", func(ctx context.Context) error {
		o.logger.Info("uploading input", "job_id", res.Job.ID, "filename", input.Filename, "bytes", len(input.Data))
		if err := o.svc.UploadInput(ctx, res.Job.ID, input); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInputUpload, err)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	err = o.step(ctx, "job.start", func(ctx context.Context) error {
		if err := o.svc.StartJob(ctx, res.Job.ID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrJobStart, err)
		}
		o.logger.Info("routing job started", "job_id", res.Job.ID)
		return nil
	})
	if err != nil {
		return res, err
	}

	err = o.step(ctx, "job.await", func(ctx context.Context) error {
		return o.awaitCompletion(ctx, &res)
	})
	if err != nil {
		return res, err
	}

	err = o.step(ctx, "job.output", func(ctx context.Context) error {
		out, err := o.svc.GetOutput(ctx, res.Job.ID)
		if err != nil {
			if errors.Is(err, domain.ErrOutputMissing) {
				return err
			}
			return fmt.Errorf("%w: %w", domain.ErrOutputMissing, err)
		}
		if len(out.Data) == 0 {
			return fmt.Errorf("%w: no output received from job %s", domain.ErrOutputMissing, res.Job.ID)
		}
		res.Output = out
		return nil
	})
	return res, err
}

func (o *Orchestrator) awaitCompletion(ctx context.Context, res *JobResult) error {
	id := res.Job.ID
	maxAttempts := o.poll.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var highest domain.JobState
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		job, err := o.svc.GetJob(ctx, id)
		res.Polls = attempt
		if err != nil {
			return fmt.Errorf("%w: poll job %s: %w", domain.ErrServiceUnavailable, id, err)
		}

		state := job.State
		res.Job.State = state
		o.logger.Debug("job status", "job_id", id, "state", state, "attempt", attempt)

		if state.Rank() > 0 && state.Rank() < highest.Rank() {
			o.logger.Warn("job state went backwards, treating as pending", "job_id", id, "state", state, "previous", highest)
			state = ""
		} else if state.Rank() > highest.Rank() {
			highest = state
		}

		switch state {
		case domain.JobStateCompleted:
			o.logger.Info("routing job completed", "job_id", id, "polls", attempt)
			return nil
		case domain.JobStateFailed:
			return &domain.JobFailedError{JobID: id, State: state}
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleepContext(ctx, o.poll.IntervalFor(state)); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrJobTimeout, err)
		}
	}

	return fmt.Errorf("%w: job %s not completed after %d polls", domain.ErrJobTimeout, id, maxAttempts)
}

// step runs fn inside a span named after the protocol step.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("freeroute.step", name)))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
