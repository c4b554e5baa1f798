package ports

import (
	"context"

	"github.com/manthysbr/freeroute/internal/core/domain"
)

// ContainerSupervisor abstracts the container runtime hosting the routing engine.
type ContainerSupervisor interface {
	// Start creates and starts the engine container with port bound on the host.
	Start(ctx context.Context, port int) (domain.ContainerHandle, error)

	// IsRunning reports whether the container is up. It never fails; a stale
	// handle or a failed inspection reads as not running.
	IsRunning(ctx context.Context, handle domain.ContainerHandle) bool

	// Stop stops and removes the container.
	Stop(ctx context.Context, handle domain.ContainerHandle) error
}

// RoutingService is the HTTP surface of the engine running inside the container.
type RoutingService interface {
	Status(ctx context.Context) error
	CreateSession(ctx context.Context) (domain.Session, error)
	EnqueueJob(ctx context.Context, req domain.JobRequest) (domain.Job, error)
	UploadInput(ctx context.Context, id domain.JobID, input domain.InputArtifact) error
	StartJob(ctx context.Context, id domain.JobID) error
	GetJob(ctx context.Context, id domain.JobID) (domain.Job, error)
	GetOutput(ctx context.Context, id domain.JobID) (domain.OutputArtifact, error)
}

// RoutingServiceFactory builds a client for the engine reachable at baseURL.
type RoutingServiceFactory func(baseURL string) RoutingService

// RunRecorder persists one diagnostics record per workflow invocation.
type RunRecorder interface {
	RecordRun(ctx context.Context, run domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
