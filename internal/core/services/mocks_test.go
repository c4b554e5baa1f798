package services

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSupervisor struct {
	mock.Mock
}

func (m *MockSupervisor) Start(ctx context.Context, port int) (domain.ContainerHandle, error) {
	args := m.Called(ctx, port)
	return args.Get(0).(domain.ContainerHandle), args.Error(1)
}

func (m *MockSupervisor) IsRunning(ctx context.Context, handle domain.ContainerHandle) bool {
	args := m.Called(ctx, handle)
	return args.Bool(0)
}

func (m *MockSupervisor) Stop(ctx context.Context, handle domain.ContainerHandle) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

type MockRoutingService struct {
	mock.Mock
}

func (m *MockRoutingService) Status(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRoutingService) CreateSession(ctx context.Context) (domain.Session, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Session), args.Error(1)
}

func (m *MockRoutingService) EnqueueJob(ctx context.Context, req domain.JobRequest) (domain.Job, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *MockRoutingService) UploadInput(ctx context.Context, id domain.JobID, input domain.InputArtifact) error {
	return m.Called(ctx, id, input).Error(0)
}

func (m *MockRoutingService) StartJob(ctx context.Context, id domain.JobID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRoutingService) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Job), args.Error(1)
}

func (m *MockRoutingService) GetOutput(ctx context.Context, id domain.JobID) (domain.OutputArtifact, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.OutputArtifact), args.Error(1)
}

// memRecorder keeps run records in memory
type memRecorder struct {
	mu   sync.Mutex
	runs []domain.RunRecord
}

func (r *memRecorder) RecordRun(_ context.Context, run domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memRecorder) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > len(r.runs) {
		limit = len(r.runs)
	}
	return append([]domain.RunRecord(nil), r.runs[:limit]...), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// portOf extracts the TCP port of an httptest server URL.
func portOf(t *testing.T, rawURL string) int {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

// writeInput creates a design file in a temp dir and returns its path.
func writeInput(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := t.TempDir() + "/" + name
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
