package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testSession = domain.Session{ID: "session-1"}
	testJob     = domain.Job{ID: "job-1", SessionID: "session-1", Name: domain.DefaultJobName, Priority: domain.DefaultJobPriority, State: domain.JobStateQueued}
	testInput   = domain.InputArtifact{Filename: "board.dsn", Data: []byte("(pcb board)")}
)

func fastPoll(maxAttempts int) PollPolicy {
	return PollPolicy{
		MaxAttempts:     maxAttempts,
		Intervals:       map[domain.JobState]time.Duration{domain.JobStateRunning: 2 * time.Millisecond},
		PendingInterval: time.Millisecond,
	}
}

// happyService scripts every step up to and including start.
func happyService() *MockRoutingService {
	svc := new(MockRoutingService)
	svc.On("CreateSession", mock.Anything).Return(testSession, nil)
	svc.On("EnqueueJob", mock.Anything, domain.JobRequest{
		SessionID: testSession.ID,
		Name:      domain.DefaultJobName,
		Priority:  domain.DefaultJobPriority,
	}).Return(testJob, nil)
	svc.On("UploadInput", mock.Anything, testJob.ID, testInput).Return(nil)
	svc.On("StartJob", mock.Anything, testJob.ID).Return(nil)
	return svc
}

func withState(state domain.JobState) domain.Job {
	job := testJob
	job.State = state
	return job
}

func TestOrchestrator_RunningRunningCompleted(t *testing.T) {
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateRunning), nil).Twice()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateCompleted), nil).Once()
	svc.On("GetOutput", mock.Anything, testJob.ID).Return(domain.OutputArtifact{Filename: "board.ses", Data: []byte("(routed)")}, nil)

	orch := NewOrchestrator(testLogger(), svc, fastPoll(20), DefaultJobOptions())
	res, err := orch.Run(context.Background(), testInput)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Polls)
	assert.Equal(t, []byte("(routed)"), res.Output.Data)
	assert.Equal(t, domain.JobStateCompleted, res.Job.State)
	assert.Equal(t, testSession, res.Session)
	svc.AssertNumberOfCalls(t, "GetJob", 3)
	svc.AssertExpectations(t)
}

func TestOrchestrator_FailedJobSkipsOutput(t *testing.T) {
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateFailed), nil).Once()

	orch := NewOrchestrator(testLogger(), svc, fastPoll(20), DefaultJobOptions())
	_, err := orch.Run(context.Background(), testInput)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrJobFailed)
	var failed *domain.JobFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, testJob.ID, failed.JobID)
	assert.Equal(t, domain.JobStateFailed, failed.State)
	svc.AssertNotCalled(t, "GetOutput", mock.Anything, mock.Anything)
}

func TestOrchestrator_TimeoutAfterMaxAttempts(t *testing.T) {
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateQueued), nil)

	orch := NewOrchestrator(testLogger(), svc, fastPoll(4), DefaultJobOptions())
	res, err := orch.Run(context.Background(), testInput)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrJobTimeout)
	assert.Equal(t, 4, res.Polls)
	svc.AssertNumberOfCalls(t, "GetJob", 4)
	svc.AssertNotCalled(t, "GetOutput", mock.Anything, mock.Anything)
}

func TestOrchestrator_UnknownStateIsPending(t *testing.T) {
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState("PREPARING"), nil).Once()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateCompleted), nil).Once()
	svc.On("GetOutput", mock.Anything, testJob.ID).Return(domain.OutputArtifact{Data: []byte("x")}, nil)

	orch := NewOrchestrator(testLogger(), svc, fastPoll(5), DefaultJobOptions())
	res, err := orch.Run(context.Background(), testInput)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Polls)
}

func TestOrchestrator_RegressionIsPending(t *testing.T) {
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateRunning), nil).Once()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateQueued), nil).Once()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateCompleted), nil).Once()
	svc.On("GetOutput", mock.Anything, testJob.ID).Return(domain.OutputArtifact{Data: []byte("x")}, nil)

	orch := NewOrchestrator(testLogger(), svc, fastPoll(5), DefaultJobOptions())
	res, err := orch.Run(context.Background(), testInput)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Polls)
}

func TestOrchestrator_StatusRequestFailure(t *testing.T) {
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(domain.Job{}, errors.New("connection reset")).Once()

	orch := NewOrchestrator(testLogger(), svc, fastPoll(5), DefaultJobOptions())
	_, err := orch.Run(context.Background(), testInput)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	svc.AssertNumberOfCalls(t, "GetJob", 1)
}

func TestOrchestrator_CancelledWhilePolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).
		Run(func(mock.Arguments) { cancel() }).
		Return(withState(domain.JobStateRunning), nil)

	orch := NewOrchestrator(testLogger(), svc, PollPolicy{MaxAttempts: 5, PendingInterval: time.Hour}, DefaultJobOptions())
	_, err := orch.Run(ctx, testInput)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrJobTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestrator_EmptyOutput(t *testing.T) {
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateCompleted), nil)
	svc.On("GetOutput", mock.Anything, testJob.ID).Return(domain.OutputArtifact{Filename: "board.ses"}, nil)

	orch := NewOrchestrator(testLogger(), svc, fastPoll(5), DefaultJobOptions())
	_, err := orch.Run(context.Background(), testInput)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOutputMissing)
}

func TestOrchestrator_OutputErrorKeepsKind(t *testing.T) {
	svc := happyService()
	svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(domain.JobStateCompleted), nil)
	svc.On("GetOutput", mock.Anything, testJob.ID).Return(domain.OutputArtifact{}, errors.New("status 404"))

	orch := NewOrchestrator(testLogger(), svc, fastPoll(5), DefaultJobOptions())
	_, err := orch.Run(context.Background(), testInput)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOutputMissing)
	assert.Contains(t, err.Error(), "status 404")
}

func TestOrchestrator_StepFailuresAbortSequence(t *testing.T) {
	cause := errors.New("status 500")

	tests := []struct {
		name      string
		script    func(svc *MockRoutingService)
		want      error
		notCalled string
	}{
		{
			name: "create session",
			script: func(svc *MockRoutingService) {
				svc.On("CreateSession", mock.Anything).Return(domain.Session{}, cause)
			},
			want:      domain.ErrSessionCreation,
			notCalled: "EnqueueJob",
		},
		{
			name: "enqueue",
			script: func(svc *MockRoutingService) {
				svc.On("CreateSession", mock.Anything).Return(testSession, nil)
				svc.On("EnqueueJob", mock.Anything, mock.Anything).Return(domain.Job{}, cause)
			},
			want:      domain.ErrJobCreation,
			notCalled: "UploadInput",
		},
		{
			name: "upload",
			script: func(svc *MockRoutingService) {
				svc.On("CreateSession", mock.Anything).Return(testSession, nil)
				svc.On("EnqueueJob", mock.Anything, mock.Anything).Return(testJob, nil)
				svc.On("UploadInput", mock.Anything, mock.Anything, mock.Anything).Return(cause)
			},
			want:      domain.ErrInputUpload,
			notCalled: "StartJob",
		},
		{
			name: "start",
			script: func(svc *MockRoutingService) {
				svc.On("CreateSession", mock.Anything).Return(testSession, nil)
				svc.On("EnqueueJob", mock.Anything, mock.Anything).Return(testJob, nil)
				svc.On("UploadInput", mock.Anything, mock.Anything, mock.Anything).Return(nil)
				svc.On("StartJob", mock.Anything, mock.Anything).Return(cause)
			},
			want:      domain.ErrJobStart,
			notCalled: "GetJob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRoutingService)
			tt.script(svc)

			orch := NewOrchestrator(testLogger(), svc, fastPoll(5), DefaultJobOptions())
			_, err := orch.Run(context.Background(), testInput)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, tt.want, domain.Classify(err))
			for _, call := range svc.Calls {
				assert.NotEqual(t, tt.notCalled, call.Method)
			}
		})
	}
}

func TestOrchestrator_CustomJobOptions(t *testing.T) {
	svc := new(MockRoutingService)
	svc.On("CreateSession", mock.Anything).Return(testSession, nil)
	svc.On("EnqueueJob", mock.Anything, domain.JobRequest{
		SessionID: testSession.ID,
		Name:      "power-plane",
		Priority:  "HIGH",
	}).Return(domain.Job{}, errors.New("stop here"))

	orch := NewOrchestrator(testLogger(), svc, fastPoll(1), JobOptions{Name: "power-plane", Priority: "HIGH"})
	_, err := orch.Run(context.Background(), testInput)

	assert.ErrorIs(t, err, domain.ErrJobCreation)
	svc.AssertExpectations(t)
}

func TestPollPolicy_IntervalFor(t *testing.T) {
	p := DefaultPollPolicy()
	assert.Equal(t, 3*time.Second, p.IntervalFor(domain.JobStateRunning))
	assert.Equal(t, time.Second, p.IntervalFor(domain.JobStateQueued))
	assert.Equal(t, time.Second, p.IntervalFor("SOMETHING_NEW"))
	assert.Equal(t, 20, p.MaxAttempts)
}

func TestOrchestrator_SleepsPerObservedState(t *testing.T) {
	policy := PollPolicy{
		MaxAttempts:     5,
		Intervals:       map[domain.JobState]time.Duration{domain.JobStateRunning: 200 * time.Millisecond},
		PendingInterval: time.Millisecond,
	}
	elapsed := func(script ...domain.JobState) time.Duration {
		t.Helper()
		svc := happyService()
		for _, state := range script {
			svc.On("GetJob", mock.Anything, testJob.ID).Return(withState(state), nil).Once()
		}
		svc.On("GetOutput", mock.Anything, testJob.ID).Return(domain.OutputArtifact{Data: []byte("x")}, nil)

		orch := NewOrchestrator(testLogger(), svc, policy, DefaultJobOptions())
		start := time.Now()
		res, err := orch.Run(context.Background(), testInput)
		took := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, len(script), res.Polls)
		return took
	}

	pending := elapsed("PREPARING", "PREPARING", domain.JobStateCompleted)
	running := elapsed(domain.JobStateRunning, domain.JobStateCompleted)

	assert.Less(t, pending, 150*time.Millisecond)
	assert.GreaterOrEqual(t, running, 200*time.Millisecond)
}
