package services

import (
	"context"
	"testing"

	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/pkg/fakeengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRunBatch_IndependentInvocations(t *testing.T) {
	_, portA := startEngine(t, fakeengine.Config{})
	_, portB := startEngine(t, fakeengine.Config{})
	good := writeInput(t, "a.dsn", []byte("(pcb a)"))
	missing := t.TempDir() + "/b.dsn"

	sup := new(MockSupervisor)
	sup.On("Start", mock.Anything, portA).Return(handleFor(portA), nil)
	sup.On("Stop", mock.Anything, handleFor(portA)).Return(nil)
	rec := &memRecorder{}

	wf := NewWorkflow(testLogger(), sup, clientFactory, rec, testWorkflowConfig())
	results, err := wf.RunBatch(context.Background(), []BatchItem{
		{InputPath: good, Port: portA},
		{InputPath: missing, Port: portB},
	}, 2)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInputUpload)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, []byte("(pcb a)"), results[0].Output.Data)
	assert.ErrorIs(t, results[1].Err, domain.ErrInputUpload)

	sup.AssertNotCalled(t, "Start", mock.Anything, portB)
	sup.AssertNumberOfCalls(t, "Stop", 1)
	assert.Len(t, rec.runs, 2)
}

func TestRunBatch_AllSucceed(t *testing.T) {
	_, portA := startEngine(t, fakeengine.Config{})
	_, portB := startEngine(t, fakeengine.Config{States: []domain.JobState{domain.JobStateRunning, domain.JobStateCompleted}})
	a := writeInput(t, "a.dsn", []byte("(pcb a)"))
	b := writeInput(t, "b.dsn", []byte("(pcb b)"))

	sup := new(MockSupervisor)
	for _, port := range []int{portA, portB} {
		sup.On("Start", mock.Anything, port).Return(handleFor(port), nil)
		sup.On("Stop", mock.Anything, handleFor(port)).Return(nil)
	}

	wf := NewWorkflow(testLogger(), sup, clientFactory, nil, testWorkflowConfig())
	results, err := wf.RunBatch(context.Background(), []BatchItem{
		{InputPath: a, Port: portA},
		{InputPath: b, Port: portB},
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, []byte("(pcb a)"), results[0].Output.Data)
	assert.Equal(t, []byte("(pcb b)"), results[1].Output.Data)
	sup.AssertNumberOfCalls(t, "Stop", 2)
}

func TestRunBatch_RejectsSharedPort(t *testing.T) {
	sup := new(MockSupervisor)
	wf := NewWorkflow(testLogger(), sup, clientFactory, nil, testWorkflowConfig())

	results, err := wf.RunBatch(context.Background(), []BatchItem{
		{InputPath: "a.dsn", Port: 37864},
		{InputPath: "b.dsn", Port: 37864},
	}, 2)

	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "port 37864")
	sup.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestPortsFrom(t *testing.T) {
	items := PortsFrom(37864, []string{"a.dsn", "b.dsn", "c.dsn"})
	require.Len(t, items, 3)
	assert.Equal(t, BatchItem{InputPath: "c.dsn", Port: 37866}, items[2])
}
