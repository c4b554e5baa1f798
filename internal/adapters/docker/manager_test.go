package docker

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestContainerConfig_BindsSamePort(t *testing.T) {
	cfg, hostCfg, err := containerConfig(domain.DefaultImage, 37864)
	require.NoError(t, err)

	port := nat.Port("37864/tcp")
	assert.Equal(t, domain.DefaultImage, cfg.Image)
	assert.Contains(t, cfg.ExposedPorts, port)
	assert.Equal(t, "true", cfg.Labels[labelManaged])
	assert.Equal(t, "37864", cfg.Labels[labelPort])

	require.Len(t, hostCfg.PortBindings[port], 1)
	assert.Equal(t, "37864", hostCfg.PortBindings[port][0].HostPort)
}

func TestContainerName_UniquePerCall(t *testing.T) {
	a := containerName(4000)
	b := containerName(4000)

	assert.True(t, strings.HasPrefix(a, "freeroute-4000-"))
	assert.NotEqual(t, a, b)
}

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager(testLogger(), Config{Host: WindowsDockerHost})
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, domain.DefaultImage, m.cfg.Image)
	assert.Positive(t, m.cfg.StopTimeout)
	assert.Equal(t, WindowsDockerHost, m.host())
}

func TestManager_StartRejectsInvalidPort(t *testing.T) {
	m, err := NewManager(testLogger(), Config{Host: "tcp://127.0.0.1:1"})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Start(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrProvisioning)

	_, err = m.Start(context.Background(), 70000)
	assert.ErrorIs(t, err, domain.ErrProvisioning)
}

func TestManager_UnreachableRuntime(t *testing.T) {
	m, err := NewManager(testLogger(), Config{Host: "tcp://127.0.0.1:1"})
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	_, err = m.Start(ctx, 37864)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvisioning)
	assert.Contains(t, err.Error(), "tcp://127.0.0.1:1")

	assert.False(t, m.IsRunning(ctx, domain.ContainerHandle{ID: "stale"}))
	assert.False(t, m.IsRunning(ctx, domain.ContainerHandle{}))
}

func TestManager_StopWithoutContainer(t *testing.T) {
	m, err := NewManager(testLogger(), Config{Host: "tcp://127.0.0.1:1"})
	require.NoError(t, err)
	defer m.Close()

	assert.NoError(t, m.Stop(context.Background(), domain.ContainerHandle{}))
}
