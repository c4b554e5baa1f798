package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/manthysbr/freeroute/internal/core/domain"
	"github.com/manthysbr/freeroute/internal/core/ports"
)

const (
	labelManaged = "freeroute.managed"
	labelPort    = "freeroute.port"
	namePrefix   = "freeroute-"

	// WindowsDockerHost is the Docker Desktop endpoint reachable from Windows hosts.
	// It must be enabled under Settings -> General -> "Expose daemon on tcp://localhost:2375 without TLS".
	WindowsDockerHost = "tcp://localhost:2375"
)

// DefaultHost returns the management endpoint for the current platform.
// Empty means DOCKER_HOST or the local socket.
func DefaultHost() string {
	if runtime.GOOS == "windows" {
		return WindowsDockerHost
	}
	return ""
}

// Config selects the image and how the runtime is reached
type Config struct {
	Image       string
	Host        string
	StopTimeout time.Duration
}

// Manager supervises the routing engine container.
type Manager struct {
	cli    *client.Client
	logger *slog.Logger
	cfg    Config
}

// NewManager creates a Docker client for cfg.Host. The endpoint is fixed for the
// lifetime of the manager.
func NewManager(logger *slog.Logger, cfg Config) (*Manager, error) {
	if cfg.Image == "" {
		cfg.Image = domain.DefaultImage
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}

	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create docker client: %w", domain.ErrProvisioning, err)
	}
	return &Manager{cli: cli, logger: logger, cfg: cfg}, nil
}

// Ensure Manager implements ContainerSupervisor
var _ ports.ContainerSupervisor = (*Manager)(nil)

func (m *Manager) Start(ctx context.Context, port int) (domain.ContainerHandle, error) {
	if port <= 0 || port > 65535 {
		return domain.ContainerHandle{}, fmt.Errorf("%w: invalid port %d", domain.ErrProvisioning, port)
	}

	name := containerName(port)
	cfg, hostCfg, err := containerConfig(m.cfg.Image, port)
	if err != nil {
		return domain.ContainerHandle{}, m.provisioningError(err)
	}
	netCfg := &network.NetworkingConfig{}

	m.logger.Debug("creating container", "image", m.cfg.Image, "name", name, "port", port)

	resp, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if client.IsErrNotFound(err) {
		m.logger.Info("pulling image", "image", m.cfg.Image)
		reader, pullErr := m.cli.ImagePull(ctx, m.cfg.Image, image.PullOptions{})
		if pullErr != nil {
			return domain.ContainerHandle{}, m.provisioningError(fmt.Errorf("failed to pull image %s: %w", m.cfg.Image, pullErr))
		}
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()

		resp, err = m.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	}
	if err != nil {
		return domain.ContainerHandle{}, m.provisioningError(fmt.Errorf("failed to create container: %w", err))
	}

	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Port already bound usually surfaces here.
		_ = m.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		return domain.ContainerHandle{}, m.provisioningError(fmt.Errorf("failed to start container: %w", err))
	}

	m.logger.Info("container started", "container_id", resp.ID, "port", port)
	return domain.ContainerHandle{
		ID:    resp.ID,
		Name:  name,
		Port:  port,
		Image: m.cfg.Image,
	}, nil
}

func (m *Manager) IsRunning(ctx context.Context, handle domain.ContainerHandle) bool {
	if handle.ID == "" {
		return false
	}
	inspect, err := m.cli.ContainerInspect(ctx, handle.ID)
	if err != nil {
		m.logger.Debug("container inspect failed", "container_id", handle.ID, "error", err)
		return false
	}
	return inspect.State != nil && inspect.State.Running
}

func (m *Manager) Stop(ctx context.Context, handle domain.ContainerHandle) error {
	if handle.ID == "" {
		return nil
	}

	timeout := int(m.cfg.StopTimeout.Seconds())
	stopErr := m.cli.ContainerStop(ctx, handle.ID, container.StopOptions{Timeout: &timeout})
	if stopErr != nil && !client.IsErrNotFound(stopErr) {
		m.logger.Warn("container stop failed, forcing removal", "container_id", handle.ID, "error", stopErr)
	}

	err := m.cli.ContainerRemove(ctx, handle.ID, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", handle.ID, err)
	}

	m.logger.Info("container stopped and removed", "container_id", handle.ID)
	return nil
}

// List returns every container carrying the managed label, running or not.
func (m *Manager) List(ctx context.Context) ([]domain.ManagedContainer, error) {
	containers, err := m.cli.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: makeFilters(map[string]string{
			"label": labelManaged + "=true",
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var managed []domain.ManagedContainer
	for _, c := range containers {
		status := domain.ContainerStatusUnknown
		switch c.State {
		case "running":
			status = domain.ContainerStatusRunning
		case "exited", "dead", "created":
			status = domain.ContainerStatusExited
		}

		name := c.ID
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		managed = append(managed, domain.ManagedContainer{
			ID:     c.ID,
			Name:   name,
			Image:  c.Image,
			Port:   c.Labels[labelPort],
			Status: status,
		})
	}
	return managed, nil
}

// Reap force-removes leftovers of invocations that never reached their cleanup
// (killed processes, host reboots). It returns the removed containers.
func (m *Manager) Reap(ctx context.Context) ([]domain.ManagedContainer, error) {
	managed, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var removed []domain.ManagedContainer
	for _, c := range managed {
		if err := m.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
			m.logger.Warn("failed to reap container", "container_id", c.ID, "error", err)
			continue
		}
		removed = append(removed, c)
	}
	return removed, nil
}

// Close releases the client's idle connections.
func (m *Manager) Close() error {
	return m.cli.Close()
}

func (m *Manager) provisioningError(err error) error {
	if strings.HasPrefix(m.host(), "tcp://") {
		return fmt.Errorf("%w: %w (the docker daemon must accept TCP connections on %s)", domain.ErrProvisioning, err, m.host())
	}
	return fmt.Errorf("%w: %w", domain.ErrProvisioning, err)
}

func (m *Manager) host() string {
	if m.cfg.Host != "" {
		return m.cfg.Host
	}
	return m.cli.DaemonHost()
}

// containerConfig binds port/tcp in the container to the same host port.
func containerConfig(img string, port int) (*container.Config, *container.HostConfig, error) {
	containerPort, err := nat.NewPort("tcp", strconv.Itoa(port))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid port %d: %w", port, err)
	}

	cfg := &container.Config{
		Image:        img,
		ExposedPorts: nat.PortSet{containerPort: struct{}{}},
		Labels: map[string]string{
			labelManaged: "true",
			labelPort:    strconv.Itoa(port),
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{{HostPort: strconv.Itoa(port)}},
		},
	}
	return cfg, hostCfg, nil
}

func containerName(port int) string {
	return fmt.Sprintf("%s%d-%s", namePrefix, port, uuid.New().String()[:8])
}

// Helper to construct list filters
func makeFilters(m map[string]string) filters.Args {
	args := filters.NewArgs()
	for k, v := range m {
		args.Add(k, v)
	}
	return args
}
