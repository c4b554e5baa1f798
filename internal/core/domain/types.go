package domain

// DefaultImage is the public routing engine image.
const DefaultImage = "ghcr.io/tscircuit/freerouting:master"

// DefaultPort is the local port the engine listens on when none is given.
const DefaultPort = 37864

// ContainerHandle identifies the single routing container of one workflow invocation.
type ContainerHandle struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Port  int    `json:"port"`
	Image string `json:"image"`
}

// ContainerStatus is the runtime state reported for a container
type ContainerStatus string

const (
	ContainerStatusRunning ContainerStatus = "running"
	ContainerStatusExited  ContainerStatus = "exited"
	ContainerStatusUnknown ContainerStatus = "unknown"
)

// ManagedContainer is a container found by label during a prune
type ManagedContainer struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Image  string          `json:"image"`
	Port   string          `json:"port"`
	Status ContainerStatus `json:"status"`
}
