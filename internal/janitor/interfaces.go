package janitor

import (
	"context"

	"github.com/p-arndt/werkbank/internal/docker"
)

// Engine abstracts the container engine operations the janitor needs.
type Engine interface {
	ListSandboxContainers(ctx context.Context) ([]docker.ContainerInfo, error)
	StopContainer(ctx context.Context, containerID string) error
}

// Tracker reports whether a container belongs to a live session.
type Tracker interface {
	HasContainer(containerID string) bool
}
