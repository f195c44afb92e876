package session

import (
	"context"

	"github.com/p-arndt/werkbank/internal/docker"
)

// Engine abstracts the container engine calls the manager performs.
type Engine interface {
	PullImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, opts docker.CreateOpts) (string, error)
	StopContainer(ctx context.Context, containerID string) error
	UploadArchive(ctx context.Context, containerID, path string, archive []byte) error
}

// Source provides the project's file contents as a tarball, used once when
// seeding a fresh container's workspace.
type Source interface {
	FetchTarball(ctx context.Context, token, owner, repo string) ([]byte, error)
}
