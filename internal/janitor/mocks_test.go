package janitor

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/werkbank/internal/docker"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) ListSandboxContainers(ctx context.Context) ([]docker.ContainerInfo, error) {
	args := m.Called(ctx)
	if containers := args.Get(0); containers != nil {
		return containers.([]docker.ContainerInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) StopContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) HasContainer(containerID string) bool {
	args := m.Called(containerID)
	return args.Bool(0)
}
