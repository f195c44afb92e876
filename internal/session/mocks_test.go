package session

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/werkbank/internal/docker"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) PullImage(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockEngine) CreateContainer(ctx context.Context, opts docker.CreateOpts) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *MockEngine) StopContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

func (m *MockEngine) UploadArchive(ctx context.Context, containerID, path string, archive []byte) error {
	args := m.Called(ctx, containerID, path, archive)
	return args.Error(0)
}

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchTarball(ctx context.Context, token, owner, repo string) ([]byte, error) {
	args := m.Called(ctx, token, owner, repo)
	if tb := args.Get(0); tb != nil {
		return tb.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}
