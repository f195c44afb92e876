package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/werkbank/internal/docker"
	"github.com/p-arndt/werkbank/internal/session"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Open(ctx context.Context, user string, opts session.OpenOpts) (string, error) {
	args := m.Called(ctx, user, opts)
	return args.String(0), args.Error(1)
}

func (m *MockSessionService) Idle(user string) {
	m.Called(user)
}

// stubExecer answers every exec with a fixed result, enough to drive simple
// commands over a real websocket.
type stubExecer struct {
	result docker.ExecResult
}

func (e *stubExecer) Exec(_ context.Context, _ string, _ docker.ExecSpec) (*docker.ExecResult, error) {
	res := e.result
	return &res, nil
}

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Get(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockSettings) Set(userID, text string) error {
	args := m.Called(userID, text)
	return args.Error(0)
}
