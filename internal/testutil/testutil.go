package testutil

import (
	"testing"

	"github.com/p-arndt/werkbank/internal/config"
	"github.com/p-arndt/werkbank/internal/settings"
)

// TestConfig returns a Config with sensible test defaults.
func TestConfig() *config.Config {
	return &config.Config{
		Listen:       "127.0.0.1:0",
		DefaultImage: "base",
		Images: map[string]string{
			"py": "python:3",
			"js": "node:22",
		},
		IdleDelaySeconds: 300,
		SettingsDBPath:   ":memory:",
		SourceBaseURL:    "http://source.invalid",
		JanitorInterval:  60,
		Sandbox: config.Sandbox{
			Runtime:        "runsc",
			WorkspacePath:  "/home/workspace",
			CPULimit:       1.0,
			MemLimitMB:     512,
			PidsLimit:      256,
			NetworkMode:    "none",
			ExecTimeoutSec: 120,
		},
	}
}

// NewTestStore creates an in-memory settings store for testing.
func NewTestStore(t *testing.T) *settings.Store {
	t.Helper()
	st, err := settings.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}
