package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-arndt/werkbank/internal/config"
	"github.com/p-arndt/werkbank/internal/docker"
	"github.com/p-arndt/werkbank/internal/lang"
)

// Manager drives the per-user session state machine: Absent, Active, Idle.
// Engine calls happen outside the table lock; a per-user mutex serializes
// the whole open/idle/end sequence for one user so check-then-act on that
// user's entry cannot race.
type Manager struct {
	cfg    *config.Config
	table  *Table
	engine Engine
	source Source
	logger *slog.Logger

	idleDelay time.Duration

	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

func NewManager(cfg *config.Config, table *Table, engine Engine, source Source, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		table:     table,
		engine:    engine,
		source:    source,
		logger:    logger,
		idleDelay: time.Duration(cfg.IdleDelaySeconds) * time.Second,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (m *Manager) userLock(user string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	mu, ok := m.locks[user]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[user] = mu
	}
	return mu
}

// Table returns the session table, for the janitor's liveness checks.
func (m *Manager) Table() *Table {
	return m.table
}

// OpenOpts identifies the project to load into the sandbox.
type OpenOpts struct {
	ProjectID int64
	Owner     string
	Repo      string
	Lang      lang.Lang
	Token     string
}

// Open returns the container handle for the user's session, creating or
// reactivating a sandbox as the state machine dictates. A user with an
// Active session gets ErrConflict.
func (m *Manager) Open(ctx context.Context, user string, opts OpenOpts) (string, error) {
	mu := m.userLock(user)
	mu.Lock()
	defer mu.Unlock()

	if st, ok := m.table.Get(user); ok {
		switch st.Mode {
		case ModeActive:
			return "", fmt.Errorf("%w: user %s", ErrConflict, user)
		case ModeIdle:
			if st.ProjectID == opts.ProjectID {
				m.table.SetActive(user)
				m.logger.Info("session reactivated", "session_user", user, "container_id", st.ContainerID)
				return st.ContainerID, nil
			}
			// Different project: tear the old sandbox down, then create.
			m.endLocked(ctx, user)
		}
	}

	return m.createSession(ctx, user, opts)
}

func (m *Manager) createSession(ctx context.Context, user string, opts OpenOpts) (string, error) {
	image := m.cfg.ImageFor(opts.Lang.String())

	if err := m.engine.PullImage(ctx, image); err != nil {
		m.logger.Error("pull image", "image", image, "error", err)
		return "", fmt.Errorf("%w: pull image", ErrInfra)
	}

	m.logger.Debug("creating container", "session_user", user, "image", image)
	containerID, err := m.engine.CreateContainer(ctx, docker.CreateOpts{
		User:  user,
		Image: image,
	})
	if err != nil {
		m.logger.Error("create container", "session_user", user, "error", err)
		return "", fmt.Errorf("%w: create container", ErrInfra)
	}

	tarball, err := m.source.FetchTarball(ctx, opts.Token, opts.Owner, opts.Repo)
	if err != nil {
		m.logger.Error("fetch project tarball", "session_user", user, "error", err)
		m.stopBestEffort(ctx, containerID)
		return "", fmt.Errorf("%w: fetch project files", ErrInfra)
	}

	if err := m.engine.UploadArchive(ctx, containerID, m.cfg.Sandbox.WorkspacePath, tarball); err != nil {
		m.logger.Error("upload project files", "session_user", user, "container_id", containerID, "error", err)
		m.stopBestEffort(ctx, containerID)
		return "", fmt.Errorf("%w: upload project files", ErrInfra)
	}

	// Only now does the session exist: container started and files in place.
	m.table.InsertActive(user, opts.ProjectID, containerID)
	m.logger.Info("session created", "session_user", user, "project_id", opts.ProjectID, "container_id", containerID)

	return containerID, nil
}

// Idle transitions the user's Active session to Idle and arms the eviction
// timer. Called when the session's connection closes, so a quick reconnect
// can resume without rebuilding the sandbox.
func (m *Manager) Idle(user string) {
	mu := m.userLock(user)
	mu.Lock()
	defer mu.Unlock()

	gen, ok := m.table.SetIdle(user)
	if !ok {
		return
	}

	timer := time.AfterFunc(m.idleDelay, func() { m.evictIdle(user, gen) })
	if !m.table.AttachEvictTimer(user, gen, timer) {
		timer.Stop()
	}
	m.logger.Info("session idled", "session_user", user, "evict_in", m.idleDelay)
}

// evictIdle is the timer callback. The generation check makes the race
// between a firing timer and a concurrent reactivation deterministic: a
// session reactivated before this runs is never destroyed.
func (m *Manager) evictIdle(user string, gen uint64) {
	mu := m.userLock(user)
	mu.Lock()
	defer mu.Unlock()

	if !m.table.IsIdleAt(user, gen) {
		return
	}
	m.logger.Info("idle deadline reached", "session_user", user)
	m.endLocked(context.Background(), user)
}

// End stops the user's container and removes the session, cancelling any
// pending eviction timer.
func (m *Manager) End(ctx context.Context, user string) {
	mu := m.userLock(user)
	mu.Lock()
	defer mu.Unlock()
	m.endLocked(ctx, user)
}

func (m *Manager) endLocked(ctx context.Context, user string) {
	st, ok := m.table.Remove(user)
	if !ok {
		return
	}
	// Best effort: the container auto-removes on stop and may already be
	// gone; the table entry is authoritative either way.
	if err := m.engine.StopContainer(ctx, st.ContainerID); err != nil {
		m.logger.Warn("stop container", "container_id", st.ContainerID, "error", err)
	}
	m.logger.Info("session ended", "session_user", user, "container_id", st.ContainerID)
}

// Sweep synchronously stops every tracked container. Runs once at process
// shutdown and is allowed to block briefly per container.
func (m *Manager) Sweep(ctx context.Context) {
	states := m.table.Drain()
	if len(states) == 0 {
		return
	}
	m.logger.Warn("stopping all session containers", "count", len(states))
	for _, st := range states {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := m.engine.StopContainer(stopCtx, st.ContainerID); err != nil {
			m.logger.Warn("sweep: stop container", "container_id", st.ContainerID, "error", err)
		}
		cancel()
	}
}

func (m *Manager) stopBestEffort(ctx context.Context, containerID string) {
	if err := m.engine.StopContainer(ctx, containerID); err != nil {
		m.logger.Warn("cleanup container", "container_id", containerID, "error", err)
	}
}
