// Package janitor periodically stops labeled sandbox containers that no live
// session claims, so containers surviving a daemon crash do not linger.
package janitor

import (
	"context"
	"log/slog"
	"time"
)

type Janitor struct {
	engine   Engine
	tracker  Tracker
	interval time.Duration
	logger   *slog.Logger
}

func New(engine Engine, tracker Tracker, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		engine:   engine,
		tracker:  tracker,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps immediately, then on every tick until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.logger.Info("janitor started", "interval", j.interval)

	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	containers, err := j.engine.ListSandboxContainers(ctx)
	if err != nil {
		j.logger.Error("janitor: list containers", "error", err)
		return
	}

	orphans := 0
	for _, ctr := range containers {
		if j.tracker.HasContainer(ctr.ContainerID) {
			continue
		}
		// A container created moments ago may belong to an open still in
		// flight: its table entry appears only after the project files are
		// fetched and uploaded. Leave it for the next sweep.
		if time.Since(ctr.CreatedAt) < j.interval {
			continue
		}
		orphans++
		j.logger.Warn("stopping orphaned container", "container_id", ctr.ContainerID, "session_user", ctr.User)
		if err := j.engine.StopContainer(ctx, ctr.ContainerID); err != nil {
			j.logger.Error("janitor: stop container", "container_id", ctr.ContainerID, "error", err)
		}
	}

	if orphans > 0 {
		j.logger.Info("janitor: swept orphans", "count", orphans)
	}
}
