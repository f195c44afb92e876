// Package images pre-warms the container image cache so the first session
// open for a language does not pay the pull latency.
package images

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/p-arndt/werkbank/internal/config"
)

type Puller interface {
	PullImage(ctx context.Context, ref string) error
}

type Prepuller struct {
	engine Puller
	logger *slog.Logger
}

func New(engine Puller, logger *slog.Logger) *Prepuller {
	return &Prepuller{engine: engine, logger: logger}
}

// PrepullAll pulls every configured image concurrently. Individual pull
// failures are logged, not fatal: a missing image is pulled again on first
// use.
func (p *Prepuller) PrepullAll(ctx context.Context, cfg *config.Config) {
	refs := imageSet(cfg)
	p.logger.Info("pre-pulling images", "count", len(refs))

	var wg sync.WaitGroup
	for _, ref := range refs {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			if err := p.engine.PullImage(ctx, ref); err != nil {
				p.logger.Warn("image pre-pull failed", "image", ref, "error", err)
				return
			}
			p.logger.Info("image ready", "image", ref)
		}(ref)
	}
	wg.Wait()
}

// imageSet collects the default image plus every per-language mapping,
// deduplicated and in stable order.
func imageSet(cfg *config.Config) []string {
	seen := map[string]bool{}
	var refs []string
	add := func(ref string) {
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	add(cfg.DefaultImage)
	for _, img := range cfg.Images {
		add(img)
	}
	sort.Strings(refs)
	return refs
}
