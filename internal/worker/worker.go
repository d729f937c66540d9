// Package worker keeps project reference documents warm in the background.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yangwenmai/sitebook/internal/model"
)

// ProjectLister lists the projects whose references are kept warm.
type ProjectLister interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
}

// Refresher re-fetches one reference document.
type Refresher interface {
	Refresh(ctx context.Context, url string) error
}

// Worker periodically refreshes every project's reference document.
type Worker struct {
	projects  ProjectLister
	refresher Refresher
	interval  time.Duration
	log       zerolog.Logger
}

// New creates a new Worker.
func New(projects ProjectLister, refresher Refresher, interval time.Duration, log zerolog.Logger) *Worker {
	return &Worker{projects: projects, refresher: refresher, interval: interval, log: log}
}

// Start runs a refresh pass immediately and then every interval. It blocks
// until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("reference worker started")
	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("reference worker stopped")
			return
		case <-time.After(w.interval):
		}
	}
}

// RunOnce refreshes every distinct reference URL once and reports how many
// succeeded and failed.
func (w *Worker) RunOnce(ctx context.Context) (refreshed, failed int) {
	projects, err := w.projects.ListProjects(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("list projects")
		return 0, 0
	}

	seen := make(map[string]bool)
	for _, p := range projects {
		if p.ReferenceURL == "" || seen[p.ReferenceURL] {
			continue
		}
		seen[p.ReferenceURL] = true
		if ctx.Err() != nil {
			return refreshed, failed
		}

		if err := w.refresher.Refresh(ctx, p.ReferenceURL); err != nil {
			failed++
			w.log.Warn().Err(err).Str("project_id", p.ID).Msg("reference refresh failed")
			continue
		}
		refreshed++
	}
	if refreshed+failed > 0 {
		w.log.Debug().Int("refreshed", refreshed).Int("failed", failed).Msg("reference pass done")
	}
	return refreshed, failed
}
