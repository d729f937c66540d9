package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/yangwenmai/sitebook/internal/model"
)

type staticProjects []model.Project

func (s staticProjects) ListProjects(context.Context) ([]model.Project, error) {
	return s, nil
}

type brokenProjects struct{}

func (brokenProjects) ListProjects(context.Context) ([]model.Project, error) {
	return nil, errors.New("database is locked")
}

type recordingRefresher struct {
	mu   sync.Mutex
	urls []string
	fail map[string]bool
}

func (r *recordingRefresher) Refresh(_ context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	if r.fail[url] {
		return errors.New("HTTP 503")
	}
	return nil
}

func (r *recordingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.urls)
}

func TestRunOnce(t *testing.T) {
	projects := staticProjects{
		{ID: "p1", ReferenceURL: "https://docs.example.com/a"},
		{ID: "p2"},
		{ID: "p3", ReferenceURL: "https://docs.example.com/b"},
		{ID: "p4", ReferenceURL: "https://docs.example.com/a"},
	}
	ref := &recordingRefresher{fail: map[string]bool{"https://docs.example.com/b": true}}
	w := New(projects, ref, time.Minute, zerolog.Nop())

	refreshed, failed := w.RunOnce(context.Background())
	assert.Equal(t, 1, refreshed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"https://docs.example.com/a", "https://docs.example.com/b"}, ref.urls)
}

func TestRunOnce_ListError(t *testing.T) {
	ref := &recordingRefresher{}
	refreshed, failed := New(brokenProjects{}, ref, time.Minute, zerolog.Nop()).RunOnce(context.Background())
	assert.Zero(t, refreshed)
	assert.Zero(t, failed)
	assert.Zero(t, ref.count())
}

func TestStart_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ref := &recordingRefresher{}
	w := New(staticProjects{{ID: "p1", ReferenceURL: "https://docs.example.com/a"}}, ref, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ref.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
