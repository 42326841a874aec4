package filesremover

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrenko/geotaglog/internal/logger"
	"github.com/mpetrenko/geotaglog/internal/models"
)

type fileRemoverStub struct {
	mu      sync.Mutex
	removed []string
	failOn  string
}

func (s *fileRemoverStub) Remove(relativeURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if relativeURL == s.failOn {
		return errors.New("remove failed: " + relativeURL)
	}
	s.removed = append(s.removed, relativeURL)

	return nil
}

func (s *fileRemoverStub) removedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.removed...)
}

func TestRunRemovesEnqueuedFiles(t *testing.T) {
	require.NoError(t, logger.Init("info"))

	store := &fileRemoverStub{}
	remover := New(store, 8, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remover.Run(ctx)

	remover.EnqueueJob(&models.FileDeleteJob{
		UserID:        "u1",
		FilesToDelete: []string{"/uploads/1-a.jpg", "/uploads/2-b.png"},
	})

	require.Eventually(t, func() bool {
		return len(store.removedFiles()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []string{"/uploads/1-a.jpg", "/uploads/2-b.png"}, store.removedFiles())
}

func TestRunReportsErrorsAndKeepsGoing(t *testing.T) {
	require.NoError(t, logger.Init("info"))

	store := &fileRemoverStub{failOn: "/uploads/1-broken.jpg"}
	remover := New(store, 8, 10*time.Millisecond)

	var (
		mu   sync.Mutex
		errs []error
	)
	remover.ListenErrors(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remover.Run(ctx)

	remover.EnqueueJob(&models.FileDeleteJob{
		UserID:        "u1",
		FilesToDelete: []string{"/uploads/1-broken.jpg", "/uploads/2-ok.png"},
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 1 && len(store.removedFiles()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"/uploads/2-ok.png"}, store.removedFiles())

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorContains(t, errs[0], "/uploads/1-broken.jpg")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	require.NoError(t, logger.Init("info"))

	store := &fileRemoverStub{}
	remover := New(store, 8, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	remover.Run(ctx)
	cancel()

	// Give the worker a moment to observe the cancellation, then verify
	// later jobs are never flushed.
	time.Sleep(50 * time.Millisecond)
	remover.EnqueueJob(&models.FileDeleteJob{
		UserID:        "u1",
		FilesToDelete: []string{"/uploads/1-late.jpg"},
	})

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, store.removedFiles())
}
