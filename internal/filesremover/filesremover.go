// Package filesremover runs a background worker that deletes stored
// image files after their entries are removed. Jobs are collected on a
// channel and flushed in batches on a ticker.
package filesremover

import (
	"context"
	"time"

	"github.com/mpetrenko/geotaglog/internal/logger"
	"github.com/mpetrenko/geotaglog/internal/models"
)

type fileRemover interface {
	Remove(relativeURL string) error
}

type task struct {
	userID       string
	fileToDelete string
}

// FilesRemover is the background deletion queue.
type FilesRemover struct {
	queue                    chan *task
	store                    fileRemover
	delayBetweenQueueFetches time.Duration
	errorChannel             chan error
}

// New creates a FilesRemover over the given file store.
func New(
	store fileRemover,
	channelCapacity int,
	delayBetweenQueueFetches time.Duration,
) *FilesRemover {
	return &FilesRemover{
		store:                    store,
		queue:                    make(chan *task, channelCapacity),
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		errorChannel:             make(chan error, channelCapacity),
	}
}

// ListenErrors drains the worker's error channel through the callback.
func (r *FilesRemover) ListenErrors(callback func(error)) {
	go func() {
		for err := range r.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the worker goroutine. It stops, flushing nothing further,
// when the context is cancelled.
func (r *FilesRemover) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.delayBetweenQueueFetches)
		defer ticker.Stop()

		var tasks []task

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-r.queue:
				tasks = append(tasks, *t)
			case <-ticker.C:
				if len(tasks) == 0 {
					continue
				}
				removed := 0
				for _, t := range tasks {
					if err := r.store.Remove(t.fileToDelete); err != nil {
						r.errorChannel <- err
						continue
					}
					removed++
				}
				logger.Log.Infof("processed removing of %d files", removed)
				tasks = nil
			}
		}
	}()
}

// EnqueueJob splits the job into per-file tasks and queues them.
func (r *FilesRemover) EnqueueJob(job *models.FileDeleteJob) {
	for _, file := range job.FilesToDelete {
		r.queue <- &task{
			userID:       job.UserID,
			fileToDelete: file,
		}
	}
}
