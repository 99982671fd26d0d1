package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"imgscraper/pkg/logger"
	"imgscraper/pkg/ratelimit"
	"imgscraper/pkg/sink"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("worker pool is shutting down")

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Request  sink.Request
	Success  bool
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int
}

// ImageFetcher downloads image bytes.
type ImageFetcher interface {
	Fetch(ctx context.Context, url, referer string) ([]byte, error)
}

// ImageStorage persists images by relative "folder/file" name.
type ImageStorage interface {
	Exists(name string) bool
	Save(r io.Reader, name string) error
}

// Stats counts finished jobs.
type Stats struct {
	Downloaded int64
	Skipped    int64
	Failed     int64
	Bytes      int64
	// Queued is the number of jobs waiting for a worker.
	Queued  int
	Workers int
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan sink.Request
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      ImageFetcher
	storage     ImageStorage
	rateLimiter ratelimit.Limiter
	logger      logger.Logger

	closeMu sync.RWMutex
	closed  bool

	downloaded atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	bytes      atomic.Int64
}

// NewWorkerPool creates a new download worker pool. Results must be
// drained by the caller until Stop returns.
func NewWorkerPool(
	numWorkers int,
	client ImageFetcher,
	storage ImageStorage,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan sink.Request, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		storage:     storage,
		rateLimiter: rateLimiter,
		logger:      log.WithField("component", "downloader"),
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop lets workers finish the queued jobs, then closes Results.
func (wp *WorkerPool) Stop() {
	wp.closeMu.Lock()
	if wp.closed {
		wp.closeMu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobQueue)
	wp.closeMu.Unlock()

	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.InfoWithFields("Worker pool stopped", map[string]interface{}{
		"downloaded": wp.downloaded.Load(),
		"skipped":    wp.skipped.Load(),
		"failed":     wp.failed.Load(),
	})
}

// Abort cancels in-flight downloads. Queued jobs fail fast; Stop must
// still be called to release the workers.
func (wp *WorkerPool) Abort() {
	wp.cancel()
}

// Submit adds a new download job to the queue. It blocks while the queue
// is full.
func (wp *WorkerPool) Submit(ctx context.Context, req sink.Request) error {
	wp.closeMu.RLock()
	defer wp.closeMu.RUnlock()
	if wp.closed {
		return ErrPoolStopped
	}

	select {
	case wp.jobQueue <- req:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"url":      req.URL,
			"filename": req.Filename,
		})
		return nil
	case <-wp.ctx.Done():
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

// Stats returns a snapshot of the job counters.
func (wp *WorkerPool) Stats() Stats {
	return Stats{
		Downloaded: wp.downloaded.Load(),
		Skipped:    wp.skipped.Load(),
		Failed:     wp.failed.Load(),
		Bytes:      wp.bytes.Load(),
		Queued:     len(wp.jobQueue),
		Workers:    wp.numWorkers,
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for req := range wp.jobQueue {
		result := wp.processJob(req, id)
		wp.record(result)
		// Results are delivered even after Abort so Stop's accounting stays
		// complete; the consumer drains until close.
		wp.resultQueue <- result
	}
}

func (wp *WorkerPool) record(r DownloadResult) {
	switch {
	case r.Skipped:
		wp.skipped.Add(1)
	case r.Success:
		wp.downloaded.Add(1)
		wp.bytes.Add(int64(r.Size))
	default:
		wp.failed.Add(1)
	}
}

func (wp *WorkerPool) processJob(req sink.Request, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Request: req}

	if wp.storage.Exists(req.Filename) {
		logger.LogDownload(wp.logger, req.URL, req.Filename, true, nil)
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
		result.Error = fmt.Errorf("rate limit wait: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	data, err := wp.client.Fetch(wp.ctx, req.URL, req.Referer)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		logger.LogDownload(wp.logger.WithField("worker_id", workerID), req.URL, req.Filename, false, result.Error)
		return result
	}
	result.Size = len(data)

	if err := wp.storage.Save(bytes.NewReader(data), req.Filename); err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		logger.LogDownload(wp.logger.WithField("worker_id", workerID), req.URL, req.Filename, false, result.Error)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	logger.LogDownload(wp.logger.WithField("size", result.Size), req.URL, req.Filename, false, nil)
	return result
}
