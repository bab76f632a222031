package ingestion

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// job is one document queued for ingestion.
type job struct {
	ctx        context.Context
	documentID string
	rawContent []byte
}

// WorkerPool fans document-ingestion jobs out over a bounded number of
// goroutines fed by a buffered channel: a fixed worker count, a buffered
// queue, and a non-blocking enqueue that drops (with a log line) when the
// queue is full rather than applying backpressure to the caller.
type WorkerPool struct {
	pipeline *Pipeline
	queue    chan job
	workers  int
	wg       sync.WaitGroup
	log      *log.Logger
}

// NewWorkerPool starts workers goroutines draining a channel of capacity
// bufferSize. workers<=0 defaults to 4, bufferSize<=0 defaults to 256.
func NewWorkerPool(pipeline *Pipeline, workers, bufferSize int, logger *log.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	wp := &WorkerPool{
		pipeline: pipeline,
		queue:    make(chan job, bufferSize),
		workers:  workers,
		log:      logger,
	}
	wp.start()
	return wp
}

func (wp *WorkerPool) start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.run(i)
	}
}

func (wp *WorkerPool) run(id int) {
	defer wp.wg.Done()
	for j := range wp.queue {
		if err := wp.pipeline.ProcessDocument(j.ctx, j.documentID, j.rawContent); err != nil {
			wp.log.Error("document ingestion failed", "document_id", j.documentID, "worker_id", id, "error", err)
		}
	}
}

// Enqueue schedules a document for ingestion without blocking. It returns
// false if the queue is full, in which case the caller is responsible for
// the document remaining in pending until a future retry enqueues it again.
func (wp *WorkerPool) Enqueue(ctx context.Context, documentID string, rawContent []byte) bool {
	select {
	case wp.queue <- job{ctx: ctx, documentID: documentID, rawContent: rawContent}:
		return true
	default:
		wp.log.Warn("ingestion queue full, dropping enqueue", "document_id", documentID)
		return false
	}
}

// Shutdown closes the queue and waits for in-flight jobs to finish.
func (wp *WorkerPool) Shutdown() {
	close(wp.queue)
	wp.wg.Wait()
}
