package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lordbasex/maxproxy/internal/classifier"
)

// WorkerPool runs a fixed set of goroutines pulling MessageTasks off a
// buffered queue, grounded on server/worker_pool.go's WorkerPool. Each
// worker owns its own classifier.Cache for its whole lifetime: the cache
// is never shared across goroutines, realizing spec.md §5's per-thread
// ParsingCache invariant with Go's actual concurrency primitive instead of
// a simulated thread-local.
type WorkerPool struct {
	workerCount int
	queue       chan MessageTask
	handler     *Handler
	caches      []*classifier.Cache
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
	mutex       sync.RWMutex

	slowTaskThreshold time.Duration
}

// NewWorkerPool builds a pool of config.WorkerCount workers, each with its
// own classifier.Cache sized cacheMaxBytes/WorkerCount (classifier.New
// does this division itself given the thread count).
func NewWorkerPool(handler *Handler, config *WorkerPoolConfig, cacheMaxBytes int64) *WorkerPool {
	if config == nil {
		config = &WorkerPoolConfig{WorkerCount: 10, QueueSize: 100, Timeout: 30 * time.Second}
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 10
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	caches := make([]*classifier.Cache, config.WorkerCount)
	for i := range caches {
		caches[i] = classifier.New(cacheMaxBytes, config.WorkerCount)
	}

	return &WorkerPool{
		workerCount: config.WorkerCount,
		queue:       make(chan MessageTask, config.QueueSize),
		handler:     handler,
		caches:      caches,
		ctx:         ctx,
		cancel:      cancel,

		slowTaskThreshold: config.Timeout / 2,
	}
}

func (wp *WorkerPool) Start() error {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if wp.started {
		return fmt.Errorf("worker pool already started")
	}

	log.Printf("[proxy] starting worker pool with %d workers, queue size %d", wp.workerCount, cap(wp.queue))
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.started = true
	return nil
}

func (wp *WorkerPool) Stop(timeout time.Duration) error {
	wp.mutex.Lock()
	if !wp.started {
		wp.mutex.Unlock()
		return nil
	}
	wp.mutex.Unlock()

	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("worker pool shutdown timeout")
	}
}

func (wp *WorkerPool) SubmitTask(task MessageTask) error {
	wp.mutex.RLock()
	defer wp.mutex.RUnlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	select {
	case wp.queue <- task:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		log.Printf("[proxy] worker pool queue is full, dropping message")
		return fmt.Errorf("worker pool queue is full")
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	cache := wp.caches[id]

	for {
		select {
		case <-wp.ctx.Done():
			return
		case task := <-wp.queue:
			wp.processTask(id, cache, task)
		}
	}
}

func (wp *WorkerPool) processTask(workerID int, cache *classifier.Cache, task MessageTask) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(wp.ctx, 30*time.Second)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[proxy] worker %d panic recovered: %v", workerID, r)
			errorResp := RPCResponse{Error: fmt.Sprintf("internal server error: %v", r)}
			if body, err := json.Marshal(errorResp); err == nil {
				task.Channel.PublishWithContext(ctx, "", task.Message.ReplyTo, false, false, amqp.Publishing{
					ContentType:   "application/json",
					CorrelationId: task.Message.CorrelationId,
					Body:          body,
				})
			}
		}
	}()

	wp.handler.handleMessage(task.Channel, task.Message, cache)

	if elapsed := time.Since(start); elapsed > wp.slowTaskThreshold {
		log.Printf("[proxy] worker %d slow task: %s took %v", workerID, task.Message.CorrelationId, elapsed)
	}
}

// CacheStats aggregates every worker's classifier.Cache stats into one
// total, since each worker owns an independent cache and no single one
// represents the pool.
func (wp *WorkerPool) CacheStats() classifier.Stats {
	var total classifier.Stats
	for _, c := range wp.caches {
		s := c.Stats()
		total.Size += s.Size
		total.Inserts += s.Inserts
		total.Hits += s.Hits
		total.Misses += s.Misses
		total.Evictions += s.Evictions
	}
	return total
}

type WorkerPoolStats struct {
	WorkerCount int
	QueueSize   int
	QueuedTasks int
	IsRunning   bool
}

func (wp *WorkerPool) GetStats() WorkerPoolStats {
	wp.mutex.RLock()
	defer wp.mutex.RUnlock()
	return WorkerPoolStats{
		WorkerCount: wp.workerCount,
		QueueSize:   cap(wp.queue),
		QueuedTasks: len(wp.queue),
		IsRunning:   wp.started && wp.ctx.Err() == nil,
	}
}
