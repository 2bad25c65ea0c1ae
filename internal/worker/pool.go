package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/reelbot/internal/domain"
)

var (
	// ErrShutdownTimeout is returned when workers don't stop within timeout.
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("worker pool queue is full")
	// ErrPoolStopped is returned by Submit after Stop has been called.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// MessageHandler processes one chat message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg domain.Message)
}

// Pool runs chat messages through a fixed number of workers.
type Pool struct {
	workers int
	queue   chan domain.Message
	handler MessageHandler
	logger  *slog.Logger

	mu      sync.RWMutex
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker pool configuration.
type Config struct {
	Workers   int
	QueueSize int
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, handler MessageHandler, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers: cfg.Workers,
		queue:   make(chan domain.Message, cfg.QueueSize),
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool", "workers", p.workers, "queue_size", cap(p.queue))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues msg without blocking.
func (p *Pool) Submit(msg domain.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new messages and waits for queued ones to finish. Work still
// running when timeout expires is cancelled.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool")

	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		p.cancel()
		return ErrShutdownTimeout
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("worker started")

	for msg := range p.queue {
		p.process(logger, msg)
	}
	logger.Debug("worker stopping")
}

func (p *Pool) process(logger *slog.Logger, msg domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("message handler panicked",
				"panic", r,
				"chat_id", msg.ChatID,
				"trace_id", msg.TraceID,
			)
		}
	}()

	start := time.Now()
	p.handler.HandleMessage(p.ctx, msg)
	logger.Debug("message processed",
		"chat_id", msg.ChatID,
		"trace_id", msg.TraceID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
