package eventlog

import (
	"context"
	"log/slog"
	"sync"

	"scavenger/core/types"
)

// Appender persists a committed receipt.
type Appender interface {
	Append(ctx context.Context, receipt *types.Receipt) error
}

// Publisher forwards a committed receipt to an external consumer.
type Publisher interface {
	Publish(ctx context.Context, receipt *types.Receipt) error
}

const defaultQueueSize = 1024

// Archiver receives committed receipts from the runtime and hands them to the
// store and stream publishers on a background goroutine. Receipts arriving
// while the queue is full are dropped and counted.
type Archiver struct {
	store     Appender
	publisher Publisher
	logger    *slog.Logger
	queue     chan *types.Receipt

	mu      sync.Mutex
	closed  bool
	dropped uint64
	done    chan struct{}
}

// NewArchiver builds an archiver. Either target may be nil.
func NewArchiver(store Appender, publisher Publisher, queueSize int, logger *slog.Logger) *Archiver {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		store:     store,
		publisher: publisher,
		logger:    logger,
		queue:     make(chan *types.Receipt, queueSize),
		done:      make(chan struct{}),
	}
}

// HandleReceipt enqueues receipt without blocking.
func (a *Archiver) HandleReceipt(receipt *types.Receipt) {
	if receipt == nil || len(receipt.Events) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- receipt:
	default:
		a.dropped++
		a.logger.Warn("event archive queue full, dropping receipt",
			"height", receipt.Height, "method", receipt.Method, "dropped", a.dropped)
	}
}

// Dropped returns the number of receipts discarded because the queue was full.
func (a *Archiver) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Run drains the queue until Close is called. Queued receipts are still
// written after Close.
func (a *Archiver) Run(ctx context.Context) {
	defer close(a.done)
	for receipt := range a.queue {
		a.deliver(ctx, receipt)
	}
}

func (a *Archiver) deliver(ctx context.Context, receipt *types.Receipt) {
	if a.store != nil {
		if err := a.store.Append(ctx, receipt); err != nil {
			a.logger.Error("archive events", "height", receipt.Height, "error", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, receipt); err != nil {
			a.logger.Error("publish events", "height", receipt.Height, "error", err)
		}
	}
}

// Close stops accepting receipts and waits for Run to drain the queue.
func (a *Archiver) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
