package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler processes one dequeued task.
type Handler func(ctx context.Context, task Task) error

// BatchResult summarizes one consumer invocation.
type BatchResult struct {
	Processed int   `json:"processed"`
	Errors    int   `json:"errors"`
	Remaining int64 `json:"remaining"`
}

// Consumer drains the queue in bounded batches, dispatching each task to
// the handler registered for its type. A task whose handler fails is
// logged and dropped, never requeued.
type Consumer struct {
	queue     Queue
	logger    *zap.Logger
	batchSize int

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewConsumer constructs a consumer processing at most batchSize tasks
// per invocation.
func NewConsumer(q Queue, batchSize int, logger *zap.Logger) *Consumer {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		queue:     q,
		logger:    logger,
		batchSize: batchSize,
		handlers:  make(map[string]Handler),
	}
}

// Register binds a handler to a task type. Later registrations for the
// same type replace earlier ones.
func (c *Consumer) Register(taskType string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[taskType] = handler
}

// ProcessBatch pops and dispatches up to the batch size of tasks. It stops
// early when the queue empties. Handler failures and unknown task types
// count as errors but never abort the batch.
func (c *Consumer) ProcessBatch(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	for i := 0; i < c.batchSize; i++ {
		task, err := c.queue.PopFront(ctx)
		if err != nil {
			return result, err
		}
		if task == nil {
			break
		}

		c.mu.RLock()
		handler, ok := c.handlers[task.Type]
		c.mu.RUnlock()
		if !ok {
			c.logger.Warn("no handler for task type",
				zap.String("task_id", task.ID),
				zap.String("task_type", task.Type))
			result.Errors++
			continue
		}

		if err := handler(ctx, *task); err != nil {
			// The task is already popped; it is lost by design.
			c.logger.Error("task handler failed",
				zap.String("task_id", task.ID),
				zap.String("task_type", task.Type),
				zap.Error(err))
			result.Errors++
			continue
		}
		result.Processed++
	}

	remaining, err := c.queue.Length(ctx)
	if err != nil {
		return result, err
	}
	result.Remaining = remaining
	return result, nil
}
