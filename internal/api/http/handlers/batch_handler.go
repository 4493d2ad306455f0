package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/helpdesk/internal/queue"
)

// BatchHandler triggers one bounded queue-drain pass. The endpoint is
// meant to be hit by a cron job or invoked manually.
type BatchHandler struct {
	consumer *queue.Consumer
	queue    queue.Queue
}

// NewBatchHandler constructs the handler.
func NewBatchHandler(consumer *queue.Consumer, q queue.Queue) *BatchHandler {
	return &BatchHandler{consumer: consumer, queue: q}
}

// Process POST /batch.
func (h *BatchHandler) Process(c *fiber.Ctx) error {
	length, err := h.queue.Length(c.UserContext())
	if err != nil {
		return err
	}
	if length == 0 {
		return c.JSON(fiber.Map{"message": "no pending tasks", "processed": 0})
	}

	result, err := h.consumer.ProcessBatch(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":   "batch processing completed",
		"processed": result.Processed,
		"errors":    result.Errors,
		"remaining": result.Remaining,
	})
}
