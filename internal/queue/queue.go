package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// pendingTasksKey is the Redis list backing the queue.
const pendingTasksKey = "tasks:pending"

// Task types enqueued by the workflow layer or external cron triggers.
// All of them are refresh/best-effort hints; losing one never loses data.
const (
	TaskRefreshTicketCache     = "refresh_ticket_cache"
	TaskCloseInactiveTickets   = "close_inactive_tickets"
	TaskSendNotifications      = "send_notifications"
	TaskArchiveOldInteractions = "archive_old_interactions"
)

// Task is one pending maintenance job.
type Task struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Queue is an ordered, best-effort FIFO of maintenance jobs. There is no
// acknowledgment and no retry: a popped task that fails to process is lost.
type Queue interface {
	Push(ctx context.Context, task Task) error
	// PopFront removes and returns the head of the list, or nil when the
	// queue is empty.
	PopFront(ctx context.Context) (*Task, error)
	Length(ctx context.Context) (int64, error)
}

// NewTask stamps a task with an id and enqueue time.
func NewTask(taskType string, payload map[string]any) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

type redisQueue struct {
	client *redis.Client
}

// NewRedisQueue returns a Redis-list-backed Queue.
func NewRedisQueue(client *redis.Client) Queue {
	return &redisQueue{client: client}
}

func (q *redisQueue) Push(ctx context.Context, task Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, pendingTasksKey, raw).Err()
}

func (q *redisQueue) PopFront(ctx context.Context) (*Task, error) {
	raw, err := q.client.LPop(ctx, pendingTasksKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (q *redisQueue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, pendingTasksKey).Result()
}

// MemoryQueue is an in-process Queue used in tests and when Redis is
// unavailable.
type MemoryQueue struct {
	mu    sync.Mutex
	tasks []Task
}

// NewMemoryQueue returns an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Push(_ context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *MemoryQueue) PopFront(_ context.Context) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return &task, nil
}

func (q *MemoryQueue) Length(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.tasks)), nil
}
