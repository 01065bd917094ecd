package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"garagebook/internal/metrics"
	"garagebook/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	QueueKey      = "notifications:queue"
	DeadLetterKey = "notifications:deadletter"

	maxLocalDeadLetters = 100
)

var ErrQueueFull = errors.New("notification queue is full")

// Handler delivers a single notification task.
type Handler interface {
	Handle(ctx context.Context, task models.NotificationTask) error
}

type HandlerFunc func(ctx context.Context, task models.NotificationTask) error

func (f HandlerFunc) Handle(ctx context.Context, task models.NotificationTask) error {
	return f(ctx, task)
}

// NotificationWorker consumes notification tasks from redis or, when redis is
// unavailable, from an in-memory channel, and retries failures with backoff.
type NotificationWorker struct {
	handler       Handler
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	popTimeout    time.Duration
	logger        *zerolog.Logger

	pending sync.WaitGroup
	mu      sync.Mutex
	dead    []models.NotificationTask
}

// NewNotificationWorker builds a worker with sane defaults.
func NewNotificationWorker(handler Handler, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *NotificationWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &NotificationWorker{
		handler:       handler,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.NotificationTask, models.WorkerQueueSize),
		redisQueueKey: QueueKey,
		deadLetterKey: DeadLetterKey,
		popTimeout:    time.Second,
		logger:        logger,
	}
}

// Enqueue schedules task via redis or the in-memory queue. It never blocks.
func (w *NotificationWorker) Enqueue(ctx context.Context, task models.NotificationTask) error {
	if task.Type == "" {
		return errors.New("task type is required")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	return w.push(ctx, task)
}

func (w *NotificationWorker) push(ctx context.Context, task models.NotificationTask) error {
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Redis push failed, using memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
		return nil
	default:
		w.logger.Error().Str("task_id", task.ID).Str("type", task.Type).Msg("In-memory notification queue full, task dropped")
		metrics.IncNotification(task.Type, "dropped")
		return ErrQueueFull
	}
}

// Start runs the consume loop until ctx is done, then waits for scheduled
// retries to observe the cancellation.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Notification worker started")
	defer w.logger.Info().Msg("Notification worker stopped")
	defer w.pending.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, t)
			continue
		}

		if w.redis != nil {
			if t, ok := w.tryRedis(ctx); ok {
				w.processTask(ctx, t)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processTask(ctx, t)
		}
	}
}

func (w *NotificationWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	res, err := w.redis.BRPop(ctx, w.popTimeout, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return models.NotificationTask{}, false
		}
		w.logger.Warn().Err(err).Msg("Redis BRPOP failed")
		// avoid a hot loop while redis is unreachable
		select {
		case <-ctx.Done():
		case t := <-w.queue:
			return t, true
		case <-time.After(w.popTimeout):
		}
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis task")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *NotificationWorker) processTask(ctx context.Context, task models.NotificationTask) {
	log := w.logger.With().Str("task_id", task.ID).Str("type", task.Type).Int("attempt", task.Attempt+1).Logger()

	err := w.handler.Handle(ctx, task)
	if err == nil {
		metrics.IncNotification(task.Type, "sent")
		log.Debug().Msg("Notification delivered")
		return
	}

	task.Attempt++
	task.LastError = err.Error()

	if IsPermanent(err) {
		log.Error().Err(err).Msg("Notification failed permanently")
		w.deadLetter(ctx, task)
		return
	}

	w.retryOrFail(ctx, task, log)
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task models.NotificationTask, log zerolog.Logger) {
	if task.Attempt >= w.retryPolicy.MaxRetries {
		log.Error().Str("error", task.LastError).Msg("Notification retries exhausted")
		w.deadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	metrics.IncNotification(task.Type, "retry")
	log.Warn().Str("error", task.LastError).Dur("delay", delay).Msg("Notification failed, scheduling retry")

	w.pending.Add(1)
	go func() {
		defer w.pending.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := w.push(ctx, task); err != nil {
			w.deadLetter(ctx, task)
		}
	}()
}

func (w *NotificationWorker) deadLetter(ctx context.Context, task models.NotificationTask) {
	metrics.IncNotification(task.Type, "dead")

	w.mu.Lock()
	w.dead = append(w.dead, task)
	if len(w.dead) > maxLocalDeadLetters {
		w.dead = w.dead[len(w.dead)-maxLocalDeadLetters:]
	}
	w.mu.Unlock()

	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, task); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("Dead-letter push failed")
	}
}

// deadLetters returns the most recent tasks that could not be delivered.
func (w *NotificationWorker) deadLetters() []models.NotificationTask {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.NotificationTask(nil), w.dead...)
}

func (w *NotificationWorker) pushRedis(ctx context.Context, key string, task models.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return w.redis.LPush(ctx, key, data).Err()
}
