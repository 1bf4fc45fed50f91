package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/akidev/akibot/internal/commands"
	"github.com/akidev/akibot/internal/database"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/telegram"
)

type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusComplete TaskStatus = "complete"
	TaskStatusFailed   TaskStatus = "failed"
)

// Task is one queued command invocation. The originating Telegram update is
// stored serialized so tasks survive restarts.
type Task struct {
	ID          int64
	Command     string
	UpdateData  []byte
	RetryCount  int
	MaxRetries  int
	RetryDelay  time.Duration
	LastAttempt time.Time
	NextAttempt time.Time
	Status      TaskStatus
	Update      *telegram.Update
}

func (t *Task) GetUpdate() (*telegram.Update, error) {
	if t.Update != nil {
		return t.Update, nil
	}

	var update telegram.Update
	if err := json.Unmarshal(t.UpdateData, &update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal update data: %w", err)
	}
	t.Update = &update
	return t.Update, nil
}

// Queue is a durable per-command work queue backed by the tasks table. Each
// command gets its own rate limiter and worker pool, so a flood of slow
// downloads cannot starve the other commands.
type Queue struct {
	db     database.Database
	logger logger.Logger

	// mu guards the per-command registries: commands with slow
	// initialization join via StartQueue after workers are running.
	mu                sync.Mutex
	commandLimiters   map[string]*rate.Limiter
	commandSemaphores map[string]chan struct{}
	handlers          map[string]commands.Command
}

func NewQueue(db database.Database, log logger.Logger) *Queue {
	return &Queue{
		db:                db,
		commandLimiters:   make(map[string]*rate.Limiter),
		commandSemaphores: make(map[string]chan struct{}),
		logger:            log,
		handlers:          make(map[string]commands.Command),
	}
}

func (q *Queue) RegisterHandlers(handlers map[string]commands.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	maps.Copy(q.handlers, handlers)
}

// Add persists a task for later execution. The update is marshalled as-is;
// whatever the command needs must be reachable from it.
func (q *Queue) Add(cmd commands.Command, update telegram.Update, maxRetries int, retryDelay int64) error {
	name := cmd.Name()
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}

	updateData, err := json.Marshal(update)
	if err != nil {
		return err
	}

	_, err = q.db.ExecWithRetry(context.Background(), `
        INSERT INTO tasks (command, update_data, max_retries, retry_delay, next_attempt)
        VALUES (?, ?, ?, ?, ?)
    `, name, updateData, maxRetries, retryDelay, time.Now())
	if err != nil {
		q.logger.WithError(err).WithField("command", name).Error("Failed to add task")
		return err
	}

	q.logger.WithFields(logger.Fields{
		"command":   name,
		"update_id": update.UpdateID,
	}).Debug("Task queued")
	return nil
}

// Start spins up limiters and workers for every registered handler.
func (q *Queue) Start(ctx context.Context, handlers map[string]commands.Command) {
	for name, handler := range handlers {
		q.startCommand(ctx, name, handler)
	}
}

// StartQueue wires a single late-registered command into the running queue.
// Commands with slow initialization register here once they are ready.
func (q *Queue) StartQueue(ctx context.Context, command string, handler commands.Command) {
	q.startCommand(ctx, command, handler)
}

func (q *Queue) startCommand(ctx context.Context, command string, handler commands.Command) {
	cfg := handler.GetQueueConfig()
	interval := cfg.Throttle.Period / time.Duration(cfg.Throttle.Requests)
	limiter := rate.NewLimiter(rate.Every(interval), cfg.Throttle.Requests)
	sem := make(chan struct{}, cfg.Throttle.Concurrency)

	q.mu.Lock()
	if _, ok := q.commandLimiters[command]; ok {
		q.mu.Unlock()
		return
	}
	q.handlers[command] = handler
	q.commandLimiters[command] = limiter
	q.commandSemaphores[command] = sem
	q.mu.Unlock()

	q.logger.WithFields(logger.Fields{
		"command":     command,
		"period":      cfg.Throttle.Period,
		"requests":    cfg.Throttle.Requests,
		"interval":    interval,
		"concurrency": cfg.Throttle.Concurrency,
	}).Info("Configured rate limiter")

	go q.runWorkers(ctx, command, handler, sem, limiter)
}

func (q *Queue) runWorkers(ctx context.Context, command string, handler commands.Command, sem chan struct{}, limiter *rate.Limiter) {
	for range cap(sem) {
		go q.taskWorker(ctx, command, handler, sem, limiter)
	}

	<-ctx.Done()
}

func (q *Queue) taskWorker(ctx context.Context, command string, h commands.Command, sem chan struct{}, lim *rate.Limiter) {
	log := q.logger.WithField("command", command)
	log.Debug("Worker started")
	defer func() {
		log.Debug("Worker stopped")
		if r := recover(); r != nil {
			log.Error(fmt.Sprintf("recovered from panic: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
			task, err := q.lockAndGetTask(ctx, command)
			<-sem

			if err != nil {
				log.WithError(err).Error("Failed to get task")
				continue
			}
			if task == nil {
				log.Trace("No tasks available")
				time.Sleep(1 * time.Second)
				continue
			}

			reserve := lim.Reserve()
			if delay := reserve.Delay(); delay > 0 {
				log.WithFields(logger.Fields{
					"task":     task.ID,
					"wait_for": delay.String(),
				}).Debug("Rate limiting - delaying task")

				select {
				case <-time.After(delay):
				case <-ctx.Done():
					reserve.Cancel()
					return
				}
			}

			if err := q.handleTask(ctx, *task, h); err != nil {
				log.WithError(err).WithField("task_id", task.ID).Error("Task processing failed")
			}
		}
	}
}

// lockAndGetTask claims the oldest due pending task for the command in one
// UPDATE..RETURNING statement, so concurrent workers never grab the same row.
func (q *Queue) lockAndGetTask(ctx context.Context, command string) (*Task, error) {
	var task Task
	err := q.db.GetDB().QueryRowContext(ctx, `
        UPDATE tasks
        SET status = ?, last_attempt = ?
        WHERE id = (
            SELECT id FROM tasks
            WHERE command = ? AND status = ? AND next_attempt <= ?
            ORDER BY id ASC
            LIMIT 1
        )
        RETURNING id, command, update_data, retry_count, max_retries, retry_delay`,
		TaskStatusRunning, time.Now(), command, TaskStatusPending, time.Now(),
	).Scan(
		&task.ID, &task.Command, &task.UpdateData,
		&task.RetryCount, &task.MaxRetries, &task.RetryDelay,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (q *Queue) handleTask(ctx context.Context, task Task, handler commands.Command) error {
	cfg := handler.GetQueueConfig()
	timeout := cfg.Timeout
	deadline := time.Now().Add(timeout)

	log := q.logger.WithFields(logger.Fields{
		"command": task.Command,
		"task_id": task.ID,
	})
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		log.WithFields(logger.Fields{
			"duration":        time.Since(start).String(),
			"status":          task.Status,
			"missed_deadline": time.Now().After(deadline),
		}).Debug("Task processing completed")
	}()

	var err error
	if task.Update, err = task.GetUpdate(); err != nil {
		log.Error(err.Error())
		return q.updateTaskStatus(ctx, task.ID, TaskStatusFailed)
	}

	log.WithField("timeout", timeout.String()).Info("Processing task")

	_, err = q.db.ExecWithRetry(ctx, "UPDATE tasks SET status = ?, last_attempt = ? WHERE id = ?",
		TaskStatusRunning, time.Now(), task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- handler.Execute(*task.Update)
	}()

	select {
	case err := <-resultCh:
		if err != nil {
			// permanent failures never succeed on retry; mark them done
			if errors.Is(err, commands.ErrPermanent) {
				log.WithError(err).Warn("Permanent failure, marking as completed")
			} else {
				log.WithError(err).Error("Handler execution failed")
				return q.handleTaskError(ctx, task)
			}
		}
	case <-ctx.Done():
		log.WithFields(logger.Fields{
			"actual_duration": time.Since(start).String(),
			"retry_count":     task.RetryCount,
		}).Warn("Execution timeout exceeded")
		return q.handleTaskError(ctx, task)
	}

	if err := q.updateTaskStatus(ctx, task.ID, TaskStatusComplete); err != nil {
		return fmt.Errorf("failed to mark task as complete: %w", err)
	}

	log.Info("Task completed successfully")
	return nil
}

func (q *Queue) handleTaskError(ctx context.Context, task Task) error {
	log := q.logger.WithFields(logger.Fields{
		"command":     task.Command,
		"task_id":     task.ID,
		"retry_count": task.RetryCount,
		"max_retries": task.MaxRetries,
	})

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log = log.WithField("timeout_reason", "deadline_exceeded")
	}

	if task.RetryCount >= task.MaxRetries {
		log.Warn("Max retries exceeded, marking as failed")
		return q.updateTaskStatus(ctx, task.ID, TaskStatusFailed)
	}

	delay := task.RetryDelay
	q.mu.Lock()
	limiter := q.commandLimiters[task.Command]
	q.mu.Unlock()
	if limiter != nil {
		delay = limiter.Reserve().Delay()
	}

	nextAttempt := time.Now().Add(delay)
	_, err := q.db.ExecWithRetry(ctx, `
		UPDATE tasks
		SET status = ?, retry_count = retry_count + 1, next_attempt = ?
		WHERE id = ?
	`, TaskStatusPending, nextAttempt, task.ID)
	if err != nil {
		log.WithError(err).Error("Failed to reschedule task")
		return err
	}

	log.WithField("next_attempt", nextAttempt).Info("Task rescheduled")
	return nil
}

func (q *Queue) updateTaskStatus(ctx context.Context, taskID int64, status TaskStatus) error {
	_, err := q.db.ExecWithRetry(ctx,
		"UPDATE tasks SET status = ? WHERE id = ?",
		status, taskID)
	if err == nil {
		q.logger.WithFields(logger.Fields{
			"task_id": taskID,
			"status":  status,
		}).Info("Task status updated")
	}
	return err
}
