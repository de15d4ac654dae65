package tasks

import (
	"context"
	"fmt"
	"time"

	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"splikz/internal/models"
)

// Runner executes due scheduled tasks against a Registry.
type Runner struct {
	db       *gorm.DB
	registry *Registry
	now      func() time.Time
}

func NewRunner(db *gorm.DB, registry *Registry) *Runner {
	return &Runner{
		db:       db,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run processes due tasks every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.ProcessDue(ctx)
	for {
		select {
		case <-ticker.C:
			r.ProcessDue(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessDue runs every active task whose due time has passed and returns
// how many were picked up.
func (r *Runner) ProcessDue(ctx context.Context) int {
	var pending []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due asc").
		Find(&pending).Error
	if err != nil {
		zlog.Error().Err(err).Msg("error fetching pending tasks")
		return 0
	}
	if len(pending) == 0 {
		zlog.Debug().Msg("no pending tasks")
		return 0
	}

	zlog.Info().Int("count", len(pending)).Msg("found pending tasks")
	for _, task := range pending {
		if ctx.Err() != nil {
			return 0
		}
		r.Execute(ctx, task)
	}
	return len(pending)
}

// Execute runs one task, retrying up to MaxAttempt times, records every
// attempt in the history and then moves the task to its next state.
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) {
	log := zlog.With().Str("task", task.TaskName).Uint("task_id", task.ID).Logger()

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Error().Msg("task handler not found, marking as failure")
		now := r.now()
		r.recordHistory(ctx, task, now, 0, models.TaskRunHandlerNotFound, 1,
			map[string]interface{}{"error": "Handler not found"})
		r.update(ctx, task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		runErr    error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		startTime = r.now()
		began := time.Now()
		result, err := r.invoke(ctx, handler, task)
		runtimeMs := int(time.Since(began).Milliseconds())

		if err == nil {
			r.recordHistory(ctx, task, startTime, runtimeMs, models.TaskRunSuccess, attempt, result)
			log.Info().Int("attempt", attempt).Msg("task completed")
			runErr = nil
			break
		}

		runErr = err
		r.recordHistory(ctx, task, startTime, runtimeMs, models.TaskRunFailure, attempt,
			map[string]interface{}{"error": err.Error()})
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempt", maxAttempt).Msg("task attempt failed")
		if ctx.Err() != nil {
			break
		}
	}

	updates := map[string]interface{}{"last_run": &startTime}

	switch {
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		// a failed sweep is retried at the next occurrence
		nextDue := task.NextDue(r.now())
		if nextDue.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = nextDue
		} else if runErr != nil {
			updates["status"] = models.ScheduledTaskStatusFailure
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}
	case runErr != nil:
		updates["status"] = models.ScheduledTaskStatusFailure
	default:
		updates["status"] = models.ScheduledTaskStatusDone
	}

	r.update(ctx, task, updates)
}

func (r *Runner) invoke(ctx context.Context, handler TaskHandler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return handler(ctx, r.db, task)
}

func (r *Runner) recordHistory(ctx context.Context, task models.ScheduledTask, runAt time.Time, runtimeMs int, status string, attempt int, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		RuntimeMs:       runtimeMs,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := r.db.WithContext(ctx).Create(&history).Error; err != nil {
		zlog.Error().Err(err).Uint("task_id", task.ID).Msg("failed to record task history")
	}
}

func (r *Runner) update(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) {
	if err := r.db.WithContext(ctx).Model(&models.ScheduledTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
		zlog.Error().Err(err).Uint("task_id", task.ID).Msg("failed to update task")
	}
}
