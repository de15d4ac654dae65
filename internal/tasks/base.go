package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"splikz/internal/models"
)

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// EnsureRecurringTask creates an active recurring task named taskName unless
// one is already active. It reports whether a task was created.
func EnsureRecurringTask(ctx context.Context, db *gorm.DB, taskName, rule string, due time.Time, maxAttempt int) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.ScheduledTask{}).
		Where("task_name = ? AND task_type = ? AND status = ?", taskName, models.ScheduledTaskTypeRecurring, models.ScheduledTaskStatusActive).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("look up %s: %w", taskName, err)
	}
	if count > 0 {
		return false, nil
	}

	task, err := BuildScheduledTask(taskName, map[string]interface{}{}, due, &rule, models.ScheduledTaskTypeRecurring, maxAttempt)
	if err != nil {
		return false, err
	}
	if err := db.WithContext(ctx).Create(task).Error; err != nil {
		return false, fmt.Errorf("create %s: %w", taskName, err)
	}
	return true, nil
}
