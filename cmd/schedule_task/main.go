package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	zlog "github.com/rs/zerolog/log"

	"splikz/internal/config"
	"splikz/internal/models"
	"splikz/internal/services"
	"splikz/internal/tasks"
)

func main() {
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (format: 2006-01-02 15:04 or RFC3339, default: now)")
	taskType := flag.String("tasktype", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "RRULE for recurring tasks, e.g. FREQ=MINUTELY;INTERVAL=15")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts")

	flag.Parse()

	if *taskName == "" {
		fmt.Println("Usage: schedule_task -task_name <name> [-arguments <json>] [-due <YYYY-MM-DD HH:MM>] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}
	services.InitLogger("schedule_task", cfg.LogLevel, false)

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		zlog.Fatal().Err(err).Msg("Invalid JSON arguments")
	}

	due, err := parseDue(*dueStr, time.Now())
	if err != nil {
		zlog.Fatal().Err(err).Msg("Invalid due date")
	}

	kind := models.ScheduledTaskType(*taskType)
	var recurringPtr *string
	switch kind {
	case models.ScheduledTaskTypeOneTime:
	case models.ScheduledTaskTypeRecurring:
		if *recurring == "" {
			zlog.Fatal().Msg("-recurring is required for recurring tasks")
		}
		recurringPtr = recurring
	default:
		zlog.Fatal().Str("tasktype", *taskType).Msg("Unknown task type")
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, kind, *maxAttempt)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to build task")
	}
	if kind == models.ScheduledTaskTypeRecurring && task.NextDue(due).Equal(task.Due) {
		zlog.Fatal().Str("rrule", *recurring).Msg("Recurrence rule does not produce future occurrences")
	}

	if cfg.Database.URL == "" {
		zlog.Fatal().Msg("DATABASE_URL is not set")
	}
	db, err := services.InitDB(cfg.Database.URL, cfg.Database.LogLevel)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect DB")
	}

	if err := db.Create(task).Error; err != nil {
		zlog.Fatal().Err(err).Msg("Failed to create task")
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
}

// parseDue accepts RFC3339 or "2006-01-02 15:04" in local time. Empty means now.
func parseDue(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if due, err := time.Parse(time.RFC3339, s); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("use '2006-01-02 15:04' (local) or RFC3339: %w", err)
	}
	return due, nil
}
