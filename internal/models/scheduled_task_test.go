package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduledTaskNextDue(t *testing.T) {
	due := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	every15 := "FREQ=MINUTELY;INTERVAL=15"
	broken := "FREQ=SOMETIMES"

	tests := []struct {
		name     string
		task     ScheduledTask
		after    time.Time
		expected time.Time
	}{
		{
			name:     "one time task keeps due",
			task:     ScheduledTask{Due: due, TaskType: ScheduledTaskTypeOneTime, RecurringInterval: &every15},
			after:    due.Add(time.Hour),
			expected: due,
		},
		{
			name:     "recurring task advances past after",
			task:     ScheduledTask{Due: due, TaskType: ScheduledTaskTypeRecurring, RecurringInterval: &every15},
			after:    due.Add(20 * time.Minute),
			expected: due.Add(30 * time.Minute),
		},
		{
			name:     "recurring task on an occurrence moves to the next one",
			task:     ScheduledTask{Due: due, TaskType: ScheduledTaskTypeRecurring, RecurringInterval: &every15},
			after:    due,
			expected: due.Add(15 * time.Minute),
		},
		{
			name:     "unparseable rule falls back to due",
			task:     ScheduledTask{Due: due, TaskType: ScheduledTaskTypeRecurring, RecurringInterval: &broken},
			after:    due.Add(time.Hour),
			expected: due,
		},
		{
			name:     "missing rule falls back to due",
			task:     ScheduledTask{Due: due, TaskType: ScheduledTaskTypeRecurring},
			after:    due.Add(time.Hour),
			expected: due,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.expected.Equal(tt.task.NextDue(tt.after)), "got %s", tt.task.NextDue(tt.after))
		})
	}
}

func TestPromotionIsLive(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, Promotion{Status: PromotionStatusActive, EndsAt: now.Add(time.Hour)}.IsLive(now))
	assert.False(t, Promotion{Status: PromotionStatusActive, EndsAt: now}.IsLive(now))
	assert.False(t, Promotion{Status: PromotionStatusExpired, EndsAt: now.Add(time.Hour)}.IsLive(now))
}
