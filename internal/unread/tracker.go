package unread

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var unreadEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "splikz_unread_events_total",
	Help: "Row-change events applied to unread counters by kind and operation.",
}, []string{"kind", "op"})

// Tracker applies change events to a Store and rebuilds counters from the
// database when they are missing.
type Tracker struct {
	store Store
	db    *gorm.DB
}

func NewTracker(store Store, db *gorm.DB) *Tracker {
	return &Tracker{store: store, db: db}
}

// Apply folds one change event into the owner's counters. Events for users
// with no materialized counters are dropped; the next read recounts them.
func (t *Tracker) Apply(ctx context.Context, ev ChangeEvent) error {
	d, ok := Reduce(ev)
	if !ok {
		unreadEvents.WithLabelValues("none", "ignored").Inc()
		return nil
	}

	if d.Recount {
		unreadEvents.WithLabelValues(string(d.Kind), "recount").Inc()
		_, err := t.Recount(ctx, d.UserID)
		return err
	}

	applied, err := t.store.Incr(ctx, d.UserID, d.Kind, d.Amount)
	if err != nil {
		return err
	}

	op := "incr"
	if d.Amount < 0 {
		op = "decr"
	}
	if !applied {
		op = "cold"
	}
	unreadEvents.WithLabelValues(string(d.Kind), op).Inc()
	return nil
}

// Counts returns the user's counters, recounting from the database on a miss.
func (t *Tracker) Counts(ctx context.Context, userID string) (Counts, error) {
	counts, ok, err := t.store.Get(ctx, userID)
	if err != nil {
		zlog.Warn().Err(err).Str("user_id", userID).Msg("unread store read failed, recounting")
	} else if ok {
		return counts, nil
	}
	return t.Recount(ctx, userID)
}

// Recount rebuilds the user's counters from unread rows and stores them.
func (t *Tracker) Recount(ctx context.Context, userID string) (Counts, error) {
	var counts Counts
	for _, src := range Sources {
		var n int64
		err := t.db.WithContext(ctx).Table(src.Table).
			Where(src.OwnerColumn+" = ? AND is_read = ?", userID, false).
			Count(&n).Error
		if err != nil {
			return Counts{}, fmt.Errorf("count unread %s: %w", src.Table, err)
		}
		*counts.ptr(src.Kind) = n
	}

	if err := t.store.Set(ctx, userID, counts); err != nil {
		zlog.Warn().Err(err).Str("user_id", userID).Msg("failed to store recounted unread counters")
	}
	return counts, nil
}
