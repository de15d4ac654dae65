package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	zlog "github.com/rs/zerolog/log"

	"splikz/internal/middleware"
	"splikz/internal/unread"
)

type RealtimeHandler struct {
	tracker *unread.Tracker
}

func NewRealtimeHandler(tracker *unread.Tracker) *RealtimeHandler {
	return &RealtimeHandler{tracker: tracker}
}

// IngestEvent applies a database webhook row-change payload.
func (h *RealtimeHandler) IngestEvent(c echo.Context) error {
	var ev unread.ChangeEvent
	if err := c.Bind(&ev); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid_payload")
	}
	if ev.Table == "" || ev.Type == "" {
		return errorJSON(c, http.StatusBadRequest, errMissingFields)
	}

	if err := h.tracker.Apply(c.Request().Context(), ev); err != nil {
		zlog.Error().Err(err).Str("table", ev.Table).Msg("failed to apply change event")
		return errorJSON(c, http.StatusInternalServerError, errServerError)
	}
	return c.NoContent(http.StatusNoContent)
}

// Unread returns the caller's badge counters.
func (h *RealtimeHandler) Unread(c echo.Context) error {
	counts, err := h.tracker.Counts(c.Request().Context(), middleware.UserUID(c))
	if err != nil {
		zlog.Error().Err(err).Msg("failed to load unread counters")
		return errorJSON(c, http.StatusInternalServerError, errServerError)
	}
	return c.JSON(http.StatusOK, counts)
}
