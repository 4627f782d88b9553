package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-displays/internal/display"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleGetHistory returns recorded brightness and contrast values for a
// monitor, newest first.
//
// Query parameters:
//   - limit: maximum entries (default 50, max 200)
//   - kind: brightness or contrast
//   - since: RFC3339 lower bound (exclusive)
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupMonitor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, err := parseHistoryLimit(q.Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	kind := display.Kind(q.Get("kind"))
	if kind != "" && !kind.Valid() {
		writeBadRequest(w, "kind must be brightness or contrast")
		return
	}

	since, err := parseSinceParam(q.Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	if s.history == nil {
		writeUnavailable(w, "history unavailable")
		return
	}

	entries, err := s.history.History(r.Context(), c.Identity(), limit)
	if err != nil {
		s.logger.Warn("history query failed", "identity", c.Identity(), "error", err)
		writeInternalError(w, "failed to load monitor history")
		return
	}

	filtered := entries[:0]
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		if !since.IsZero() && !e.RecordedAt.After(since) {
			continue
		}
		filtered = append(filtered, e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"identity": c.Identity(),
		"history":  filtered,
		"count":    len(filtered),
	})
}

func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339/RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}
