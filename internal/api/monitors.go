package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-displays/internal/access"
	"github.com/nerrad567/gray-logic-displays/internal/display"
	"github.com/nerrad567/gray-logic-displays/internal/monitor"
)

// maxRefLen bounds the {slug} path parameter. Device instance paths are
// well under this.
const maxRefLen = 256

// ValueRequest is the body of PUT /brightness and PUT /contrast.
type ValueRequest struct {
	Value *int `json:"value"`
}

// OperationResponse is returned by every monitor operation.
type OperationResponse struct {
	Monitor display.MonitorState `json:"monitor"`
	Result  access.Result        `json:"result"`
}

// handleListMonitors returns the cached state of every monitor in roster order.
func (s *Server) handleListMonitors(w http.ResponseWriter, _ *http.Request) {
	states := s.registry.States()
	resp := map[string]any{
		"monitors": states,
		"count":    len(states),
	}
	if scan, ok := s.registry.LastScan(); ok {
		resp["roster_id"] = scan.ID
		resp["scanned_at"] = scan.ScannedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetMonitor returns the cached state of one monitor.
func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupMonitor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, display.StateOf(c))
}

// handleSetBrightness sets brightness from {"value": n}.
func (s *Server) handleSetBrightness(w http.ResponseWriter, r *http.Request) {
	s.handleSetValue(w, r, s.registry.SetBrightness)
}

// handleSetContrast sets contrast from {"value": n}.
func (s *Server) handleSetContrast(w http.ResponseWriter, r *http.Request) {
	s.handleSetValue(w, r, s.registry.SetContrast)
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request, set func(context.Context, string, int) (access.Result, error)) {
	c, ok := s.lookupMonitor(w, r)
	if !ok {
		return
	}

	var req ValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}
	if *req.Value < 0 || *req.Value > 100 {
		writeBadRequest(w, "value must be between 0 and 100")
		return
	}

	res, err := set(r.Context(), string(c.Identity()), *req.Value)
	s.writeOperation(w, c, res, err)
}

// handleRefreshMonitor re-reads brightness and contrast from the hardware.
func (s *Server) handleRefreshMonitor(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupMonitor(w, r)
	if !ok {
		return
	}
	res, err := s.registry.RefreshMonitor(r.Context(), string(c.Identity()))
	s.writeOperation(w, c, res, err)
}

// writeOperation answers a monitor operation with the resulting state and
// access result.
func (s *Server) writeOperation(w http.ResponseWriter, c monitor.Controller, res access.Result, err error) {
	if errors.Is(err, display.ErrMonitorNotFound) {
		// Removed by a rescan between lookup and call.
		writeNotFound(w, "monitor not found")
		return
	}
	if err != nil {
		writeInternalError(w, "monitor operation failed")
		return
	}
	writeJSON(w, accessHTTPStatus(res.Status), OperationResponse{
		Monitor: display.StateOf(c),
		Result:  res,
	})
}

// handleRescan runs a reconciliation now and returns its summary.
// Concurrent requests share one scan.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	res, err := s.registry.Scan(r.Context())
	switch {
	case errors.Is(err, display.ErrClosed):
		writeUnavailable(w, "registry closed")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeUnavailable(w, "scan cancelled")
		return
	case err != nil:
		s.logger.Warn("rescan failed", "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeInternal, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// lookupMonitor resolves the {slug} path parameter, writing an error
// response when it does not name a monitor in the roster.
func (s *Server) lookupMonitor(w http.ResponseWriter, r *http.Request) (monitor.Controller, bool) {
	ref, err := url.PathUnescape(chi.URLParam(r, "slug"))
	if err != nil || ref == "" || len(ref) > maxRefLen {
		writeBadRequest(w, "invalid monitor reference")
		return nil, false
	}
	c, ok := s.registry.Monitor(ref)
	if !ok {
		writeNotFound(w, "monitor not found")
		return nil, false
	}
	return c, true
}
