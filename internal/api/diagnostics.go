package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-displays/internal/diagnostics"
)

// handleDiagnostics probes the live roster and returns the report.
//
// Each round trip writes back the value it read, so monitors end where they
// started. Events are not emitted for probe traffic.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.registry.LastScan()
	if !ok {
		writeUnavailable(w, "no scan has completed")
		return
	}

	report := diagnostics.Probe(r.Context(), diagnostics.Input{
		RosterID:    scan.ID,
		Sources:     scan.Sources,
		Bindings:    scan.Bindings,
		Controllers: s.registry.Monitors(),
	}, s.diagOpts)

	writeJSON(w, http.StatusOK, report)
}
