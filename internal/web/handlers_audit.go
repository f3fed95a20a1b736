package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/fileentity/internal/core"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// parseIntParam parses a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// handleAuditLog returns recent audit entries, optionally filtered by
// action and subject.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if err := access(r).Require(core.PermAdministerFileTypes); err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.deps.Audit == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []core.AuditEntry{}})
		return
	}

	limit := min(parseIntParam(r, "limit", defaultAuditLimit), maxAuditLimit)
	action := core.AuditAction(r.URL.Query().Get("action"))
	subject := r.URL.Query().Get("subject")

	fetch := limit
	if action != "" || subject != "" {
		fetch = maxAuditLimit
	}
	entries, err := s.deps.Audit.Recent(r.Context(), fetch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]core.AuditEntry, 0, limit)
	for _, e := range entries {
		if action != "" && e.Action != action {
			continue
		}
		if subject != "" && e.Subject != subject {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
