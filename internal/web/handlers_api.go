package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/wizard"
	"github.com/go-chi/chi/v5"
)

// fileTypeJSON is the API view of a file type.
type fileTypeJSON struct {
	ID          string                 `json:"id"`
	Label       string                 `json:"label"`
	Description string                 `json:"description,omitempty"`
	MimeTypes   []string               `json:"mime_types"`
	Schemes     []string               `json:"schemes"`
	Status      core.Status            `json:"status"`
	System      bool                   `json:"system"`
	Fields      []core.FieldDefinition `json:"fields"`
}

func (s *Server) toJSON(t *core.FileType) fileTypeJSON {
	schemes := make([]string, 0, len(t.Schemes))
	for _, sc := range s.deps.Resolver.SchemesFor(t) {
		schemes = append(schemes, sc.Name)
	}
	fields := core.FieldSet(t.Fields).Sorted()
	if fields == nil {
		fields = core.FieldSet{}
	}
	return fileTypeJSON{
		ID:          t.ID,
		Label:       t.Label,
		Description: t.Description,
		MimeTypes:   t.MimeTypes,
		Schemes:     schemes,
		Status:      t.Status,
		System:      t.System,
		Fields:      fields,
	}
}

func (s *Server) handleAPIListFileTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.deps.Admin.List(r.Context(), access(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := make([]fileTypeJSON, 0, len(types))
	for i := range types {
		out = append(out, s.toJSON(&types[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_types": out})
}

func (s *Server) handleAPIGetFileType(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Admin.Get(r.Context(), access(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toJSON(t))
}

// handleAPIResolve previews which types and schemes an upload of the given
// MIME type would be offered.
func (s *Server) handleAPIResolve(w http.ResponseWriter, r *http.Request) {
	if err := access(r).Require(core.PermCreateFiles); err != nil {
		s.respondError(w, r, err)
		return
	}
	mt := strings.TrimSpace(r.URL.Query().Get("mime"))
	if mt == "" {
		s.respondError(w, r, core.Invalid("mime", "The mime query parameter is required."))
		return
	}

	types, err := s.deps.Resolver.ResolveTypes(r.Context(), mt)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	type candidate struct {
		ID      string            `json:"id"`
		Label   string            `json:"label"`
		Schemes []core.SchemeInfo `json:"schemes"`
	}
	out := make([]candidate, 0, len(types))
	for i := range types {
		out = append(out, candidate{
			ID:      types[i].ID,
			Label:   types[i].Label,
			Schemes: s.deps.Resolver.SchemesFor(&types[i]),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mime_type":  strings.ToLower(mt),
		"candidates": out,
		"skip_type":  len(out) == 1,
	})
}

type healthResponse struct {
	Status  string                      `json:"status"`
	Store   string                      `json:"store"`
	Uploads *wizard.UploadLimiterStatus `json:"uploads,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "ok"}
	status := http.StatusOK

	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			resp.Status, resp.Store = "degraded", err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if s.deps.Limiter != nil {
		st := s.deps.Limiter.Status()
		resp.Uploads = &st
	}
	writeJSON(w, status, resp)
}
