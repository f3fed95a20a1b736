package web

import (
	"net/http"
	"net/url"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/logging"
	"github.com/JonMunkholm/fileentity/internal/web/templates"
	"github.com/a-h/templ"
)

const flashCookie = "fileentity_flash"

// access returns the caller resolved by the auth middleware.
func access(r *http.Request) core.Access {
	return core.AccessFromContext(r.Context())
}

// setFlash stores a one-shot status message for the next page view.
func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the status message.
func popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// redirectWithFlash finishes a successful form post.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, to, msg string) {
	setFlash(w, msg)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// renderPage writes a full page with the given status.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	flash := popFlash(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Page(title, flash, body).Render(r.Context(), w); err != nil {
		s.logRenderError(r, err)
	}
}

func (s *Server) logRenderError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
}
