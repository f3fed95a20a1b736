package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/storage"
	"github.com/JonMunkholm/fileentity/internal/web/templates"
	"github.com/JonMunkholm/fileentity/internal/wizard"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	uploadField = "files[upload]"
	// multipartMemory is how much of a multipart body is kept in memory
	// before spilling to disk.
	multipartMemory = 8 << 20
	// downloadLinkTTL is how long a signed download link stays valid.
	downloadLinkTTL = 15 * time.Minute
)

func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "Add a new file", templates.UploadForm(nil, s.cfg.Upload.MaxFileSize))
}

func (s *Server) renderUploadForm(w http.ResponseWriter, r *http.Request, err error) {
	errs := formErrors(err)
	s.renderPage(w, r, http.StatusUnprocessableEntity, "Add a new file", templates.UploadForm(errs, s.cfg.Upload.MaxFileSize))
}

func (s *Server) handleUploadStart(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope; the wizard enforces the
	// exact file size limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.renderUploadForm(w, r, core.Invalid(uploadField, "file too large: the limit is %d bytes", s.cfg.Upload.MaxFileSize))
			return
		}
		s.renderUploadForm(w, r, core.Invalid(uploadField, "No file provided."))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.renderUploadForm(w, r, core.Invalid(uploadField, "No file provided."))
		return
	}
	defer file.Close()

	step, err := s.deps.Wizard.Start(r.Context(), access(r), wizard.Upload{
		Filename:     header.Filename,
		DeclaredMIME: header.Header.Get("Content-Type"),
		Body:         file,
	})
	if core.IsValidation(err) {
		s.renderUploadForm(w, r, err)
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	http.Redirect(w, r, "/file/add/"+step.SessionID, http.StatusSeeOther)
}

func (s *Server) renderStep(w http.ResponseWriter, r *http.Request, status int, step *wizard.Step, errs map[string]string) {
	title := "Add a new file"
	if step.State == wizard.StateCommitted {
		title = "Upload complete"
	}
	s.renderPage(w, r, status, title, templates.WizardStep(step, errs))
}

func (s *Server) handleWizardStep(w http.ResponseWriter, r *http.Request) {
	step, err := s.deps.Wizard.Current(r.Context(), access(r), chi.URLParam(r, "session"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.renderStep(w, r, http.StatusOK, step, nil)
}

// handleWizardSubmit feeds the posted form to whichever step the session
// is waiting on.
func (s *Server) handleWizardSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "session")
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, core.Invalid("", "The form could not be read."))
		return
	}

	if r.PostFormValue("op") == "cancel" {
		if err := s.deps.Wizard.Abandon(ctx, access(r), id); err != nil {
			s.respondError(w, r, err)
			return
		}
		redirectWithFlash(w, r, "/file/add", "The upload was cancelled.")
		return
	}

	step, err := s.deps.Wizard.Current(ctx, access(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var next *wizard.Step
	switch step.State {
	case wizard.StateAwaitingType:
		next, err = s.deps.Wizard.SelectType(ctx, access(r), id, r.PostFormValue("type"))
	case wizard.StateAwaitingScheme:
		next, err = s.deps.Wizard.SelectScheme(ctx, access(r), id, r.PostFormValue("scheme"))
	case wizard.StateAwaitingFields:
		values := fieldValues(r)
		var f *core.File
		f, err = s.deps.Wizard.SubmitFields(ctx, access(r), id, values)
		if err == nil {
			redirectWithFlash(w, r, templates.FileURL(f.ID.String(), ""), step.UploadedMessage())
			return
		}
		step.Values = values
	default:
		err = fmt.Errorf("upload session %s already committed: %w", id, core.ErrConflict)
	}

	if core.IsValidation(err) {
		s.renderStep(w, r, http.StatusUnprocessableEntity, step, formErrors(err))
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	http.Redirect(w, r, "/file/add/"+next.SessionID, http.StatusSeeOther)
}

// fieldValues collects the posted field values. Inputs are named
// field[<name>] by the wizard form; a bare <name> key is accepted too, and
// the bracketed form wins when both are sent. Every key other than op is
// passed on so unknown names are rejected instead of silently dropped.
func fieldValues(r *http.Request) map[string]string {
	values := make(map[string]string)
	for key, vals := range r.PostForm {
		if key == "op" || len(vals) == 0 {
			continue
		}
		if name, ok := strings.CutPrefix(key, "field["); ok && strings.HasSuffix(name, "]") {
			values[strings.TrimSuffix(name, "]")] = vals[0]
			continue
		}
		if _, dup := r.PostForm["field["+key+"]"]; dup {
			continue
		}
		values[key] = vals[0]
	}
	return values
}

func (s *Server) loadFile(w http.ResponseWriter, r *http.Request) (*core.File, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, core.ErrNotFound)
		return nil, false
	}
	f, err := s.deps.Files.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return nil, false
	}
	return f, true
}

func (s *Server) handleFileView(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFile(w, r)
	if !ok {
		return
	}

	t, err := s.deps.Registry.Load(r.Context(), f.TypeID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		s.respondError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, f.Filename, templates.FilePage(f, t))
}

// handleFileDownload redirects to a signed link when the file's scheme can
// issue one and otherwise streams the stored object.
func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	f, ok := s.loadFile(w, r)
	if !ok {
		return
	}

	link, signed, err := s.deps.Storage.DownloadURL(f.URI, downloadLinkTTL)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if signed {
		http.Redirect(w, r, link, http.StatusFound)
		return
	}

	rc, err := s.deps.Storage.Open(r.Context(), f.URI)
	if errors.Is(err, storage.ErrNotExist) {
		err = fmt.Errorf("stored object of file %s: %w", f.ID, core.ErrNotFound)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := f.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Filename}))
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("file download interrupted", "file_id", f.ID, "error", err)
	}
}
