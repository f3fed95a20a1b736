package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/metrics"
	"github.com/JonMunkholm/fileentity/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

const fileTypesPath = "/admin/structure/file-types"

func (s *Server) handleFileTypeList(w http.ResponseWriter, r *http.Request) {
	types, err := s.deps.Admin.List(r.Context(), access(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, "File types", templates.FileTypeList(types))
}

// fileTypeInput reads the add/edit form.
func fileTypeInput(r *http.Request) core.FileTypeInput {
	return core.FileTypeInput{
		ID:          r.PostFormValue("id"),
		Label:       r.PostFormValue("label"),
		Description: r.PostFormValue("description"),
		MimeTypes:   core.ParseMIMETypes(r.PostFormValue("mimetypes")),
		Schemes:     r.PostForm["schemes"],
	}
}

func (s *Server) fileTypeForm(action string, in core.FileTypeInput, errs map[string]string) templates.FileTypeFormParams {
	return templates.FileTypeFormParams{
		Action:    action,
		Input:     in,
		Errors:    errs,
		KnownMIME: s.deps.Admin.KnownMIMETypes(),
		Schemes:   s.deps.Resolver.Schemes(),
	}
}

func (s *Server) handleFileTypeAddForm(w http.ResponseWriter, r *http.Request) {
	p := s.fileTypeForm(fileTypesPath+"/add", core.FileTypeInput{}, nil)
	s.renderPage(w, r, http.StatusOK, "Add file type", templates.FileTypeForm(p))
}

func (s *Server) handleFileTypeAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, core.Invalid("", "The form could not be read."))
		return
	}
	in := fileTypeInput(r)

	t, err := s.deps.Admin.Create(r.Context(), access(r), in)
	metrics.RecordAdminOperation("create", err)
	if core.IsValidation(err) {
		p := s.fileTypeForm(fileTypesPath+"/add", in, formErrors(err))
		s.renderPage(w, r, http.StatusUnprocessableEntity, "Add file type", templates.FileTypeForm(p))
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	redirectWithFlash(w, r, fileTypesPath, fmt.Sprintf("The file type %s has been added.", t.Label))
}

// editForm builds the edit page for t.
func (s *Server) editForm(t *core.FileType, in core.FileTypeInput, errs map[string]string) templates.FileTypeFormParams {
	p := s.fileTypeForm(templates.FileTypeURL(t.ID, "edit"), in, errs)
	p.Editing = true
	p.Type = t
	p.FieldInput = core.FieldDefinition{Type: core.FieldText}
	return p
}

func inputFromType(t *core.FileType) core.FileTypeInput {
	return core.FileTypeInput{
		ID:          t.ID,
		Label:       t.Label,
		Description: t.Description,
		MimeTypes:   t.MimeTypes,
		Schemes:     t.Schemes,
	}
}

func (s *Server) handleFileTypeEditForm(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Admin.Get(r.Context(), access(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	p := s.editForm(t, inputFromType(t), nil)
	s.renderPage(w, r, http.StatusOK, "Edit file type", templates.FileTypeForm(p))
}

func (s *Server) handleFileTypeEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := s.deps.Admin.Get(r.Context(), access(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, core.Invalid("", "The form could not be read."))
		return
	}
	in := fileTypeInput(r)
	in.ID = id

	t, err := s.deps.Admin.Update(r.Context(), access(r), id, in)
	metrics.RecordAdminOperation("update", err)
	if core.IsValidation(err) {
		p := s.editForm(current, in, formErrors(err))
		s.renderPage(w, r, http.StatusUnprocessableEntity, "Edit file type", templates.FileTypeForm(p))
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	redirectWithFlash(w, r, fileTypesPath, fmt.Sprintf("The file type %s has been updated.", t.Label))
}

func statusVerb(enable bool) string {
	if enable {
		return "enable"
	}
	return "disable"
}

func (s *Server) handleStatusConfirm(enable bool) http.HandlerFunc {
	verb := statusVerb(enable)
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.deps.Admin.Get(r.Context(), access(r), chi.URLParam(r, "id"))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		p := templates.ConfirmParams{
			Question: fmt.Sprintf("Are you sure you want to %s the file type %s?", verb, t.Label),
			Action:   templates.FileTypeURL(t.ID, verb),
			Submit:   strings.ToUpper(verb[:1]) + verb[1:],
			Cancel:   fileTypesPath,
		}
		if !enable {
			p.Detail = "Files of this type are kept, but new uploads can no longer choose it."
		}
		s.renderPage(w, r, http.StatusOK, fmt.Sprintf("%s file type", p.Submit), templates.Confirm(p))
	}
}

func (s *Server) handleStatusChange(enable bool) http.HandlerFunc {
	verb := statusVerb(enable)
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.deps.Admin.SetStatus(r.Context(), access(r), chi.URLParam(r, "id"), enable)
		metrics.RecordAdminOperation(verb, err)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		redirectWithFlash(w, r, fileTypesPath, fmt.Sprintf("The file type %s has been %sd.", t.Label, verb))
	}
}

func (s *Server) deleteConfirm(t *core.FileType, errMsg string) templates.ConfirmParams {
	return templates.ConfirmParams{
		Question:        fmt.Sprintf("Are you sure you want to delete the file type %s?", t.Label),
		Detail:          "This action cannot be undone.",
		Action:          templates.FileTypeURL(t.ID, "delete"),
		Submit:          "Delete",
		Cancel:          fileTypesPath,
		Error:           errMsg,
		AskFieldRemoval: len(t.Fields) > 0,
	}
}

func (s *Server) handleDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Admin.Get(r.Context(), access(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if t.System {
		s.respondError(w, r, fmt.Errorf("file type %q is a system type: %w", t.ID, core.ErrConflict))
		return
	}
	s.renderPage(w, r, http.StatusOK, "Delete file type", templates.Confirm(s.deleteConfirm(t, "")))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.deps.Admin.Get(r.Context(), access(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	opts := core.DeleteOptions{ConfirmFieldRemoval: r.PostFormValue("confirm_field_removal") != ""}
	_, err = s.deps.Admin.Delete(r.Context(), access(r), id, opts)
	metrics.RecordAdminOperation("delete", err)
	switch {
	case errors.Is(err, core.ErrTypeHasFields):
		p := s.deleteConfirm(t, "The file type still has attached fields. Confirm their removal to delete it.")
		p.AskFieldRemoval = true
		s.renderPage(w, r, http.StatusConflict, "Delete file type", templates.Confirm(p))
		return
	case errors.Is(err, core.ErrTypeHasFiles):
		p := s.deleteConfirm(t, "Files have been uploaded with this file type. Disable it instead of deleting it.")
		p.AskFieldRemoval = false
		s.renderPage(w, r, http.StatusConflict, "Delete file type", templates.Confirm(p))
		return
	case err != nil:
		s.respondError(w, r, err)
		return
	}

	redirectWithFlash(w, r, fileTypesPath, fmt.Sprintf("The file type %s has been deleted.", t.Label))
}

func fieldInput(r *http.Request) core.FieldDefinition {
	f := core.FieldDefinition{
		Name:     strings.TrimSpace(r.PostFormValue("field_name")),
		Label:    r.PostFormValue("field_label"),
		Type:     core.FieldType(r.PostFormValue("field_type")),
		Required: r.PostFormValue("field_required") != "",
	}
	if n, err := strconv.Atoi(r.PostFormValue("field_max_length")); err == nil {
		f.MaxLength = n
	}
	return f
}

func (s *Server) handleFieldAttach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, core.Invalid("", "The form could not be read."))
		return
	}
	f := fieldInput(r)

	t, err := s.deps.Admin.AttachField(r.Context(), access(r), id, f)
	metrics.RecordAdminOperation("attach_field", err)
	if core.IsValidation(err) {
		current, gerr := s.deps.Admin.Get(r.Context(), access(r), id)
		if gerr != nil {
			s.respondError(w, r, gerr)
			return
		}
		p := s.editForm(current, inputFromType(current), nil)
		p.FieldErrors = formErrors(err)
		p.FieldInput = f
		s.renderPage(w, r, http.StatusUnprocessableEntity, "Edit file type", templates.FileTypeForm(p))
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	attached, _ := t.Field(f.Name)
	redirectWithFlash(w, r, templates.FileTypeURL(t.ID, "edit"),
		fmt.Sprintf("The field %s has been added to %s.", attached.Label, t.Label))
}

func (s *Server) handleFieldDetach(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "field")

	t, err := s.deps.Admin.DetachField(r.Context(), access(r), id, name)
	metrics.RecordAdminOperation("detach_field", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	redirectWithFlash(w, r, templates.FileTypeURL(t.ID, "edit"),
		fmt.Sprintf("The field %s has been removed from %s.", name, t.Label))
}
