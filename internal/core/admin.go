package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	validatorengine "github.com/go-playground/validator/v10"
)

// FileTypeInput is the submitted add/edit form.
type FileTypeInput struct {
	ID          string   `validate:"required,max=32,machinename"`
	Label       string   `validate:"required,max=128"`
	Description string   `validate:"max=2048"`
	MimeTypes   []string `validate:"required,min=1,dive,mimepattern"`
	Schemes     []string `validate:"dive,machinename"`
}

// DeleteOptions carries the confirmations collected by the delete form.
type DeleteOptions struct {
	// ConfirmFieldRemoval allows deleting a type that still has attached
	// fields or committed files.
	ConfirmFieldRemoval bool
}

// AdminService implements file type administration.
type AdminService struct {
	registry  Registry
	files     FileRepository
	audit     AuditLog
	schemes   []string
	validator *validatorengine.Validate
}

// NewAdminService wires the admin operations. files may be nil, in which
// case committed files do not block deletes.
func NewAdminService(registry Registry, files FileRepository, audit AuditLog, schemes []string) *AdminService {
	return &AdminService{
		registry:  registry,
		files:     files,
		audit:     audit,
		schemes:   schemes,
		validator: newInputValidator(),
	}
}

func newInputValidator() *validatorengine.Validate {
	v := validatorengine.New()
	_ = v.RegisterValidation("machinename", func(fl validatorengine.FieldLevel) bool {
		return ValidMachineName(fl.Field().String())
	})
	_ = v.RegisterValidation("mimepattern", func(fl validatorengine.FieldLevel) bool {
		return ValidMIMEPattern(fl.Field().String())
	})
	return v
}

// validateInput normalizes in and converts the first failure into a
// ValidationError keyed by form field name.
func (s *AdminService) validateInput(in *FileTypeInput) error {
	in.ID = strings.TrimSpace(in.ID)
	in.Label = strings.TrimSpace(in.Label)
	in.Description = strings.TrimSpace(in.Description)
	in.MimeTypes = ParseMIMETypes(strings.Join(in.MimeTypes, ","))

	if err := s.validator.Struct(in); err != nil {
		var verrs validatorengine.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return err
		}
		return inputError(verrs[0])
	}

	for _, sc := range in.Schemes {
		if !slices.Contains(s.schemes, sc) {
			return Invalid("schemes", "%q is not a configured storage scheme", sc)
		}
	}
	return nil
}

func inputError(e validatorengine.FieldError) error {
	name, _, _ := strings.Cut(e.StructField(), "[")
	switch name {
	case "ID":
		if e.Tag() == "required" {
			return Invalid("id", "Machine-readable name field is required.")
		}
		return Invalid("id", "The machine-readable name must contain only lowercase letters, numbers, and underscores.")
	case "Label":
		if e.Tag() == "required" {
			return Invalid("label", "Name field is required.")
		}
		return Invalid("label", "Name cannot be longer than %s characters.", e.Param())
	case "MimeTypes":
		if e.Tag() == "mimepattern" {
			return Invalid("mimetypes", "%q is not a valid MIME type.", e.Value())
		}
		return Invalid("mimetypes", "At least one MIME type is required.")
	}
	return Invalid(strings.ToLower(name), "failed %s validation", e.Tag())
}

// List returns every type, enabled ones first, each group in display order.
func (s *AdminService) List(ctx context.Context, access Access) ([]FileType, error) {
	if err := access.Require(PermAdministerFileTypes); err != nil {
		return nil, err
	}

	types, err := s.registry.LoadAll(ctx, true)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(types, func(a, b FileType) int {
		switch {
		case a.Enabled() == b.Enabled():
			return 0
		case a.Enabled():
			return -1
		default:
			return 1
		}
	})
	return types, nil
}

func (s *AdminService) Get(ctx context.Context, access Access, id string) (*FileType, error) {
	if err := access.Require(PermAdministerFileTypes); err != nil {
		return nil, err
	}
	return s.registry.Load(ctx, id)
}

// KnownMIMETypes is the help list for the edit form.
func (s *AdminService) KnownMIMETypes() []string {
	return KnownMIMETypes()
}

func (s *AdminService) Create(ctx context.Context, access Access, in FileTypeInput) (*FileType, error) {
	if err := access.Require(PermAdministerFileTypes); err != nil {
		return nil, err
	}
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	t := &FileType{
		ID:          in.ID,
		Label:       in.Label,
		Description: in.Description,
		MimeTypes:   in.MimeTypes,
		Schemes:     in.Schemes,
		Status:      StatusEnabled,
	}
	if err := s.registry.Insert(ctx, t); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "file type created", "type", t.ID, "actor", access.Actor)
	RecordAudit(ctx, s.audit, NewAuditEntry(ctx, ActionTypeCreate, t.ID, access.Actor, map[string]any{
		"label":      t.Label,
		"mime_types": t.MimeTypes,
	}))
	return t, nil
}

// Update replaces the editable properties of id. The machine name in the
// input is ignored; ids are immutable.
func (s *AdminService) Update(ctx context.Context, access Access, id string, in FileTypeInput) (*FileType, error) {
	if err := access.Require(PermAdministerFileTypes); err != nil {
		return nil, err
	}

	t, err := s.registry.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	in.ID = id
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	t.Label = in.Label
	t.Description = in.Description
	t.MimeTypes = in.MimeTypes
	t.Schemes = in.Schemes
	if err := s.registry.Save(ctx, t); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "file type updated", "type", t.ID, "actor", access.Actor)
	RecordAudit(ctx, s.audit, NewAuditEntry(ctx, ActionTypeUpdate, t.ID, access.Actor, map[string]any{
		"label":      t.Label,
		"mime_types": t.MimeTypes,
	}))
	return t, nil
}

// SetStatus enables or disables id. Disabled types stay loadable but drop
// out of candidate resolution.
func (s *AdminService) SetStatus(ctx context.Context, access Access, id string, enabled bool) (*FileType, error) {
	if err := access.Require(PermAdministerFileTypes); err != nil {
		return nil, err
	}

	t, err := s.registry.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	action := ActionTypeEnable
	t.Status = StatusEnabled
	if !enabled {
		action = ActionTypeDisable
		t.Status = StatusDisabled
	}
	if err := s.registry.Save(ctx, t); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "file type status changed", "type", t.ID, "status", t.Status, "actor", access.Actor)
	RecordAudit(ctx, s.audit, NewAuditEntry(ctx, action, t.ID, access.Actor, nil))
	return t, nil
}

// Delete removes id. The system type is never deleted, nor is a type
// that committed files still reference. A type with attached fields needs
// opts.ConfirmFieldRemoval.
func (s *AdminService) Delete(ctx context.Context, access Access, id string, opts DeleteOptions) (*FileType, error) {
	if err := access.Require(PermAdministerFileTypes); err != nil {
		return nil, err
	}

	t, err := s.registry.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.System {
		return nil, fmt.Errorf("file type %q is a system type: %w", id, ErrConflict)
	}

	if s.files != nil {
		n, err := s.files.CountByType(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("delete %q with %d files: %w", id, n, ErrTypeHasFiles)
		}
	}
	if len(t.Fields) > 0 && !opts.ConfirmFieldRemoval {
		return nil, fmt.Errorf("delete %q with %d fields: %w", id, len(t.Fields), ErrTypeHasFields)
	}

	if err := s.registry.Delete(ctx, id); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "file type deleted", "type", id, "actor", access.Actor)
	RecordAudit(ctx, s.audit, NewAuditEntry(ctx, ActionTypeDelete, id, access.Actor, map[string]any{
		"label":  t.Label,
		"fields": len(t.Fields),
	}))
	return t, nil
}

// AttachField adds a field definition to the type.
func (s *AdminService) AttachField(ctx context.Context, access Access, typeID string, f FieldDefinition) (*FileType, error) {
	if err := access.Require(PermAdministerFileTypes); err != nil {
		return nil, err
	}

	f = f.Normalize()
	if err := f.validate(); err != nil {
		return nil, err
	}

	t, err := s.registry.Load(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if _, exists := t.Field(f.Name); exists {
		return nil, Invalid("field_name", "A field named %s is already attached.", f.Name)
	}
	if f.Weight == 0 {
		f.Weight = len(t.Fields)
	}
	t.Fields = append(t.Fields, f)
	if err := s.registry.Save(ctx, t); err != nil {
		return nil, err
	}

	RecordAudit(ctx, s.audit, NewAuditEntry(ctx, ActionFieldAttach, t.ID, access.Actor, map[string]any{
		"field": f.Name,
	}))
	return t, nil
}

// DetachField removes a field definition from the type.
func (s *AdminService) DetachField(ctx context.Context, access Access, typeID, name string) (*FileType, error) {
	if err := access.Require(PermAdministerFileTypes); err != nil {
		return nil, err
	}

	t, err := s.registry.Load(ctx, typeID)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(t.Fields, func(f FieldDefinition) bool { return f.Name == name })
	if i < 0 {
		return nil, fmt.Errorf("field %q on %q: %w", name, typeID, ErrNotFound)
	}
	t.Fields = slices.Delete(t.Fields, i, i+1)
	if err := s.registry.Save(ctx, t); err != nil {
		return nil, err
	}

	RecordAudit(ctx, s.audit, NewAuditEntry(ctx, ActionFieldDetach, t.ID, access.Actor, map[string]any{
		"field": name,
	}))
	return t, nil
}
