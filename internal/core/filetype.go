package core

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// DefaultTypeID is the system file type that always exists.
const DefaultTypeID = "image"

// Status is the enabled/disabled toggle of a file type.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// FileType is a bundle that claims MIME-type patterns, may restrict the
// storage schemes it accepts, and carries custom fields.
type FileType struct {
	ID          string
	Label       string
	Description string
	MimeTypes   []string
	Schemes     []string // empty means every configured scheme
	Status      Status
	Weight      int
	System      bool
	Fields      []FieldDefinition
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Enabled reports whether the type takes part in candidate resolution.
func (t *FileType) Enabled() bool {
	return t.Status != StatusDisabled
}

// Field returns the attached field named name.
func (t *FileType) Field(name string) (FieldDefinition, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Clone returns a deep copy.
func (t *FileType) Clone() *FileType {
	c := *t
	c.MimeTypes = slices.Clone(t.MimeTypes)
	c.Schemes = slices.Clone(t.Schemes)
	c.Fields = slices.Clone(t.Fields)
	return &c
}

// DefaultImageType returns the predefined system type.
func DefaultImageType() *FileType {
	return &FileType{
		ID:          DefaultTypeID,
		Label:       "Image",
		Description: "An image file such as a photograph or illustration.",
		MimeTypes:   []string{"image/*"},
		Status:      StatusEnabled,
		System:      true,
	}
}

var machineName = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidMachineName reports whether id is usable as a type or field name.
func ValidMachineName(id string) bool {
	return len(id) > 0 && len(id) <= 32 && machineName.MatchString(id)
}

// validate checks the invariants every stored type must satisfy.
func (t *FileType) validate() error {
	if !ValidMachineName(t.ID) {
		return Invalid("id", "must contain only lowercase letters, numbers and underscores (max 32)")
	}
	if strings.TrimSpace(t.Label) == "" {
		return Invalid("label", "is required")
	}
	if len(t.MimeTypes) == 0 {
		return Invalid("mimetypes", "at least one MIME type is required")
	}
	for _, p := range t.MimeTypes {
		if !ValidMIMEPattern(p) {
			return Invalid("mimetypes", "%q is not a valid MIME type pattern", p)
		}
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if seen[f.Name] {
			return Invalid("fields", "field %q is attached twice", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}
