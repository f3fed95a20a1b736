package core

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

// FieldType identifies how a field value is entered and validated.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextLong FieldType = "text_long"
)

// DefaultMaxLength applies when a field definition leaves MaxLength unset.
const DefaultMaxLength = 255

// FieldDefinition is a custom field attached to a file type.
type FieldDefinition struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Type      FieldType `json:"type"`
	MaxLength int       `json:"max_length"`
	Required  bool      `json:"required"`
	Weight    int       `json:"weight"`
}

// Normalize fills defaults.
func (f FieldDefinition) Normalize() FieldDefinition {
	if f.Type == "" {
		f.Type = FieldText
	}
	if f.MaxLength <= 0 && f.Type == FieldText {
		f.MaxLength = DefaultMaxLength
	}
	f.Label = strings.TrimSpace(f.Label)
	return f
}

func (f FieldDefinition) validate() error {
	if !ValidMachineName(f.Name) {
		return Invalid("field_name", "must contain only lowercase letters, numbers and underscores (max 32)")
	}
	if f.Label == "" {
		return Invalid("field_label", "is required")
	}
	switch f.Type {
	case FieldText, FieldTextLong:
	default:
		return Invalid("field_type", "unsupported field type %q", f.Type)
	}
	return nil
}

// FieldSet is the ordered list of fields shown on the wizard's last step.
type FieldSet []FieldDefinition

// Sorted returns the fields ordered by weight then name.
func (fs FieldSet) Sorted() FieldSet {
	out := slices.Clone(fs)
	slices.SortStableFunc(out, func(a, b FieldDefinition) int {
		if a.Weight != b.Weight {
			return a.Weight - b.Weight
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Validate checks submitted values against the definitions and returns the
// values to store. Unknown keys are rejected; values are trimmed.
func (fs FieldSet) Validate(values map[string]string) (map[string]string, error) {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if !slices.ContainsFunc(fs, func(f FieldDefinition) bool { return f.Name == key }) {
			return nil, Invalid(key, "%s is not a field of this file type.", key)
		}
	}

	out := make(map[string]string, len(fs))
	for _, f := range fs {
		f = f.Normalize()
		v := strings.TrimSpace(values[f.Name])
		if f.Type == FieldText {
			v = strings.ReplaceAll(v, "\n", " ")
		}
		if v == "" {
			if f.Required {
				return nil, Invalid(f.Name, "%s field is required.", f.Label)
			}
			continue
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(v) > f.MaxLength {
			return nil, Invalid(f.Name, "%s cannot be longer than %d characters.", f.Label, f.MaxLength)
		}
		out[f.Name] = v
	}
	return out, nil
}
