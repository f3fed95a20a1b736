package core

import (
	"context"
	"fmt"
	"slices"
)

// SchemeInfo describes a configured storage scheme.
type SchemeInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var knownSchemes = map[string]SchemeInfo{
	"public": {
		Name:        "public",
		Label:       "Public files",
		Description: "Public local files served by the webserver.",
	},
	"private": {
		Name:        "private",
		Label:       "Private files",
		Description: "Private local files served by the application.",
	},
}

// SchemesFromNames builds SchemeInfo for configured scheme names, keeping
// their order. Unknown names get a generic description.
func SchemesFromNames(names []string) []SchemeInfo {
	out := make([]SchemeInfo, 0, len(names))
	for _, n := range names {
		info, ok := knownSchemes[n]
		if !ok {
			info = SchemeInfo{Name: n, Label: n, Description: fmt.Sprintf("Files stored under %s://.", n)}
		}
		out = append(out, info)
	}
	return out
}

// Resolver computes the candidate file types for a MIME type and the
// candidate schemes for a file type.
type Resolver struct {
	registry Registry
	schemes  []SchemeInfo
}

// NewResolver returns a resolver over registry and the configured schemes.
func NewResolver(registry Registry, schemes []SchemeInfo) *Resolver {
	return &Resolver{registry: registry, schemes: schemes}
}

// Schemes returns the configured schemes in order.
func (r *Resolver) Schemes() []SchemeInfo {
	return slices.Clone(r.schemes)
}

// ResolveTypes returns the enabled types whose MIME patterns match
// mimeType, in registry display order.
func (r *Resolver) ResolveTypes(ctx context.Context, mimeType string) ([]FileType, error) {
	types, err := r.registry.LoadAll(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("resolve types for %q: %w", mimeType, err)
	}

	var out []FileType
	for _, t := range types {
		if !t.Enabled() {
			continue
		}
		if slices.ContainsFunc(t.MimeTypes, func(p string) bool { return MatchMIME(p, mimeType) }) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ResolveSchemes returns the configured schemes the type accepts. A type
// with no scheme restriction accepts all of them.
func (r *Resolver) ResolveSchemes(ctx context.Context, typeID string) ([]SchemeInfo, error) {
	t, err := r.registry.Load(ctx, typeID)
	if err != nil {
		return nil, err
	}
	return r.SchemesFor(t), nil
}

// SchemesFor is ResolveSchemes for an already loaded type.
func (r *Resolver) SchemesFor(t *FileType) []SchemeInfo {
	if len(t.Schemes) == 0 {
		return r.Schemes()
	}
	var out []SchemeInfo
	for _, s := range r.schemes {
		if slices.Contains(t.Schemes, s.Name) {
			out = append(out, s)
		}
	}
	return out
}
