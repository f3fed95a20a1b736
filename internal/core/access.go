package core

import (
	"fmt"
	"slices"
)

// Permission names a capability granted to a caller.
type Permission string

const (
	PermAdministerFileTypes Permission = "administer file types"
	PermCreateFiles         Permission = "create files"
)

// Access is the caller identity and permissions resolved at the edge.
// Every service entry point checks it before doing any work.
type Access struct {
	Actor       string
	Permissions []Permission
}

// Anonymous is the zero Access.
var Anonymous = Access{}

// Has reports whether the caller holds p.
func (a Access) Has(p Permission) bool {
	return slices.Contains(a.Permissions, p)
}

// Require returns an error wrapping ErrAccessDenied when p is missing.
func (a Access) Require(p Permission) error {
	if a.Has(p) {
		return nil
	}
	actor := a.Actor
	if actor == "" {
		actor = "anonymous"
	}
	return fmt.Errorf("%s lacks %q: %w", actor, p, ErrAccessDenied)
}
