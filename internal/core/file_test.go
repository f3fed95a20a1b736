package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFileRepository()

	f := &File{
		ID:          uuid.New(),
		TypeID:      "image",
		Scheme:      "public",
		URI:         "public://photo.png",
		Filename:    "photo.png",
		FieldValues: map[string]string{"caption": "hello"},
	}
	require.NoError(t, repo.Insert(ctx, f))
	assert.False(t, f.CreatedAt.IsZero())

	err := repo.Insert(ctx, &File{ID: f.ID, TypeID: "image"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.FieldValues["caption"])
	got.FieldValues["caption"] = "changed"

	again, err := repo.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.FieldValues["caption"])

	n, err := repo.CountByType(ctx, "image")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccess(t *testing.T) {
	a := Access{Actor: "alice", Permissions: []Permission{PermCreateFiles}}

	assert.True(t, a.Has(PermCreateFiles))
	assert.False(t, a.Has(PermAdministerFileTypes))
	assert.NoError(t, a.Require(PermCreateFiles))

	err := a.Require(PermAdministerFileTypes)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "alice")

	assert.Contains(t, Anonymous.Require(PermCreateFiles).Error(), "anonymous")
}

func TestAccessContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Anonymous.Actor, AccessFromContext(ctx).Actor)

	ctx = ContextWithAccess(ctx, Access{Actor: "alice"})
	assert.Equal(t, "alice", AccessFromContext(ctx).Actor)
}

func TestNewAuditEntry(t *testing.T) {
	ctx := ContextWithIPAddress(context.Background(), "10.0.0.1")
	ctx = ContextWithUserAgent(ctx, "test-agent")

	e := NewAuditEntry(ctx, ActionTypeDelete, "doc", "admin", nil)
	assert.Equal(t, SeverityCritical, e.Severity)
	assert.Equal(t, "10.0.0.1", e.IPAddress)
	assert.Equal(t, "test-agent", e.UserAgent)
	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)

	assert.Equal(t, SeverityLow, NewAuditEntry(ctx, ActionFileCommit, "x", "", nil).Severity)
	assert.Equal(t, SeverityMedium, NewAuditEntry(ctx, ActionTypeCreate, "x", "", nil).Severity)
}
