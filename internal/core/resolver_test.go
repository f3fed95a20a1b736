package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_ResolveTypes(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	require.NoError(t, reg.Insert(ctx, newType("image1", "Image 1", "image/png")))
	require.NoError(t, reg.Insert(ctx, newType("image2", "Image 2", "image/png", "image/gif")))
	require.NoError(t, reg.Insert(ctx, newType("doc", "Document", "application/pdf")))

	r := NewResolver(reg, SchemesFromNames([]string{"public"}))

	got, err := r.ResolveTypes(ctx, "IMAGE/PNG")
	require.NoError(t, err)
	assert.Equal(t, []string{"image", "image1", "image2"}, ids(got))

	got, err = r.ResolveTypes(ctx, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, []string{"image"}, ids(got))

	got, err = r.ResolveTypes(ctx, "text/plain")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolver_DisabledTypeDropsOutButStaysLoadable(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	r := NewResolver(reg, SchemesFromNames([]string{"public"}))

	img, err := reg.Load(ctx, DefaultTypeID)
	require.NoError(t, err)
	img.Status = StatusDisabled
	require.NoError(t, reg.Save(ctx, img))

	got, err := r.ResolveTypes(ctx, "image/png")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = reg.Load(ctx, DefaultTypeID)
	assert.NoError(t, err)
}

func TestResolver_ResolveSchemes(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	onlyPrivate := newType("secret", "Secret", "application/pdf")
	onlyPrivate.Schemes = []string{"private"}
	require.NoError(t, reg.Insert(ctx, onlyPrivate))
	unknown := newType("odd", "Odd", "application/pdf")
	unknown.Schemes = []string{"s3"}
	require.NoError(t, reg.Insert(ctx, unknown))

	r := NewResolver(reg, SchemesFromNames([]string{"public", "private"}))

	all, err := r.ResolveSchemes(ctx, DefaultTypeID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "public", all[0].Name)
	assert.Equal(t, "Public local files served by the webserver.", all[0].Description)
	assert.Equal(t, "private", all[1].Name)
	assert.Equal(t, "Private local files served by the application.", all[1].Description)

	one, err := r.ResolveSchemes(ctx, "secret")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "private", one[0].Name)

	none, err := r.ResolveSchemes(ctx, "odd")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = r.ResolveSchemes(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
