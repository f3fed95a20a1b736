package core

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	db "github.com/JonMunkholm/fileentity/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDatabaseEnv names a PostgreSQL URL the store tests may create
// schemas in. The tests are skipped when it is unset.
const testDatabaseEnv = "FILEENTITY_TEST_DATABASE_URL"

// newTestPool connects to a fresh schema with the migrations applied. The
// schema is dropped when the test ends.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "fileentity_test_" + fmt.Sprintf("%x", uuid.New().ID())

	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(ctx)
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	// Migrate runs on every start.
	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func TestPostgresRegistry(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	reg := NewPostgresRegistry(pool)
	require.NoError(t, reg.EnsureDefaults(ctx))
	require.NoError(t, reg.EnsureDefaults(ctx))

	image, err := reg.Load(ctx, DefaultTypeID)
	require.NoError(t, err)
	assert.True(t, image.System)

	docs := &FileType{
		ID:        "docs",
		Label:     "Documents",
		MimeTypes: []string{"application/pdf", "text/*"},
		Schemes:   []string{"private"},
		Status:    StatusEnabled,
		Fields:    []FieldDefinition{{Name: "title", Label: "Title", Type: FieldText, MaxLength: 64, Required: true}},
	}
	require.NoError(t, reg.Insert(ctx, docs))

	loaded, err := reg.Load(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"application/pdf", "text/*"}, loaded.MimeTypes)
	assert.Equal(t, []string{"private"}, loaded.Schemes)
	require.Len(t, loaded.Fields, 1)
	assert.True(t, loaded.Fields[0].Required)

	t.Run("duplicate id is a validation error", func(t *testing.T) {
		err := reg.Insert(ctx, &FileType{ID: "docs", Label: "Again", MimeTypes: []string{"text/plain"}, Status: StatusEnabled})
		require.True(t, IsValidation(err), "got %v", err)
		assert.Contains(t, err.Error(), "already in use")
	})

	t.Run("system type cannot be deleted", func(t *testing.T) {
		assert.ErrorIs(t, reg.Delete(ctx, DefaultTypeID), ErrConflict)
		assert.ErrorIs(t, reg.Delete(ctx, "missing"), ErrNotFound)
	})

	t.Run("save replaces fields", func(t *testing.T) {
		loaded.Fields = []FieldDefinition{{Name: "author", Label: "Author", Type: FieldText, MaxLength: 64}}
		loaded.Status = StatusDisabled
		require.NoError(t, reg.Save(ctx, loaded))

		again, err := reg.Load(ctx, "docs")
		require.NoError(t, err)
		assert.False(t, again.Enabled())
		require.Len(t, again.Fields, 1)
		assert.Equal(t, "author", again.Fields[0].Name)

		all, err := reg.LoadAll(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []string{DefaultTypeID}, ids(all))
	})
}

func TestPostgresFileRepository(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	reg := NewPostgresRegistry(pool)
	require.NoError(t, reg.EnsureDefaults(ctx))
	repo := NewPostgresFileRepository(pool)

	f := &File{
		ID:          uuid.New(),
		TypeID:      DefaultTypeID,
		Scheme:      "public",
		URI:         "public://cat.png",
		Filename:    "cat.png",
		MimeType:    "image/png",
		Size:        12,
		Owner:       "alice",
		FieldValues: map[string]string{"caption": "hello"},
	}
	require.NoError(t, repo.Insert(ctx, f))

	t.Run("second commit of a session conflicts", func(t *testing.T) {
		err := repo.Insert(ctx, &File{ID: f.ID, TypeID: DefaultTypeID, Scheme: "public", URI: "public://cat_0.png", Filename: "cat.png"})
		assert.ErrorIs(t, err, ErrConflict)

		got, err := repo.Get(ctx, f.ID)
		require.NoError(t, err)
		assert.Equal(t, "public://cat.png", got.URI)
		assert.Equal(t, "hello", got.FieldValues["caption"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("type with committed files cannot be deleted", func(t *testing.T) {
		require.NoError(t, reg.Insert(ctx, &FileType{ID: "scans", Label: "Scans", MimeTypes: []string{"image/png"}, Status: StatusEnabled}))
		scan := &File{ID: uuid.New(), TypeID: "scans", Scheme: "private", URI: "private://scan.png", Filename: "scan.png", MimeType: "image/png"}
		require.NoError(t, repo.Insert(ctx, scan))

		err := reg.Delete(ctx, "scans")
		assert.ErrorIs(t, err, ErrTypeHasFiles)
		assert.ErrorIs(t, err, ErrConflict)

		_, err = reg.Load(ctx, "scans")
		require.NoError(t, err)
		n, err := repo.CountByType(ctx, "scans")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}
