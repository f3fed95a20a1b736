package wizard

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	uploader = core.Access{Actor: "alice", Permissions: []core.Permission{core.PermCreateFiles}}
	// A PNG signature is enough for content sniffing.
	pngBody = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
)

type testEnv struct {
	wizard   *Wizard
	registry *core.MemoryRegistry
	store    *MemoryStore
	files    *core.MemoryFileRepository
	audit    *core.MemoryAuditLog
	storage  *storage.Set
	tempDir  string
	dirs     map[string]string
}

func newTestEnv(t *testing.T, schemes ...string) *testEnv {
	t.Helper()
	if len(schemes) == 0 {
		schemes = []string{"public", "private"}
	}

	env := &testEnv{
		registry: core.NewMemoryRegistry(),
		store:    NewMemoryStore(),
		files:    core.NewMemoryFileRepository(),
		audit:    &core.MemoryAuditLog{},
		tempDir:  t.TempDir(),
		dirs:     make(map[string]string),
	}

	tmp, err := storage.NewLocalBackend(storage.TemporaryScheme, env.tempDir)
	require.NoError(t, err)
	backends := []storage.Backend{tmp}
	for _, name := range schemes {
		dir := t.TempDir()
		b, err := storage.NewLocalBackend(name, dir)
		require.NoError(t, err)
		env.dirs[name] = dir
		backends = append(backends, b)
	}
	env.storage = storage.NewSet(backends...)

	env.wizard = New(Deps{
		Registry:    env.registry,
		Resolver:    core.NewResolver(env.registry, core.SchemesFromNames(schemes)),
		Store:       env.store,
		Files:       env.files,
		Storage:     env.storage,
		Limiter:     NewUploadLimiter(2, time.Second),
		Audit:       env.audit,
		TTL:         time.Hour,
		MaxFileSize: 1 << 20,
	})
	return env
}

func (e *testEnv) addCaptionType(t *testing.T) {
	t.Helper()
	require.NoError(t, e.registry.Insert(context.Background(), &core.FileType{
		ID:        "image2",
		Label:     "Image 2",
		MimeTypes: []string{"image/png"},
		Status:    core.StatusEnabled,
		Fields: []core.FieldDefinition{
			{Name: "caption", Label: "Caption", Type: core.FieldText, MaxLength: 255},
		},
	}))
}

func (e *testEnv) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.tempDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func pngUpload(name string) Upload {
	return Upload{Filename: name, DeclaredMIME: "image/png", Body: bytes.NewReader(pngBody)}
}

func TestWizard_TwoTypesCaptionFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addCaptionType(t)
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingType, step.State)
	assert.Equal(t, "image/png", step.Upload.MimeType)
	require.Len(t, step.Types, 2)
	assert.Equal(t, "Image", step.Types[0].Label)
	assert.Equal(t, "Image 2", step.Types[1].Label)

	step, err = env.wizard.SelectType(ctx, uploader, step.SessionID, "image2")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingScheme, step.State)
	require.Len(t, step.Schemes, 2)
	assert.Equal(t, "Public files", step.Schemes[0].Label)
	assert.Equal(t, "Private files", step.Schemes[1].Label)

	step, err = env.wizard.SelectScheme(ctx, uploader, step.SessionID, "public")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingFields, step.State)
	require.Len(t, step.Fields, 1)
	assert.Equal(t, "caption", step.Fields[0].Name)

	f, err := env.wizard.SubmitFields(ctx, uploader, step.SessionID, map[string]string{"caption": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "image2", f.TypeID)
	assert.Equal(t, "public", f.Scheme)
	assert.Equal(t, "public://cat.png", f.URI)
	assert.Equal(t, "hello", f.FieldValues["caption"])
	assert.Equal(t, "alice", f.Owner)

	stored, err := env.files.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.FieldValues["caption"])

	data, err := os.ReadFile(filepath.Join(env.dirs["public"], "cat.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBody, data)
	assert.Empty(t, env.tempFiles(t))

	done, err := env.wizard.Current(ctx, uploader, step.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, done.State)
	assert.Equal(t, "Image 2 cat.png was uploaded.", done.UploadedMessage())
	require.NotNil(t, done.File)
	assert.Equal(t, f.ID, done.File.ID)

	var actions []core.AuditAction
	for _, e := range env.audit.Entries() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []core.AuditAction{core.ActionFileCommit}, actions)
}

func TestWizard_SingleTypeSingleSchemeGoesStraightToFields(t *testing.T) {
	env := newTestEnv(t, "public")
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("dog.png"))
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingFields, step.State)
	assert.Equal(t, core.DefaultTypeID, step.TypeID)
	assert.Equal(t, "public", step.Scheme)
	assert.Empty(t, step.Fields)

	s, err := env.store.Load(ctx, step.SessionID)
	require.NoError(t, err)
	assert.True(t, s.TypeSkipped())
	assert.True(t, s.SchemeSkipped())

	f, err := env.wizard.SubmitFields(ctx, uploader, step.SessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultTypeID, f.TypeID)
	assert.Equal(t, "public://dog.png", f.URI)
}

func TestWizard_SingleTypeTwoSchemes(t *testing.T) {
	env := newTestEnv(t)

	step, err := env.wizard.Start(context.Background(), uploader, pngUpload("dog.png"))
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingScheme, step.State)
	assert.Equal(t, "Image", step.TypeLabel)
	assert.Len(t, step.Schemes, 2)
}

func TestWizard_NoCandidateTypeRejectsUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.wizard.Start(ctx, uploader, Upload{
		Filename: "notes.txt",
		Body:     bytes.NewReader([]byte("plain text notes")),
	})
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
	assert.Equal(t, "FT004", core.MapError(err).Code)

	assert.Zero(t, env.store.Len())
	assert.Empty(t, env.tempFiles(t))

	entries := env.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, core.ActionUploadRejected, entries[0].Action)
}

func TestWizard_StartValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.wizard.Start(ctx, uploader, Upload{Filename: "x.png"})
	assert.True(t, core.IsValidation(err))

	_, err = env.wizard.Start(ctx, uploader, Upload{Filename: "empty.png", Body: bytes.NewReader(nil)})
	assert.True(t, core.IsValidation(err))

	_, err = env.wizard.Start(ctx, core.Anonymous, pngUpload("cat.png"))
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	assert.Zero(t, env.store.Len())
	assert.Empty(t, env.tempFiles(t))
}

func TestWizard_FileTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.wizard.maxSize = 4

	_, err := env.wizard.Start(context.Background(), uploader, pngUpload("big.png"))
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.Empty(t, env.tempFiles(t))
}

func TestWizard_InvalidSelectionLeavesSessionUnchanged(t *testing.T) {
	env := newTestEnv(t)
	env.addCaptionType(t)
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)

	_, err = env.wizard.SelectType(ctx, uploader, step.SessionID, "document")
	assert.True(t, core.IsValidation(err))

	_, err = env.wizard.SelectScheme(ctx, uploader, step.SessionID, "public")
	assert.True(t, core.IsValidation(err))

	s, err := env.store.Load(ctx, step.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingType, s.State)
	assert.Empty(t, s.SelectedType)
	assert.Zero(t, s.Version)

	_, err = env.wizard.SelectType(ctx, uploader, step.SessionID, "image2")
	require.NoError(t, err)
	_, err = env.wizard.SelectScheme(ctx, uploader, step.SessionID, "temporary")
	assert.True(t, core.IsValidation(err))
}

func TestWizard_RequiredFieldKeepsSessionOpen(t *testing.T) {
	env := newTestEnv(t, "public")
	require.NoError(t, env.registry.Insert(context.Background(), &core.FileType{
		ID:        "photo",
		Label:     "Photo",
		MimeTypes: []string{"image/png"},
		Status:    core.StatusEnabled,
		Fields: []core.FieldDefinition{
			{Name: "credit", Label: "Credit", Type: core.FieldText, MaxLength: 5, Required: true},
		},
	}))
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)
	step, err = env.wizard.SelectType(ctx, uploader, step.SessionID, "photo")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingFields, step.State)

	_, err = env.wizard.SubmitFields(ctx, uploader, step.SessionID, map[string]string{"credit": "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Credit field is required.")

	_, err = env.wizard.SubmitFields(ctx, uploader, step.SessionID, map[string]string{"credit": "too long"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Credit cannot be longer than 5 characters.")

	cur, err := env.wizard.Current(ctx, uploader, step.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingFields, cur.State)
	assert.Len(t, env.tempFiles(t), 1)

	f, err := env.wizard.SubmitFields(ctx, uploader, step.SessionID, map[string]string{"credit": "me"})
	require.NoError(t, err)
	assert.Equal(t, "me", f.FieldValues["credit"])
}

func TestWizard_DoubleSubmitCommitsOnce(t *testing.T) {
	env := newTestEnv(t, "public")
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)

	_, err = env.wizard.SubmitFields(ctx, uploader, step.SessionID, nil)
	require.NoError(t, err)

	_, err = env.wizard.SubmitFields(ctx, uploader, step.SessionID, nil)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, "WIZ002", core.MapError(err).Code)

	n, err := env.files.CountByType(ctx, core.DefaultTypeID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := os.ReadDir(env.dirs["public"])
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWizard_ConcurrentSubmitCommitsOnce(t *testing.T) {
	env := newTestEnv(t, "public")
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.wizard.SubmitFields(ctx, uploader, step.SessionID, nil)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	n, err := env.files.CountByType(ctx, core.DefaultTypeID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := os.ReadDir(env.dirs["public"])
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWizard_Abandon(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)
	require.Len(t, env.tempFiles(t), 1)

	require.NoError(t, env.wizard.Abandon(ctx, uploader, step.SessionID))
	assert.Empty(t, env.tempFiles(t))
	assert.Zero(t, env.store.Len())

	_, err = env.wizard.Current(ctx, uploader, step.SessionID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	entries := env.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, core.ActionUploadAbandon, entries[0].Action)
}

func TestWizard_AbandonCommittedConflicts(t *testing.T) {
	env := newTestEnv(t, "public")
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)
	_, err = env.wizard.SubmitFields(ctx, uploader, step.SessionID, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, env.wizard.Abandon(ctx, uploader, step.SessionID), core.ErrConflict)
}

func TestWizard_SessionsAreOwned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)

	mallory := core.Access{Actor: "mallory", Permissions: []core.Permission{core.PermCreateFiles}}
	_, err = env.wizard.Current(ctx, mallory, step.SessionID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, env.wizard.Abandon(ctx, mallory, step.SessionID), core.ErrNotFound)

	_, err = env.wizard.SelectScheme(ctx, core.Anonymous, step.SessionID, "public")
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	_, err = env.wizard.Current(ctx, uploader, step.SessionID)
	assert.NoError(t, err)
}

func TestWizard_TypeDisabledMidFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addCaptionType(t)
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)

	t2, err := env.registry.Load(ctx, "image2")
	require.NoError(t, err)
	t2.Status = core.StatusDisabled
	require.NoError(t, env.registry.Save(ctx, t2))

	_, err = env.wizard.SelectType(ctx, uploader, step.SessionID, "image2")
	assert.True(t, core.IsValidation(err))
}

func TestWizard_TypeDeletedBeforeCommit(t *testing.T) {
	env := newTestEnv(t, "public")
	env.addCaptionType(t)
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)
	step, err = env.wizard.SelectType(ctx, uploader, step.SessionID, "image2")
	require.NoError(t, err)

	require.NoError(t, env.registry.Delete(ctx, "image2"))

	_, err = env.wizard.SubmitFields(ctx, uploader, step.SessionID, map[string]string{"caption": "x"})
	assert.True(t, core.IsConfiguration(err))
	assert.Zero(t, env.store.Len())
	assert.Empty(t, env.tempFiles(t))
}

func TestSweeper_RemovesExpiredSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	step, err := env.wizard.Start(ctx, uploader, pngUpload("cat.png"))
	require.NoError(t, err)

	sweeper := NewSweeper(env.store, env.storage, time.Minute)
	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, env.store.Len())
	assert.Empty(t, env.tempFiles(t))

	_, err = env.wizard.Current(ctx, uploader, step.SessionID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewSweeper(env.store, env.storage, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name     string
		head     []byte
		filename string
		declared string
		want     string
	}{
		{"sniffed png", pngBody, "x.bin", "", "image/png"},
		{"sniff beats declared", pngBody, "x.png", "image/gif", "image/png"},
		{"extension for text", []byte(`{"a":1}`), "data.json", "", "application/json"},
		{"declared fallback", []byte{0x00, 0x01, 0x02}, "blob", "application/x-thing", "application/x-thing"},
		{"generic", []byte{0x00, 0x01, 0x02}, "blob", "", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMIME(tt.head, tt.filename, tt.declared))
		})
	}
}
