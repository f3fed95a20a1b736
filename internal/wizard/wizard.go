package wizard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/JonMunkholm/fileentity/internal/core"
	"github.com/JonMunkholm/fileentity/internal/logging"
	"github.com/JonMunkholm/fileentity/internal/metrics"
	"github.com/JonMunkholm/fileentity/internal/storage"
)

// DefaultSessionTTL applies when Deps.TTL is zero.
const DefaultSessionTTL = time.Hour

// Upload is the first-step submission.
type Upload struct {
	Filename     string
	DeclaredMIME string
	Body         io.Reader
}

// TypeOption is a candidate presented at the type step.
type TypeOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Step is what the caller renders for a session.
type Step struct {
	SessionID string            `json:"session_id"`
	State     State             `json:"state"`
	Upload    UploadedFile      `json:"upload"`
	Types     []TypeOption      `json:"types,omitempty"`
	Schemes   []core.SchemeInfo `json:"schemes,omitempty"`
	TypeID    string            `json:"type_id,omitempty"`
	TypeLabel string            `json:"type_label,omitempty"`
	Scheme    string            `json:"scheme,omitempty"`
	Fields    core.FieldSet     `json:"fields,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
	File      *core.File        `json:"file,omitempty"`
}

// UploadedMessage is the confirmation shown after commit.
func (s *Step) UploadedMessage() string {
	return fmt.Sprintf("%s %s was uploaded.", s.TypeLabel, s.Upload.Filename)
}

// Deps are the collaborators a Wizard needs.
type Deps struct {
	Registry core.Registry
	Resolver *core.Resolver
	Store    Store
	Files    core.FileRepository
	Storage  *storage.Set
	Limiter  *UploadLimiter
	Audit    core.AuditLog

	TTL         time.Duration
	MaxFileSize int64
}

// Wizard drives upload sessions. It holds no per-session state itself.
type Wizard struct {
	registry core.Registry
	resolver *core.Resolver
	store    Store
	files    core.FileRepository
	storage  *storage.Set
	limiter  *UploadLimiter
	audit    core.AuditLog
	ttl      time.Duration
	maxSize  int64
	now      func() time.Time
}

// New returns a Wizard. Limiter and Audit may be nil.
func New(d Deps) *Wizard {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Wizard{
		registry: d.Registry,
		resolver: d.Resolver,
		store:    d.Store,
		files:    d.Files,
		storage:  d.Storage,
		limiter:  d.Limiter,
		audit:    d.Audit,
		ttl:      ttl,
		maxSize:  d.MaxFileSize,
		now:      time.Now,
	}
}

// Start stores the upload in temporary storage, resolves candidate types
// and applies the skip rules. With no candidate type the upload is
// discarded and a ConfigurationError returned; nothing is persisted.
func (w *Wizard) Start(ctx context.Context, access core.Access, up Upload) (*Step, error) {
	if err := access.Require(core.PermCreateFiles); err != nil {
		return nil, err
	}
	if up.Body == nil || up.Filename == "" {
		return nil, core.Invalid("files[upload]", "No file provided.")
	}

	if w.limiter != nil {
		if err := w.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer w.limiter.Release()
	}

	uploaded, err := w.storeTemporary(ctx, up)
	if err != nil {
		return nil, err
	}

	s := NewSession(access.Actor, w.now(), w.ttl)
	s.Upload = uploaded
	log := logging.WithFields(ctx, "session", s.ID, "mime_type", uploaded.MimeType)

	types, err := w.resolver.ResolveTypes(ctx, uploaded.MimeType)
	if err == nil && len(types) == 0 {
		err = core.Misconfigured("no enabled file type accepts %s files", uploaded.MimeType)
	}
	if err == nil {
		for _, t := range types {
			s.CandidateTypes = append(s.CandidateTypes, t.ID)
		}
		s.State = StateAwaitingType
		if len(types) == 1 {
			err = w.chooseType(s, &types[0])
		}
	}
	if err != nil {
		w.reject(ctx, s, err)
		return nil, err
	}

	if err := w.store.Create(ctx, s); err != nil {
		w.deleteTemp(ctx, s)
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.RecordUploadSize(uploaded.Size)
	metrics.RecordWizardStep(string(s.State))
	log.InfoContext(ctx, "upload session started", "state", s.State, "candidates", len(s.CandidateTypes))
	return w.step(ctx, s)
}

func (w *Wizard) storeTemporary(ctx context.Context, up Upload) (UploadedFile, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return UploadedFile{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return UploadedFile{}, core.Invalid("files[upload]", "The uploaded file is empty.")
	}

	body := io.MultiReader(bytes.NewReader(head), up.Body)
	if w.maxSize > 0 {
		body = io.LimitReader(body, w.maxSize+1)
	}

	tmp, err := w.storage.Backend(storage.TemporaryScheme)
	if err != nil {
		return UploadedFile{}, err
	}
	obj, err := tmp.Put(ctx, up.Filename, body)
	if err != nil {
		return UploadedFile{}, fmt.Errorf("store upload: %w", err)
	}
	if w.maxSize > 0 && obj.Size > w.maxSize {
		_ = tmp.Delete(ctx, obj.URI)
		return UploadedFile{}, core.Invalid("files[upload]", "file too large: the limit is %d bytes", w.maxSize)
	}

	return UploadedFile{
		TempURI:  obj.URI,
		Filename: storage.SafeName(up.Filename),
		MimeType: DetectMIME(head, up.Filename, up.DeclaredMIME),
		Size:     obj.Size,
	}, nil
}

// chooseType records t and moves on to scheme selection, skipping it when
// exactly one scheme applies.
func (w *Wizard) chooseType(s *Session, t *core.FileType) error {
	schemes := w.resolver.SchemesFor(t)
	if len(schemes) == 0 {
		return core.Misconfigured("file type %s accepts no configured storage scheme", t.Label)
	}

	s.SelectedType = t.ID
	s.CandidateSchemes = s.CandidateSchemes[:0]
	for _, sc := range schemes {
		s.CandidateSchemes = append(s.CandidateSchemes, sc.Name)
	}
	s.State = StateAwaitingScheme
	if len(schemes) == 1 {
		s.SelectedScheme = schemes[0].Name
		s.State = StateAwaitingFields
	}
	return nil
}

// Current re-presents the session's step.
func (w *Wizard) Current(ctx context.Context, access core.Access, id string) (*Step, error) {
	s, err := w.load(ctx, access, id)
	if err != nil {
		return nil, err
	}
	return w.step(ctx, s)
}

// SelectType consumes the type step.
func (w *Wizard) SelectType(ctx context.Context, access core.Access, id, typeID string) (*Step, error) {
	s, err := w.load(ctx, access, id)
	if err != nil {
		return nil, err
	}
	if err := expectState(s, StateAwaitingType, "type"); err != nil {
		return nil, err
	}
	if !slices.Contains(s.CandidateTypes, typeID) {
		return nil, core.Invalid("type", "The selected file type is not a valid choice.")
	}

	t, err := w.registry.Load(ctx, typeID)
	if errors.Is(err, core.ErrNotFound) || (err == nil && !t.Enabled()) {
		return nil, core.Invalid("type", "The selected file type is no longer available.")
	}
	if err != nil {
		return nil, err
	}

	version := s.Version
	if err := w.chooseType(s, t); err != nil {
		w.discard(ctx, s, err)
		return nil, err
	}
	if err := w.save(ctx, s, version); err != nil {
		return nil, err
	}
	return w.step(ctx, s)
}

// SelectScheme consumes the scheme step.
func (w *Wizard) SelectScheme(ctx context.Context, access core.Access, id, scheme string) (*Step, error) {
	s, err := w.load(ctx, access, id)
	if err != nil {
		return nil, err
	}
	if err := expectState(s, StateAwaitingScheme, "scheme"); err != nil {
		return nil, err
	}
	if !slices.Contains(s.CandidateSchemes, scheme) {
		return nil, core.Invalid("scheme", "The selected destination is not a valid choice.")
	}

	version := s.Version
	s.SelectedScheme = scheme
	s.State = StateAwaitingFields
	if err := w.save(ctx, s, version); err != nil {
		return nil, err
	}
	return w.step(ctx, s)
}

// SubmitFields validates field values and commits the file. The stored
// object is copied into the chosen scheme, then the file record is
// inserted under the session's reserved id. If the insert fails the copy
// is removed, so a failed or duplicate commit leaves nothing behind.
func (w *Wizard) SubmitFields(ctx context.Context, access core.Access, id string, values map[string]string) (*core.File, error) {
	s, err := w.load(ctx, access, id)
	if err != nil {
		return nil, err
	}
	if err := expectState(s, StateAwaitingFields, "fields"); err != nil {
		return nil, err
	}

	t, err := w.registry.Load(ctx, s.SelectedType)
	if errors.Is(err, core.ErrNotFound) {
		err = core.Misconfigured("file type %s was deleted during the upload", s.SelectedType)
		w.discard(ctx, s, err)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	clean, err := core.FieldSet(t.Fields).Validate(values)
	if err != nil {
		return nil, err
	}

	log := logging.WithFields(ctx, "session", s.ID, "type", t.ID, "scheme", s.SelectedScheme)

	obj, err := w.storage.Copy(ctx, s.Upload.TempURI, s.SelectedScheme, s.Upload.Filename)
	if err != nil {
		if cur, lerr := w.store.Load(ctx, s.ID); lerr == nil && cur.State == StateCommitted {
			return nil, fmt.Errorf("upload session %s already committed: %w", s.ID, core.ErrConflict)
		}
		return nil, err
	}

	f := &core.File{
		ID:          s.FileID,
		TypeID:      t.ID,
		Scheme:      s.SelectedScheme,
		URI:         obj.URI,
		Filename:    s.Upload.Filename,
		MimeType:    s.Upload.MimeType,
		Size:        obj.Size,
		FieldValues: clean,
		Owner:       s.Owner,
		CreatedAt:   w.now(),
	}
	if err := w.files.Insert(ctx, f); err != nil {
		if derr := w.storage.Delete(ctx, obj.URI); derr != nil {
			log.ErrorContext(ctx, "remove uncommitted object failed", "uri", obj.URI, "error", derr)
		}
		if errors.Is(err, core.ErrConflict) {
			return nil, fmt.Errorf("upload session %s already committed: %w", s.ID, core.ErrConflict)
		}
		return nil, err
	}

	tempURI := s.Upload.TempURI
	version := s.Version
	s.State = StateCommitted
	s.FieldValues = clean
	s.Upload.TempURI = ""
	if err := w.save(ctx, s, version); err != nil {
		// The file is durable; a stale session only lingers until its TTL.
		log.WarnContext(ctx, "mark session committed failed", "error", err)
	}
	if err := w.storage.Delete(ctx, tempURI); err != nil {
		log.WarnContext(ctx, "remove temporary upload failed", "uri", tempURI, "error", err)
	}

	metrics.RecordWizardOutcome("committed")
	log.InfoContext(ctx, "file committed", "file", f.ID, "uri", f.URI)
	core.RecordAudit(ctx, w.audit, core.NewAuditEntry(ctx, core.ActionFileCommit, f.ID.String(), access.Actor, map[string]any{
		"type":     t.ID,
		"scheme":   f.Scheme,
		"filename": f.Filename,
	}))
	return f, nil
}

// Abandon discards an unfinished session and its temporary upload.
func (w *Wizard) Abandon(ctx context.Context, access core.Access, id string) error {
	s, err := w.load(ctx, access, id)
	if err != nil {
		return err
	}
	if s.State == StateCommitted {
		return fmt.Errorf("upload session %s already committed: %w", s.ID, core.ErrConflict)
	}

	w.deleteTemp(ctx, s)
	if err := w.store.Delete(ctx, s.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	metrics.RecordWizardOutcome("abandoned")
	core.RecordAudit(ctx, w.audit, core.NewAuditEntry(ctx, core.ActionUploadAbandon, s.ID, access.Actor, map[string]any{
		"filename": s.Upload.Filename,
		"state":    string(s.State),
	}))
	return nil
}

// load fetches a session owned by the caller. Sessions of other actors are
// reported as not found.
func (w *Wizard) load(ctx context.Context, access core.Access, id string) (*Session, error) {
	if err := access.Require(core.PermCreateFiles); err != nil {
		return nil, err
	}
	s, err := w.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Owner != access.Actor {
		return nil, sessionNotFound(id)
	}
	return s, nil
}

func expectState(s *Session, want State, input string) error {
	switch {
	case s.State == want:
		return nil
	case s.State == StateCommitted:
		return fmt.Errorf("upload session %s already committed: %w", s.ID, core.ErrConflict)
	case s.State.Terminal():
		return sessionNotFound(s.ID)
	default:
		return core.Invalid(input, "This step is not expected now; the upload is at %s.", s.State)
	}
}

func (w *Wizard) save(ctx context.Context, s *Session, expectedVersion int64) error {
	now := w.now()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(w.ttl)
	if err := w.store.Update(ctx, s, expectedVersion); err != nil {
		return err
	}
	metrics.RecordWizardStep(string(s.State))
	return nil
}

// reject handles a session that never reached the store.
func (w *Wizard) reject(ctx context.Context, s *Session, cause error) {
	w.deleteTemp(ctx, s)
	w.recordRejected(ctx, s, cause)
}

// discard ends a stored session that can no longer complete. Committed
// data is never touched.
func (w *Wizard) discard(ctx context.Context, s *Session, cause error) {
	w.deleteTemp(ctx, s)
	if err := w.store.Delete(ctx, s.ID); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "delete session failed", "session", s.ID, "error", err)
	}
	w.recordRejected(ctx, s, cause)
}

func (w *Wizard) recordRejected(ctx context.Context, s *Session, cause error) {
	metrics.RecordWizardOutcome("rejected")
	logging.WithFields(ctx, "session", s.ID).WarnContext(ctx, "upload rejected",
		"mime_type", s.Upload.MimeType,
		"error", cause,
	)
	core.RecordAudit(ctx, w.audit, core.NewAuditEntry(ctx, core.ActionUploadRejected, s.ID, s.Owner, map[string]any{
		"filename":  s.Upload.Filename,
		"mime_type": s.Upload.MimeType,
		"reason":    cause.Error(),
	}))
}

func (w *Wizard) deleteTemp(ctx context.Context, s *Session) {
	if s.Upload.TempURI == "" {
		return
	}
	if err := w.storage.Delete(ctx, s.Upload.TempURI); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "remove temporary upload failed",
			"session", s.ID,
			"uri", s.Upload.TempURI,
			"error", err,
		)
	}
}

func (w *Wizard) step(ctx context.Context, s *Session) (*Step, error) {
	st := &Step{
		SessionID: s.ID,
		State:     s.State,
		Upload:    s.Upload,
		TypeID:    s.SelectedType,
		Scheme:    s.SelectedScheme,
		Values:    s.FieldValues,
	}

	switch s.State {
	case StateAwaitingType:
		for _, id := range s.CandidateTypes {
			t, err := w.registry.Load(ctx, id)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			st.Types = append(st.Types, TypeOption{ID: t.ID, Label: t.Label, Description: t.Description})
		}
		return st, nil

	case StateAwaitingScheme:
		for _, info := range w.resolver.Schemes() {
			if slices.Contains(s.CandidateSchemes, info.Name) {
				st.Schemes = append(st.Schemes, info)
			}
		}
	}

	if s.SelectedType == "" {
		return st, nil
	}
	t, err := w.registry.Load(ctx, s.SelectedType)
	if errors.Is(err, core.ErrNotFound) {
		st.TypeLabel = s.SelectedType
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.TypeLabel = t.Label
	if s.State == StateAwaitingFields {
		st.Fields = core.FieldSet(t.Fields).Sorted()
	}
	if s.State == StateCommitted && w.files != nil {
		f, err := w.files.Get(ctx, s.FileID)
		if err == nil {
			st.File = f
		}
	}
	return st, nil
}
