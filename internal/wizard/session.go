// Package wizard runs the multi-step upload flow: upload, type selection,
// scheme selection, field entry and commit. Each run is an explicit
// Session persisted in a Store between requests.
package wizard

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// State is the step a session is waiting on.
type State string

const (
	StateAwaitingUpload State = "awaiting_upload"
	StateAwaitingType   State = "awaiting_type"
	StateAwaitingScheme State = "awaiting_scheme"
	StateAwaitingFields State = "awaiting_fields"
	StateCommitted      State = "committed"
	StateAborted        State = "aborted"
)

// Terminal reports whether no further input is accepted.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

// UploadedFile is the not-yet-committed upload held in temporary storage.
type UploadedFile struct {
	TempURI  string `json:"temp_uri"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Session is one wizard run.
type Session struct {
	ID string `json:"id"`
	// FileID is reserved at creation and becomes the committed file's id,
	// so a replayed commit cannot create a second record.
	FileID           uuid.UUID         `json:"file_id"`
	State            State             `json:"state"`
	Upload           UploadedFile      `json:"upload"`
	CandidateTypes   []string          `json:"candidate_types,omitempty"`
	SelectedType     string            `json:"selected_type,omitempty"`
	CandidateSchemes []string          `json:"candidate_schemes,omitempty"`
	SelectedScheme   string            `json:"selected_scheme,omitempty"`
	FieldValues      map[string]string `json:"field_values,omitempty"`
	Version          int64             `json:"version"`
	Owner            string            `json:"owner,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
}

// NewSession returns a session awaiting upload.
func NewSession(owner string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		FileID:    uuid.New(),
		State:     StateAwaitingUpload,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.CandidateTypes = slices.Clone(s.CandidateTypes)
	c.CandidateSchemes = slices.Clone(s.CandidateSchemes)
	c.FieldValues = maps.Clone(s.FieldValues)
	return &c
}

// Expired reports whether the session is past its deadline.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// TypeSkipped reports whether type selection was decided automatically.
func (s *Session) TypeSkipped() bool {
	return len(s.CandidateTypes) == 1
}

// SchemeSkipped reports whether scheme selection was decided automatically.
func (s *Session) SchemeSkipped() bool {
	return len(s.CandidateSchemes) == 1
}
