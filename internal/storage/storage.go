// Package storage implements the storage schemes uploaded files are written
// to. Objects are addressed by URIs of the form "scheme://path".
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// TemporaryScheme holds uploads until their wizard session commits.
const TemporaryScheme = "temporary"

var (
	// ErrNotExist is returned when a URI names no stored object.
	ErrNotExist = errors.New("object does not exist")

	// ErrNameTaken is returned by Put when the chosen name was claimed by
	// another writer before the object was stored.
	ErrNameTaken = errors.New("object name already taken")
)

// maxCopyAttempts bounds how often Copy restarts a Put that lost a name race.
const maxCopyAttempts = 3

// Object describes a stored object.
type Object struct {
	URI  string
	Size int64
}

// Backend stores objects for a single scheme.
type Backend interface {
	Scheme() string
	// Put writes r under a name derived from name. An existing object is
	// never overwritten; the returned URI reflects the name actually used.
	Put(ctx context.Context, name string, r io.Reader) (Object, error)
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, uri string) error
}

// ParseURI splits "scheme://path".
func ParseURI(uri string) (scheme, p string, err error) {
	scheme, p, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" || p == "" {
		return "", "", fmt.Errorf("invalid storage uri %q", uri)
	}
	clean := path.Clean("/" + p)[1:]
	if clean == "" || clean != p {
		return "", "", fmt.Errorf("invalid storage path in %q", uri)
	}
	return scheme, p, nil
}

// BuildURI joins scheme and path.
func BuildURI(scheme, p string) string {
	return scheme + "://" + p
}

// SafeName reduces a client supplied filename to a single path element.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

// Set routes URIs to the backend for their scheme.
type Set struct {
	backends map[string]Backend
}

// NewSet indexes backends by scheme.
func NewSet(backends ...Backend) *Set {
	s := &Set{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		s.backends[b.Scheme()] = b
	}
	return s
}

// Backend returns the backend for scheme.
func (s *Set) Backend(scheme string) (Backend, error) {
	b, ok := s.backends[scheme]
	if !ok {
		return nil, fmt.Errorf("no backend for scheme %q", scheme)
	}
	return b, nil
}

func (s *Set) forURI(uri string) (Backend, error) {
	scheme, _, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return s.Backend(scheme)
}

// Open opens uri on its scheme's backend.
func (s *Set) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	b, err := s.forURI(uri)
	if err != nil {
		return nil, err
	}
	return b.Open(ctx, uri)
}

// Delete removes uri from its scheme's backend.
func (s *Set) Delete(ctx context.Context, uri string) error {
	b, err := s.forURI(uri)
	if err != nil {
		return err
	}
	return b.Delete(ctx, uri)
}

// Copy writes the object at src into scheme under name. The source is
// left in place so a failed commit can still be retried. A Put that loses
// a race for its name is restarted from a fresh read of src.
func (s *Set) Copy(ctx context.Context, src, scheme, name string) (Object, error) {
	dst, err := s.Backend(scheme)
	if err != nil {
		return Object{}, err
	}

	for attempt := 1; ; attempt++ {
		obj, err := s.copyOnce(ctx, src, dst, name)
		if errors.Is(err, ErrNameTaken) && attempt < maxCopyAttempts {
			continue
		}
		if err != nil {
			return Object{}, fmt.Errorf("copy %s to %s: %w", src, scheme, err)
		}
		return obj, nil
	}
}

func (s *Set) copyOnce(ctx context.Context, src string, dst Backend, name string) (Object, error) {
	r, err := s.Open(ctx, src)
	if err != nil {
		return Object{}, fmt.Errorf("open: %w", err)
	}
	defer r.Close()
	return dst.Put(ctx, name, r)
}

// URLSigner is implemented by backends that can hand out direct download
// links instead of streaming through the application.
type URLSigner interface {
	SignedURL(uri string, ttl time.Duration) (string, error)
}

// DownloadURL returns a signed link to uri valid for ttl. ok is false when
// the backend cannot sign and the object has to be streamed with Open.
func (s *Set) DownloadURL(uri string, ttl time.Duration) (link string, ok bool, err error) {
	b, err := s.forURI(uri)
	if err != nil {
		return "", false, err
	}
	signer, ok := b.(URLSigner)
	if !ok {
		return "", false, nil
	}
	link, err = signer.SignedURL(uri, ttl)
	if err != nil {
		return "", false, fmt.Errorf("sign %s: %w", uri, err)
	}
	return link, true, nil
}
