package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxRenameAttempts bounds the "name_N.ext" search for a free filename.
const maxRenameAttempts = 1000

// LocalBackend stores objects as files under a directory.
type LocalBackend struct {
	scheme string
	dir    string
}

// NewLocalBackend creates dir if needed.
func NewLocalBackend(scheme, dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", scheme, err)
	}
	return &LocalBackend{scheme: scheme, dir: dir}, nil
}

func (l *LocalBackend) Scheme() string { return l.scheme }

func (l *LocalBackend) Put(ctx context.Context, name string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	f, rel, err := l.create(SafeName(name))
	if err != nil {
		return Object{}, err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(filepath.Join(l.dir, rel))
		return Object{}, fmt.Errorf("write %s: %w", rel, err)
	}
	return Object{URI: BuildURI(l.scheme, rel), Size: n}, nil
}

// create opens a new file, renaming "a.png" to "a_0.png", "a_1.png", ...
// while the name is taken.
func (l *LocalBackend) create(name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 0; i < maxRenameAttempts; i++ {
		f, err := os.OpenFile(filepath.Join(l.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	return nil, "", fmt.Errorf("no free filename for %s", name)
}

func (l *LocalBackend) path(uri string) (string, error) {
	scheme, p, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	if scheme != l.scheme {
		return "", fmt.Errorf("uri %s does not belong to scheme %s", uri, l.scheme)
	}
	return filepath.Join(l.dir, filepath.FromSlash(p)), nil
}

func (l *LocalBackend) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	p, err := l.path(uri)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", uri, ErrNotExist)
	}
	return f, err
}

func (l *LocalBackend) Delete(_ context.Context, uri string) error {
	p, err := l.path(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", uri, err)
	}
	return nil
}
