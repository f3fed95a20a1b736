package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

var _ URLSigner = (*GCSBackend)(nil)

// GCSBackend stores objects in a Cloud Storage bucket under an optional
// prefix.
type GCSBackend struct {
	scheme string
	bucket *gcs.BucketHandle
	prefix string
}

// NewGCSBackend uses client for bucket. Objects are written below prefix.
func NewGCSBackend(client *gcs.Client, scheme, bucket, prefix string) *GCSBackend {
	return &GCSBackend{
		scheme: scheme,
		bucket: client.Bucket(bucket),
		prefix: strings.Trim(prefix, "/"),
	}
}

func (g *GCSBackend) Scheme() string { return g.scheme }

func (g *GCSBackend) key(p string) string {
	if g.prefix == "" {
		return p
	}
	return g.prefix + "/" + p
}

func (g *GCSBackend) objectKey(uri string) (string, error) {
	scheme, p, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	if scheme != g.scheme {
		return "", fmt.Errorf("uri %s does not belong to scheme %s", uri, g.scheme)
	}
	return g.key(p), nil
}

// Put writes with a DoesNotExist precondition. A key created by another
// writer between the free-name lookup and the upload fails the precondition
// and is reported as ErrNameTaken.
func (g *GCSBackend) Put(ctx context.Context, name string, r io.Reader) (Object, error) {
	name = SafeName(name)
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	// The body can only be read once, so find a free key before writing.
	candidate := name
	for i := 0; ; i++ {
		if i >= maxRenameAttempts {
			return Object{}, fmt.Errorf("no free object name for %s", name)
		}
		_, err := g.bucket.Object(g.key(candidate)).Attrs(ctx)
		if errors.Is(err, gcs.ErrObjectNotExist) {
			break
		}
		if err != nil {
			return Object{}, fmt.Errorf("stat %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}

	w := g.bucket.Object(g.key(candidate)).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("upload %s: %w", candidate, err)
	}
	if err := w.Close(); err != nil {
		if preconditionFailed(err) {
			return Object{}, fmt.Errorf("finalize %s: %w", candidate, ErrNameTaken)
		}
		return Object{}, fmt.Errorf("finalize %s: %w", candidate, err)
	}
	return Object{URI: BuildURI(g.scheme, candidate), Size: n}, nil
}

func preconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

func (g *GCSBackend) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	key, err := g.objectKey(uri)
	if err != nil {
		return nil, err
	}
	r, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", uri, ErrNotExist)
	}
	return r, err
}

func (g *GCSBackend) Delete(ctx context.Context, uri string) error {
	key, err := g.objectKey(uri)
	if err != nil {
		return err
	}
	err = g.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", uri, err)
	}
	return nil
}

// SignedURL returns a V4 signed GET URL for uri, valid for ttl. The client
// credentials must be able to sign.
func (g *GCSBackend) SignedURL(uri string, ttl time.Duration) (string, error) {
	key, err := g.objectKey(uri)
	if err != nil {
		return "", err
	}
	return g.bucket.SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
}
