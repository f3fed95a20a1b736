package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestParseURI(t *testing.T) {
	scheme, p, err := ParseURI("public://photos/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "public", scheme)
	assert.Equal(t, "photos/cat.png", p)

	for _, bad := range []string{"", "public", "public://", "://x", "public://../etc/passwd", "public://a/../b", "public://a/"} {
		_, _, err := ParseURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "cat.png", SafeName("cat.png"))
	assert.Equal(t, "cat.png", SafeName("../../cat.png"))
	assert.Equal(t, "cat.png", SafeName(`C:\Users\me\cat.png`))
	assert.Equal(t, "upload", SafeName(""))
	assert.Equal(t, "upload", SafeName("/"))
	assert.Equal(t, "ab.txt", SafeName("a\x00b.txt"))
}

func TestLocalBackend_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBackend("public", t.TempDir())
	require.NoError(t, err)

	obj, err := b.Put(ctx, "cat.png", strings.NewReader("meow"))
	require.NoError(t, err)
	assert.Equal(t, "public://cat.png", obj.URI)
	assert.EqualValues(t, 4, obj.Size)

	second, err := b.Put(ctx, "cat.png", strings.NewReader("purr"))
	require.NoError(t, err)
	assert.Equal(t, "public://cat_0.png", second.URI)

	r, err := b.Open(ctx, obj.URI)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "meow", string(data))

	require.NoError(t, b.Delete(ctx, obj.URI))
	require.NoError(t, b.Delete(ctx, obj.URI))

	_, err = b.Open(ctx, obj.URI)
	assert.ErrorIs(t, err, ErrNotExist)

	_, err = b.Open(ctx, "private://cat_0.png")
	assert.Error(t, err)
}

func TestSet_Copy(t *testing.T) {
	ctx := context.Background()
	tmp, err := NewLocalBackend(TemporaryScheme, t.TempDir())
	require.NoError(t, err)
	pub, err := NewLocalBackend("public", t.TempDir())
	require.NoError(t, err)
	set := NewSet(tmp, pub)

	src, err := tmp.Put(ctx, "upload.bin", strings.NewReader("payload"))
	require.NoError(t, err)

	dst, err := set.Copy(ctx, src.URI, "public", "final.bin")
	require.NoError(t, err)
	assert.Equal(t, "public://final.bin", dst.URI)
	assert.EqualValues(t, 7, dst.Size)

	r, err := set.Open(ctx, src.URI)
	require.NoError(t, err, "source is kept after copy")
	r.Close()

	require.NoError(t, set.Delete(ctx, src.URI))

	_, err = set.Copy(ctx, dst.URI, "s3", "x")
	assert.Error(t, err)
	_, err = set.Backend("s3")
	assert.Error(t, err)
}

// racingBackend loses the name race a fixed number of times before storing
// into the wrapped backend, the way a GCS precondition failure does.
type racingBackend struct {
	Backend
	lose  int
	calls int
	read  []string
}

func (b *racingBackend) Put(ctx context.Context, name string, r io.Reader) (Object, error) {
	b.calls++
	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, err
	}
	b.read = append(b.read, string(data))
	if b.calls <= b.lose {
		return Object{}, fmt.Errorf("finalize %s: %w", name, ErrNameTaken)
	}
	return b.Backend.Put(ctx, name, strings.NewReader(string(data)))
}

func TestSet_CopyRetriesLostNameRace(t *testing.T) {
	ctx := context.Background()
	tmp, err := NewLocalBackend(TemporaryScheme, t.TempDir())
	require.NoError(t, err)
	pub, err := NewLocalBackend("public", t.TempDir())
	require.NoError(t, err)

	racing := &racingBackend{Backend: pub, lose: 1}
	set := NewSet(tmp, racing)
	src, err := tmp.Put(ctx, "upload.bin", strings.NewReader("payload"))
	require.NoError(t, err)

	dst, err := set.Copy(ctx, src.URI, "public", "final.bin")
	require.NoError(t, err)
	assert.Equal(t, "public://final.bin", dst.URI)
	assert.Equal(t, 2, racing.calls)
	assert.Equal(t, []string{"payload", "payload"}, racing.read, "each attempt rereads the source")

	racing.calls, racing.lose = 0, maxCopyAttempts
	_, err = set.Copy(ctx, src.URI, "public", "final.bin")
	assert.ErrorIs(t, err, ErrNameTaken)
	assert.Equal(t, maxCopyAttempts, racing.calls)
}

func TestPreconditionFailed(t *testing.T) {
	assert.True(t, preconditionFailed(fmt.Errorf("close: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})))
	assert.False(t, preconditionFailed(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, preconditionFailed(errors.New("boom")))
}

type signingBackend struct {
	Backend
}

func (signingBackend) SignedURL(uri string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + strings.TrimPrefix(uri, "private://") + "?ttl=" + ttl.String(), nil
}

func TestSet_DownloadURL(t *testing.T) {
	pub, err := NewLocalBackend("public", t.TempDir())
	require.NoError(t, err)
	priv, err := NewLocalBackend("private", t.TempDir())
	require.NoError(t, err)
	set := NewSet(pub, signingBackend{priv})

	_, ok, err := set.DownloadURL("public://cat.png", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	link, ok, err := set.DownloadURL("private://cat.png", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://signed.example/cat.png?ttl=1m0s", link)

	_, _, err = set.DownloadURL("s3://cat.png", time.Minute)
	assert.Error(t, err)
}
