package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/hupe1980/vecforest/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Keys(t *testing.T) {
	s := NewStore(nil, "bucket", "indexes/")
	assert.Equal(t, "indexes/a.vf", s.key("a.vf"))
	assert.Equal(t, "indexes", s.key(""))
	assert.Equal(t, "a.vf", s.rel("indexes/a.vf"))
	assert.Equal(t, "sub/a.vf", s.rel("indexes/sub/a.vf"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))

	assert.ErrorIs(t, translate(minio.ErrorResponse{Code: "NoSuchKey"}), blobstore.ErrNotFound)
	assert.NoError(t, translate(nil))
}

func TestBlob_ReadAtBounds(t *testing.T) {
	b := NewStore(nil, "bucket", "").object("k", 4)
	n, err := b.ReadAt(context.Background(), make([]byte, 2), 4)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	_, err = b.ReadRange(context.Background(), 9, 1)
	assert.ErrorIs(t, err, io.EOF)
}

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}

	client, err := minio.New(endpoint, &minio.Options{Creds: credentials.NewStaticV4("minioadmin", "minioadmin", "")})
	require.NoError(t, err)

	ctx := context.Background()
	const bucket = "vecforest-it"
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		t.Skipf("minio unreachable: %v", err)
	}
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}
	return NewStore(client, bucket, t.Name()+"/")
}

func TestIntegration_Store(t *testing.T) {
	store := newIntegrationStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, "idx/a.vf")
	require.NoError(t, err)
	_, err = w.Write([]byte("trees and leaves"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, store.Put(ctx, "idx/b.vf", []byte("postings")))

	names, err := store.List(ctx, "idx/")
	require.NoError(t, err)
	assert.Equal(t, []string{"idx/a.vf", "idx/b.vf"}, names)

	b, err := store.Open(ctx, "idx/a.vf")
	require.NoError(t, err)
	assert.Equal(t, int64(16), b.Size())
	buf := make([]byte, 6)
	_, err = b.ReadAt(ctx, buf, 10)
	require.NoError(t, err)
	assert.Equal(t, "leaves", string(buf))

	aborted, err := store.Create(ctx, "idx/c.vf")
	require.NoError(t, err)
	_, _ = aborted.Write([]byte("half"))
	require.NoError(t, blobstore.Abort(aborted))

	for _, name := range []string{"idx/a.vf", "idx/b.vf", "idx/c.vf"} {
		require.NoError(t, store.Delete(ctx, name))
		_, err = store.Open(ctx, name)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	}
}
