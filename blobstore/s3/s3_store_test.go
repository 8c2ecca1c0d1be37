package s3_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecforest"
	"github.com/hupe1980/vecforest/blobstore"
	"github.com/hupe1980/vecforest/blobstore/s3"
	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/testutil"
)

// TestIntegration_IndexRoundTrip needs AWS credentials and S3_BUCKET.
func TestIntegration_IndexRoundTrip(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}

	ctx := context.Background()
	store, err := s3.New(ctx, bucket, s3.WithPrefix(fmt.Sprintf("vecforest-it-%d/", time.Now().UnixNano())))
	require.NoError(t, err)

	rng := testutil.NewRNG(11)
	vecs := rng.UnitVectors(500, 24)
	tags := rng.TagSets(len(vecs), 16, 3)

	idx, err := vecforest.New(24, distance.MetricAngular, 16)
	require.NoError(t, err)
	for i, v := range vecs {
		require.NoError(t, idx.AddItemWithTags(ctx, uint32(i), v, tags[i]))
	}
	require.NoError(t, idx.Build(ctx, 8))

	// Large enough to take the multipart path.
	require.NoError(t, idx.SaveTo(ctx, store, "products.vf"))
	t.Cleanup(func() { _ = store.Delete(ctx, "products.vf") })

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"products.vf"}, names)

	loaded, err := vecforest.LoadFrom(ctx, store, "products.vf")
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, idx.BuildID(), loaded.BuildID())
	for _, q := range []uint32{0, 17, 499} {
		want, err := idx.NNsByItemAndTags(ctx, q, tags[q], 10)
		require.NoError(t, err)
		got, err := loaded.NNsByItemAndTags(ctx, q, tags[q], 10)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = store.Open(ctx, "missing.vf")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
