package vecforest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/vecforest/blobstore"
	"github.com/hupe1980/vecforest/codec"
	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/conv"
	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/resource"
	"github.com/hupe1980/vecforest/internal/space"
	"github.com/hupe1980/vecforest/internal/vectorstore"
	"github.com/hupe1980/vecforest/persistence"
)

// manifest describes a saved build. It repeats the header fields so a file
// can be inspected without a binary parser.
type manifest struct {
	BuildID   string    `json:"build_id"`
	Metric    string    `json:"metric"`
	Dimension int       `json:"dimension"`
	NTags     int       `json:"n_tags"`
	NItems    int       `json:"n_items"`
	NTrees    int       `json:"n_trees"`
	LeafSize  int       `json:"leaf_size"`
	Seed      uint64    `json:"seed"`
	SavedAt   time.Time `json:"saved_at"`
}

// WriteTo writes the built index to w. It implements io.WriterTo.
func (idx *Index) WriteTo(w io.Writer) (n int64, err error) {
	ctx := context.Background()
	start := time.Now()
	defer func() {
		idx.opts.metricsCollector.RecordSave(n, time.Since(start), err)
		idx.opts.logger.LogSave(ctx, "", n, err)
	}()
	return idx.writeTo(ctx, w)
}

// Save writes the built index to the file at path. The file is replaced
// atomically.
func (idx *Index) Save(ctx context.Context, path string) error {
	return idx.SaveTo(ctx, blobstore.NewLocalStore(filepath.Dir(path)), filepath.Base(path))
}

// SaveTo writes the built index to store under name. A failed save leaves
// no blob behind where the store can discard partial writes.
func (idx *Index) SaveTo(ctx context.Context, store blobstore.BlobStore, name string) (err error) {
	start := time.Now()
	var n int64
	defer func() {
		idx.opts.metricsCollector.RecordSave(n, time.Since(start), err)
		idx.opts.logger.LogSave(ctx, name, n, err)
	}()

	if idx.closed.Load() {
		return ErrClosed
	}
	if idx.state.Load() == nil {
		return ErrNotBuilt
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return translateError(err)
	}
	n, err = idx.writeTo(ctx, w)
	if err != nil {
		_ = blobstore.Abort(w)
		return err
	}
	return w.Close()
}

func (idx *Index) writeTo(ctx context.Context, w io.Writer) (int64, error) {
	if idx.closed.Load() {
		return 0, ErrClosed
	}
	b := idx.state.Load()
	if b == nil {
		return 0, ErrNotBuilt
	}

	sec, err := b.store.Encode()
	if err != nil {
		return 0, err
	}
	arena, err := b.forest.MarshalBinary()
	if err != nil {
		return 0, err
	}

	m := manifest{
		BuildID:   b.id.String(),
		Metric:    idx.metric.String(),
		Dimension: idx.dim,
		NTags:     idx.nTags,
		NItems:    b.store.Count(),
		NTrees:    b.trees,
		LeafSize:  b.leafSize,
		Seed:      b.seed,
		SavedAt:   time.Now().UTC(),
	}
	mb, err := idx.opts.codec.Marshal(&m)
	if err != nil {
		return 0, fmt.Errorf("encode manifest: %w", err)
	}

	hdr, err := newHeader(m, idx.metric)
	if err != nil {
		return 0, err
	}
	if err := hdr.SetCodec(idx.opts.codec.Name()); err != nil {
		return 0, err
	}

	pw := persistence.NewWriter(resource.NewRateLimitedWriter(ctx, w, idx.rc), idx.opts.compression)
	if err := pw.WriteHeader(&hdr); err != nil {
		return 0, err
	}
	for _, s := range []struct {
		kind persistence.SectionKind
		data []byte
	}{
		{persistence.SectionManifest, mb},
		{persistence.SectionIDs, sec.IDs},
		{persistence.SectionVectors, sec.Vectors},
		{persistence.SectionTags, sec.Tags},
		{persistence.SectionPostings, sec.Postings},
		{persistence.SectionForest, arena},
	} {
		if err := pw.WriteSection(s.kind, s.data); err != nil {
			return pw.BytesWritten(), err
		}
	}
	if err := pw.Close(); err != nil {
		return pw.BytesWritten(), err
	}
	return pw.BytesWritten(), nil
}

func newHeader(m manifest, metric distance.Metric) (persistence.FileHeader, error) {
	h := persistence.FileHeader{Metric: uint8(metric), Seed: m.Seed}
	for _, f := range []struct {
		dst *uint32
		v   int
	}{
		{&h.Dimension, m.Dimension},
		{&h.NTags, m.NTags},
		{&h.NTrees, m.NTrees},
		{&h.LeafSize, m.LeafSize},
	} {
		v, err := conv.IntToUint32(f.v)
		if err != nil {
			return h, err
		}
		*f.dst = v
	}
	items, err := conv.IntToUint64(m.NItems)
	if err != nil {
		return h, err
	}
	h.NItems = items
	return h, nil
}

// Load reads an index saved with Save. The returned index is built.
func Load(ctx context.Context, path string, optFns ...Option) (*Index, error) {
	return LoadFrom(ctx, blobstore.NewLocalStore(filepath.Dir(path)), filepath.Base(path), optFns...)
}

// LoadFrom reads an index saved with SaveTo. The returned index is built.
// Options configure the loaded index; build parameters come from the file.
func LoadFrom(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*Index, error) {
	opts, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, translateError(err)
	}
	defer blob.Close()

	r, err := blobstore.Stream(ctx, blob)
	if err != nil {
		return nil, translateError(err)
	}
	defer r.Close()

	return load(ctx, r, name, opts)
}

// ReadIndex reads an index written by WriteTo. The returned index is built.
func ReadIndex(ctx context.Context, r io.Reader, optFns ...Option) (*Index, error) {
	opts, err := applyOptions(optFns)
	if err != nil {
		return nil, err
	}
	return load(ctx, r, "", opts)
}

func load(ctx context.Context, r io.Reader, name string, opts options) (idx *Index, err error) {
	start := time.Now()
	var (
		size  int64
		items int
	)
	defer func() {
		opts.metricsCollector.RecordLoad(size, time.Since(start), err)
		opts.logger.LogLoad(ctx, name, items, err)
	}()

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   opts.memoryLimit,
		MaxWorkers:         int64(opts.workers),
		IOLimitBytesPerSec: opts.ioRate,
	})

	file, err := persistence.Read(resource.NewRateLimitedReader(ctx, r, rc), rc)
	if err != nil {
		return nil, translateError(err)
	}
	defer file.Release()
	size = file.Size

	m, err := readManifest(file)
	if err != nil {
		return nil, err
	}
	metric := distance.Metric(file.Header.Metric)
	sp, err := space.New(metric, m.Dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	buildID, err := uuid.Parse(m.BuildID)
	if err != nil {
		return nil, fmt.Errorf("%w: build id: %w", ErrCorrupt, err)
	}

	var sec vectorstore.Sections
	for _, s := range []struct {
		kind persistence.SectionKind
		dst  *[]byte
	}{
		{persistence.SectionIDs, &sec.IDs},
		{persistence.SectionVectors, &sec.Vectors},
		{persistence.SectionTags, &sec.Tags},
		{persistence.SectionPostings, &sec.Postings},
	} {
		if *s.dst, err = file.Require(s.kind); err != nil {
			return nil, translateError(err)
		}
	}
	if int64(len(sec.Postings)) < 4*int64(m.NTags) {
		return nil, fmt.Errorf("%w: postings section too short for %d tags", ErrCorrupt, m.NTags)
	}
	store, err := vectorstore.Decode(m.Dimension, m.NTags, sec)
	if err != nil {
		return nil, translateError(err)
	}
	if store.Count() != m.NItems {
		return nil, fmt.Errorf("%w: %d items, header says %d", ErrCorrupt, store.Count(), m.NItems)
	}

	arena, err := file.Require(persistence.SectionForest)
	if err != nil {
		return nil, translateError(err)
	}
	f, err := forest.Unmarshal(arena, sp)
	if err != nil {
		return nil, translateError(err)
	}
	if f.NumTrees() != m.NTrees {
		return nil, fmt.Errorf("%w: %d trees, header says %d", ErrCorrupt, f.NumTrees(), m.NTrees)
	}
	var unknown error
	f.ForEachItem(func(id uint32) bool {
		if !store.Contains(id) {
			unknown = fmt.Errorf("%w: forest references unknown item %d", ErrCorrupt, id)
			return false
		}
		return true
	})
	if unknown != nil {
		return nil, unknown
	}

	// the decoded store and arena take over from the section buffers
	file.Release()
	storeBytes := store.SizeBytes()
	if err := rc.AcquireMemory(storeBytes); err != nil {
		return nil, translateError(err)
	}
	arenaBytes := f.SizeBytes()
	if err := rc.AcquireMemory(arenaBytes); err != nil {
		rc.ReleaseMemory(storeBytes)
		return nil, translateError(err)
	}
	store.Freeze()

	opts.seed = m.Seed
	opts.leafSize = m.LeafSize
	idx = &Index{
		dim:        m.Dimension,
		metric:     metric,
		nTags:      m.NTags,
		sp:         sp,
		opts:       opts,
		rc:         rc,
		store:      store,
		storeBytes: storeBytes,
	}
	idx.state.Store(&built{
		forest:     f,
		store:      store,
		id:         buildID,
		trees:      m.NTrees,
		leafSize:   m.LeafSize,
		seed:       m.Seed,
		arenaBytes: arenaBytes,
	})
	items = m.NItems
	return idx, nil
}

// readManifest decodes the manifest with the codec named in the header and
// checks it against the header.
func readManifest(file *persistence.File) (manifest, error) {
	var m manifest
	h := file.Header

	c, ok := codec.ByName(h.CodecName())
	if !ok {
		return m, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, h.CodecName())
	}
	mb, err := file.Require(persistence.SectionManifest)
	if err != nil {
		return m, translateError(err)
	}
	if err := c.Unmarshal(mb, &m); err != nil {
		return m, fmt.Errorf("%w: manifest: %w", ErrCorrupt, err)
	}

	metric := distance.Metric(h.Metric)
	if !metric.Valid() || m.Metric != metric.String() {
		return m, fmt.Errorf("%w: metric %d (manifest %q)", ErrCorrupt, h.Metric, m.Metric)
	}

	dim, err := conv.Uint32ToInt(h.Dimension)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	nTags, err := conv.Uint32ToInt(h.NTags)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	nItems, err := conv.Uint64ToInt(h.NItems)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	nTrees, err := conv.Uint32ToInt(h.NTrees)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	leafSize, err := conv.Uint32ToInt(h.LeafSize)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	switch {
	case dim < 1 || nTrees < 1 || leafSize < 1:
		return m, fmt.Errorf("%w: dimension %d, trees %d, leaf size %d", ErrCorrupt, dim, nTrees, leafSize)
	case m.Dimension != dim, m.NTags != nTags, m.NItems != nItems,
		m.NTrees != nTrees, m.LeafSize != leafSize, m.Seed != h.Seed:
		return m, fmt.Errorf("%w: manifest disagrees with header", ErrCorrupt)
	}
	return m, nil
}
