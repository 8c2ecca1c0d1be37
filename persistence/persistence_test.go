package persistence

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecforest/internal/resource"
)

func writeFile(t *testing.T, c CompressionType, sections map[SectionKind][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, c)

	h := FileHeader{Metric: 3, Dimension: 2, NTags: 10, NItems: 3, NTrees: 10, LeafSize: 16, Seed: 42}
	require.NoError(t, h.SetCodec("go-json"))
	require.NoError(t, w.WriteHeader(&h))

	for _, k := range []SectionKind{SectionManifest, SectionIDs, SectionVectors, SectionTags, SectionPostings, SectionForest} {
		if data, ok := sections[k]; ok {
			require.NoError(t, w.WriteSection(k, data))
		}
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, int64(buf.Len()), w.BytesWritten())
	return buf.Bytes()
}

func sampleSections() map[SectionKind][]byte {
	return map[SectionKind][]byte{
		SectionManifest: []byte(`{"metric":"dot"}`),
		SectionIDs:      {0, 0, 0, 0, 1, 0, 0, 0},
		SectionVectors:  bytes.Repeat([]byte{1, 2, 3, 4}, 4096),
		SectionForest:   {},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			in := sampleSections()
			b := writeFile(t, c, in)

			f, err := Read(bytes.NewReader(b), nil)
			require.NoError(t, err)

			assert.Equal(t, c, f.Header.Compression)
			assert.Equal(t, "go-json", f.Header.CodecName())
			assert.Equal(t, uint32(2), f.Header.Dimension)
			assert.Equal(t, uint64(42), f.Header.Seed)
			assert.Equal(t, int64(len(b)), f.Size)
			require.Len(t, f.Sections, len(in))
			for k, v := range in {
				got, err := f.Require(k)
				require.NoError(t, err)
				assert.Equal(t, len(v), len(got), k.String())
				assert.True(t, bytes.Equal(v, got), k.String())
			}

			_, err = f.Require(SectionTags)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	in := sampleSections()
	raw := writeFile(t, CompressionNone, in)
	lz := writeFile(t, CompressionLZ4, in)
	zs := writeFile(t, CompressionZSTD, in)

	assert.Less(t, len(lz), len(raw))
	assert.Less(t, len(zs), len(raw))
}

func TestRead_Corruption(t *testing.T) {
	b := writeFile(t, CompressionZSTD, sampleSections())

	t.Run("magic", func(t *testing.T) {
		bad := bytes.Clone(b)
		bad[0] ^= 0xff
		_, err := Read(bytes.NewReader(bad), nil)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("version", func(t *testing.T) {
		bad := bytes.Clone(b)
		bad[4] = 99
		_, err := Read(bytes.NewReader(bad), nil)
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Read(bytes.NewReader(b[:len(b)-20]), nil)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("checksum", func(t *testing.T) {
		bad := bytes.Clone(b)
		bad[len(bad)-8] ^= 0x01
		_, err := Read(bytes.NewReader(bad), nil)
		assert.ErrorIs(t, err, ErrCorrupt)
		assert.True(t, IsChecksumMismatch(err))
	})

	t.Run("payload bit flip", func(t *testing.T) {
		bad := bytes.Clone(b)
		// first byte of the manifest payload (stored raw: too small to compress)
		hdr := 4 + 2 + 1 + 1 + 4 + 4 + 8 + 4 + 4 + 8 + codecNameSize
		bad[hdr+9] ^= 0x20
		_, err := Read(bytes.NewReader(bad), nil)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Read(bytes.NewReader(nil), nil)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestWriter_Rejects(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, CompressionType(9))
	assert.Error(t, w.WriteHeader(&FileHeader{}))

	w = NewWriter(&buf, CompressionNone)
	assert.Error(t, w.WriteSection(sectionEnd, nil))

	var h FileHeader
	assert.Error(t, h.SetCodec("a-very-long-codec-name"))
}

func TestChecksumReaderWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	_, err := cw.Write([]byte("hello forest"))
	require.NoError(t, err)

	cr := NewChecksumReader(bytes.NewReader(buf.Bytes()))
	out := make([]byte, buf.Len())
	_, err = cr.Read(out)
	require.NoError(t, err)
	require.NoError(t, cr.Verify(cw.Sum()))

	err = cr.Verify(cw.Sum() + 1)
	var mismatch *ChecksumMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestSectionKindString(t *testing.T) {
	assert.Equal(t, "forest", SectionForest.String())
	assert.Equal(t, "section(77)", SectionKind(77).String())
	assert.Equal(t, "zstd", CompressionZSTD.String())
}

func TestDecompressRejectsLengthMismatch(t *testing.T) {
	raw := bytes.Repeat([]byte("leaf"), 256)
	for _, c := range []CompressionType{CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			packed, err := compress(raw, c)
			require.NoError(t, err)
			require.NotNil(t, packed)

			got, err := decompress(packed, len(raw), c)
			require.NoError(t, err)
			assert.Equal(t, raw, got)

			_, err = decompress(packed, len(raw)-1, c)
			assert.ErrorIs(t, err, ErrCorrupt)
			_, err = decompress(packed[:len(packed)/2], len(raw), c)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

// frameOnly is a valid header followed by one ids frame and whatever
// payload bytes are given, with no end marker or trailer.
func frameOnly(t *testing.T, c CompressionType, rawLen, storedLen uint32, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	h := FileHeader{Magic: MagicNumber, Version: Version, Compression: c, Dimension: 2}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))
	buf.WriteByte(byte(SectionIDs))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, [2]uint32{rawLen, storedLen}))
	buf.Write(payload)
	return buf.Bytes()
}

func TestRead_FrameLengthsDoNotDriveAllocation(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"raw length beyond stream", frameOnly(t, CompressionNone, 0xFFFFFFF0, 0, nil)},
		{"lz4 length beyond ratio", frameOnly(t, CompressionLZ4, 0xFFFFFFF0, 16, make([]byte, 16))},
		{"zstd length beyond ratio", frameOnly(t, CompressionZSTD, 0xFFFFFFF0, 16, make([]byte, 16))},
		{"zstd length beyond stream", frameOnly(t, CompressionZSTD, 1<<30, 1<<20, make([]byte, 8))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := Read(bytes.NewReader(tt.data), nil)
			runtime.ReadMemStats(&after)

			assert.ErrorIs(t, err, ErrCorrupt)
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
		})
	}
	assert.Len(t, tests[0].data, 65)
}

func TestRead_Budget(t *testing.T) {
	in := sampleSections()
	var raw int64
	for _, data := range in {
		raw += int64(len(data))
	}

	for _, c := range []CompressionType{CompressionNone, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			b := writeFile(t, c, in)

			rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
			f, err := Read(bytes.NewReader(b), rc)
			require.NoError(t, err)
			assert.Equal(t, raw, rc.MemoryUsage())
			f.Release()
			f.Release()
			assert.Zero(t, rc.MemoryUsage())

			tight := resource.NewController(resource.Config{MemoryLimitBytes: raw - 1})
			_, err = Read(bytes.NewReader(b), tight)
			assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
			assert.Zero(t, tight.MemoryUsage(), "a failed read releases what it reserved")
		})
	}
}
