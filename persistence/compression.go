package persistence

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects how section payloads are stored.
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionLZ4                  // fast, modest ratio
	CompressionZSTD                 // slower, better ratio
)

var compressionNames = [...]string{
	CompressionNone: "none",
	CompressionLZ4:  "lz4",
	CompressionZSTD: "zstd",
}

func (c CompressionType) String() string {
	if c.Valid() {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

func (c CompressionType) Valid() bool { return int(c) < len(compressionNames) }

// A section is kept compressed only if that saves at least a tenth.
const minSavingsDivisor = 10

// One encoder and decoder serve every goroutine; EncodeAll and DecodeAll
// are safe for concurrent use.
var (
	zstdEncoder = sync.OnceValue(func() *zstd.Encoder {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(err)
		}
		return enc
	})
	zstdDecoder = sync.OnceValue(func() *zstd.Decoder {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecodeAllCapLimit(true))
		if err != nil {
			panic(err)
		}
		return dec
	})
)

// maxRatio bounds how many raw bytes one stored byte can inflate to.
func (c CompressionType) maxRatio() int64 {
	switch c {
	case CompressionLZ4:
		return 255
	case CompressionZSTD:
		// a 4-byte RLE block inflates to at most one 128 KiB block
		return (128 << 10) / 4
	default:
		return 1
	}
}

// compress returns the stored form of data, or nil when data should be
// written raw.
func compress(data []byte, c CompressionType) ([]byte, error) {
	if c == CompressionNone || len(data) == 0 {
		return nil, nil
	}

	var out []byte
	switch c {
	case CompressionLZ4:
		out = make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, out, nil)
		if err != nil {
			return nil, err
		}
		out = out[:n]
	case CompressionZSTD:
		out = zstdEncoder().EncodeAll(data, nil)
	default:
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, c)
	}

	// lz4 reports incompressible input as n == 0.
	if len(out) == 0 || len(data)-len(out) < len(data)/minSavingsDivisor {
		return nil, nil
	}
	return out, nil
}

// decompress expands payload, which must inflate to exactly rawLen bytes.
// Output beyond rawLen is never allocated.
func decompress(payload []byte, rawLen int, c CompressionType) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch c {
	case CompressionLZ4:
		raw = make([]byte, rawLen)
		var n int
		n, err = lz4.UncompressBlock(payload, raw)
		raw = raw[:max(n, 0)]
	case CompressionZSTD:
		raw, err = zstdDecoder().DecodeAll(payload, make([]byte, 0, rawLen))
	default:
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, c, err)
	}
	if len(raw) != rawLen {
		return nil, fmt.Errorf("%w: %s section inflates to %d bytes, header says %d", ErrCorrupt, c, len(raw), rawLen)
	}
	return raw, nil
}
