package persistence

import (
	"errors"
	"fmt"
	"hash"
	"io"

	ihash "github.com/hupe1980/vecforest/internal/hash"
)

// Index files end in a CRC32C of every preceding byte. It catches torn
// writes and bit rot, not tampering.

// ChecksumWriter forwards writes to the wrapped writer and folds them into
// a running CRC32C.
type ChecksumWriter struct {
	io.Writer
	h hash.Hash32
}

func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	h := ihash.NewCRC32C()
	return &ChecksumWriter{Writer: io.MultiWriter(h, w), h: h}
}

// Sum is the checksum of everything written so far.
func (w *ChecksumWriter) Sum() uint32 { return w.h.Sum32() }

// ChecksumReader folds every byte read through it into a running CRC32C.
type ChecksumReader struct {
	io.Reader
	h hash.Hash32
}

func NewChecksumReader(r io.Reader) *ChecksumReader {
	h := ihash.NewCRC32C()
	return &ChecksumReader{Reader: io.TeeReader(r, h), h: h}
}

// Sum is the checksum of everything read so far.
func (r *ChecksumReader) Sum() uint32 { return r.h.Sum32() }

// Verify compares the bytes read so far against want.
func (r *ChecksumReader) Verify(want uint32) error {
	if got := r.Sum(); got != want {
		return &ChecksumMismatchError{Expected: want, Actual: got}
	}
	return nil
}

// ChecksumMismatchError reports a trailer that disagrees with the content.
// It matches ErrCorrupt under errors.Is.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("persistence: crc32c %#08x does not match trailer %#08x", e.Actual, e.Expected)
}

func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrCorrupt }

// IsChecksumMismatch reports whether err wraps a *ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	var m *ChecksumMismatchError
	return errors.As(err, &m)
}
