package mmap

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
)

var (
	ErrClosed        = errors.New("mmap: mapping is closed")
	ErrInvalidSize   = errors.New("mmap: file too large to map")
	ErrInvalidOffset = errors.New("mmap: negative offset")
)

// AccessPattern is a paging hint for the whole mapping.
type AccessPattern uint8

const (
	AccessNormal     AccessPattern = iota // no particular order
	AccessSequential                      // front-to-back scan
	AccessRandom                          // scattered reads, no readahead
	AccessWillNeed                        // start reading ahead now
)

// Mapping is a read-only view of a file. The zero Mapping is an empty,
// open mapping.
type Mapping struct {
	data    []byte
	release func() error
	closed  atomic.Bool
}

// Open maps the file at path.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	// The mapping outlives the descriptor.
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	switch size := info.Size(); {
	case size == 0:
		return &Mapping{}, nil
	case size > math.MaxInt:
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, size)
	default:
		data, release, err := mapFile(f, int(size))
		if err != nil {
			return nil, fmt.Errorf("mmap %s: %w", path, err)
		}
		return &Mapping{data: data, release: release}, nil
	}
}

// Close unmaps the file. Later calls do nothing.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.release == nil {
		return nil
	}
	return m.release()
}

// Bytes returns the mapped file, or nil once closed. The slice must not be
// used after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

func (m *Mapping) Size() int { return len(m.data) }

func (m *Mapping) Advise(p AccessPattern) error {
	switch {
	case m.closed.Load():
		return ErrClosed
	case len(m.data) == 0:
		return nil
	}
	return advise(m.data, p)
}

// ReadAt implements io.ReaderAt over the mapped bytes.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	data := m.Bytes()
	switch {
	case m.closed.Load():
		return 0, ErrClosed
	case off < 0:
		return 0, ErrInvalidOffset
	case off >= int64(len(data)):
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
