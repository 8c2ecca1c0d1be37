package blobstore

import (
	"bytes"
	"context"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in a map. Stored slices are never mutated, so
// readers share them without copying. It is mainly useful in tests and for
// shipping an index between goroutines.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

var _ BlobStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string]memBlob{}}
}

func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	b, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// Create buffers writes and publishes them on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memWriter{commit: func(data []byte) { m.set(name, data) }}, nil
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.set(name, data)
	return nil
}

// set stores a private copy of data.
func (m *MemoryStore) set(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = memBlob(append([]byte{}, data...))
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := slices.Sorted(maps.Keys(m.blobs))
	return slices.DeleteFunc(names, func(name string) bool {
		return !strings.HasPrefix(name, prefix)
	}), nil
}

// memBlob is an immutable stored blob. It implements Mappable.
type memBlob []byte

func (b memBlob) Size() int64            { return int64(len(b)) }
func (b memBlob) Close() error           { return nil }
func (b memBlob) Bytes() ([]byte, error) { return b, nil }

func (b memBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return bytes.NewReader(b).ReadAt(p, off)
}

func (b memBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= b.Size() {
		return nil, io.EOF
	}
	end := min(off+max(length, 0), b.Size())
	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

type memWriter struct {
	buf    bytes.Buffer
	commit func([]byte)
	done   bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memWriter) Sync() error { return nil }

func (w *memWriter) Close() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true
	w.commit(w.buf.Bytes())
	return nil
}

// Abort drops the buffer without publishing it.
func (w *memWriter) Abort() error {
	w.done = true
	w.buf = bytes.Buffer{}
	return nil
}
