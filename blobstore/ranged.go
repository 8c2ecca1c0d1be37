package blobstore

import (
	"bytes"
	"context"
	"io"
)

// RangeFunc opens a reader over the inclusive byte range [first, last] of
// a remote object.
type RangeFunc func(ctx context.Context, first, last int64) (io.ReadCloser, error)

// RangedBlob serves a remote object of known size through ranged GETs.
// Each ReadAt costs one request; loading streams the file with a single
// ReadRange.
type RangedBlob struct {
	size  int64
	fetch RangeFunc
}

var _ Blob = (*RangedBlob)(nil)

func NewRangedBlob(size int64, fetch RangeFunc) *RangedBlob {
	return &RangedBlob{size: size, fetch: fetch}
}

func (b *RangedBlob) Size() int64  { return b.size }
func (b *RangedBlob) Close() error { return nil }

func (b *RangedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	avail := min(int64(len(p)), b.size-off)
	r, err := b.fetch(ctx, off, off+avail-1)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	n, err := io.ReadFull(r, p[:avail])
	if err == nil && avail < int64(len(p)) {
		err = io.EOF
	}
	return n, err
}

func (b *RangedBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= b.size {
		return nil, io.EOF
	}
	if length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.fetch(ctx, off, min(off+length, b.size)-1)
}
