package blobstore

import (
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrAborted is what an upload function reads once its PipeWriter is aborted.
var ErrAborted = errors.New("blobstore: write aborted")

// PipeWriter turns an upload call that consumes an io.Reader into a
// WritableBlob. The upload runs in its own goroutine and reads whatever is
// written; Close waits for it and returns its error.
type PipeWriter struct {
	pw *io.PipeWriter
	g  errgroup.Group

	once sync.Once
	err  error
}

var _ Aborter = (*PipeWriter)(nil)

// NewPipeWriter starts upload and returns the writer feeding it.
func NewPipeWriter(upload func(r io.Reader) error) *PipeWriter {
	pr, pw := io.Pipe()
	w := &PipeWriter{pw: pw}
	w.g.Go(func() error {
		err := upload(pr)
		// Unblock a writer stuck in Write when the upload fails early.
		_ = pr.CloseWithError(err)
		return err
	})
	return w
}

func (w *PipeWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

// Sync does nothing; the upload commits on Close.
func (w *PipeWriter) Sync() error { return nil }

func (w *PipeWriter) Close() error {
	w.finish(nil)
	return w.err
}

// Abort discards the upload. It never reports the upload's own error.
func (w *PipeWriter) Abort() error {
	w.finish(ErrAborted)
	return nil
}

func (w *PipeWriter) finish(cause error) {
	w.once.Do(func() {
		if cause != nil {
			_ = w.pw.CloseWithError(cause)
			_ = w.g.Wait()
			w.err = cause
			return
		}
		_ = w.pw.Close()
		w.err = w.g.Wait()
	})
}
