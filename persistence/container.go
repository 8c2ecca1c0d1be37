package persistence

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxSectionSize bounds a single section; larger frames are rejected as corrupt.
const MaxSectionSize = 1<<32 - 1

// Writer streams a file: header, sections, then the checksum trailer.
type Writer struct {
	bw          *bufio.Writer
	cw          *ChecksumWriter
	compression CompressionType
	written     int64
	closed      bool
}

// NewWriter creates a writer compressing sections with c.
func NewWriter(w io.Writer, c CompressionType) *Writer {
	bw := bufio.NewWriterSize(w, 256*1024)
	return &Writer{
		bw:          bw,
		cw:          NewChecksumWriter(bw),
		compression: c,
	}
}

// WriteHeader writes the file header. Magic, version and compression are
// filled in by the writer.
func (w *Writer) WriteHeader(h *FileHeader) error {
	if !w.compression.Valid() {
		return fmt.Errorf("unknown compression %d", w.compression)
	}
	h.Magic = MagicNumber
	h.Version = Version
	h.Compression = w.compression
	if err := binary.Write(w.cw, binary.LittleEndian, h); err != nil {
		return err
	}
	w.written += int64(binary.Size(h))
	return nil
}

// WriteSection frames and writes one section payload.
func (w *Writer) WriteSection(kind SectionKind, data []byte) error {
	if kind == sectionEnd {
		return errors.New("reserved section kind")
	}
	if uint64(len(data)) > MaxSectionSize {
		return fmt.Errorf("section %v too large: %d bytes", kind, len(data))
	}

	packed, err := compress(data, w.compression)
	if err != nil {
		return fmt.Errorf("compress %v: %w", kind, err)
	}

	payload := data
	var frame [9]byte
	frame[0] = byte(kind)
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(data)))
	if packed != nil {
		payload = packed
		binary.LittleEndian.PutUint32(frame[5:], uint32(len(packed)))
	}

	if _, err := w.cw.Write(frame[:]); err != nil {
		return err
	}
	if _, err := w.cw.Write(payload); err != nil {
		return err
	}
	w.written += int64(len(frame) + len(payload))
	return nil
}

// Close writes the end marker and trailer and flushes. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.cw.Write([]byte{byte(sectionEnd)}); err != nil {
		return err
	}
	var trailer [8]byte
	binary.LittleEndian.PutUint32(trailer[0:], w.cw.Sum())
	binary.LittleEndian.PutUint32(trailer[4:], MagicNumber)
	if _, err := w.bw.Write(trailer[:]); err != nil {
		return err
	}
	w.written += 1 + int64(len(trailer))
	return w.bw.Flush()
}

// BytesWritten returns the number of bytes produced so far.
func (w *Writer) BytesWritten() int64 {
	return w.written
}

// Budget accounts the memory held by decoded sections.
type Budget interface {
	AcquireMemory(n int64) error
	ReleaseMemory(n int64)
}

type unlimited struct{}

func (unlimited) AcquireMemory(int64) error { return nil }
func (unlimited) ReleaseMemory(int64)       {}

// File is a fully read and verified index file.
type File struct {
	Header   FileHeader
	Sections map[SectionKind][]byte
	Size     int64

	budget   Budget
	reserved int64
}

// Read reads and verifies a complete file from r. Every decoded section is
// reserved against b before its buffer is allocated; the reservation is
// held until Release. A nil b is unlimited.
func Read(r io.Reader, b Budget) (_ *File, err error) {
	if b == nil {
		b = unlimited{}
	}
	br := bufio.NewReaderSize(r, 256*1024)
	cr := NewChecksumReader(br)

	f := &File{Sections: make(map[SectionKind][]byte), budget: b}
	defer func() {
		if err != nil {
			f.Release()
		}
	}()

	if err := binary.Read(cr, binary.LittleEndian, &f.Header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if f.Header.Magic != MagicNumber {
		return nil, ErrInvalidMagic
	}
	if f.Header.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, f.Header.Version)
	}
	if !f.Header.Compression.Valid() {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, f.Header.Compression)
	}
	f.Size = int64(binary.Size(&f.Header))

	for {
		var kind [1]byte
		if _, err := io.ReadFull(cr, kind[:]); err != nil {
			return nil, fmt.Errorf("%w: section kind: %v", ErrCorrupt, err)
		}
		f.Size++
		if SectionKind(kind[0]) == sectionEnd {
			break
		}

		data, n, err := f.readSection(cr)
		if err != nil {
			return nil, fmt.Errorf("section %v: %w", SectionKind(kind[0]), err)
		}
		if _, dup := f.Sections[SectionKind(kind[0])]; dup {
			return nil, fmt.Errorf("%w: duplicate section %v", ErrCorrupt, SectionKind(kind[0]))
		}
		f.Sections[SectionKind(kind[0])] = data
		f.Size += n
	}

	var trailer [8]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil {
		return nil, fmt.Errorf("%w: trailer: %v", ErrCorrupt, err)
	}
	f.Size += int64(len(trailer))
	if binary.LittleEndian.Uint32(trailer[4:]) != MagicNumber {
		return nil, fmt.Errorf("%w: trailer magic", ErrCorrupt)
	}
	if err := cr.Verify(binary.LittleEndian.Uint32(trailer[0:])); err != nil {
		return nil, err
	}
	return f, nil
}

// Release returns the memory reserved for the sections. Further calls are no-ops.
func (f *File) Release() {
	f.budget.ReleaseMemory(f.reserved)
	f.reserved = 0
}

func (f *File) reserve(n int64) error {
	if err := f.budget.AcquireMemory(n); err != nil {
		return err
	}
	f.reserved += n
	return nil
}

func (f *File) readSection(r io.Reader) ([]byte, int64, error) {
	var frame [8]byte
	if _, err := io.ReadFull(r, frame[:]); err != nil {
		return nil, 0, fmt.Errorf("%w: frame: %v", ErrCorrupt, err)
	}
	rawLen := int64(binary.LittleEndian.Uint32(frame[0:]))
	storedLen := int64(binary.LittleEndian.Uint32(frame[4:]))

	n := int64(len(frame))
	if storedLen == 0 {
		if err := f.reserve(rawLen); err != nil {
			return nil, 0, err
		}
		data, err := readPayload(r, rawLen)
		if err != nil {
			return nil, 0, err
		}
		return data, n + rawLen, nil
	}

	c := f.Header.Compression
	if c == CompressionNone {
		return nil, 0, fmt.Errorf("%w: compressed section in uncompressed file", ErrCorrupt)
	}
	if rawLen > storedLen*c.maxRatio() {
		return nil, 0, fmt.Errorf("%w: %d %s bytes cannot inflate to %d", ErrCorrupt, storedLen, c, rawLen)
	}
	payload, err := readPayload(r, storedLen)
	if err != nil {
		return nil, 0, err
	}
	if err := f.reserve(rawLen); err != nil {
		return nil, 0, err
	}
	data, err := decompress(payload, int(rawLen), c)
	if err != nil {
		return nil, 0, err
	}
	return data, n + storedLen, nil
}

// payloadChunk caps the up-front allocation for one payload.
const payloadChunk = 1 << 20

// readPayload reads exactly n bytes. The buffer grows with the bytes that
// actually arrive, so a frame cannot claim memory its payload does not back.
func readPayload(r io.Reader, n int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(min(n, payloadChunk)))
	if _, err := io.CopyN(&buf, r, n); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrCorrupt, err)
	}
	return buf.Bytes(), nil
}

// Require returns the named section or ErrCorrupt when it is missing.
func (f *File) Require(kind SectionKind) ([]byte, error) {
	data, ok := f.Sections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: missing %v section", ErrCorrupt, kind)
	}
	return data, nil
}
