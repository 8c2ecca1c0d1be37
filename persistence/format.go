package persistence

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies vecforest files (ASCII: "VFST").
	MagicNumber = 0x56465354
	// Version is the current file format version.
	Version = 1

	codecNameSize = 16
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrCorrupt        = errors.New("corrupt index file")
)

// SectionKind identifies a section payload.
type SectionKind uint8

const (
	sectionEnd SectionKind = iota
	SectionManifest
	SectionIDs
	SectionVectors
	SectionTags
	SectionPostings
	SectionForest
)

func (k SectionKind) String() string {
	switch k {
	case SectionManifest:
		return "manifest"
	case SectionIDs:
		return "ids"
	case SectionVectors:
		return "vectors"
	case SectionTags:
		return "tags"
	case SectionPostings:
		return "postings"
	case SectionForest:
		return "forest"
	default:
		return fmt.Sprintf("section(%d)", uint8(k))
	}
}

// FileHeader is the fixed-size header at the start of every index file.
type FileHeader struct {
	Magic       uint32
	Version     uint16
	Metric      uint8
	Compression CompressionType
	Dimension   uint32
	NTags       uint32
	NItems      uint64
	NTrees      uint32
	LeafSize    uint32
	Seed        uint64
	Codec       [codecNameSize]byte
}

// SetCodec stores the manifest codec name.
func (h *FileHeader) SetCodec(name string) error {
	if len(name) > codecNameSize {
		return fmt.Errorf("codec name %q longer than %d bytes", name, codecNameSize)
	}
	h.Codec = [codecNameSize]byte{}
	copy(h.Codec[:], name)
	return nil
}

// CodecName returns the manifest codec name.
func (h *FileHeader) CodecName() string {
	n := 0
	for n < len(h.Codec) && h.Codec[n] != 0 {
		n++
	}
	return string(h.Codec[:n])
}
