package persistence

import (
	"errors"
	"fmt"
	"math"
)

const (
	// SnapshotMagic identifies dump container files ("ANGS").
	SnapshotMagic = 0x414E4753
	// MagicNumber identifies embedded index streams ("ANGI").
	MagicNumber = 0x414E4749
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// Index types
	IndexTypeFlat = 1
	IndexTypeHNSW = 2
)

// Section kinds, in the order they appear in a dump container.
const (
	SectionManifest = 1
	SectionIndex    = 2
	SectionLabels   = 3
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidIndex   = errors.New("invalid index type")
	ErrInvalidSection = errors.New("invalid section")
)

// SnapshotHeader is the 64-byte header at the start of every dump container.
type SnapshotHeader struct {
	Magic        uint32 // 0x414E4753 ("ANGS")
	Version      uint32 // File format version
	IndexType    uint8  // 1=Flat, 2=HNSW
	Compression  uint8  // Compression applied to the index section
	Padding1     [2]byte
	VectorCount  uint64 // Total number of vectors
	Dimension    uint32 // Vector dimensionality
	SectionCount uint32 // Number of sections that follow
	Reserved     [36]byte
}

// FileHeader is the 64-byte header at the start of every index stream.
// The index type byte sits at offset 8 so loaders can dispatch on it.
type FileHeader struct {
	Magic       uint32 // 0x414E4749 ("ANGI")
	Version     uint32 // File format version
	IndexType   uint8  // 1=Flat, 2=HNSW
	Padding1    [3]byte
	VectorCount uint64 // Total number of vectors
	Dimension   uint32 // Vector dimensionality
	Checksum    uint32 // Reserved; container sections carry the checksums
	Reserved    [36]byte
}

// Bounds on header-declared shapes. Loaders size their vector arenas from
// the header before reading the stream, so declared values are checked
// rather than trusted.
const (
	// MaxHeaderDimension caps FileHeader.Dimension.
	MaxHeaderDimension = 1 << 20
	// MaxHeaderArenaBytes caps the vector arena a header may declare.
	MaxHeaderArenaBytes = 1 << 40
)

// ValidateShape rejects a header whose vector count or dimension declares
// an arena no writer in this package could have produced.
func (h *FileHeader) ValidateShape() error {
	if h.Dimension == 0 || h.Dimension > MaxHeaderDimension {
		return fmt.Errorf("%w: dimension %d out of range", ErrInvalidIndex, h.Dimension)
	}
	if h.VectorCount > math.MaxUint32 {
		return fmt.Errorf("%w: vector count %d not addressable", ErrInvalidIndex, h.VectorCount)
	}
	if h.VectorCount > MaxHeaderArenaBytes/(4*uint64(h.Dimension)) {
		return fmt.Errorf("%w: vector count %d too large for dimension %d", ErrInvalidIndex, h.VectorCount, h.Dimension)
	}
	return nil
}

// SectionHeader precedes every section payload in a dump container.
type SectionHeader struct {
	Kind     uint8
	Padding  [3]byte
	Size     uint64 // Payload size in bytes
	Checksum uint32 // CRC32 (IEEE) of the payload
}
