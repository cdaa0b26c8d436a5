package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/anngo/persistence"
)

// BinaryLoader constructs an index instance by reading its binary stream
// from r, positioned at the start of the stream (header included).
type BinaryLoader func(r io.Reader) (Index, error)

var (
	binaryLoaderMu sync.RWMutex
	binaryLoaders  = map[uint8]BinaryLoader{}
)

// RegisterBinaryLoader registers a loader for an on-disk index type.
//
// Index implementations call this from an init() function, the same way
// database/sql drivers register themselves.
func RegisterBinaryLoader(indexType uint8, loader BinaryLoader) {
	binaryLoaderMu.Lock()
	defer binaryLoaderMu.Unlock()
	binaryLoaders[indexType] = loader
}

// LoadBinary reads an index from r.
//
// It peeks the 64-byte stream header to detect the index type, then
// dispatches to the registered loader. On success r is positioned
// immediately after the index bytes.
func LoadBinary(r io.Reader) (Index, error) {
	var header [64]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != persistence.MagicNumber {
		return nil, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", persistence.ErrInvalidMagic, uint32(persistence.MagicNumber), magic)
	}

	indexType := header[8]

	binaryLoaderMu.RLock()
	loader, ok := binaryLoaders[indexType]
	binaryLoaderMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown index type %d", persistence.ErrInvalidIndex, indexType)
	}

	return loader(io.MultiReader(bytes.NewReader(header[:]), r))
}
