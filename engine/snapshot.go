package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/hupe1980/anngo/codec"
	"github.com/hupe1980/anngo/index"
	"github.com/hupe1980/anngo/labels"
	"github.com/hupe1980/anngo/manifest"
	"github.com/hupe1980/anngo/persistence"
)

// maxSectionSize caps a single section payload. Anything larger in a header
// is treated as corruption rather than an allocation request.
const maxSectionSize = 1 << 40

func indexTypeByte(name string) (uint8, bool) {
	switch name {
	case IndexTypeFlat:
		return persistence.IndexTypeFlat, true
	case IndexTypeHNSW:
		return persistence.IndexTypeHNSW, true
	default:
		return 0, false
	}
}

// WriteSnapshot serializes the engine state as a dump container: a 64-byte
// header followed by checksummed manifest, index and label sections. Only the
// index section is compressed; the other two are small.
func (e *Engine) WriteSnapshot(w io.Writer, compression persistence.CompressionType) error {
	if e.idx.Len() == 0 {
		return Errf(StatusIndexEmpty, "cannot dump an empty index")
	}
	if !compression.Valid() {
		return Errf(StatusInvalidArgument, "unknown compression type %d", compression)
	}

	typeByte, ok := indexTypeByte(e.indexType)
	if !ok {
		return Errf(StatusUnsupportedIndexOperation, "index type %q cannot be dumped", e.indexType)
	}

	header := persistence.SnapshotHeader{
		Magic:        persistence.SnapshotMagic,
		Version:      persistence.Version,
		IndexType:    typeByte,
		Compression:  uint8(compression),
		VectorCount:  uint64(e.idx.Len()),
		Dimension:    uint32(e.cfg.Dim),
		SectionCount: 3,
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return WrapErr(StatusInternalError, err, "write snapshot header")
	}

	m := manifest.New(e.indexType, e.cfg.MetricType, e.cfg.Dim, e.idx.Len(), compression.String())
	manifestPayload, err := m.Encode(e.codec)
	if err != nil {
		return WrapErr(StatusInternalError, err, "encode manifest")
	}
	if err := writeSection(w, persistence.SectionManifest, manifestPayload); err != nil {
		return err
	}

	var indexBuf bytes.Buffer
	if _, err := e.idx.WriteTo(&indexBuf); err != nil {
		return WrapErr(StatusInternalError, err, "serialize index")
	}
	indexPayload, err := persistence.Compress(indexBuf.Bytes(), compression)
	if err != nil {
		return WrapErr(StatusInternalError, err, "compress index section")
	}
	if err := writeSection(w, persistence.SectionIndex, indexPayload); err != nil {
		return err
	}

	var labelBuf bytes.Buffer
	if _, err := e.labels.WriteTo(&labelBuf); err != nil {
		return WrapErr(StatusInternalError, err, "serialize labels")
	}
	return writeSection(w, persistence.SectionLabels, labelBuf.Bytes())
}

// LoadSnapshot reconstructs an engine from a dump container. The caller
// supplies the same index type and construction config used at dump time;
// mismatches against the embedded manifest fail with StatusInvalidBinary.
func LoadSnapshot(r io.Reader, indexType string, config []byte, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	opts.Limits = opts.Limits.withDefaults()

	cfg, err := ParseConfig(indexType, config, opts.Codec)
	if err != nil {
		return nil, err
	}
	typeByte, ok := indexTypeByte(indexType)
	if !ok {
		return nil, Errf(StatusUnsupportedIndex, "index type %q cannot be loaded", indexType)
	}

	var header persistence.SnapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, readErr(err, "snapshot header")
	}
	if header.Magic != persistence.SnapshotMagic {
		return nil, Errf(StatusInvalidBinary, "bad magic 0x%08x", header.Magic)
	}
	if header.Version != persistence.Version {
		return nil, Errf(StatusInvalidBinary, "unsupported format version 0x%08x", header.Version)
	}
	if header.IndexType != typeByte {
		return nil, Errf(StatusInvalidBinary, "dump holds index type %d, caller requested %q", header.IndexType, indexType)
	}
	compression := persistence.CompressionType(header.Compression)
	if !compression.Valid() {
		return nil, Errf(StatusInvalidBinary, "unknown compression type %d", header.Compression)
	}
	if header.SectionCount != 3 {
		return nil, Errf(StatusInvalidBinary, "expected 3 sections, header says %d", header.SectionCount)
	}

	manifestPayload, err := readSection(r, persistence.SectionManifest)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Decode(manifestPayload, opts.Codec)
	if err != nil {
		return nil, WrapErr(StatusInvalidBinary, err, "decode manifest")
	}
	if err := m.Validate(indexType, cfg.MetricType, cfg.Dim); err != nil {
		return nil, WrapErr(StatusInvalidBinary, err, "manifest mismatch")
	}

	indexPayload, err := readSection(r, persistence.SectionIndex)
	if err != nil {
		return nil, err
	}
	indexBytes, err := persistence.Decompress(indexPayload, compression)
	if err != nil {
		return nil, WrapErr(StatusInvalidBinary, err, "decompress index section")
	}
	idx, err := index.LoadBinary(bytes.NewReader(indexBytes))
	if err != nil {
		return nil, WrapErr(StatusInvalidBinary, err, "load index section")
	}

	labelPayload, err := readSection(r, persistence.SectionLabels)
	if err != nil {
		return nil, err
	}
	lm := labels.New()
	if _, err := lm.ReadFrom(bytes.NewReader(labelPayload)); err != nil {
		return nil, WrapErr(StatusInvalidBinary, err, "load label section")
	}

	if idx.Len() != int(m.Count) || lm.Len() != int(m.Count) {
		return nil, Errf(StatusInvalidBinary, "count mismatch: manifest %d, index %d, labels %d", m.Count, idx.Len(), lm.Len())
	}
	if idx.Dimension() != cfg.Dim {
		return nil, Errf(StatusInvalidBinary, "dump dim %d, config dim %d", idx.Dimension(), cfg.Dim)
	}

	return &Engine{
		indexType: indexType,
		cfg:       cfg,
		idx:       idx,
		labels:    lm,
		limits:    opts.Limits,
		codec:     opts.Codec,
		pool:      NewWorkerPool(opts.NumWorkers),
	}, nil
}

func writeSection(w io.Writer, kind uint8, payload []byte) error {
	header := persistence.SectionHeader{
		Kind:     kind,
		Size:     uint64(len(payload)),
		Checksum: persistence.ComputeChecksum(payload),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return WrapErr(StatusInternalError, err, "write section header")
	}
	if _, err := w.Write(payload); err != nil {
		return WrapErr(StatusInternalError, err, "write section payload")
	}
	return nil
}

func readSection(r io.Reader, wantKind uint8) ([]byte, error) {
	var header persistence.SectionHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, readErr(err, "section header")
	}
	if header.Kind != wantKind {
		return nil, Errf(StatusInvalidBinary, "expected section kind %d, got %d", wantKind, header.Kind)
	}
	if header.Size > maxSectionSize {
		return nil, Errf(StatusInvalidBinary, "section size %d is implausible", header.Size)
	}

	cr := persistence.NewChecksumReader(r)
	payload := make([]byte, header.Size)
	if _, err := io.ReadFull(cr, payload); err != nil {
		return nil, readErr(err, "section payload")
	}
	if err := cr.Verify(header.Checksum); err != nil {
		return nil, WrapErr(StatusInvalidBinary, err, "section %d", header.Kind)
	}
	return payload, nil
}

// readErr classifies a read failure: truncation means a damaged file, other
// I/O failures are read errors.
func readErr(err error, what string) *Error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return WrapErr(StatusInvalidBinary, err, "truncated %s", what)
	}
	return WrapErr(StatusReadError, err, "read %s", what)
}
