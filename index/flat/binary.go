package flat

import (
	"fmt"
	"io"

	"github.com/hupe1980/anngo/index"
	"github.com/hupe1980/anngo/persistence"
)

func init() {
	index.RegisterBinaryLoader(persistence.IndexTypeFlat, loadBinary)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteTo serializes the index, header included, to w. The stream is the
// 64-byte header, a u32 distance type, and the raw vector arena.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := persistence.NewBinaryIndexWriter(cw)

	if err := bw.WriteHeader(&persistence.FileHeader{
		IndexType:   persistence.IndexTypeFlat,
		VectorCount: uint64(f.count),
		Dimension:   uint32(f.opts.Dimension),
	}); err != nil {
		return cw.n, err
	}

	if err := bw.WriteUint32(uint32(f.opts.DistanceType)); err != nil {
		return cw.n, err
	}
	if err := bw.WriteFloat32Slice(f.vectors); err != nil {
		return cw.n, err
	}

	return cw.n, nil
}

func loadBinary(r io.Reader) (index.Index, error) {
	br := persistence.NewBinaryIndexReader(r)

	header, err := br.ReadHeader()
	if err != nil {
		return nil, err
	}
	if header.IndexType != persistence.IndexTypeFlat {
		return nil, fmt.Errorf("%w: expected flat stream, got type %d", persistence.ErrInvalidIndex, header.IndexType)
	}
	if err := header.ValidateShape(); err != nil {
		return nil, err
	}

	distanceType, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}

	f, err := New(func(o *Options) {
		o.Dimension = int(header.Dimension)
		o.DistanceType = index.DistanceType(distanceType)
	})
	if err != nil {
		return nil, err
	}

	count := int(header.VectorCount)
	f.vectors = make([]float32, count*int(header.Dimension))
	if err := br.ReadFloat32SliceInto(f.vectors); err != nil {
		return nil, err
	}
	f.count = count

	return f, nil
}
