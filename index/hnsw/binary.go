package hnsw

import (
	"fmt"
	"io"

	"github.com/hupe1980/anngo/index"
	"github.com/hupe1980/anngo/persistence"
)

func init() {
	index.RegisterBinaryLoader(persistence.IndexTypeHNSW, loadBinary)
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

// WriteTo serializes the graph, header included, to w.
//
// Layout after the 64-byte stream header, all little-endian:
//
//	u32 M, u32 efConstruction, u32 distanceType, u32 heuristic
//	u32 entryPoint, u32 levelCount (maxLevel+1)
//	f32[count*dim] vector arena
//	per node: u32 level, then per layer: u32 degree, u32[degree] neighbors
func (h *HNSW) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := persistence.NewBinaryIndexWriter(cw)

	if err := bw.WriteHeader(&persistence.FileHeader{
		IndexType:   persistence.IndexTypeHNSW,
		VectorCount: uint64(len(h.nodes)),
		Dimension:   uint32(h.opts.Dimension),
	}); err != nil {
		return cw.n, err
	}

	heuristic := uint32(0)
	if h.opts.Heuristic {
		heuristic = 1
	}
	for _, v := range []uint32{
		uint32(h.opts.M),
		uint32(h.opts.EFConstruction),
		uint32(h.opts.DistanceType),
		heuristic,
		h.entryPoint,
		uint32(h.maxLevel + 1),
	} {
		if err := bw.WriteUint32(v); err != nil {
			return cw.n, err
		}
	}

	if err := bw.WriteFloat32Slice(h.vectors); err != nil {
		return cw.n, err
	}

	for i := range h.nodes {
		n := &h.nodes[i]
		if err := bw.WriteUint32(uint32(n.level)); err != nil {
			return cw.n, err
		}
		for _, conns := range n.neighbors {
			if err := bw.WriteUint32(uint32(len(conns))); err != nil {
				return cw.n, err
			}
			if err := bw.WriteUint32Slice(conns); err != nil {
				return cw.n, err
			}
		}
	}

	return cw.n, nil
}

func loadBinary(r io.Reader) (index.Index, error) {
	br := persistence.NewBinaryIndexReader(r)

	header, err := br.ReadHeader()
	if err != nil {
		return nil, err
	}
	if header.IndexType != persistence.IndexTypeHNSW {
		return nil, fmt.Errorf("%w: expected hnsw stream, got type %d", persistence.ErrInvalidIndex, header.IndexType)
	}
	if err := header.ValidateShape(); err != nil {
		return nil, err
	}

	var fields [6]uint32
	for i := range fields {
		if fields[i], err = br.ReadUint32(); err != nil {
			return nil, err
		}
	}
	m := int(fields[0])
	efConstruction := int(fields[1])
	distanceType := index.DistanceType(fields[2])
	heuristic := fields[3] == 1
	entryPoint := fields[4]
	levelCount := int(fields[5])

	h, err := New(func(o *Options) {
		o.Dimension = int(header.Dimension)
		o.M = m
		o.EFConstruction = efConstruction
		o.DistanceType = distanceType
		o.Heuristic = heuristic
	})
	if err != nil {
		return nil, err
	}

	count := int(header.VectorCount)
	if count > 0 && (levelCount < 1 || levelCount > maxGraphLevels) {
		return nil, fmt.Errorf("%w: level count %d out of range", persistence.ErrInvalidIndex, levelCount)
	}

	h.vectors = make([]float32, count*int(header.Dimension))
	if err := br.ReadFloat32SliceInto(h.vectors); err != nil {
		return nil, err
	}

	h.nodes = make([]node, count)
	for i := 0; i < count; i++ {
		level, err := br.ReadUint32()
		if err != nil {
			return nil, err
		}
		if int(level) >= levelCount {
			return nil, fmt.Errorf("%w: node %d level %d above top level %d", persistence.ErrInvalidIndex, i, level, levelCount-1)
		}
		neighbors := make([][]uint32, level+1)
		for l := range neighbors {
			degree, err := br.ReadUint32()
			if err != nil {
				return nil, err
			}
			if int(degree) > mmax0Multiplier*m {
				return nil, fmt.Errorf("%w: node %d layer %d degree %d exceeds cap", persistence.ErrInvalidIndex, i, l, degree)
			}
			conns, err := br.ReadUint32Slice(int(degree))
			if err != nil {
				return nil, err
			}
			for _, c := range conns {
				if int(c) >= count {
					return nil, fmt.Errorf("%w: node %d links to out-of-range node %d", persistence.ErrInvalidIndex, i, c)
				}
			}
			neighbors[l] = conns
		}
		h.nodes[i] = node{level: int32(level), neighbors: neighbors}
	}

	if count > 0 {
		if int(entryPoint) >= count {
			return nil, fmt.Errorf("%w: entry point %d out of range", persistence.ErrInvalidIndex, entryPoint)
		}
		if int(h.nodes[entryPoint].level) < levelCount-1 {
			return nil, fmt.Errorf("%w: entry point %d at level %d, below top level %d", persistence.ErrInvalidIndex, entryPoint, h.nodes[entryPoint].level, levelCount-1)
		}
		h.entryPoint = entryPoint
		h.maxLevel = levelCount - 1
	}

	return h, nil
}
