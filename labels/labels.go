// Package labels maps caller-facing vector labels (int64) to the dense node
// ids an index assigns at insert time, and back.
package labels

import (
	"errors"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/anngo/persistence"
)

var (
	// ErrDuplicateLabel is returned when a label is already mapped.
	ErrDuplicateLabel = errors.New("duplicate label")

	// ErrNonDenseNode is returned when a node id does not extend the dense
	// node sequence.
	ErrNonDenseNode = errors.New("node id must extend the dense sequence")
)

// Map is a bidirectional label/node mapping. Membership checks go through a
// Roaring bitmap (labels are spread over the full int64 range; the bitmap
// keeps dense workloads compact), node-to-label lookups through a dense
// reverse table.
//
// Map is not safe for concurrent mutation; callers serialize writes the same
// way they serialize index inserts.
type Map struct {
	present *roaring64.Bitmap
	rev     []int64
}

// New creates an empty Map.
func New() *Map {
	return &Map{
		present: roaring64.New(),
	}
}

// Has reports whether label is already mapped.
func (m *Map) Has(label int64) bool {
	return m.present.Contains(uint64(label))
}

// Put maps label to node. Node ids must arrive densely (0, 1, 2, ...),
// mirroring index insert order.
func (m *Map) Put(node uint32, label int64) error {
	if m.Has(label) {
		return fmt.Errorf("%w: %d", ErrDuplicateLabel, label)
	}
	if int(node) != len(m.rev) {
		return fmt.Errorf("%w: got %d, expected %d", ErrNonDenseNode, node, len(m.rev))
	}
	m.present.Add(uint64(label))
	m.rev = append(m.rev, label)
	return nil
}

// LabelFor returns the label mapped to node.
func (m *Map) LabelFor(node uint32) (int64, bool) {
	if int(node) >= len(m.rev) {
		return 0, false
	}
	return m.rev[node], true
}

// Len returns the number of mapped labels.
func (m *Map) Len() int {
	return len(m.rev)
}

// WriteTo serializes the mapping to w.
func (m *Map) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := persistence.NewBinaryIndexWriter(cw)

	if err := bw.WriteUint32(uint32(len(m.rev))); err != nil {
		return cw.n, err
	}
	if err := bw.WriteInt64Slice(m.rev); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadFrom restores the mapping from r, rebuilding the membership bitmap.
func (m *Map) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	br := persistence.NewBinaryIndexReader(cr)

	count, err := br.ReadUint32()
	if err != nil {
		return cr.n, err
	}
	rev, err := br.ReadInt64Slice(int(count))
	if err != nil {
		return cr.n, err
	}

	present := roaring64.New()
	for _, label := range rev {
		present.Add(uint64(label))
	}

	m.rev = rev
	m.present = present
	return cr.n, nil
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

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
