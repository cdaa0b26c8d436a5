package labels

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPut(t *testing.T) {
	m := New()

	require.NoError(t, m.Put(0, 100))
	require.NoError(t, m.Put(1, -7))
	require.NoError(t, m.Put(2, 0))
	assert.Equal(t, 3, m.Len())

	t.Run("duplicate label", func(t *testing.T) {
		err := m.Put(3, 100)
		require.ErrorIs(t, err, ErrDuplicateLabel)
		assert.Equal(t, 3, m.Len())
	})

	t.Run("non-dense node", func(t *testing.T) {
		err := m.Put(5, 200)
		require.ErrorIs(t, err, ErrNonDenseNode)

		err = m.Put(1, 200)
		require.ErrorIs(t, err, ErrNonDenseNode)
	})
}

func TestLookup(t *testing.T) {
	m := New()
	require.NoError(t, m.Put(0, 42))
	require.NoError(t, m.Put(1, -1))

	assert.True(t, m.Has(42))
	assert.True(t, m.Has(-1))
	assert.False(t, m.Has(43))

	label, ok := m.LabelFor(0)
	require.True(t, ok)
	assert.Equal(t, int64(42), label)

	label, ok = m.LabelFor(1)
	require.True(t, ok)
	assert.Equal(t, int64(-1), label)

	_, ok = m.LabelFor(2)
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	m := New()
	// Sparse labels over the full range, including negatives.
	for i, label := range []int64{0, 1, 1 << 40, -5, 1000000} {
		require.NoError(t, m.Put(uint32(i), label))
	}

	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	restored := New()
	rn, err := restored.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, n, rn)

	assert.Equal(t, m.Len(), restored.Len())
	for node := uint32(0); int(node) < m.Len(); node++ {
		want, _ := m.LabelFor(node)
		got, ok := restored.LabelFor(node)
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.True(t, restored.Has(want))
	}

	// The rebuilt bitmap still rejects duplicates.
	err = restored.Put(uint32(restored.Len()), -5)
	require.ErrorIs(t, err, ErrDuplicateLabel)
}

func TestReadFromTruncated(t *testing.T) {
	m := New()
	require.NoError(t, m.Put(0, 1))
	require.NoError(t, m.Put(1, 2))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	restored := New()
	_, err = restored.ReadFrom(bytes.NewReader(buf.Bytes()[:buf.Len()-4]))
	require.Error(t, err)
}
