package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	bw := NewBinaryIndexWriter(&buf)
	err := bw.WriteHeader(&FileHeader{
		IndexType:   IndexTypeHNSW,
		VectorCount: 1000,
		Dimension:   128,
	})
	require.NoError(t, err)
	require.Equal(t, 64, buf.Len())

	br := NewBinaryIndexReader(&buf)
	header, err := br.ReadHeader()
	require.NoError(t, err)

	assert.Equal(t, uint32(MagicNumber), header.Magic)
	assert.Equal(t, uint32(Version), header.Version)
	assert.Equal(t, uint8(IndexTypeHNSW), header.IndexType)
	assert.Equal(t, uint64(1000), header.VectorCount)
	assert.Equal(t, uint32(128), header.Dimension)
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	data := make([]byte, 64)
	copy(data, []byte{0xde, 0xad, 0xbe, 0xef})

	_, err := NewBinaryIndexReader(bytes.NewReader(data)).ReadHeader()
	require.ErrorIs(t, err, ErrInvalidMagic)
}

func TestSliceRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBinaryIndexWriter(&buf)

	floats := []float32{1.5, -2.25, 3.75, 0}
	uints := []uint32{1, 2, 3}
	ints := []int64{-9, 0, 42, 1 << 40}

	require.NoError(t, bw.WriteFloat32Slice(floats))
	require.NoError(t, bw.WriteUint32Slice(uints))
	require.NoError(t, bw.WriteInt64Slice(ints))

	br := NewBinaryIndexReader(&buf)

	gotFloats, err := br.ReadFloat32Slice(len(floats))
	require.NoError(t, err)
	assert.Equal(t, floats, gotFloats)

	gotUints, err := br.ReadUint32Slice(len(uints))
	require.NoError(t, err)
	assert.Equal(t, uints, gotUints)

	gotInts, err := br.ReadInt64Slice(len(ints))
	require.NoError(t, err)
	assert.Equal(t, ints, gotInts)
}

func TestSaveToFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	require.NoError(t, SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("first"))
		return err
	}))

	// Overwrite: the previous content must be replaced, not appended to.
	require.NoError(t, SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("second"))
		return err
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// A failed write must leave no temp files behind.
	wantErr := errors.New("boom")
	err = SaveToFile(path, func(w io.Writer) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.bin", entries[0].Name())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data), "failed save must not clobber the target")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	require.NoError(t, SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("content"))
		return err
	}))

	var got []byte
	err := LoadFromFile(path, func(r io.Reader) error {
		var readErr error
		got, readErr = io.ReadAll(r)
		return readErr
	})
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))

	err = LoadFromFile(filepath.Join(dir, "missing.bin"), func(io.Reader) error { return nil })
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadFromFileMmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	payload := bytes.Repeat([]byte("anngo"), 1024)
	require.NoError(t, SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	}))

	var got []byte
	err := LoadFromFileMmap(path, func(r io.Reader) error {
		var readErr error
		got, readErr = io.ReadAll(r)
		return readErr
	})
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
