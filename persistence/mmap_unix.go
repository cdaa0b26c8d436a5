//go:build unix

package persistence

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// LoadFromFileMmap maps the file read-only and hands readFunc a reader over
// the mapping, avoiding a copy of the container into the heap. Empty files
// fall back to the regular read path.
func LoadFromFileMmap(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size == 0 {
		return readFunc(bytes.NewReader(nil))
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// Mapping can fail on exotic filesystems; fall back to buffered reads.
		return LoadFromFile(filename, readFunc)
	}
	defer func() {
		_ = unix.Munmap(data)
	}()

	// The load is a single sequential pass.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return readFunc(bytes.NewReader(data))
}
