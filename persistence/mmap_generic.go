//go:build !unix

package persistence

import "io"

// LoadFromFileMmap falls back to buffered reads on platforms without mmap
// support.
func LoadFromFileMmap(filename string, readFunc func(io.Reader) error) error {
	return LoadFromFile(filename, readFunc)
}
