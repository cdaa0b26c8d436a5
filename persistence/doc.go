// Package persistence implements the binary container format used to dump
// and load indexes: a fixed header, length-prefixed checksummed sections,
// block compression, and atomic file replacement.
package persistence
