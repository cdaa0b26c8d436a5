// Package manifest describes the contents of a dump container. The manifest
// is the first section of every dump and is validated against the caller's
// construction parameters on load.
package manifest

import (
	"fmt"
	"time"

	"github.com/hupe1980/anngo/codec"
)

// CurrentVersion is the manifest schema version.
const CurrentVersion = 1

// Manifest records what a dump holds.
type Manifest struct {
	Version     int       `json:"version"`
	IndexType   string    `json:"index_type"`
	DType       string    `json:"dtype"`
	MetricType  string    `json:"metric_type"`
	Dimension   int       `json:"dim"`
	Count       uint64    `json:"count"`
	Compression string    `json:"compression"`
	CreatedAt   time.Time `json:"created_at"`
}

// New creates a manifest for a dump taken now.
func New(indexType, metricType string, dim, count int, compression string) *Manifest {
	return &Manifest{
		Version:     CurrentVersion,
		IndexType:   indexType,
		DType:       "float32",
		MetricType:  metricType,
		Dimension:   dim,
		Count:       uint64(count),
		Compression: compression,
		CreatedAt:   time.Now().UTC(),
	}
}

// Encode serializes the manifest with the given codec.
func (m *Manifest) Encode(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	return c.Marshal(m)
}

// Decode parses a manifest section payload.
func Decode(data []byte, c codec.Codec) (*Manifest, error) {
	if c == nil {
		c = codec.Default
	}
	var m Manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, CurrentVersion)
	}
	return &m, nil
}

// Validate checks the manifest against the parameters a caller supplied when
// loading. Every mismatch means the dump does not belong to that
// configuration.
func (m *Manifest) Validate(indexType, metricType string, dim int) error {
	if m.IndexType != indexType {
		return fmt.Errorf("index type mismatch: dump %q, config %q", m.IndexType, indexType)
	}
	if m.MetricType != metricType {
		return fmt.Errorf("metric mismatch: dump %q, config %q", m.MetricType, metricType)
	}
	if m.Dimension != dim {
		return fmt.Errorf("dimension mismatch: dump %d, config %d", m.Dimension, dim)
	}
	if m.DType != "float32" {
		return fmt.Errorf("unsupported dtype %q", m.DType)
	}
	return nil
}
