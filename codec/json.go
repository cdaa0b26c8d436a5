package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// If you need the most portable/lowest-dependency option, use JSON. The
// library's default codec may change over time; dump manifests record the
// codec name so they can be validated on load.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the default codec used by the library.
//
// NOTE: This affects newly-created dumps. Existing persisted files record the
// codec name in their manifest and are opened by selecting the codec by name.
var Default Codec = GoJSON{}
