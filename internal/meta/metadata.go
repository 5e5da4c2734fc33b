// Package meta holds the free-form string attributes attached to expenses
// (receipt references, notes from an importer, and so on).
package meta

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tinoosan/groupledger/internal/errs"
)

// Metadata is a small string map with validation and stable JSON encoding.
type Metadata map[string]string

const (
	MaxPairs     = 20
	MaxKeyLen    = 64
	MaxValLen    = 256
	MaxTotalJSON = 4096
)

// New copies m. A nil map yields an empty Metadata.
func New(m map[string]string) Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Metadata) Clone() Metadata { return New(m) }

func (m Metadata) Get(k string) (string, bool) { v, ok := m[k]; return v, ok }

// Validate enforces the size limits. Failures are reported as validation errors
// on the "metadata" field.
func (m Metadata) Validate() error {
	if len(m) > MaxPairs {
		return fmt.Errorf("metadata has %d pairs (max %d): %w", len(m), MaxPairs, invalid())
	}
	for k, v := range m {
		if len(k) == 0 || len(k) > MaxKeyLen {
			return fmt.Errorf("metadata key %q empty or too long: %w", k, invalid())
		}
		if len(v) > MaxValLen {
			return fmt.Errorf("metadata value for %q too long: %w", k, invalid())
		}
	}
	b, _ := m.MarshalStableJSON()
	if len(b) > MaxTotalJSON {
		return fmt.Errorf("metadata exceeds %d bytes: %w", MaxTotalJSON, invalid())
	}
	return nil
}

func invalid() error { return errs.Invalid("metadata", errs.ReasonInvalidMetadata) }

// MarshalStableJSON returns a deterministic JSON representation with keys sorted.
func (m Metadata) MarshalStableJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, k := range keys {
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(m[k])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m Metadata) MarshalJSON() ([]byte, error) { return m.MarshalStableJSON() }

func (m *Metadata) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Metadata{}
		return nil
	}
	var tmp map[string]string
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*m = New(tmp)
	return nil
}

// Value stores metadata as stable JSON text.
func (m Metadata) Value() (driver.Value, error) {
	b, err := m.MarshalStableJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads JSON text or bytes written by Value.
func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case string:
		return m.UnmarshalJSON([]byte(v))
	case []byte:
		return m.UnmarshalJSON(v)
	default:
		return fmt.Errorf("meta: cannot scan %T", src)
	}
}
