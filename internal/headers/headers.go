// Package headers converts between raw "Name: value" header text and an
// ordered header map.
package headers

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Map is an ordered name -> value mapping. The zero value is ready to use.
type Map struct {
	keys   []string
	values map[string]string
}

// Set stores value under name. An existing name keeps its position.
func (m *Map) Set(name, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = value
}

// Get returns the value stored under name.
func (m Map) Get(name string) (string, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Len returns the number of entries.
func (m Map) Len() int {
	return len(m.keys)
}

// Keys returns the names in insertion order.
func (m Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in insertion order.
func (m Map) Each(fn func(name, value string)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// Equal reports whether both maps hold the same entries in the same order.
func (m Map) Equal(other Map) bool {
	if len(m.keys) != len(other.keys) {
		return false
	}
	for i, k := range m.keys {
		if other.keys[i] != k || other.values[k] != m.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the map as a JSON object preserving insertion order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of string values, keeping key order.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = Map{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		m.Set(name, value)
	}
	_, err := dec.Token()
	return err
}

// Decode parses newline-delimited "Name: value" lines. Lines without a colon
// or with an empty name or value are skipped. A repeated name overwrites the
// earlier value.
func Decode(text string) Map {
	var m Map
	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		m.Set(name, value)
	}
	return m
}

// Encode formats m as "Name: value" lines joined by newlines.
func Encode(m Map) string {
	lines := make([]string, 0, m.Len())
	m.Each(func(name, value string) {
		lines = append(lines, name+": "+value)
	})
	return strings.Join(lines, "\n")
}
