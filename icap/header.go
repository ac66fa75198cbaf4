package icap

import "strings"

// headerField is one name/value pair as it appeared on the wire.
type headerField struct {
	Name  string
	Value string
}

// Header is a case-insensitive, insertion-order-preserving multimap of
// ICAP header fields. Duplicate names are kept distinct and in the order
// they were added: header names compare case-insensitively while values
// preserve original byte order — a
// guarantee the standard library's map-based net/http.Header cannot make.
type Header struct {
	fields []headerField
}

// NewHeader returns an empty Header.
func NewHeader() *Header { return &Header{} }

// Add appends a header field, keeping any existing fields of the same name.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, headerField{Name: name, Value: value})
}

// Set removes any existing fields named name and adds one with value.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value recorded for name, in insertion order.
func (h *Header) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Has reports whether any field named name was recorded, including ones
// whose value is the empty string.
func (h *Header) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Del removes every field named name.
func (h *Header) Del(name string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Each calls fn once per field, in insertion order.
func (h *Header) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.Name, f.Value)
	}
}

// Len reports the number of fields recorded, counting duplicates.
func (h *Header) Len() int { return len(h.fields) }
