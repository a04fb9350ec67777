package parcel

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// HeaderField is a single header key with all of its values.
type HeaderField struct {
	Key    string
	Values []string
}

// Header is an ordered multimap of header fields.
//
// Keys compare case-insensitively but keep the spelling they were first
// added with. Field order is insertion order. A key may hold zero values.
// The zero value is an empty header ready to use.
type Header struct {
	fields []HeaderField
}

// index returns the position of key, or -1.
func (h *Header) index(key string) int {
	for i := range h.fields {
		if strings.EqualFold(h.fields[i].Key, key) {
			return i
		}
	}
	return -1
}

// Add appends values to key after validating the name and every value
// against HTTP field syntax.
func (h *Header) Add(key string, values ...string) error {
	if !httpguts.ValidHeaderFieldName(key) {
		return fmt.Errorf("%w: name %q", ErrInvalidHeader, key)
	}
	for _, v := range values {
		if !httpguts.ValidHeaderFieldValue(v) {
			return fmt.Errorf("%w: value for %s", ErrInvalidHeader, key)
		}
	}
	h.AddWithoutValidation(key, values...)
	return nil
}

// AddWithoutValidation appends values to key as-is. Calling it with no
// values registers the key with an empty value list.
func (h *Header) AddWithoutValidation(key string, values ...string) {
	if i := h.index(key); i >= 0 {
		h.fields[i].Values = append(h.fields[i].Values, values...)
		return
	}
	h.fields = append(h.fields, HeaderField{
		Key:    key,
		Values: append([]string(nil), values...),
	})
}

// Set replaces all values of key, keeping its position if it exists.
func (h *Header) Set(key string, values ...string) {
	if i := h.index(key); i >= 0 {
		h.fields[i].Values = append([]string(nil), values...)
		return
	}
	h.AddWithoutValidation(key, values...)
}

// Get returns the first value of key, or "" if it has none.
func (h *Header) Get(key string) string {
	if i := h.index(key); i >= 0 && len(h.fields[i].Values) > 0 {
		return h.fields[i].Values[0]
	}
	return ""
}

// Values returns a copy of every value of key.
func (h *Header) Values(key string) []string {
	if i := h.index(key); i >= 0 {
		return append([]string(nil), h.fields[i].Values...)
	}
	return nil
}

// Has reports whether key is present, even with zero values.
func (h *Header) Has(key string) bool {
	return h.index(key) >= 0
}

// Del removes key.
func (h *Header) Del(key string) {
	if i := h.index(key); i >= 0 {
		h.fields = append(h.fields[:i], h.fields[i+1:]...)
	}
}

// Keys returns the keys in insertion order.
func (h *Header) Keys() []string {
	keys := make([]string, len(h.fields))
	for i, f := range h.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of every field in insertion order.
func (h *Header) Fields() []HeaderField {
	out := make([]HeaderField, len(h.fields))
	for i, f := range h.fields {
		out[i] = HeaderField{Key: f.Key, Values: append([]string(nil), f.Values...)}
	}
	return out
}

// Len returns the number of distinct keys.
func (h *Header) Len() int {
	return len(h.fields)
}

// Clone returns a deep copy.
func (h Header) Clone() Header {
	return Header{fields: h.Fields()}
}
