// Package bson provides a BSON format implementation.
package bson

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/zoobzio/parcel"
	"go.mongodb.org/mongo-driver/bson"
)

// bsonFormat implements parcel.Format for BSON.
type bsonFormat struct{}

// New returns a BSON format. BSON documents are objects, so only object
// trees can be marshaled.
func New() parcel.Format {
	return &bsonFormat{}
}

// ContentType returns the MIME type for BSON.
func (f *bsonFormat) ContentType() string {
	return "application/bson"
}

// Marshal encodes an object tree as an ordered BSON document.
func (f *bsonFormat) Marshal(doc any) ([]byte, error) {
	v, err := toBSON(doc)
	if err != nil {
		return nil, err
	}
	d, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("top-level value must be a document, got %T", doc)
	}
	return bson.Marshal(d)
}

// Unmarshal decodes a single BSON document. Trailing data is an error.
func (f *bsonFormat) Unmarshal(data []byte) (any, error) {
	if len(data) < 5 {
		return nil, io.ErrUnexpectedEOF
	}
	if size := binary.LittleEndian.Uint32(data); int64(size) != int64(len(data)) {
		return nil, fmt.Errorf("document length %d does not match %d bytes of input", size, len(data))
	}

	var d bson.D
	if err := bson.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return fromBSON(d), nil
}

// toBSON converts a document tree into bson.D and bson.A values.
func toBSON(v any) (any, error) {
	switch t := v.(type) {
	case parcel.Object:
		d := make(bson.D, 0, len(t))
		for _, m := range t {
			val, err := toBSON(m.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Key, err)
			}
			d = append(d, bson.E{Key: m.Key, Value: val})
		}
		return d, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(parcel.Object, len(keys))
		for i, k := range keys {
			obj[i] = parcel.Member{Key: k, Value: t[k]}
		}
		return toBSON(obj)
	case []any:
		a := make(bson.A, 0, len(t))
		for i, e := range t {
			val, err := toBSON(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			a = append(a, val)
		}
		return a, nil
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return t, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

// fromBSON rewrites decoded documents and arrays as map[string]any and []any.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = fromBSON(e.Value)
		}
		return m
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = fromBSON(e)
		}
		return m
	case bson.A:
		a := make([]any, len(t))
		for i, e := range t {
			a[i] = fromBSON(e)
		}
		return a
	}
	return v
}
