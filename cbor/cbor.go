// Package cbor provides a CBOR format implementation.
//
// Documents are written with Core Deterministic Encoding (RFC 8949 §4.2):
// map keys are sorted by their encoded bytes and integers use the smallest
// encoding, so the same message always produces identical bytes. Object
// member order is therefore not preserved.
package cbor

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/zoobzio/parcel"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Documents only use string keys; decoding into any must
		// yield map[string]any rather than map[any]any.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("cbor: decoder initialization failed: " + err.Error())
	}
}

// cborFormat implements parcel.Format for CBOR.
type cborFormat struct{}

// New returns a CBOR format.
func New() parcel.Format {
	return &cborFormat{}
}

// ContentType returns the MIME type for CBOR.
func (f *cborFormat) ContentType() string {
	return "application/cbor"
}

// Marshal encodes a document tree as deterministic CBOR.
func (f *cborFormat) Marshal(doc any) ([]byte, error) {
	v, err := toNative(doc)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(v)
}

// Unmarshal decodes a single CBOR data item. Trailing data and duplicate
// map keys are errors.
func (f *cborFormat) Unmarshal(data []byte) (any, error) {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return v, nil
}

// toNative converts Objects into plain maps for the deterministic encoder.
func toNative(v any) (any, error) {
	switch t := v.(type) {
	case parcel.Object:
		m := make(map[string]any, len(t))
		for _, member := range t {
			val, err := toNative(member.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", member.Key, err)
			}
			m[member.Key] = val
		}
		return m, nil
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			val, err := toNative(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = val
		}
		return m, nil
	case []any:
		a := make([]any, len(t))
		for i, e := range t {
			val, err := toNative(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			a[i] = val
		}
		return a, nil
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return t, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}
