// Package msgpack provides a MessagePack format implementation.
package msgpack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/parcel"
)

// msgpackFormat implements parcel.Format for MessagePack.
type msgpackFormat struct{}

// New returns a MessagePack format.
func New() parcel.Format {
	return &msgpackFormat{}
}

// ContentType returns the MIME type for MessagePack.
func (f *msgpackFormat) ContentType() string {
	return "application/msgpack"
}

// Marshal encodes a document tree as MessagePack. Objects become maps
// written in member order; integers use the smallest encoding.
func (f *msgpackFormat) Marshal(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := encode(enc, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single MessagePack value. Trailing data is an error.
func (f *msgpackFormat) Unmarshal(data []byte) (any, error) {
	rd := bytes.NewReader(data)
	dec := msgpack.NewDecoder(rd)

	v, err := dec.DecodeInterface()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if rd.Len() > 0 {
		return nil, fmt.Errorf("%d bytes of trailing data", rd.Len())
	}
	return v, nil
}

func encode(enc *msgpack.Encoder, v any) error {
	switch t := v.(type) {
	case parcel.Object:
		if err := enc.EncodeMapLen(len(t)); err != nil {
			return err
		}
		for _, m := range t {
			if err := enc.EncodeString(m.Key); err != nil {
				return err
			}
			if err := encode(enc, m.Value); err != nil {
				return fmt.Errorf("%s: %w", m.Key, err)
			}
		}
		return nil
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
		return encode(enc, obj)
	case []any:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for i, e := range t {
			if err := encode(enc, e); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return enc.Encode(t)
	}
	return fmt.Errorf("unsupported value of type %T", v)
}
