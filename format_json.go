package parcel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// jsonFormat implements Format for JSON.
type jsonFormat struct{}

// JSON returns the JSON format. Members are written in tree order, HTML
// characters are not escaped, and numbers decode as json.Number.
func JSON() Format {
	return jsonFormat{}
}

// ContentType returns the MIME type for JSON.
func (jsonFormat) ContentType() string {
	return "application/json"
}

// Marshal encodes a document tree as compact JSON.
func (jsonFormat) Marshal(doc any) ([]byte, error) {
	w := newJSONWriter()
	if err := w.value(doc); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// Unmarshal decodes a single JSON value. Trailing data is an error.
func (jsonFormat) Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid data after top-level value at offset %d", dec.InputOffset())
	}
	return v, nil
}

// jsonWriter renders document trees, delegating scalars to encoding/json.
type jsonWriter struct {
	buf     bytes.Buffer
	scratch bytes.Buffer
	enc     *json.Encoder
}

func newJSONWriter() *jsonWriter {
	w := &jsonWriter{}
	w.enc = json.NewEncoder(&w.scratch)
	w.enc.SetEscapeHTML(false)
	return w
}

func (w *jsonWriter) value(v any) error {
	switch t := v.(type) {
	case Object:
		w.buf.WriteByte('{')
		for i, m := range t {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			if err := w.scalar(m.Key); err != nil {
				return err
			}
			w.buf.WriteByte(':')
			if err := w.value(m.Value); err != nil {
				return err
			}
		}
		w.buf.WriteByte('}')
		return nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(Object, len(keys))
		for i, k := range keys {
			obj[i] = Member{Key: k, Value: t[k]}
		}
		return w.value(obj)
	case []any:
		w.buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			if err := w.value(e); err != nil {
				return err
			}
		}
		w.buf.WriteByte(']')
		return nil
	default:
		return w.scalar(v)
	}
}

// scalar writes v with encoding/json, without the trailing newline.
func (w *jsonWriter) scalar(v any) error {
	w.scratch.Reset()
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.buf.Write(bytes.TrimSuffix(w.scratch.Bytes(), []byte{'\n'}))
	return nil
}
