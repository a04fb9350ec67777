package parcel

import (
	"context"
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	marshalerType     = reflect.TypeFor[Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	headerType        = reflect.TypeFor[Header]()
	contentRType      = reflect.TypeFor[Content]()
	urlType           = reflect.TypeFor[url.URL]()
	timeType          = reflect.TypeFor[time.Time]()
)

// visit identifies a reference on the current encode path.
type visit struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// encoder walks a Go value into a document tree.
// An encoder is used for a single call.
type encoder struct {
	ctx    context.Context
	masks  map[string]Masker
	masked int
	path   map[visit]struct{}
}

func newEncoder(ctx context.Context, masks map[string]Masker) *encoder {
	return &encoder{
		ctx:   ctx,
		masks: masks,
		path:  make(map[visit]struct{}),
	}
}

// document encodes v into a tree accepted by Format.Marshal.
func (e *encoder) document(v any) (any, error) {
	doc, _, err := e.encode(reflect.ValueOf(v), "")
	return doc, err
}

// enter marks a reference as being on the current path. It reports false
// when the reference is already there, which means the value is cyclic.
func (e *encoder) enter(key visit, field string) bool {
	if _, seen := e.path[key]; seen {
		emitCycleBroken(e.ctx, field, key.typ.String())
		return false
	}
	e.path[key] = struct{}{}
	return true
}

func (e *encoder) leave(key visit) {
	delete(e.path, key)
}

// encode converts v. The keep result is false when v closes a cycle and
// must be left out of its parent.
func (e *encoder) encode(v reflect.Value, field string) (doc any, keep bool, err error) {
	if !v.IsValid() {
		return nil, true, nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, true, nil
		}
		return e.encode(v.Elem(), field)
	case reflect.Pointer:
		if v.IsNil() {
			return nil, true, nil
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if !e.enter(key, field) {
			return nil, false, nil
		}
		defer e.leave(key)
		if v.Type().Elem() == contentRType {
			return e.encodeContent(v.Interface().(*Content), field)
		}
	}

	if doc, ok, err := e.encodeCustom(v, field); ok || err != nil {
		return doc, true, err
	}

	switch v.Type() {
	case headerType:
		h := v.Interface().(Header)
		return e.encodeHeader(&h), true, nil
	case contentRType:
		if v.CanAddr() {
			return e.encodeContent(v.Addr().Interface().(*Content), field)
		}
		c := v.Interface().(Content)
		return e.encodeContent(&c, field)
	case urlType:
		u := v.Interface().(url.URL)
		return u.String(), true, nil
	case timeType:
		return v.Interface().(time.Time).Format(time.RFC3339Nano), true, nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		return e.encode(v.Elem(), field)
	case reflect.Struct:
		return e.encodeStruct(v, field)
	case reflect.Map:
		if v.IsNil() {
			return nil, true, nil
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if !e.enter(key, field) {
			return nil, false, nil
		}
		defer e.leave(key)
		return e.encodeMap(v, field)
	case reflect.Slice:
		if v.IsNil() {
			return nil, true, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(v.Bytes()), true, nil
		}
		if v.Len() > 0 {
			key := visit{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}
			if !e.enter(key, field) {
				return nil, false, nil
			}
			defer e.leave(key)
		}
		return e.encodeArray(v, field)
	case reflect.Array:
		return e.encodeArray(v, field)
	case reflect.String:
		return v.String(), true, nil
	case reflect.Bool:
		return v.Bool(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true, nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false, newEncodeError(field, fmt.Errorf("unsupported float value %v", f))
		}
		return f, true, nil
	}

	return nil, false, newEncodeError(field, fmt.Errorf("unsupported type %s", v.Type()))
}

// encodeCustom handles types that implement Marshaler, directly or through
// their pointer.
func (e *encoder) encodeCustom(v reflect.Value, field string) (any, bool, error) {
	var m Marshaler
	switch {
	case v.Kind() == reflect.Pointer && v.IsNil():
		return nil, false, nil
	case v.Type().Implements(marshalerType) && v.CanInterface():
		m = v.Interface().(Marshaler)
	case v.CanAddr() && reflect.PointerTo(v.Type()).Implements(marshalerType):
		m = v.Addr().Interface().(Marshaler)
	default:
		return nil, false, nil
	}
	doc, err := m.MarshalParcel()
	if err != nil {
		return nil, false, newEncodeError(field, err)
	}
	return doc, true, nil
}

// encodeStruct emits the planned fields of a struct in declaration order.
func (e *encoder) encodeStruct(v reflect.Value, field string) (any, bool, error) {
	plan := planFor(v.Type())
	obj := make(Object, 0, len(plan.fields))

	for _, f := range plan.fields {
		fv, ok := fieldByIndex(v, f.index)
		if !ok {
			continue
		}
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}

		doc, keep, err := e.encode(fv, joinField(field, f.key))
		if err != nil {
			return nil, false, err
		}
		if !keep {
			continue
		}
		obj = append(obj, Member{Key: f.key, Value: doc})
	}

	return obj, true, nil
}

// encodeMap emits map entries sorted by key.
func (e *encoder) encodeMap(v reflect.Value, field string) (any, bool, error) {
	type entry struct {
		key string
		val reflect.Value
	}

	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := mapKey(iter.Key())
		if err != nil {
			return nil, false, newEncodeError(field, err)
		}
		entries = append(entries, entry{key: k, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	obj := make(Object, 0, len(entries))
	for _, en := range entries {
		doc, keep, err := e.encode(en.val, joinField(field, en.key))
		if err != nil {
			return nil, false, err
		}
		if !keep {
			continue
		}
		obj = append(obj, Member{Key: en.key, Value: doc})
	}
	return obj, true, nil
}

// encodeArray emits slice and array elements. Cyclic elements are skipped.
func (e *encoder) encodeArray(v reflect.Value, field string) (any, bool, error) {
	out := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		doc, keep, err := e.encode(v.Index(i), field+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, false, err
		}
		if !keep {
			continue
		}
		out = append(out, doc)
	}
	return out, true, nil
}

// encodeHeader emits one {Key, Value} entry per header key, applying
// any configured masks.
func (e *encoder) encodeHeader(h *Header) []any {
	out := make([]any, 0, h.Len())
	for _, f := range h.fields {
		masker := e.masks[strings.ToLower(f.Key)]
		values := make([]any, len(f.Values))
		for i, val := range f.Values {
			if masker != nil {
				val = masker.Mask(val)
				e.masked++
			}
			values[i] = val
		}
		out = append(out, Object{
			{Key: "Key", Value: f.Key},
			{Key: "Value", Value: values},
		})
	}
	return out
}

// encodeContent emits a body as {Content, Headers}. Text-safe media types
// are written as decoded text, everything else as base64.
func (e *encoder) encodeContent(c *Content, field string) (any, bool, error) {
	if c == nil {
		return nil, true, nil
	}
	if c.IsZero() {
		return Object{
			{Key: "Content", Value: ""},
			{Key: "Headers", Value: []any{}},
		}, true, nil
	}

	b, err := c.Bytes()
	if err != nil {
		return nil, false, newEncodeError(field, err)
	}

	var text string
	if UsesBase64(c.MediaType()) {
		text = base64.StdEncoding.EncodeToString(b)
	} else {
		text = decodeText(b, c.Charset())
	}

	return Object{
		{Key: "Content", Value: text},
		{Key: "Headers", Value: e.encodeHeader(&c.Header)},
	}, true, nil
}

// fieldByIndex is reflect.Value.FieldByIndex without the panic on nil
// embedded pointers.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// mapKey renders a map key as a member name.
func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.Type().Implements(textMarshalerType) {
		if k.Kind() == reflect.Pointer && k.IsNil() {
			return "", nil
		}
		b, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("unsupported map key type %s", k.Type())
}

// isEmptyValue reports whether v is empty for omitempty.
func isEmptyValue(v reflect.Value) bool {
	if v.Type() == headerType {
		h := v.Interface().(Header)
		return h.Len() == 0
	}
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

func joinField(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
