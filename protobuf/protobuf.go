// Package protobuf provides a Protocol Buffers format implementation.
//
// Documents travel as a google.protobuf.Struct, so any peer with the
// well-known types can read them without a generated schema. Struct
// numbers are doubles: integers beyond 2^53 lose precision.
package protobuf

import (
	"fmt"

	"github.com/zoobzio/parcel"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// protobufFormat implements parcel.Format for google.protobuf.Struct.
type protobufFormat struct{}

// New returns a Protocol Buffers format. Only object trees can be marshaled.
func New() parcel.Format {
	return &protobufFormat{}
}

// ContentType returns the MIME type for Protocol Buffers.
func (f *protobufFormat) ContentType() string {
	return "application/x-protobuf"
}

// Marshal encodes an object tree as a Struct. Map entries are written in
// sorted key order.
func (f *protobufFormat) Marshal(doc any) ([]byte, error) {
	v, err := toValue(doc)
	if err != nil {
		return nil, err
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("top-level value must be an object, got %T", doc)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(s)
}

// Unmarshal decodes a Struct into a map[string]any tree.
func (f *protobufFormat) Unmarshal(data []byte) (any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}

// toValue converts a document tree into a structpb.Value.
func toValue(v any) (*structpb.Value, error) {
	switch t := v.(type) {
	case parcel.Object:
		s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(t))}
		for _, m := range t {
			val, err := toValue(m.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Key, err)
			}
			s.Fields[m.Key] = val
		}
		return structpb.NewStructValue(s), nil
	case map[string]any:
		s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(t))}
		for k, e := range t {
			val, err := toValue(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			s.Fields[k] = val
		}
		return structpb.NewStructValue(s), nil
	case []any:
		l := &structpb.ListValue{Values: make([]*structpb.Value, len(t))}
		for i, e := range t {
			val, err := toValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l.Values[i] = val
		}
		return structpb.NewListValue(l), nil
	}
	return structpb.NewValue(v)
}
