package bson

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/zoobzio/parcel"
	parceltest "github.com/zoobzio/parcel/testing"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNew(t *testing.T) {
	f := New()
	if f == nil {
		t.Error("New() should return non-nil format")
	}
}

func TestContentType(t *testing.T) {
	f := New()
	if f.ContentType() != "application/bson" {
		t.Errorf("ContentType() = %q, want %q", f.ContentType(), "application/bson")
	}
}

func TestMarshal_MemberOrder(t *testing.T) {
	f := New()

	data, err := f.Marshal(parcel.Object{
		{Key: "StatusCode", Value: int64(200)},
		{Key: "ReasonPhrase", Value: "OK"},
		{Key: "Headers", Value: []any{}},
	})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	elems, err := bson.Raw(data).Elements()
	if err != nil {
		t.Fatalf("Elements() error: %v", err)
	}
	want := []string{"StatusCode", "ReasonPhrase", "Headers"}
	if len(elems) != len(want) {
		t.Fatalf("got %d elements, want %d", len(elems), len(want))
	}
	for i, e := range elems {
		if e.Key() != want[i] {
			t.Errorf("element %d = %q, want %q", i, e.Key(), want[i])
		}
	}
}

func TestMarshal_TopLevelMustBeDocument(t *testing.T) {
	f := New()

	for _, doc := range []any{nil, "text", []any{"a"}, int64(1)} {
		if _, err := f.Marshal(doc); err == nil {
			t.Errorf("Marshal(%v) should return error", doc)
		}
	}
}

func TestMarshal_Unsupported(t *testing.T) {
	f := New()

	_, err := f.Marshal(parcel.Object{{Key: "f", Value: func() {}}})
	if err == nil {
		t.Error("Marshal(func) should return error")
	}
}

func TestUnmarshal_Tree(t *testing.T) {
	f := New()

	data, err := bson.Marshal(bson.D{
		{Key: "Headers", Value: bson.A{bson.D{{Key: "Key", Value: "Accept"}, {Key: "Value", Value: bson.A{"*/*"}}}}},
		{Key: "Content", Value: bson.M{"Content": "hi"}},
		{Key: "StatusCode", Value: int32(201)},
	})
	if err != nil {
		t.Fatalf("bson.Marshal() error: %v", err)
	}

	tree, err := f.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	doc, ok := tree.(map[string]any)
	if !ok {
		t.Fatalf("Unmarshal() = %T, want map[string]any", tree)
	}
	headers, ok := doc["Headers"].([]any)
	if !ok || len(headers) != 1 {
		t.Fatalf("Headers = %#v, want one entry", doc["Headers"])
	}
	entry, ok := headers[0].(map[string]any)
	if !ok {
		t.Fatalf("Headers[0] = %T, want map[string]any", headers[0])
	}
	if _, ok := entry["Value"].([]any); !ok {
		t.Errorf("Value = %T, want []any", entry["Value"])
	}
	if _, ok := doc["Content"].(map[string]any); !ok {
		t.Errorf("Content = %T, want map[string]any", doc["Content"])
	}
	if doc["StatusCode"] != int32(201) {
		t.Errorf("StatusCode = %#v, want int32(201)", doc["StatusCode"])
	}
}

func TestUnmarshal_Short(t *testing.T) {
	f := New()

	_, err := f.Unmarshal([]byte{0x05, 0x00})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Unmarshal(short) error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestUnmarshal_LengthMismatch(t *testing.T) {
	f := New()

	data, err := f.Marshal(parcel.Object{{Key: "Method", Value: "GET"}})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if _, err := f.Unmarshal(append(data, 0x00)); err == nil {
		t.Error("Unmarshal(trailing) should return error")
	}
	if _, err := f.Unmarshal(data[:len(data)-1]); err == nil {
		t.Error("Unmarshal(truncated) should return error")
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	f := New()

	if _, err := f.Unmarshal([]byte("invalid bson")); err == nil {
		t.Error("Unmarshal(invalid) should return error")
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := parcel.New(parcel.WithFormat(New()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx := context.Background()

	for name, want := range parceltest.Requests() {
		t.Run("request "+name, func(t *testing.T) {
			data, err := codec.EncodeRequest(ctx, want)
			if err != nil {
				t.Fatalf("EncodeRequest() error: %v", err)
			}
			var got parcel.Request
			if err := codec.DecodeRequest(ctx, data, &got); err != nil {
				t.Fatalf("DecodeRequest() error: %v", err)
			}
			if err := parceltest.EqualRequest(&got, want); err != nil {
				t.Errorf("round-trip: %v", err)
			}
		})
	}

	for name, want := range parceltest.Responses() {
		t.Run("response "+name, func(t *testing.T) {
			data, err := codec.EncodeResponse(ctx, want)
			if err != nil {
				t.Fatalf("EncodeResponse() error: %v", err)
			}
			var got parcel.Response
			if err := codec.DecodeResponse(ctx, data, &got); err != nil {
				t.Fatalf("DecodeResponse() error: %v", err)
			}
			if err := parceltest.EqualResponse(&got, want); err != nil {
				t.Errorf("round-trip: %v", err)
			}
		})
	}
}

func TestCodec_EncodeScalar(t *testing.T) {
	codec, err := parcel.New(parcel.WithFormat(New()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = codec.Encode(context.Background(), "bare string")
	if !errors.Is(err, parcel.ErrEncode) {
		t.Errorf("Encode(string) error = %v, want ErrEncode", err)
	}
}
