// Package parcel converts HTTP request and response messages to a portable
// document representation and back.
//
// A parcel lets an HTTP message cross a process or language boundary without
// the receiver understanding native HTTP types. The default wire format is
// JSON; alternative formats live in sub-packages.
//
// # Wire Shape
//
//	Content  := { "Content": string, "Headers": [ { "Key": string, "Value": [string, ...] }, ... ] }
//	Request  := { "Method": string, "RequestUri": string, "Headers": [...], "Content": Content }
//	Response := { "StatusCode": int, "ReasonPhrase": string, "Headers": [...],
//	              "Content": Content, "RequestMessage": Request }
//
// # Body Encoding
//
// Body bytes are written as literal text when the Content-Type is text-safe
// (text/*, application/json, application/xml, application/javascript,
// application/x-javascript, application/xhtml+xml,
// application/x-www-form-urlencoded) and as base64 otherwise. Text is decoded
// with the charset named by the Content-Type, falling back to UTF-8.
//
// # Field Tags
//
// The encoder walks any Go value. Struct fields are named by the parcel tag:
//
//	type Envelope struct {
//	    ID       string         `parcel:"Id"`
//	    Trace    string         `parcel:"Trace,omitempty"`
//	    Internal map[string]any `parcel:"-"`
//	}
//
// A "-" tag keeps a field off the wire. Request and Response use it for
// Version and Properties, which carry no transmissible meaning.
//
// Untagged embedded structs are flattened into their parent, as
// encoding/json does. Register scans a type with sentinel ahead of its
// first encode.
//
// # Basic Usage
//
//	codec, _ := parcel.New()
//
//	data, _ := codec.EncodeRequest(ctx, req)
//
//	var decoded parcel.Request
//	err := codec.DecodeRequest(ctx, data, &decoded)
//
// # Formats
//
// The following formats are available as sub-packages:
//
//   - yaml - YAML documents (application/yaml)
//   - msgpack - MessagePack (application/msgpack)
//   - bson - BSON documents (application/bson)
//   - cbor - CBOR, core deterministic encoding (application/cbor)
//   - protobuf - google.protobuf.Struct (application/x-protobuf)
//   - zstd - Zstandard compression around any other format
//   - seal - authenticated encryption around any other format
//
// Package httpx converts between net/http messages and parcel messages.
//
// # Header Masking
//
// Sensitive header values can be rewritten on the way out:
//
//	codec, _ := parcel.New(
//	    parcel.WithHeaderMask("Authorization", parcel.MaskCredential),
//	    parcel.WithHeaderMask("X-Forwarded-For", parcel.MaskIP),
//	)
package parcel

// Format renders document trees to bytes and parses bytes back into trees.
//
// Marshal receives a tree built from Object, []any, string, bool, int64,
// uint64, float64 and nil. Object member order must be preserved where the
// format supports ordered maps.
//
// Unmarshal returns a generic tree: objects as map[string]any, arrays as
// []any, and scalars in whatever representation the format decodes to.
type Format interface {
	// ContentType returns the MIME type for this format (e.g., "application/json").
	ContentType() string

	// Marshal encodes a document tree into bytes.
	Marshal(doc any) ([]byte, error)

	// Unmarshal decodes bytes into a generic document tree.
	Unmarshal(data []byte) (any, error)
}

// Member is a single named value inside an Object.
type Member struct {
	Key   string
	Value any
}

// Object is an ordered set of members.
type Object []Member

// Get returns the value of the first member named key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Marshaler lets a type supply its own document representation,
// bypassing the reflective walk.
//
// The returned value must be a document tree as accepted by Format.Marshal.
type Marshaler interface {
	MarshalParcel() (any, error)
}
