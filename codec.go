package parcel

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Codec encodes and decodes HTTP messages with a single Format.
//
// A Codec is immutable after New and safe for concurrent use.
type Codec struct {
	format Format
	masks  map[string]Masker // keyed by lower-cased header name
}

// Option configures a Codec.
type Option func(*config)

type config struct {
	format         Format
	maskTypes      []headerMask
	maskers        []headerMasker
	fingerprintKey []byte
}

type headerMask struct {
	header string
	mask   MaskType
}

type headerMasker struct {
	header string
	masker Masker
}

// WithFormat selects the wire format. The default is JSON.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithHeaderMask masks every value of the named header with a builtin rule.
// The name matches message and content headers case-insensitively.
func WithHeaderMask(header string, mask MaskType) Option {
	return func(c *config) {
		c.maskTypes = append(c.maskTypes, headerMask{header: header, mask: mask})
	}
}

// WithHeaderMasker masks every value of the named header with m.
func WithHeaderMasker(header string, m Masker) Option {
	return func(c *config) {
		c.maskers = append(c.maskers, headerMasker{header: header, masker: m})
	}
}

// WithFingerprintKey sets the key used by MaskFingerprint.
func WithFingerprintKey(key []byte) Option {
	return func(c *config) {
		c.fingerprintKey = append([]byte(nil), key...)
	}
}

// New creates a Codec. Mask options are validated eagerly.
func New(opts ...Option) (*Codec, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.format == nil {
		cfg.format = JSON()
	}

	masks := make(map[string]Masker)
	for _, hm := range cfg.maskTypes {
		if !IsValidMaskType(hm.mask) {
			return nil, &ConfigError{Err: ErrInvalidMask, Header: hm.header, Mask: string(hm.mask)}
		}
		m, err := builtinMasker(hm.mask, cfg.fingerprintKey)
		if err != nil {
			return nil, &ConfigError{Err: ErrInvalidMask, Header: hm.header, Mask: string(hm.mask)}
		}
		masks[strings.ToLower(hm.header)] = m
	}
	for _, hm := range cfg.maskers {
		if hm.masker == nil {
			return nil, &ConfigError{Err: ErrInvalidMask, Header: hm.header}
		}
		masks[strings.ToLower(hm.header)] = hm.masker
	}

	c := &Codec{format: cfg.format, masks: masks}
	emitCodecCreated(context.Background(), c.ContentType(), len(masks))
	return c, nil
}

// ContentType returns the MIME type of the codec's format.
func (c *Codec) ContentType() string {
	return c.format.ContentType()
}

// Encode walks v into a document and renders it with the codec's format.
// Request and Response values produce the message wire shape; any other
// value is encoded field by field following its parcel tags.
func (c *Codec) Encode(ctx context.Context, v any) ([]byte, error) {
	contentType := c.ContentType()
	typeName := typeNameOf(v)
	emitEncodeStart(ctx, contentType, typeName)
	start := time.Now()

	enc := newEncoder(ctx, c.masks)
	doc, err := enc.document(v)

	var data []byte
	if err == nil {
		data, err = c.format.Marshal(doc)
		if err != nil {
			err = newEncodeError("", err)
		}
	}

	emitEncodeComplete(ctx, contentType, typeName, len(data), time.Since(start), enc.masked, err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// EncodeRequest encodes a request.
func (c *Codec) EncodeRequest(ctx context.Context, r *Request) ([]byte, error) {
	if r == nil {
		return nil, newEncodeError("", errors.New("nil *Request"))
	}
	return c.Encode(ctx, r)
}

// EncodeResponse encodes a response, including its Request when set.
func (c *Codec) EncodeResponse(ctx context.Context, r *Response) ([]byte, error) {
	if r == nil {
		return nil, newEncodeError("", errors.New("nil *Response"))
	}
	return c.Encode(ctx, r)
}

// DecodeRequest fills r from data. Fields missing from data, or too
// malformed to use, keep the value r already had. r is left untouched
// when an error is returned.
func (c *Codec) DecodeRequest(ctx context.Context, data []byte, r *Request) error {
	if r == nil {
		return errors.New("decode into nil *Request")
	}
	return c.decode(ctx, data, "Request", func(d *decoder, doc map[string]any) error {
		tmp := *r
		tmp.Header = r.Header.Clone()
		tmp.Content = detach(r.Content)
		if err := d.request(doc, &tmp, ""); err != nil {
			return err
		}
		*r = tmp
		return nil
	})
}

// DecodeResponse fills r from data. Fields missing from data, or too
// malformed to use, keep the value r already had. r is left untouched
// when an error is returned.
func (c *Codec) DecodeResponse(ctx context.Context, data []byte, r *Response) error {
	if r == nil {
		return errors.New("decode into nil *Response")
	}
	return c.decode(ctx, data, "Response", func(d *decoder, doc map[string]any) error {
		tmp := *r
		tmp.Header = r.Header.Clone()
		tmp.Content = detach(r.Content)
		if err := d.response(doc, &tmp, ""); err != nil {
			return err
		}
		*r = tmp
		return nil
	})
}

// detach copies c with its own header so decoding can route content
// headers without touching the caller's body.
func detach(c *Content) *Content {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Header = c.Header.Clone()
	return &cp
}

// decode parses data into a document object and hands it to fill.
func (c *Codec) decode(ctx context.Context, data []byte, typeName string, fill func(*decoder, map[string]any) error) error {
	contentType := c.ContentType()
	emitDecodeStart(ctx, contentType, typeName, len(data))
	start := time.Now()

	doc, err := c.document(data)
	if err == nil {
		err = fill(&decoder{ctx: ctx}, doc)
	}

	emitDecodeComplete(ctx, contentType, typeName, time.Since(start), err)
	return err
}

// document parses data and requires an object at the top level.
func (c *Codec) document(data []byte) (map[string]any, error) {
	tree, err := c.format.Unmarshal(data)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, newFormatError(c.ContentType(), err)
	}
	doc, ok := tree.(map[string]any)
	if !ok {
		return nil, newFormatError(c.ContentType(), fmt.Errorf("top-level value is %s, not an object", describe(tree)))
	}
	return doc, nil
}

// describe names the kind of a tree node for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	}
	return "a " + reflect.TypeOf(v).Kind().String()
}

// typeNameOf returns the bare type name of v for events.
func typeNameOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

var defaultCodec = &Codec{format: JSON(), masks: map[string]Masker{}}

// MarshalRequest encodes r as JSON.
func MarshalRequest(r *Request) ([]byte, error) {
	return defaultCodec.EncodeRequest(context.Background(), r)
}

// MarshalResponse encodes r as JSON.
func MarshalResponse(r *Response) ([]byte, error) {
	return defaultCodec.EncodeResponse(context.Background(), r)
}

// UnmarshalRequest decodes JSON data into r.
func UnmarshalRequest(data []byte, r *Request) error {
	return defaultCodec.DecodeRequest(context.Background(), data, r)
}

// UnmarshalResponse decodes JSON data into r.
func UnmarshalResponse(data []byte, r *Response) error {
	return defaultCodec.DecodeResponse(context.Background(), data, r)
}
