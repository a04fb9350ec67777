package parcel

import (
	"bytes"
	"io"
)

// source is the origin of a body's bytes.
type source interface {
	// materialize returns the full body.
	materialize() ([]byte, error)
}

// textSource is a body built from a string in a given charset.
type textSource struct {
	text    string
	charset string
}

func (s textSource) materialize() ([]byte, error) {
	return encodeText(s.text, s.charset), nil
}

// byteSource is a body built from an owned byte slice.
type byteSource []byte

func (s byteSource) materialize() ([]byte, error) {
	return s, nil
}

// streamSource is a body read from a reader on first use.
type streamSource struct {
	r io.Reader
}

func (s streamSource) materialize() ([]byte, error) {
	b, err := io.ReadAll(s.r)
	if c, ok := s.r.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return b, err
}

// Content is a message body: its bytes plus its own content headers
// (Content-Type, Content-Length and friends).
//
// The bytes are materialised from the source on first use and kept. A
// stream source is fully drained at that point. The zero Content has no
// source and represents an absent body.
//
// Content is not safe for concurrent use.
type Content struct {
	// Header holds the content headers.
	Header Header

	src    source
	data   []byte
	loaded bool
	err    error
}

// NewStringContent returns a body holding text encoded in charset.
// An empty mediaType defaults to text/plain and an empty charset to utf-8.
// Unknown charsets encode as UTF-8 but are still declared on the header.
func NewStringContent(text, mediaType, charset string) *Content {
	if mediaType == "" {
		mediaType = "text/plain"
	}
	if charset == "" {
		charset = "utf-8"
	}
	c := &Content{src: textSource{text: text, charset: charset}}
	c.SetContentType(mediaType, charset)
	return c
}

// NewByteContent returns a body holding b. The slice is copied.
// No Content-Type is set.
func NewByteContent(b []byte) *Content {
	return &Content{src: byteSource(bytes.Clone(b))}
}

// NewStreamContent returns a body read from r on first use.
// If r is an io.Closer it is closed once drained. No Content-Type is set.
func NewStreamContent(r io.Reader) *Content {
	return &Content{src: streamSource{r: r}}
}

// newDecodedContent returns a body holding b without copying.
func newDecodedContent(b []byte) *Content {
	return &Content{src: byteSource(b), data: b, loaded: true}
}

// IsZero reports whether the body has no source.
func (c *Content) IsZero() bool {
	return c == nil || c.src == nil
}

// Bytes returns the body, reading the source on first call.
// The returned slice must not be modified.
func (c *Content) Bytes() ([]byte, error) {
	if c.IsZero() {
		return nil, nil
	}
	if !c.loaded {
		c.data, c.err = c.src.materialize()
		c.loaded = true
	}
	return c.data, c.err
}

// ContentType returns the raw Content-Type header value.
func (c *Content) ContentType() string {
	return c.Header.Get("Content-Type")
}

// MediaType returns the lower-cased media type of the Content-Type header,
// or "" when it is absent or malformed.
func (c *Content) MediaType() string {
	ct, err := parseContentType(c.ContentType())
	if err != nil {
		return ""
	}
	return ct.mediaType
}

// Charset returns the charset parameter of the Content-Type header.
func (c *Content) Charset() string {
	ct, err := parseContentType(c.ContentType())
	if err != nil {
		return ""
	}
	return ct.charset
}

// SetContentType replaces the Content-Type header. An empty mediaType
// removes it.
func (c *Content) SetContentType(mediaType, charset string) {
	if mediaType == "" {
		c.Header.Del("Content-Type")
		return
	}
	ct := contentType{mediaType: mediaType, charset: charset}
	if parsed, err := parseContentType(mediaType); err == nil {
		ct.mediaType = parsed.mediaType
		ct.params = parsed.params
		if charset == "" {
			ct.charset = parsed.charset
		}
	}
	c.Header.Set("Content-Type", ct.String())
}

// Text returns the body decoded with the declared charset, falling back
// to UTF-8.
func (c *Content) Text() (string, error) {
	b, err := c.Bytes()
	if err != nil {
		return "", err
	}
	return decodeText(b, c.Charset()), nil
}

// Clone returns a deep copy. A stream body is drained first.
func (c *Content) Clone() (*Content, error) {
	if c == nil {
		return nil, nil
	}
	out := &Content{Header: c.Header.Clone()}
	if c.IsZero() {
		return out, nil
	}
	b, err := c.Bytes()
	if err != nil {
		return nil, err
	}
	cp := bytes.Clone(b)
	if cp == nil {
		cp = []byte{}
	}
	out.src = byteSource(cp)
	out.data = cp
	out.loaded = true
	return out, nil
}
