package parcel

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// countingReader counts how many times it is drained and closed.
type countingReader struct {
	r      io.Reader
	closed int
}

func (c *countingReader) Read(p []byte) (int, error) { return c.r.Read(p) }
func (c *countingReader) Close() error               { c.closed++; return nil }

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestNewStringContent_Defaults(t *testing.T) {
	c := NewStringContent("hello", "", "")

	if got := c.ContentType(); got != "text/plain; charset=utf-8" {
		t.Errorf("ContentType() = %q, want %q", got, "text/plain; charset=utf-8")
	}
	if got := c.MediaType(); got != "text/plain" {
		t.Errorf("MediaType() = %q, want text/plain", got)
	}
	if got := c.Charset(); got != "utf-8" {
		t.Errorf("Charset() = %q, want utf-8", got)
	}
	b, err := c.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if string(b) != "hello" {
		t.Errorf("Bytes() = %q, want hello", b)
	}
}

func TestNewStringContent_Charset(t *testing.T) {
	c := NewStringContent("café", "text/html", "iso-8859-1")

	b, err := c.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if !bytes.Equal(b, []byte{'c', 'a', 'f', 0xE9}) {
		t.Errorf("Bytes() = %x, want latin-1 bytes", b)
	}
	text, err := c.Text()
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if text != "café" {
		t.Errorf("Text() = %q, want café", text)
	}
}

func TestNewByteContent_CopiesInput(t *testing.T) {
	src := []byte{1, 2, 3}
	c := NewByteContent(src)
	src[0] = 9

	b, _ := c.Bytes()
	if b[0] != 1 {
		t.Error("NewByteContent() did not copy its input")
	}
	if c.ContentType() != "" {
		t.Errorf("ContentType() = %q, want empty", c.ContentType())
	}
}

func TestNewStreamContent_DrainsOnce(t *testing.T) {
	r := &countingReader{r: strings.NewReader("streamed")}
	c := NewStreamContent(r)

	for i := 0; i < 3; i++ {
		b, err := c.Bytes()
		if err != nil {
			t.Fatalf("Bytes() error: %v", err)
		}
		if string(b) != "streamed" {
			t.Errorf("Bytes() = %q, want streamed", b)
		}
	}
	if r.closed != 1 {
		t.Errorf("reader closed %d times, want 1", r.closed)
	}
}

func TestNewStreamContent_ReadError(t *testing.T) {
	c := NewStreamContent(failingReader{})
	if _, err := c.Bytes(); err == nil {
		t.Error("Bytes() error = nil, want read error")
	}
	if _, err := c.Clone(); err == nil {
		t.Error("Clone() error = nil, want read error")
	}
}

func TestContent_ZeroValue(t *testing.T) {
	var c Content
	if !c.IsZero() {
		t.Error("IsZero() = false for zero Content")
	}
	b, err := c.Bytes()
	if err != nil || b != nil {
		t.Errorf("Bytes() = %v, %v; want nil, nil", b, err)
	}

	var nilContent *Content
	if !nilContent.IsZero() {
		t.Error("IsZero() = false for nil *Content")
	}
}

func TestContent_SetContentType(t *testing.T) {
	c := NewByteContent([]byte("{}"))

	c.SetContentType("application/json", "")
	if got := c.ContentType(); got != "application/json" {
		t.Errorf("ContentType() = %q, want application/json", got)
	}

	c.SetContentType("text/plain; charset=iso-8859-1", "")
	if got := c.Charset(); got != "iso-8859-1" {
		t.Errorf("Charset() = %q, want iso-8859-1", got)
	}

	c.SetContentType("text/plain; charset=iso-8859-1", "utf-8")
	if got := c.Charset(); got != "utf-8" {
		t.Errorf("Charset() = %q, want explicit utf-8 to win", got)
	}

	c.SetContentType("", "")
	if c.Header.Has("Content-Type") {
		t.Error("SetContentType(\"\") did not remove the header")
	}
}

func TestContent_MalformedContentType(t *testing.T) {
	c := NewByteContent(nil)
	c.Header.Set("Content-Type", "not a media type")

	if got := c.MediaType(); got != "" {
		t.Errorf("MediaType() = %q, want empty", got)
	}
	if got := c.Charset(); got != "" {
		t.Errorf("Charset() = %q, want empty", got)
	}
}

func TestContent_Clone(t *testing.T) {
	c := NewStreamContent(strings.NewReader("payload"))
	c.Header.Set("Content-Type", "application/octet-stream")
	c.Header.Set("Content-Length", "7")

	clone, err := c.Clone()
	if err != nil {
		t.Fatalf("Clone() error: %v", err)
	}

	b, _ := clone.Bytes()
	if string(b) != "payload" {
		t.Errorf("clone Bytes() = %q, want payload", b)
	}
	orig, _ := c.Bytes()
	if string(orig) != "payload" {
		t.Errorf("original Bytes() = %q after Clone, want payload", orig)
	}

	clone.Header.Set("Content-Length", "8")
	if c.Header.Get("Content-Length") != "7" {
		t.Error("Clone() shares headers with the original")
	}

	var nilContent *Content
	if got, err := nilContent.Clone(); got != nil || err != nil {
		t.Errorf("nil Clone() = %v, %v; want nil, nil", got, err)
	}
}
