package parcel

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// DefaultVersion is the protocol version given to new messages.
const DefaultVersion = "HTTP/1.1"

// Request is an HTTP request message.
type Request struct {
	Version string   `parcel:"-"`
	Method  string   `parcel:"Method"`
	URI     *url.URL `parcel:"RequestUri"`
	Header  Header   `parcel:"Headers"`
	Content *Content `parcel:"Content"`

	// Response links a request to the response it produced. It is a
	// back-reference and never travels.
	Response *Response `parcel:"-"`

	// Properties carries process-local state alongside the message.
	Properties map[string]any `parcel:"-"`
}

// Response is an HTTP response message.
type Response struct {
	Version      string   `parcel:"-"`
	StatusCode   int      `parcel:"StatusCode"`
	ReasonPhrase string   `parcel:"ReasonPhrase"`
	Header       Header   `parcel:"Headers"`
	Content      *Content `parcel:"Content"`

	// Request is the request that produced this response, if known.
	Request *Request `parcel:"RequestMessage,omitempty"`

	// Properties carries process-local state alongside the message.
	Properties map[string]any `parcel:"-"`
}

// NewRequest returns a request for method and rawURL. An empty method
// means GET. rawURL may be empty; otherwise it must be absolute.
func NewRequest(method, rawURL string) (*Request, error) {
	if method == "" {
		method = http.MethodGet
	}
	if !ValidMethod(method) {
		return nil, fmt.Errorf("invalid method %q", method)
	}
	r := &Request{Version: DefaultVersion, Method: method}
	if rawURL != "" {
		u, err := parseAbsoluteURI(rawURL)
		if err != nil {
			return nil, err
		}
		r.URI = u
	}
	return r, nil
}

// NewResponse returns a response with the given status and its standard
// reason phrase.
func NewResponse(statusCode int) *Response {
	return &Response{
		Version:      DefaultVersion,
		StatusCode:   statusCode,
		ReasonPhrase: http.StatusText(statusCode),
	}
}

// Clone returns a deep copy of r. The Response back-reference is shared,
// not copied. Properties are copied shallowly.
func (r *Request) Clone() (*Request, error) {
	if r == nil {
		return nil, nil
	}
	out := *r
	out.Header = r.Header.Clone()
	if r.URI != nil {
		u := *r.URI
		if r.URI.User != nil {
			ui := *r.URI.User
			u.User = &ui
		}
		out.URI = &u
	}
	content, err := r.Content.Clone()
	if err != nil {
		return nil, err
	}
	out.Content = content
	out.Properties = cloneProperties(r.Properties)
	return &out, nil
}

// Clone returns a deep copy of r, including its Request.
func (r *Response) Clone() (*Response, error) {
	if r == nil {
		return nil, nil
	}
	out := *r
	out.Header = r.Header.Clone()
	content, err := r.Content.Clone()
	if err != nil {
		return nil, err
	}
	out.Content = content
	req, err := r.Request.Clone()
	if err != nil {
		return nil, err
	}
	out.Request = req
	out.Properties = cloneProperties(r.Properties)
	return &out, nil
}

func cloneProperties(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// contentHeaders are the headers that describe a body rather than a message.
var contentHeaders = map[string]bool{
	"allow":               true,
	"content-disposition": true,
	"content-encoding":    true,
	"content-language":    true,
	"content-length":      true,
	"content-location":    true,
	"content-md5":         true,
	"content-range":       true,
	"content-type":        true,
	"expires":             true,
	"last-modified":       true,
}

// IsContentHeader reports whether name belongs on a body rather than on
// the message envelope.
func IsContentHeader(name string) bool {
	return contentHeaders[strings.ToLower(strings.TrimSpace(name))]
}

// ValidMethod reports whether method is a valid HTTP method token.
func ValidMethod(method string) bool {
	if method == "" {
		return false
	}
	for i := 0; i < len(method); i++ {
		if !httpguts.IsTokenRune(rune(method[i])) {
			return false
		}
	}
	return true
}

// parseAbsoluteURI parses s and requires it to carry a scheme.
func parseAbsoluteURI(s string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || (u.Opaque == "" && u.Host == "" && u.Path == "") {
		return nil, fmt.Errorf("not an absolute URI: %q", s)
	}
	return u, nil
}
