// Package httpx converts between net/http messages and parcel messages.
//
// Incoming requests can be captured with FromRequest, encoded with a
// parcel.Codec, shipped elsewhere, and replayed with ToRequest. Responses
// travel the same way through FromResponse, ToResponse and WriteResponse.
package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zoobzio/parcel"
)

// RequestIDHeader is the header stamped by WithRequestID.
const RequestIDHeader = "X-Request-Id"

// Option configures a conversion from net/http.
type Option func(*options)

type options struct {
	requestID bool
}

// WithRequestID stamps a random UUID on captured requests that carry no
// X-Request-Id header.
func WithRequestID() Option {
	return func(o *options) {
		o.requestID = true
	}
}

// FromRequest captures r as a parcel request. The body is read in full
// and replaced, so r can still be served afterwards. Server requests with
// a relative URL are made absolute from r.Host and r.TLS.
func FromRequest(r *http.Request, opts ...Option) (*parcel.Request, error) {
	return fromRequest(r, true, opts)
}

func fromRequest(r *http.Request, withBody bool, opts []Option) (*parcel.Request, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	pr, err := parcel.NewRequest(r.Method, absoluteURL(r))
	if err != nil {
		return nil, err
	}
	if r.Proto != "" {
		pr.Version = r.Proto
	}

	var body []byte
	if withBody && r.Body != nil && r.Body != http.NoBody {
		body, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	pr.Content = copyHeader(&pr.Header, r.Header, body)
	if o.requestID && !pr.Header.Has(RequestIDHeader) {
		pr.Header.AddWithoutValidation(RequestIDHeader, uuid.New().String())
	}
	return pr, nil
}

// FromResponse captures resp as a parcel response, including the request
// line and headers of resp.Request. The body is read in full and replaced.
func FromResponse(resp *http.Response, opts ...Option) (*parcel.Response, error) {
	pr := parcel.NewResponse(resp.StatusCode)
	if resp.Status != "" {
		pr.ReasonPhrase = strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	}
	if resp.Proto != "" {
		pr.Version = resp.Proto
	}

	var body []byte
	if resp.Body != nil && resp.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	pr.Content = copyHeader(&pr.Header, resp.Header, body)

	if resp.Request != nil {
		req, err := fromRequest(resp.Request, false, opts)
		if err != nil {
			return nil, err
		}
		pr.Request = req
	}
	return pr, nil
}

// ToRequest builds an outgoing request from pr.
func ToRequest(ctx context.Context, pr *parcel.Request) (*http.Request, error) {
	if pr.URI == nil {
		return nil, fmt.Errorf("request has no URI")
	}
	body, err := contentBytes(pr.Content)
	if err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	r, err := http.NewRequestWithContext(ctx, pr.Method, pr.URI.String(), rd)
	if err != nil {
		return nil, err
	}
	writeHeader(r.Header, pr.Header, pr.Content)
	r.ContentLength = int64(len(body))
	return r, nil
}

// ToResponse builds a client-side response from pr. The Request field is
// set when pr carries its request.
func ToResponse(ctx context.Context, pr *parcel.Response) (*http.Response, error) {
	body, err := contentBytes(pr.Content)
	if err != nil {
		return nil, err
	}

	resp := &http.Response{
		Status:        strconv.Itoa(pr.StatusCode) + " " + pr.ReasonPhrase,
		StatusCode:    pr.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
	writeHeader(resp.Header, pr.Header, pr.Content)

	if pr.Request != nil {
		req, err := ToRequest(ctx, pr.Request)
		if err != nil {
			return nil, err
		}
		resp.Request = req
	}
	return resp, nil
}

// WriteResponse replays pr on w. The reason phrase is not sent; net/http
// always writes the standard text for the status code.
func WriteResponse(w http.ResponseWriter, pr *parcel.Response) error {
	if pr.StatusCode < 100 || pr.StatusCode > 999 {
		return fmt.Errorf("invalid status code %d", pr.StatusCode)
	}
	body, err := contentBytes(pr.Content)
	if err != nil {
		return err
	}

	writeHeader(w.Header(), pr.Header, pr.Content)
	if body != nil {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	w.WriteHeader(pr.StatusCode)
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// copyHeader splits src into message headers on dst and content headers
// on the returned body. Keys are taken in sorted order. A body is returned
// when there are bytes or content headers to hold.
func copyHeader(dst *parcel.Header, src http.Header, body []byte) *parcel.Content {
	var content *parcel.Content
	if len(body) > 0 {
		content = parcel.NewByteContent(body)
	}

	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if !parcel.IsContentHeader(k) {
			dst.AddWithoutValidation(k, src[k]...)
			continue
		}
		if content == nil {
			content = parcel.NewByteContent(nil)
		}
		content.Header.AddWithoutValidation(k, src[k]...)
	}
	return content
}

// writeHeader copies message and content headers onto dst. Content-Length
// is left to net/http.
func writeHeader(dst http.Header, h parcel.Header, content *parcel.Content) {
	addFields(dst, h.Fields())
	if content != nil {
		addFields(dst, content.Header.Fields())
	}
}

func addFields(dst http.Header, fields []parcel.HeaderField) {
	for _, f := range fields {
		if strings.EqualFold(f.Key, "Content-Length") {
			continue
		}
		for _, v := range f.Values {
			dst.Add(f.Key, v)
		}
	}
}

func contentBytes(c *parcel.Content) ([]byte, error) {
	if c.IsZero() {
		return nil, nil
	}
	b, err := c.Bytes()
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return b, nil
}

// absoluteURL returns r.URL as an absolute URL string.
func absoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	u := *r.URL
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	u.Host = r.Host
	return u.String()
}
