package parcel

import (
	"errors"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// textMediaTypes lists the non-text/* media types whose bodies travel as
// literal text.
var textMediaTypes = map[string]bool{
	"application/x-javascript":          true,
	"application/javascript":            true,
	"application/json":                  true,
	"application/xml":                   true,
	"application/xhtml+xml":             true,
	"application/x-www-form-urlencoded": true,
}

// IsTextMediaType reports whether a body of the given media type may be
// written as literal text. An empty media type is not text.
func IsTextMediaType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if mt == "" {
		return false
	}
	return strings.HasPrefix(mt, "text/") || textMediaTypes[mt]
}

// UsesBase64 reports whether a body of the given media type is written as base64.
func UsesBase64(mediaType string) bool {
	return !IsTextMediaType(mediaType)
}

// contentType is a parsed Content-Type value.
type contentType struct {
	mediaType string
	charset   string
	params    map[string]string
}

var errMediaType = errors.New("malformed media type")

// parseContentType splits a Content-Type value into media type, charset and
// remaining parameters. Malformed parameters are dropped; a malformed media
// type is an error.
func parseContentType(value string) (contentType, error) {
	segments := strings.Split(value, ";")
	base := strings.TrimSpace(segments[0])
	mt, _, err := mime.ParseMediaType(base)
	if err != nil {
		return contentType{}, err
	}
	if !strings.Contains(mt, "/") {
		return contentType{}, errMediaType
	}

	ct := contentType{mediaType: mt}
	for _, seg := range segments[1:] {
		name, val, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		val = strings.Trim(strings.TrimSpace(val), `"`)
		if name == "" {
			continue
		}
		if name == "charset" {
			if ct.charset == "" {
				ct.charset = val
			}
			continue
		}
		if ct.params == nil {
			ct.params = make(map[string]string)
		}
		if _, dup := ct.params[name]; !dup {
			ct.params[name] = val
		}
	}
	return ct, nil
}

// String formats the content type back into a header value.
func (ct contentType) String() string {
	params := make(map[string]string, len(ct.params)+1)
	for k, v := range ct.params {
		params[k] = v
	}
	if ct.charset != "" {
		params["charset"] = ct.charset
	}
	if s := mime.FormatMediaType(ct.mediaType, params); s != "" {
		return s
	}
	// Values FormatMediaType refuses (e.g. a charset with spaces) still
	// travel verbatim.
	if ct.charset != "" {
		return ct.mediaType + "; charset=" + ct.charset
	}
	return ct.mediaType
}

// lookupCharset resolves a charset name. Unknown or unsupported names
// resolve to UTF-8, as does the empty name.
func lookupCharset(name string) (enc encoding.Encoding, known bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return unicode.UTF8, false
	}
	if e, err := ianaindex.IANA.Encoding(name); err == nil && e != nil {
		return e, true
	}
	if e, err := htmlindex.Get(name); err == nil && e != nil {
		return e, true
	}
	return unicode.UTF8, false
}

// decodeText turns body bytes into a string using the named charset.
func decodeText(b []byte, charset string) string {
	enc, _ := lookupCharset(charset)
	if enc == unicode.UTF8 {
		if utf8.Valid(b) {
			return string(b)
		}
		return strings.ToValidUTF8(string(b), "�")
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}

// encodeText turns a string into body bytes using the named charset.
// Runes the charset cannot represent are replaced.
func encodeText(s string, charset string) []byte {
	enc, _ := lookupCharset(charset)
	if enc == unicode.UTF8 {
		return []byte(s)
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}
