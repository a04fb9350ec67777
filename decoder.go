package parcel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode"
)

// decoder rebuilds messages from generic document trees.
// Malformed optional fields are skipped and reported through
// SignalFieldIgnored; only unreadable bodies fail the call.
type decoder struct {
	ctx context.Context
}

// request fills r from doc. Fields absent from doc keep their current value.
func (d *decoder) request(doc map[string]any, r *Request, path string) error {
	if v, ok := doc["Method"]; ok && v != nil {
		if m, ok := methodOf(v); ok {
			r.Method = m
		} else {
			d.ignore(path+"Method", "not a method token")
		}
	}

	if v, ok := doc["RequestUri"]; ok && v != nil {
		s, _ := stringOf(v)
		if u, err := parseAbsoluteURI(s); err == nil {
			r.URI = u
		} else {
			d.ignore(path+"RequestUri", err.Error())
		}
	}

	if v := doc["Content"]; hasValues(v) {
		c, err := d.body(v, path+"Content")
		if err != nil {
			return err
		}
		if c != nil {
			r.Content = c
		}
	}

	if v := doc["Headers"]; hasValues(v) {
		d.envelopeHeaders(v, &r.Header, r.Content, path+"Headers")
	}

	return nil
}

// response fills r from doc. Fields absent from doc keep their current value.
func (d *decoder) response(doc map[string]any, r *Response, path string) error {
	if v, ok := doc["StatusCode"]; ok && v != nil {
		if code, ok := statusOf(v); ok {
			r.StatusCode = code
		} else {
			d.ignore(path+"StatusCode", fmt.Sprintf("unknown status %v", v))
		}
	}

	if v, ok := doc["ReasonPhrase"]; ok {
		if s, ok := stringOf(v); ok {
			r.ReasonPhrase = s
		} else {
			d.ignore(path+"ReasonPhrase", "not a string")
		}
	}

	if v := doc["Content"]; hasValues(v) {
		c, err := d.body(v, path+"Content")
		if err != nil {
			return err
		}
		if c != nil {
			r.Content = c
		}
	}

	if v := doc["Headers"]; hasValues(v) {
		d.envelopeHeaders(v, &r.Header, r.Content, path+"Headers")
	}

	if v := doc["RequestMessage"]; hasValues(v) {
		m, ok := v.(map[string]any)
		if !ok {
			d.ignore(path+"RequestMessage", "not an object")
			return nil
		}
		req := &Request{Version: DefaultVersion, Method: http.MethodGet}
		if err := d.request(m, req, path+"RequestMessage."); err != nil {
			return err
		}
		r.Request = req
	}

	return nil
}

// body rebuilds a Content from its {Content, Headers} object.
func (d *decoder) body(v any, path string) (*Content, error) {
	doc, ok := v.(map[string]any)
	if !ok {
		d.ignore(path, "not an object")
		return nil, nil
	}

	var (
		ct     contentType
		hasCT  bool
		others []any
	)

	if hv := doc["Headers"]; hasValues(hv) {
		entries, ok := hv.([]any)
		if !ok {
			d.ignore(path+".Headers", "not an array")
		}
		for _, entry := range entries {
			m, ok := entry.(map[string]any)
			if !ok {
				d.ignore(path+".Headers", "entry is not an object")
				continue
			}
			key, ok := stringOf(m["Key"])
			if !ok || m["Key"] == nil || !hasPrefixFold(key, "Content-Type") {
				others = append(others, entry)
				continue
			}
			// Only the first value of the first well-formed Content-Type counts.
			if hasCT {
				continue
			}
			values := headerValues(m["Value"])
			if len(values) == 0 || values[0] == "" {
				continue
			}
			parsed, err := parseContentType(values[0])
			if err != nil {
				d.ignore(path+".Headers", fmt.Sprintf("malformed Content-Type %q", values[0]))
				continue
			}
			ct, hasCT = parsed, true
		}
	}

	var c *Content
	raw, present := doc["Content"]
	switch {
	case !present:
		c = newDecodedContent([]byte{})
		c.Header.Set("Content-Type", "text/plain; charset=utf-8")
	case UsesBase64(ct.mediaType):
		s, _ := stringOf(raw)
		b, err := decodeBase64(s)
		if err != nil {
			return nil, newDecodeError(path+".Content", err)
		}
		c = newDecodedContent(b)
	default:
		s, _ := stringOf(raw)
		c = newDecodedContent(encodeText(s, ct.charset))
	}

	if hasCT {
		if _, known := lookupCharset(ct.charset); ct.charset != "" && !known {
			d.ignore(path+".Headers", fmt.Sprintf("unknown charset %q, using utf-8", ct.charset))
		}
		c.Header.Set("Content-Type", ct.String())
	}

	for _, entry := range others {
		d.appendHeader(&c.Header, entry, path+".Headers")
	}

	return c, nil
}

// envelopeHeaders appends message headers. Content headers move to body,
// unless body already carries them, and are dropped without a body.
func (d *decoder) envelopeHeaders(v any, dst *Header, body *Content, path string) {
	entries, ok := v.([]any)
	if !ok {
		d.ignore(path, "not an array")
		return
	}
	for _, entry := range entries {
		key, values, ok := d.headerEntry(entry, path)
		if !ok {
			continue
		}
		if IsContentHeader(key) {
			switch {
			case body == nil:
				d.ignore(path, fmt.Sprintf("content header %s without a body", key))
			case body.Header.Has(key):
				d.ignore(path, fmt.Sprintf("content header %s already on the body", key))
			default:
				body.Header.AddWithoutValidation(key, values...)
			}
			continue
		}
		dst.AddWithoutValidation(key, values...)
	}
}

// appendHeader applies the header-append rule to a single entry.
func (d *decoder) appendHeader(dst *Header, entry any, path string) {
	if key, values, ok := d.headerEntry(entry, path); ok {
		dst.AddWithoutValidation(key, values...)
	}
}

// headerEntry reads a {Key, Value} entry. Entries without a key are
// skipped; an absent or empty value list becomes a single empty value.
func (d *decoder) headerEntry(entry any, path string) (string, []string, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		d.ignore(path, "entry is not an object")
		return "", nil, false
	}
	raw, ok := m["Key"]
	if !ok || raw == nil {
		return "", nil, false
	}
	key, ok := stringOf(raw)
	if !ok {
		d.ignore(path, "key is not a string")
		return "", nil, false
	}
	values := headerValues(m["Value"])
	if len(values) == 0 {
		values = []string{""}
	}
	return key, values, true
}

func (d *decoder) ignore(field, reason string) {
	emitFieldIgnored(d.ctx, field, reason)
}

// headerValues flattens a Value member. A bare scalar counts as one value.
func headerValues(v any) []string {
	switch vals := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, val := range vals {
			s, _ := stringOf(val)
			out = append(out, s)
		}
		return out
	default:
		if s, ok := stringOf(vals); ok {
			return []string{s}
		}
		return nil
	}
}

// hasValues reports whether v is an object with members or a non-empty array.
func hasValues(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	return false
}

// stringOf renders a scalar as text. Null renders as "".
func stringOf(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int8:
		return strconv.FormatInt(int64(t), 10), true
	case int16:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint8:
		return strconv.FormatUint(uint64(t), 10), true
	case uint16:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

// methodOf accepts a method token or an object carrying one under "Method".
func methodOf(v any) (string, bool) {
	if m, ok := v.(map[string]any); ok {
		v = m["Method"]
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if !ValidMethod(s) {
		return "", false
	}
	return s, true
}

// statusOf accepts a numeric status, a numeric string, or a status name
// such as "OK" or "NotFound".
func statusOf(v any) (int, bool) {
	var code int64
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			code = n
			break
		}
		c, ok := statusNames[normalizeStatusName(s)]
		return c, ok
	case float32, float64:
		f, _ := strconv.ParseFloat(mustString(t), 64)
		if f != math.Trunc(f) {
			return 0, false
		}
		code = int64(f)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		code = n
	case bool, nil:
		return 0, false
	default:
		s, ok := stringOf(t)
		if !ok {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		code = n
	}
	if code < 100 || code > 599 {
		return 0, false
	}
	return int(code), true
}

func mustString(v any) string {
	s, _ := stringOf(v)
	return s
}

// statusNames maps normalized status names to codes. It holds the
// net/http texts plus the enum names other HTTP stacks emit.
var statusNames = func() map[string]int {
	names := map[string]int{
		"ambiguous":        http.StatusMultipleChoices,
		"moved":            http.StatusMovedPermanently,
		"redirect":         http.StatusFound,
		"redirectmethod":   http.StatusSeeOther,
		"redirectkeepverb": http.StatusTemporaryRedirect,
		"unused":           306,
	}
	for code := 100; code < 600; code++ {
		if text := http.StatusText(code); text != "" {
			names[normalizeStatusName(text)] = code
		}
	}
	return names
}()

func normalizeStatusName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// decodeBase64 decodes standard base64, ignoring whitespace.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(s)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
