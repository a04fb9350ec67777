package parcel

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strings"
	"testing"
	"time"
)

type envelope struct {
	ID       string            `parcel:"Id"`
	Trace    string            `parcel:"Trace,omitempty"`
	Count    int               `parcel:",omitempty"`
	Internal map[string]string `parcel:"-"`
	Labels   map[string]string
	Payload  []byte
	Sent     time.Time
	Link     *url.URL
	hidden   string //nolint:unused // unexported fields never reach the wire
}

type node struct {
	Name string `parcel:"Name"`
	Next *node  `parcel:"Next,omitempty"`
}

type money struct {
	cents int64
}

func (m money) MarshalParcel() (any, error) {
	return Object{{Key: "Amount", Value: float64(m.cents) / 100}, {Key: "Currency", Value: "EUR"}}, nil
}

type brokenMarshaler struct{}

func (*brokenMarshaler) MarshalParcel() (any, error) {
	return nil, errors.New("cannot marshal")
}

type invoice struct {
	Total money
	Tax   *money
	Fee   brokenMarshaler
}

func encodeString(t *testing.T, v any) string {
	t.Helper()
	data, err := defaultCodec.Encode(context.Background(), v)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	return string(data)
}

func TestEncode_StructTags(t *testing.T) {
	link, _ := url.Parse("https://example.com/x")
	v := envelope{
		ID:       "e-1",
		Internal: map[string]string{"secret": "s"},
		Labels:   map[string]string{"b": "2", "a": "1"},
		Payload:  []byte("hi"),
		Sent:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Link:     link,
		hidden:   "h",
	}

	got := encodeString(t, v)
	want := `{"Id":"e-1","Labels":{"a":"1","b":"2"},"Payload":"aGk=","Sent":"2024-05-01T12:00:00Z","Link":"https://example.com/x"}`
	if got != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", got, want)
	}

	v.Trace = "t"
	v.Count = 3
	got = encodeString(t, &v)
	if !strings.Contains(got, `"Trace":"t","Count":3`) {
		t.Errorf("Encode() = %s, want Trace and Count", got)
	}
}

func TestEncode_Marshaler(t *testing.T) {
	got := encodeString(t, struct {
		Total money
		Tax   *money
	}{Total: money{cents: 1250}})

	want := `{"Total":{"Amount":12.5,"Currency":"EUR"},"Tax":null}`
	if got != want {
		t.Errorf("Encode() = %s, want %s", got, want)
	}
}

func TestEncode_EmbeddedStructs(t *testing.T) {
	got := encodeString(t, withEmbedded{Base: Base{ID: "1", Kind: "inner"}, Name: "n", Kind: "outer"})
	if want := `{"Id":"1","Name":"n","Kind":"outer"}`; got != want {
		t.Errorf("Encode() = %s, want %s", got, want)
	}

	got = encodeString(t, withPointerEmbedded{Base: &Base{ID: "2"}, Name: "n"})
	if want := `{"Id":"2","Kind":"","Name":"n"}`; got != want {
		t.Errorf("Encode() = %s, want %s", got, want)
	}

	got = encodeString(t, withPointerEmbedded{Name: "n"})
	if want := `{"Name":"n"}`; got != want {
		t.Errorf("Encode(nil embedded) = %s, want %s", got, want)
	}

	got = encodeString(t, withNamedEmbedded{Base: Base{ID: "3"}})
	if want := `{"base":{"Id":"3","Kind":""},"Name":""}`; got != want {
		t.Errorf("Encode(tagged embedded) = %s, want %s", got, want)
	}
}

func TestEncode_MarshalerError(t *testing.T) {
	_, err := defaultCodec.Encode(context.Background(), &invoice{})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("Encode() error = %v, want ErrEncode", err)
	}
	var ee *EncodeError
	if !errors.As(err, &ee) || ee.Field != "Fee" {
		t.Errorf("EncodeError = %v, want field Fee", err)
	}
}

func TestEncode_BreaksPointerCycles(t *testing.T) {
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	got := encodeString(t, a)
	if got != `{"Name":"a","Next":{"Name":"b"}}` {
		t.Errorf("Encode() = %s", got)
	}

	self := &node{Name: "self"}
	self.Next = self
	if got := encodeString(t, self); got != `{"Name":"self"}` {
		t.Errorf("Encode() = %s", got)
	}
}

func TestEncode_BreaksMapAndSliceCycles(t *testing.T) {
	m := map[string]any{"name": "root"}
	m["self"] = m
	if got := encodeString(t, m); got != `{"name":"root"}` {
		t.Errorf("Encode(map) = %s", got)
	}

	s := make([]any, 2)
	s[0] = "first"
	s[1] = s
	if got := encodeString(t, s); got != `["first"]` {
		t.Errorf("Encode(slice) = %s", got)
	}
}

func TestEncode_SharedReferencesAreNotCycles(t *testing.T) {
	shared := &node{Name: "shared"}
	v := struct {
		A *node
		B *node
	}{A: shared, B: shared}

	got := encodeString(t, v)
	if got != `{"A":{"Name":"shared"},"B":{"Name":"shared"}}` {
		t.Errorf("Encode() = %s", got)
	}
}

func TestEncode_ResponseRequestCycle(t *testing.T) {
	req, _ := NewRequest("GET", "https://example.com")
	res := NewResponse(200)
	res.Request = req
	req.Response = res

	type exchange struct {
		Response *Response
		Request  *Request
		Previous *exchange
	}
	x := &exchange{Response: res, Request: req}
	x.Previous = x

	got := encodeString(t, x)
	if strings.Count(got, `"Method":"GET"`) != 2 {
		t.Errorf("Encode() = %s", got)
	}
	if strings.Contains(got, "Previous") {
		t.Errorf("cyclic member not omitted: %s", got)
	}
}

func TestEncode_Scalars(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, "null"},
		{"bool", true, "true"},
		{"int", -7, "-7"},
		{"uint", uint8(200), "200"},
		{"float", 1.5, "1.5"},
		{"string", "a<b>&c", `"a<b>&c"`},
		{"int map keys", map[int]string{2: "b", 10: "a"}, `{"10":"a","2":"b"}`},
		{"array", [2]int{1, 2}, "[1,2]"},
		{"nil slice", []string(nil), "null"},
		{"empty slice", []string{}, "[]"},
		{"header", func() Header {
			var h Header
			h.AddWithoutValidation("A", "1")
			return h
		}(), `[{"Key":"A","Value":["1"]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encodeString(t, tt.v); got != tt.want {
				t.Errorf("Encode(%v) = %s, want %s", tt.v, got, tt.want)
			}
		})
	}
}

func TestEncode_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		v    any
	}{
		{"channel", struct{ C chan int }{C: make(chan int)}},
		{"func", struct{ F func() }{F: func() {}}},
		{"NaN", struct{ F float64 }{F: math.NaN()}},
		{"struct map key", map[struct{ A int }]int{{A: 1}: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := defaultCodec.Encode(context.Background(), tt.v); !errors.Is(err, ErrEncode) {
				t.Errorf("Encode() error = %v, want ErrEncode", err)
			}
		})
	}
}

func TestEncode_ContentValueField(t *testing.T) {
	v := struct {
		Body Content
	}{Body: *NewStringContent("x", "text/plain", "")}

	got := encodeString(t, &v)
	want := `{"Body":{"Content":"x","Headers":[{"Key":"Content-Type","Value":["text/plain; charset=utf-8"]}]}}`
	if got != want {
		t.Errorf("Encode() = %s, want %s", got, want)
	}
}

func TestIsEmptyValue(t *testing.T) {
	var h Header
	var p *node
	empties := []any{"", 0, int8(0), uint(0), 0.0, false, []int{}, map[string]int{}, p, h}
	for _, v := range empties {
		if !isEmptyValue(valueOf(v)) {
			t.Errorf("isEmptyValue(%#v) = false", v)
		}
	}

	h.AddWithoutValidation("A")
	for _, v := range []any{"x", 1, true, []int{1}, &node{}, h} {
		if isEmptyValue(valueOf(v)) {
			t.Errorf("isEmptyValue(%#v) = true", v)
		}
	}
}
