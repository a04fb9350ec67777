package parcel

import (
	"errors"
	"reflect"
	"testing"
)

func TestHeader_AddWithoutValidation(t *testing.T) {
	var h Header
	h.AddWithoutValidation("X-Test", "a")
	h.AddWithoutValidation("x-test", "b")
	h.AddWithoutValidation("Accept", "text/html", "application/json")

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	if got := h.Keys(); !reflect.DeepEqual(got, []string{"X-Test", "Accept"}) {
		t.Errorf("Keys() = %v, want [X-Test Accept]", got)
	}
	if got := h.Values("X-TEST"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Values() = %v, want [a b]", got)
	}
}

func TestHeader_ZeroValues(t *testing.T) {
	var h Header
	h.AddWithoutValidation("X-Empty")

	if !h.Has("x-empty") {
		t.Fatal("Has() = false for key added with no values")
	}
	if got := h.Get("X-Empty"); got != "" {
		t.Errorf("Get() = %q, want empty", got)
	}
	if got := h.Values("X-Empty"); len(got) != 0 {
		t.Errorf("Values() = %v, want none", got)
	}
}

func TestHeader_Add(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		values  []string
		wantErr bool
	}{
		{"valid", "X-Request-Id", []string{"abc"}, false},
		{"space in name", "Bad Name", []string{"x"}, true},
		{"colon in name", "Bad:Name", []string{"x"}, true},
		{"newline in value", "X-Test", []string{"a\r\nInjected: 1"}, true},
		{"empty name", "", []string{"x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Header
			err := h.Add(tt.key, tt.values...)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidHeader) {
					t.Errorf("Add() error = %v, want ErrInvalidHeader", err)
				}
				if h.Len() != 0 {
					t.Error("Add() stored an invalid header")
				}
				return
			}
			if err != nil {
				t.Fatalf("Add() error: %v", err)
			}
			if !h.Has(tt.key) {
				t.Error("Add() did not store the header")
			}
		})
	}
}

func TestHeader_SetAndDel(t *testing.T) {
	var h Header
	h.AddWithoutValidation("A", "1")
	h.AddWithoutValidation("B", "2")
	h.AddWithoutValidation("C", "3")

	h.Set("b", "two", "deux")
	if got := h.Keys(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("Set() moved the key: %v", got)
	}
	if got := h.Values("B"); !reflect.DeepEqual(got, []string{"two", "deux"}) {
		t.Errorf("Values() = %v, want [two deux]", got)
	}

	h.Set("D", "4")
	h.Del("a")
	if got := h.Keys(); !reflect.DeepEqual(got, []string{"B", "C", "D"}) {
		t.Errorf("Keys() = %v, want [B C D]", got)
	}
	h.Del("missing")
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}
}

func TestHeader_CloneIsDeep(t *testing.T) {
	var h Header
	h.AddWithoutValidation("X-Test", "a")

	c := h.Clone()
	c.AddWithoutValidation("X-Test", "b")
	c.AddWithoutValidation("X-Other", "c")

	if got := h.Values("X-Test"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("original changed: %v", got)
	}
	if h.Has("X-Other") {
		t.Error("original gained a key")
	}

	fields := h.Fields()
	fields[0].Values[0] = "mutated"
	if h.Get("X-Test") != "a" {
		t.Error("Fields() exposed internal storage")
	}
}
