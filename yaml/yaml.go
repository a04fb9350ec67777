// Package yaml provides a YAML format implementation.
package yaml

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/zoobzio/parcel"
	"gopkg.in/yaml.v3"
)

// yamlFormat implements parcel.Format for YAML.
type yamlFormat struct{}

// New returns a YAML format.
func New() parcel.Format {
	return &yamlFormat{}
}

// ContentType returns the MIME type for YAML.
func (f *yamlFormat) ContentType() string {
	return "application/yaml"
}

// Marshal encodes a document tree as YAML, keeping member order.
func (f *yamlFormat) Marshal(doc any) ([]byte, error) {
	node, err := toNode(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes the first YAML document in data.
func (f *yamlFormat) Unmarshal(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// toNode converts a document tree into a YAML node tree.
func toNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case parcel.Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, m := range t {
			val, err := toNode(m.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Key, err)
			}
			n.Content = append(n.Content, keyNode(m.Key), val)
		}
		return n, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(parcel.Object, len(keys))
		for i, k := range keys {
			obj[i] = parcel.Member{Key: k, Value: t[k]}
		}
		return toNode(obj)
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, e := range t {
			val, err := toNode(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, val)
		}
		return n, nil
	default:
		// Scalars go through the node encoder so ambiguous strings
		// such as "true" or "404" are quoted.
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return nil, err
		}
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("unsupported value of type %T", v)
		}
		return n, nil
	}
}

func keyNode(key string) *yaml.Node {
	n := &yaml.Node{}
	if err := n.Encode(key); err != nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key, Style: yaml.DoubleQuotedStyle}
	}
	return n
}

// normalize rewrites mappings with non-string keys as map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	}
	return v
}
