// Package yaml provides the YAML token port.
package yaml

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zoobzio/databind"
)

// ContentType is the MIME type of the YAML format.
const ContentType = "application/yaml"

// maxAliasDepth bounds alias expansion.
const maxAliasDepth = 64

type yamlFormat struct{}

// New returns the YAML format.
func New() databind.Format {
	return yamlFormat{}
}

func (yamlFormat) ContentType() string { return ContentType }

// NewWriter returns a writer that collects the value and encodes it as one
// YAML document on Flush.
func (yamlFormat) NewWriter(w io.Writer) databind.TokenWriter {
	return &writer{TokenBuffer: databind.NewTokenBuffer(), w: w}
}

// NewReader parses the first document of r. An empty stream yields no tokens.
func (yamlFormat) NewReader(r io.Reader) (databind.TokenReader, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return databind.NewTokenBuffer().Reader(), nil
		}
		return nil, fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
	}
	n, err := fromYAML(&doc, 0)
	if err != nil {
		return nil, err
	}
	return n.Reader(), nil
}

type writer struct {
	*databind.TokenBuffer
	w io.Writer
}

func (w *writer) Flush() error {
	if w.Len() == 0 {
		return nil
	}
	n, err := w.Node()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w.w)
	enc.SetIndent(2)
	if err := enc.Encode(toYAML(n)); err != nil {
		return err
	}
	w.Reset()
	return enc.Close()
}

func toYAML(n *databind.Node) *yaml.Node {
	switch n.Kind {
	case databind.TokenStartObject:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range n.Fields {
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Name},
				toYAML(f.Value))
		}
		return out
	case databind.TokenStartArray:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.Items {
			out.Content = append(out.Content, toYAML(item))
		}
		return out
	case databind.TokenString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.Text}
	case databind.TokenNumber:
		return numberNode(n.Number)
	case databind.TokenTrue:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"}
	case databind.TokenFalse:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "false"}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func numberNode(num databind.Number) *yaml.Node {
	if num.Kind() != databind.NumberFloat {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: num.String()}
	}
	f := num.Float64()
	v := num.String()
	switch {
	case math.IsNaN(f):
		v = ".nan"
	case math.IsInf(f, 1):
		v = ".inf"
	case math.IsInf(f, -1):
		v = "-.inf"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v}
}

func fromYAML(y *yaml.Node, depth int) (*databind.Node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return &databind.Node{Kind: databind.TokenNull}, nil
		}
		return fromYAML(y.Content[0], depth)

	case yaml.AliasNode:
		if depth >= maxAliasDepth {
			return nil, fmt.Errorf("%w: alias nesting exceeds %d", databind.ErrMalformedInput, maxAliasDepth)
		}
		return fromYAML(y.Alias, depth+1)

	case yaml.MappingNode:
		out := &databind.Node{Kind: databind.TokenStartObject, Fields: []databind.NodeField{}}
		for i := 0; i+1 < len(y.Content); i += 2 {
			k, v := y.Content[i], y.Content[i+1]
			if k.ShortTag() == "!!merge" {
				merged, err := fromYAML(v, depth+1)
				if err != nil {
					return nil, err
				}
				if merged.Kind != databind.TokenStartObject {
					return nil, fmt.Errorf("%w: merge of non-mapping at line %d", databind.ErrMalformedInput, k.Line)
				}
				out.Fields = append(out.Fields, merged.Fields...)
				continue
			}
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: non-scalar key at line %d", databind.ErrMalformedInput, k.Line)
			}
			val, err := fromYAML(v, depth)
			if err != nil {
				return nil, err
			}
			out.Fields = append(out.Fields, databind.NodeField{Name: k.Value, Value: val})
		}
		return out, nil

	case yaml.SequenceNode:
		out := &databind.Node{Kind: databind.TokenStartArray, Items: []*databind.Node{}}
		for _, c := range y.Content {
			item, err := fromYAML(c, depth)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, item)
		}
		return out, nil

	case yaml.ScalarNode:
		return scalar(y)

	default:
		return nil, fmt.Errorf("%w: unsupported node kind %d", databind.ErrMalformedInput, y.Kind)
	}
}

func scalar(y *yaml.Node) (*databind.Node, error) {
	switch y.ShortTag() {
	case "!!null":
		return &databind.Node{Kind: databind.TokenNull}, nil
	case "!!bool":
		var b bool
		if err := y.Decode(&b); err != nil {
			return nil, fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
		}
		if b {
			return &databind.Node{Kind: databind.TokenTrue}, nil
		}
		return &databind.Node{Kind: databind.TokenFalse}, nil
	case "!!int", "!!float":
		n, err := number(y)
		if err != nil {
			return nil, err
		}
		return &databind.Node{Kind: databind.TokenNumber, Number: n}, nil
	default:
		return &databind.Node{Kind: databind.TokenString, Text: y.Value}, nil
	}
}

// number keeps decimal literals as written and lets yaml resolve the rest
// (hex, octal, underscores, .inf).
func number(y *yaml.Node) (databind.Number, error) {
	if n, err := databind.ParseNumber(y.Value); err == nil {
		return n, nil
	}
	var v any
	if err := y.Decode(&v); err != nil {
		return databind.Number{}, fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
	}
	switch x := v.(type) {
	case int:
		return databind.IntNumber(int64(x)), nil
	case int64:
		return databind.IntNumber(x), nil
	case uint64:
		return databind.UintNumber(x), nil
	case float64:
		return databind.FloatNumber(x), nil
	default:
		return databind.Number{}, fmt.Errorf("%w: number %s decoded as %T", databind.ErrMalformedInput, strconv.Quote(y.Value), v)
	}
}
