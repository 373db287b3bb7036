package databind

import (
	"fmt"
	"reflect"
	"sort"
)

// SchemaKind classifies a SchemaNode.
type SchemaKind uint8

// Schema kinds.
const (
	SchemaAny SchemaKind = iota
	SchemaNull
	SchemaScalar
	SchemaContainer
	SchemaMap
	SchemaObject
	SchemaOneOf
	SchemaRef
)

func (k SchemaKind) String() string {
	switch k {
	case SchemaNull:
		return "null"
	case SchemaScalar:
		return "scalar"
	case SchemaContainer:
		return "container"
	case SchemaMap:
		return "map"
	case SchemaObject:
		return "object"
	case SchemaOneOf:
		return "oneOf"
	case SchemaRef:
		return "ref"
	default:
		return "any"
	}
}

// ScalarKind is the token-level shape of a scalar.
type ScalarKind uint8

// Scalar kinds.
const (
	ScalarString ScalarKind = iota
	ScalarBoolean
	ScalarInteger
	ScalarNumber
	ScalarBinary
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarBoolean:
		return "boolean"
	case ScalarInteger:
		return "integer"
	case ScalarNumber:
		return "number"
	case ScalarBinary:
		return "binary"
	default:
		return "string"
	}
}

// SchemaNode describes the token shape a type serializes to.
type SchemaNode struct {
	Kind SchemaKind
	Name string // Type name of objects, target of refs

	Scalar ScalarKind
	Enum   []string

	Elem *SchemaNode // Container element or map value
	Key  *SchemaNode // Map key

	Properties []SchemaProperty

	Discriminator string
	Variants      []SchemaVariant
}

// SchemaProperty is one property of an object schema.
type SchemaProperty struct {
	Name     string
	Schema   *SchemaNode
	Required bool
}

// SchemaVariant is one subtype of a polymorphic schema.
type SchemaVariant struct {
	ID     string
	Schema *SchemaNode
}

// NullFormat describes a value that is always null.
func NullFormat() *SchemaNode { return &SchemaNode{Kind: SchemaNull} }

// AnyFormat describes a value of unknown shape.
func AnyFormat() *SchemaNode { return &SchemaNode{Kind: SchemaAny} }

// ScalarFormat describes a scalar of kind k.
func ScalarFormat(k ScalarKind) *SchemaNode { return &SchemaNode{Kind: SchemaScalar, Scalar: k} }

// ContainerFormat describes an ordered sequence of elem.
func ContainerFormat(elem *SchemaNode) *SchemaNode {
	return &SchemaNode{Kind: SchemaContainer, Elem: elem}
}

// MapFormat describes an object with arbitrary keys.
func MapFormat(key, elem *SchemaNode) *SchemaNode {
	return &SchemaNode{Kind: SchemaMap, Key: key, Elem: elem}
}

// ObjectFormat describes an object with the given properties.
func ObjectFormat(name string, props ...SchemaProperty) *SchemaNode {
	return &SchemaNode{Kind: SchemaObject, Name: name, Properties: props}
}

// RefFormat refers to the object schema named name, already on the path.
func RefFormat(name string) *SchemaNode { return &SchemaNode{Kind: SchemaRef, Name: name} }

// Visit describes the serialized shape of t. It walks the same cached
// strategies serialization uses and performs no I/O. Recursive types yield
// SchemaRef nodes.
func (r *Registry) Visit(t Type) (*SchemaNode, error) {
	v := &schemaVisitor{registry: r, stack: make(map[Type]bool)}
	st, err := r.ResolveSerializer(t)
	if err != nil {
		return nil, err
	}
	return v.describe(t, st)
}

type schemaVisitor struct {
	registry *Registry
	stack    map[Type]bool
}

func (v *schemaVisitor) describe(t Type, st Strategy) (*SchemaNode, error) {
	switch s := unwrap(st).(type) {
	case nullStrategy:
		return NullFormat(), nil

	case *scalarStrategy:
		return ScalarFormat(scalarKindOf(t.Kind())), nil

	case *bytesStrategy:
		return ScalarFormat(ScalarBinary), nil

	case *transformStrategy:
		return ScalarFormat(ScalarString), nil

	case *enumStrategy:
		n := ScalarFormat(ScalarString)
		n.Enum = append([]string(nil), s.table.names...)
		return n, nil

	case *textStrategy:
		if n := describedSchema(t); n != nil {
			return n, nil
		}
		return ScalarFormat(ScalarString), nil

	case *customStrategy:
		if n := describedSchema(t); n != nil {
			return n, nil
		}
		return AnyFormat(), nil

	case anyStrategy:
		return AnyFormat(), nil

	case *pointerStrategy:
		return v.describe(t.Elem(), s.elem)

	case *containerStrategy:
		elem, err := v.describe(t.Elem(), s.elem)
		if err != nil {
			return nil, err
		}
		return ContainerFormat(elem), nil

	case *mapStrategy:
		elem, err := v.describe(t.Elem(), s.elem)
		if err != nil {
			return nil, err
		}
		return MapFormat(keySchema(s.key), elem), nil

	case *orderedMapStrategy:
		elem, err := v.describe(TypeOf(s.valueType), s.elem)
		if err != nil {
			return nil, err
		}
		return MapFormat(keySchema(s.key), elem), nil

	case *beanStrategy:
		if v.stack[t] {
			return RefFormat(t.Name()), nil
		}
		v.stack[t] = true
		defer delete(v.stack, t)

		props := make([]SchemaProperty, 0, len(s.props))
		for _, p := range s.props {
			n, err := v.describe(p.Type, p.strategy)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", t.Name(), p.Name, err)
			}
			props = append(props, SchemaProperty{Name: p.Name, Schema: n, Required: p.Required})
		}
		return ObjectFormat(t.Name(), props...), nil

	case *polymorphicStrategy:
		n := &SchemaNode{Kind: SchemaOneOf, Name: t.Name(), Discriminator: s.property}
		for _, id := range sortedIDs(s.byID) {
			sub := s.byID[id]
			vn, err := v.describe(TypeOf(sub.typ), sub.strategy)
			if err != nil {
				return nil, err
			}
			n.Variants = append(n.Variants, SchemaVariant{ID: id, Schema: vn})
		}
		return n, nil

	case *lazyStrategy:
		_, err := s.resolved()
		return nil, err

	case SchemaDescriber:
		return s.DescribeSchema(), nil

	default:
		return AnyFormat(), nil
	}
}

func scalarKindOf(k reflect.Kind) ScalarKind {
	switch k {
	case reflect.Bool:
		return ScalarBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return ScalarInteger
	case reflect.Float32, reflect.Float64:
		return ScalarNumber
	default:
		return ScalarString
	}
}

func keySchema(kc keyCodec) *SchemaNode {
	if kc.typ.Implements(textMarshalerType) {
		return ScalarFormat(ScalarString)
	}
	return ScalarFormat(scalarKindOf(kc.typ.Kind()))
}

func describedSchema(t Type) *SchemaNode {
	rt := t.Reflect()
	if rt == nil {
		return nil
	}
	if d, ok := asInterface[SchemaDescriber](reflect.New(rt).Elem()); ok {
		return d.DescribeSchema()
	}
	return nil
}

func sortedIDs(m map[string]*polySubtype) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// JSONSchema renders n as a JSON-Schema-like document. Object schemas that
// are referenced recursively are also emitted under "$defs".
func (n *SchemaNode) JSONSchema() map[string]any {
	refs := map[string]bool{}
	n.collectRefs(refs)

	defs := map[string]any{}
	out := n.render(refs, defs)
	if len(defs) > 0 {
		out["$defs"] = defs
	}
	return out
}

func (n *SchemaNode) collectRefs(refs map[string]bool) {
	if n == nil {
		return
	}
	if n.Kind == SchemaRef {
		refs[n.Name] = true
	}
	n.Elem.collectRefs(refs)
	n.Key.collectRefs(refs)
	for _, p := range n.Properties {
		p.Schema.collectRefs(refs)
	}
	for _, vr := range n.Variants {
		vr.Schema.collectRefs(refs)
	}
}

func (n *SchemaNode) render(refs map[string]bool, defs map[string]any) map[string]any {
	if n == nil {
		return map[string]any{}
	}
	switch n.Kind {
	case SchemaNull:
		return map[string]any{"type": "null"}

	case SchemaScalar:
		out := map[string]any{}
		switch n.Scalar {
		case ScalarBinary:
			out["type"] = "string"
			out["contentEncoding"] = "base64"
		default:
			out["type"] = n.Scalar.String()
		}
		if len(n.Enum) > 0 {
			enum := make([]any, len(n.Enum))
			for i, e := range n.Enum {
				enum[i] = e
			}
			out["enum"] = enum
		}
		return out

	case SchemaContainer:
		return map[string]any{"type": "array", "items": n.Elem.render(refs, defs)}

	case SchemaMap:
		return map[string]any{"type": "object", "additionalProperties": n.Elem.render(refs, defs)}

	case SchemaObject:
		props := map[string]any{}
		var required []any
		for _, p := range n.Properties {
			props[p.Name] = p.Schema.render(refs, defs)
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out := map[string]any{"type": "object", "properties": props}
		if n.Name != "" {
			out["title"] = n.Name
		}
		if len(required) > 0 {
			out["required"] = required
		}
		if refs[n.Name] {
			if _, ok := defs[n.Name]; !ok {
				defs[n.Name] = out
			}
		}
		return out

	case SchemaOneOf:
		variants := make([]any, 0, len(n.Variants))
		mapping := map[string]any{}
		for _, vr := range n.Variants {
			variants = append(variants, vr.Schema.render(refs, defs))
			mapping[vr.ID] = vr.Schema.Name
		}
		return map[string]any{
			"oneOf": variants,
			"discriminator": map[string]any{
				"propertyName": n.Discriminator,
				"mapping":      mapping,
			},
		}

	case SchemaRef:
		return map[string]any{"$ref": "#/$defs/" + n.Name}

	default:
		return map[string]any{}
	}
}
