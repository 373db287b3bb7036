package databind

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Type is the canonical identity of a bindable type.
//
// Descriptors are interned per reflect.Type, so two descriptors for the same
// shape and parameters are the same value: == compares them structurally and
// a Type can key a map directly.
type Type struct {
	n *typeNode
}

type typeNode struct {
	rt   reflect.Type
	raw  string
	name string

	// params are computed on first use so self-referential shapes such as
	// type Tree map[string]Tree intern without recursing.
	once   sync.Once
	params []Type
}

var (
	typeNodes sync.Map // map[reflect.Type]*typeNode

	nullNode = &typeNode{raw: "null", name: "null"}

	// NullType describes the untyped nil.
	NullType = Type{n: nullNode}
)

// TypeOf returns the canonical descriptor for rt. A nil rt yields NullType.
func TypeOf(rt reflect.Type) Type {
	if rt == nil {
		return NullType
	}
	if n, ok := typeNodes.Load(rt); ok {
		return Type{n: n.(*typeNode)}
	}

	n := &typeNode{rt: rt, raw: rawName(rt), name: rt.String()}
	actual, _ := typeNodes.LoadOrStore(rt, n)
	return Type{n: actual.(*typeNode)}
}

func (n *typeNode) parameters() []Type {
	n.once.Do(func() {
		if n.rt == nil {
			return
		}
		switch n.rt.Kind() {
		case reflect.Slice, reflect.Array, reflect.Pointer:
			n.params = []Type{TypeOf(n.rt.Elem())}
		case reflect.Map:
			n.params = []Type{TypeOf(n.rt.Key()), TypeOf(n.rt.Elem())}
		}
	})
	return n.params
}

// TypeFor returns the canonical descriptor for T.
func TypeFor[T any]() Type {
	return TypeOf(reflect.TypeFor[T]())
}

// Of constructs the descriptor for raw instantiated with params.
//
// raw supplies the erased shape: for slices, arrays and pointers exactly one
// parameter is required, for maps exactly two (key, value), and any other
// shape takes none. The element types of raw itself are ignored, so
// Of(reflect.TypeFor[[]int](), TypeFor[string]()) describes []string.
func Of(raw reflect.Type, params ...Type) (Type, error) {
	if raw == nil {
		if len(params) != 0 {
			return Type{}, fmt.Errorf("%w: null takes no parameters, got %d", ErrArity, len(params))
		}
		return NullType, nil
	}
	for i, p := range params {
		if p.IsZero() || p.n.rt == nil {
			return Type{}, fmt.Errorf("%w: parameter %d of %s is not a concrete type", ErrArity, i, raw)
		}
	}

	want := arity(raw)
	if len(params) != want {
		return Type{}, fmt.Errorf("%w: %s takes %d parameters, got %d", ErrArity, rawName(raw), want, len(params))
	}

	switch raw.Kind() {
	case reflect.Slice:
		return TypeOf(reflect.SliceOf(params[0].n.rt)), nil
	case reflect.Array:
		return TypeOf(reflect.ArrayOf(raw.Len(), params[0].n.rt)), nil
	case reflect.Pointer:
		return TypeOf(reflect.PointerTo(params[0].n.rt)), nil
	case reflect.Map:
		if !params[0].n.rt.Comparable() {
			return Type{}, fmt.Errorf("%w: map key %s is not comparable", ErrArity, params[0])
		}
		return TypeOf(reflect.MapOf(params[0].n.rt, params[1].n.rt)), nil
	default:
		return TypeOf(raw), nil
	}
}

// MustOf is like Of but panics on arity errors. Intended for package-level
// descriptor variables.
func MustOf(raw reflect.Type, params ...Type) Type {
	t, err := Of(raw, params...)
	if err != nil {
		panic(err)
	}
	return t
}

func arity(rt reflect.Type) int {
	switch rt.Kind() {
	case reflect.Slice, reflect.Array, reflect.Pointer:
		return 1
	case reflect.Map:
		return 2
	default:
		return 0
	}
}

func rawName(rt reflect.Type) string {
	switch rt.Kind() {
	case reflect.Slice:
		return "[]"
	case reflect.Array:
		return fmt.Sprintf("[%d]", rt.Len())
	case reflect.Pointer:
		return "*"
	case reflect.Map:
		return "map"
	default:
		return qualifiedName(rt)
	}
}

func qualifiedName(rt reflect.Type) string {
	if rt.Name() == "" || rt.PkgPath() == "" {
		return rt.String()
	}
	return rt.PkgPath() + "." + rt.Name()
}

// IsZero reports whether t is the zero descriptor (not even NullType).
func (t Type) IsZero() bool {
	return t.n == nil
}

// Reflect returns the underlying reflect.Type, nil for NullType.
func (t Type) Reflect() reflect.Type {
	if t.n == nil {
		return nil
	}
	return t.n.rt
}

// Raw returns the erased identity of the type.
func (t Type) Raw() string {
	if t.n == nil {
		return ""
	}
	return t.n.raw
}

// Params returns the ordered type parameters. The slice is a copy.
func (t Type) Params() []Type {
	if t.n == nil {
		return nil
	}
	params := t.n.parameters()
	if len(params) == 0 {
		return nil
	}
	out := make([]Type, len(params))
	copy(out, params)
	return out
}

// Kind returns the reflect kind, reflect.Invalid for NullType.
func (t Type) Kind() reflect.Kind {
	if t.n == nil || t.n.rt == nil {
		return reflect.Invalid
	}
	return t.n.rt.Kind()
}

// Name returns a short human-readable name suitable for schema references.
func (t Type) Name() string {
	if t.n == nil {
		return ""
	}
	if t.n.rt != nil && t.n.rt.Name() != "" {
		return t.n.rt.Name()
	}
	return t.n.name
}

// String renders named types by their qualified name and unnamed composite
// shapes as raw[params...].
func (t Type) String() string {
	if t.n == nil {
		return "<invalid>"
	}
	if t.n.rt == nil || t.n.rt.Name() != "" {
		if t.n.rt != nil {
			return qualifiedName(t.n.rt)
		}
		return t.n.raw
	}
	params := t.n.parameters()
	if len(params) == 0 {
		return t.n.raw
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return t.n.raw + "[" + strings.Join(parts, ", ") + "]"
}

// Elem returns the element descriptor of pointers, slices, arrays and maps.
func (t Type) Elem() Type {
	if t.n == nil {
		return Type{}
	}
	params := t.n.parameters()
	if len(params) == 0 {
		return Type{}
	}
	return params[len(params)-1]
}

// Key returns the key descriptor of a map type.
func (t Type) Key() Type {
	if t.Kind() != reflect.Map {
		return Type{}
	}
	return t.n.parameters()[0]
}
