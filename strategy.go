package databind

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"reflect"
	"sort"
	"sync/atomic"
)

// Strategy serializes and deserializes one type shape.
//
// Serialize writes v, which need not be addressable. Deserialize reads the
// value whose first token is current on r into the settable v, leaving r on
// the value's last token. Strategies are immutable once resolved and safe for
// concurrent use.
type Strategy interface {
	Serialize(c *Context, w TokenWriter, v reflect.Value) error
	Deserialize(c *Context, r TokenReader, v reflect.Value) error
}

// Null is the process-wide strategy for the untyped nil. It writes exactly
// one null token and reads a null token into the zero value.
var Null Strategy = nullStrategy{}

type nullStrategy struct{}

func (nullStrategy) Serialize(_ *Context, w TokenWriter, _ reflect.Value) error {
	return w.WriteNull()
}

func (nullStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if tok := r.CurrentToken(); tok != TokenNull {
		return c.conversionError(NullType, tok, nil)
	}
	if v.IsValid() && v.CanSet() {
		v.SetZero()
	}
	return nil
}

// readNull consumes a null token into v's zero value.
func readNull(r TokenReader, v reflect.Value) bool {
	if r.CurrentToken() != TokenNull {
		return false
	}
	v.SetZero()
	return true
}

// scalarStrategy binds booleans, integers, floats and strings.
type scalarStrategy struct {
	typ Type
}

func (s *scalarStrategy) Serialize(_ *Context, w TokenWriter, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		return w.WriteBoolean(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return w.WriteNumber(IntNumber(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return w.WriteNumber(UintNumber(v.Uint()))
	case reflect.Float32, reflect.Float64:
		return w.WriteNumber(FloatNumber(v.Float()))
	default:
		return w.WriteString(v.String())
	}
}

func (s *scalarStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	tok := r.CurrentToken()
	switch v.Kind() {
	case reflect.Bool:
		switch tok {
		case TokenTrue:
			v.SetBool(true)
			return nil
		case TokenFalse:
			v.SetBool(false)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if tok == TokenNumber {
			n, err := r.NumberValue()
			if err != nil {
				return c.annotate(err)
			}
			i, err := n.Int64()
			if err == nil && v.OverflowInt(i) {
				err = fmt.Errorf("%s overflows %s", n, v.Type())
			}
			if err != nil {
				return c.conversionError(s.typ, tok, err)
			}
			v.SetInt(i)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if tok == TokenNumber {
			n, err := r.NumberValue()
			if err != nil {
				return c.annotate(err)
			}
			u, err := n.Uint64()
			if err == nil && v.OverflowUint(u) {
				err = fmt.Errorf("%s overflows %s", n, v.Type())
			}
			if err != nil {
				return c.conversionError(s.typ, tok, err)
			}
			v.SetUint(u)
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if tok == TokenNumber {
			n, err := r.NumberValue()
			if err != nil {
				return c.annotate(err)
			}
			f := n.Float64()
			if v.OverflowFloat(f) {
				return c.conversionError(s.typ, tok, fmt.Errorf("%s overflows %s", n, v.Type()))
			}
			v.SetFloat(f)
			return nil
		}
	case reflect.String:
		if tok == TokenString {
			text, err := r.Text()
			if err != nil {
				return c.annotate(err)
			}
			v.SetString(text)
			return nil
		}
	}
	return c.conversionError(s.typ, tok, nil)
}

// bytesStrategy binds []byte as base64 text.
type bytesStrategy struct {
	typ Type
}

func (s *bytesStrategy) Serialize(_ *Context, w TokenWriter, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	return w.WriteString(base64.StdEncoding.EncodeToString(v.Bytes()))
}

func (s *bytesStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if tok := r.CurrentToken(); tok != TokenString {
		return c.conversionError(s.typ, tok, nil)
	}
	text, err := r.Text()
	if err != nil {
		return c.annotate(err)
	}
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return c.conversionError(s.typ, TokenString, err)
	}
	v.SetBytes(b)
	return nil
}

var (
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// textStrategy binds encoding.TextMarshaler / TextUnmarshaler types as strings.
type textStrategy struct {
	typ Type
}

func (s *textStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	m, ok := asInterface[encoding.TextMarshaler](v)
	if !ok {
		return w.WriteNull()
	}
	text, err := m.MarshalText()
	if err != nil {
		return c.conversionError(s.typ, TokenString, err)
	}
	return w.WriteString(string(text))
}

func (s *textStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if tok := r.CurrentToken(); tok != TokenString {
		return c.conversionError(s.typ, tok, nil)
	}
	text, err := r.Text()
	if err != nil {
		return c.annotate(err)
	}
	u, ok := asInterface[encoding.TextUnmarshaler](v)
	if !ok {
		return &UnsupportedTypeError{Type: s.typ, Reason: "not a TextUnmarshaler"}
	}
	if err := u.UnmarshalText([]byte(text)); err != nil {
		return c.conversionError(s.typ, TokenString, err)
	}
	return nil
}

// asInterface returns v (or its address, or a copy's address) as I.
func asInterface[I any](v reflect.Value) (I, bool) {
	var zero I
	it := reflect.TypeFor[I]()
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return zero, false
	}
	if v.Type().Implements(it) {
		return v.Interface().(I), true
	}
	if v.CanAddr() && v.Addr().Type().Implements(it) {
		return v.Addr().Interface().(I), true
	}
	if reflect.PointerTo(v.Type()).Implements(it) {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p.Interface().(I), true
	}
	return zero, false
}

// enumTable maps the values of an enumeration to their names.
type enumTable struct {
	typ     Type
	byName  map[string]reflect.Value
	byValue map[any]string
	names   []string
}

func newEnumTable(t Type, names map[any]string) *enumTable {
	e := &enumTable{
		typ:     t,
		byName:  make(map[string]reflect.Value, len(names)),
		byValue: make(map[any]string, len(names)),
	}
	for v, name := range names {
		e.byName[name] = reflect.ValueOf(v)
		e.byValue[v] = name
		e.names = append(e.names, name)
	}
	sort.Strings(e.names)
	return e
}

// enumStrategy binds a registered enumeration by name.
type enumStrategy struct {
	table *enumTable
}

func (s *enumStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	name, ok := s.table.byValue[v.Interface()]
	if !ok {
		return c.conversionError(s.table.typ, TokenString, fmt.Errorf("%v is not a member of %s", v.Interface(), s.table.typ))
	}
	return w.WriteString(name)
}

func (s *enumStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if tok := r.CurrentToken(); tok != TokenString {
		return c.conversionError(s.table.typ, tok, nil)
	}
	name, err := r.Text()
	if err != nil {
		return c.annotate(err)
	}
	member, ok := s.table.byName[name]
	if !ok {
		return c.conversionError(s.table.typ, TokenString, fmt.Errorf("%q is not a member of %s", name, s.table.typ))
	}
	v.Set(member.Convert(v.Type()))
	return nil
}

// pointerStrategy binds *T through T's strategy; nil pointers are null.
type pointerStrategy struct {
	elem Strategy
}

func (s *pointerStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	if v.IsNil() {
		return Null.Serialize(c, w, v)
	}
	key, err := c.visit(v)
	if err != nil {
		return err
	}
	defer c.unvisit(key)
	return s.elem.Serialize(c, w, v.Elem())
}

func (s *pointerStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if v.IsNil() {
		v.Set(reflect.New(v.Type().Elem()))
	}
	return s.elem.Deserialize(c, r, v.Elem())
}

// anyStrategy binds empty interfaces. Writes dispatch on the dynamic type;
// reads build map[string]any, []any, string, bool, nil and float64 (or
// Number when UseNumber is set).
type anyStrategy struct{}

var numberType = reflect.TypeFor[Number]()

func (anyStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return w.WriteNull()
		}
		v = v.Elem()
	}
	if v.Type() == numberType {
		return w.WriteNumber(v.Interface().(Number))
	}
	return c.Serialize(w, v)
}

func (s anyStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	val, err := s.read(c, r)
	if err != nil {
		return err
	}
	if val == nil {
		v.SetZero()
		return nil
	}
	v.Set(reflect.ValueOf(val))
	return nil
}

func (s anyStrategy) read(c *Context, r TokenReader) (any, error) {
	switch tok := r.CurrentToken(); tok {
	case TokenNull:
		return nil, nil
	case TokenTrue:
		return true, nil
	case TokenFalse:
		return false, nil
	case TokenString:
		text, err := r.Text()
		return text, c.annotate(err)
	case TokenNumber:
		n, err := r.NumberValue()
		if err != nil {
			return nil, c.annotate(err)
		}
		if c.config.UseNumber {
			return n, nil
		}
		return n.Float64(), nil
	case TokenStartArray:
		if err := c.enter(); err != nil {
			return nil, err
		}
		defer c.leave()
		out := []any{}
		for {
			tok, err := r.NextToken()
			if err != nil {
				return nil, c.annotate(unexpectedEOF(err))
			}
			if tok == TokenEndArray {
				return out, nil
			}
			c.Push(IndexElem(len(out)))
			item, err := s.read(c, r)
			c.Pop()
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
	case TokenStartObject:
		if err := c.enter(); err != nil {
			return nil, err
		}
		defer c.leave()
		out := map[string]any{}
		for {
			tok, err := r.NextToken()
			if err != nil {
				return nil, c.annotate(unexpectedEOF(err))
			}
			if tok == TokenEndObject {
				return out, nil
			}
			name, err := r.Text()
			if err != nil {
				return nil, c.annotate(err)
			}
			if _, err := r.NextToken(); err != nil {
				return nil, c.annotate(unexpectedEOF(err))
			}
			c.Push(PropertyElem(name))
			item, err := s.read(c, r)
			c.Pop()
			if err != nil {
				return nil, err
			}
			out[name] = item
		}
	default:
		return nil, c.conversionError(TypeFor[any](), tok, nil)
	}
}

// customStrategy defers to Serializable / Deserializable implementations.
type customStrategy struct {
	typ Type
}

func (s *customStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	m, ok := asInterface[Serializable](v)
	if !ok {
		return w.WriteNull()
	}
	return c.annotate(m.MarshalTokens(c, w))
}

func (s *customStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		if r.CurrentToken() == TokenNull {
			return nil
		}
		v.Set(reflect.New(v.Type().Elem()))
	}
	u, ok := asInterface[Deserializable](v)
	if !ok {
		return &UnsupportedTypeError{Type: s.typ, Reason: "not Deserializable"}
	}
	return c.annotate(u.UnmarshalTokens(c, r))
}

// lazyStrategy is the placeholder handed out while a recursive type is
// still resolving. It is patched exactly once and then forwards.
type lazyStrategy struct {
	typ    Type
	target atomic.Pointer[Strategy]
}

func (s *lazyStrategy) patch(target Strategy) { s.target.Store(&target) }

func (s *lazyStrategy) resolved() (Strategy, error) {
	p := s.target.Load()
	if p == nil {
		return nil, &RecursiveResolutionError{Type: s.typ}
	}
	return *p, nil
}

func (s *lazyStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	target, err := s.resolved()
	if err != nil {
		return err
	}
	return target.Serialize(c, w, v)
}

func (s *lazyStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	target, err := s.resolved()
	if err != nil {
		return err
	}
	return target.Deserialize(c, r, v)
}

// unwrap returns the strategy a placeholder forwards to, or s itself.
func unwrap(s Strategy) Strategy {
	for {
		l, ok := s.(*lazyStrategy)
		if !ok {
			return s
		}
		target, err := l.resolved()
		if err != nil {
			return s
		}
		s = target
	}
}
