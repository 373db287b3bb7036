package databind

import (
	"encoding"
	"fmt"
	"iter"
	"reflect"
	"strconv"
)

// containerStrategy binds slices and arrays, preserving element order.
type containerStrategy struct {
	typ  Type
	elem Strategy
}

func (s *containerStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return w.WriteNull()
	}
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	if err := w.WriteStartArray(); err != nil {
		return c.annotate(err)
	}
	for i := 0; i < v.Len(); i++ {
		c.Push(IndexElem(i))
		err := s.elem.Serialize(c, w, v.Index(i))
		err = c.annotate(err)
		c.Pop()
		if err != nil {
			return err
		}
	}
	return c.annotate(w.WriteEndArray())
}

func (s *containerStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if tok := r.CurrentToken(); tok != TokenStartArray {
		return c.conversionError(s.typ, tok, nil)
	}
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	isSlice := v.Kind() == reflect.Slice
	if isSlice {
		v.Set(reflect.MakeSlice(v.Type(), 0, 0))
	}
	i := 0
	for ; ; i++ {
		tok, err := r.NextToken()
		if err != nil {
			return c.annotate(unexpectedEOF(err))
		}
		if tok == TokenEndArray {
			break
		}
		c.Push(IndexElem(i))
		switch {
		case isSlice:
			v.Set(reflect.Append(v, reflect.Zero(v.Type().Elem())))
			err = s.elem.Deserialize(c, r, v.Index(i))
		case i < v.Len():
			err = s.elem.Deserialize(c, r, v.Index(i))
		default:
			err = c.conversionError(s.typ, tok, fmt.Errorf("more than %d elements", v.Len()))
		}
		err = c.annotate(err)
		c.Pop()
		if err != nil {
			return err
		}
	}
	for ; !isSlice && i < v.Len(); i++ {
		v.Index(i).SetZero()
	}
	return nil
}

// keyCodec converts map keys to and from field names. Keys are strings,
// integers, or types implementing encoding.TextMarshaler.
type keyCodec struct {
	typ reflect.Type
}

func newKeyCodec(t reflect.Type) (keyCodec, bool) {
	switch {
	case t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType):
		return keyCodec{typ: t}, true
	}
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return keyCodec{typ: t}, true
	}
	return keyCodec{}, false
}

func (k keyCodec) format(v reflect.Value) (string, error) {
	if m, ok := asInterface[encoding.TextMarshaler](v); ok && k.typ.Implements(textMarshalerType) {
		b, err := m.MarshalText()
		return string(b), err
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	default:
		return strconv.FormatUint(v.Uint(), 10), nil
	}
}

func (k keyCodec) parse(s string) (reflect.Value, error) {
	key := reflect.New(k.typ).Elem()
	if u, ok := asInterface[encoding.TextUnmarshaler](key); ok && k.typ.Implements(textMarshalerType) {
		return key, u.UnmarshalText([]byte(s))
	}
	switch k.typ.Kind() {
	case reflect.String:
		key.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, k.typ.Bits())
		if err != nil {
			return key, err
		}
		key.SetInt(i)
	default:
		u, err := strconv.ParseUint(s, 10, k.typ.Bits())
		if err != nil {
			return key, err
		}
		key.SetUint(u)
	}
	return key, nil
}

// mapStrategy binds maps as objects. Writes follow the map's iteration
// order; reads insert entries in input order.
type mapStrategy struct {
	typ  Type
	key  keyCodec
	elem Strategy
}

func (s *mapStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	key, err := c.visit(v)
	if err != nil {
		return err
	}
	defer c.unvisit(key)
	return writeEntries(c, w, s.key, s.elem, v.MapRange())
}

type entryIter interface {
	Next() bool
	Key() reflect.Value
	Value() reflect.Value
}

func writeEntries(c *Context, w TokenWriter, kc keyCodec, elem Strategy, it entryIter) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	if err := w.WriteStartObject(); err != nil {
		return c.annotate(err)
	}
	for it.Next() {
		name, err := kc.format(it.Key())
		if err != nil {
			return c.conversionError(TypeOf(kc.typ), TokenFieldName, err)
		}
		if err := w.WriteFieldName(name); err != nil {
			return c.annotate(err)
		}
		c.Push(KeyElem(name))
		err = c.annotate(elem.Serialize(c, w, it.Value()))
		c.Pop()
		if err != nil {
			return err
		}
	}
	return c.annotate(w.WriteEndObject())
}

func (s *mapStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if v.IsNil() {
		v.Set(reflect.MakeMap(v.Type()))
	}
	elemType := v.Type().Elem()
	return readEntries(c, r, s.typ, s.key, func(key reflect.Value) error {
		elem := reflect.New(elemType).Elem()
		if err := s.elem.Deserialize(c, r, elem); err != nil {
			return err
		}
		v.SetMapIndex(key, elem)
		return nil
	})
}

func readEntries(c *Context, r TokenReader, t Type, kc keyCodec, entry func(key reflect.Value) error) error {
	if tok := r.CurrentToken(); tok != TokenStartObject {
		return c.conversionError(t, tok, nil)
	}
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	for {
		tok, err := r.NextToken()
		if err != nil {
			return c.annotate(unexpectedEOF(err))
		}
		if tok == TokenEndObject {
			return nil
		}
		name, err := r.Text()
		if err != nil {
			return c.annotate(err)
		}
		c.Push(KeyElem(name))
		key, err := kc.parse(name)
		if err != nil {
			err = c.conversionError(TypeOf(kc.typ), TokenFieldName, err)
		} else if _, err = r.NextToken(); err != nil {
			err = unexpectedEOF(err)
		} else {
			err = entry(key)
		}
		err = c.annotate(err)
		c.Pop()
		if err != nil {
			return err
		}
	}
}

// OrderedMap is a map that remembers insertion order. It serializes its
// entries in that order and is filled in input order when deserialized.
// The zero value is ready to use.
type OrderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{}
}

// Set stores v under k. Existing keys keep their position.
func (m *OrderedMap[K, V]) Set(k K, v V) {
	if m.values == nil {
		m.values = make(map[K]V)
	}
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
}

// Get returns the value stored under k.
func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.values[k]
	return v, ok
}

// Delete removes k.
func (m *OrderedMap[K, V]) Delete(k K) {
	if _, ok := m.values[k]; !ok {
		return
	}
	delete(m.values, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// All iterates entries in insertion order.
func (m *OrderedMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// orderedEntries is implemented by *OrderedMap instantiations so the
// registry can bind them without knowing K and V statically.
type orderedEntries interface {
	entryTypes() (key, value reflect.Type)
	entries() entryIter
	setEntry(key, value reflect.Value)
	reset()
}

var orderedEntriesType = reflect.TypeFor[orderedEntries]()

func (m *OrderedMap[K, V]) entryTypes() (reflect.Type, reflect.Type) {
	return reflect.TypeFor[K](), reflect.TypeFor[V]()
}

func (m *OrderedMap[K, V]) entries() entryIter {
	return &orderedIter[K, V]{m: m, i: -1}
}

func (m *OrderedMap[K, V]) setEntry(key, value reflect.Value) {
	k, _ := key.Interface().(K)
	v, _ := value.Interface().(V)
	m.Set(k, v)
}

func (m *OrderedMap[K, V]) reset() {
	m.keys = nil
	m.values = nil
}

type orderedIter[K comparable, V any] struct {
	m *OrderedMap[K, V]
	i int
}

func (it *orderedIter[K, V]) Next() bool {
	it.i++
	return it.i < len(it.m.keys)
}

func (it *orderedIter[K, V]) Key() reflect.Value {
	return reflect.ValueOf(&it.m.keys[it.i]).Elem()
}

func (it *orderedIter[K, V]) Value() reflect.Value {
	v := it.m.values[it.m.keys[it.i]]
	return reflect.ValueOf(&v).Elem()
}

// orderedMapStrategy binds OrderedMap instantiations as objects.
type orderedMapStrategy struct {
	typ       Type
	key       keyCodec
	valueType reflect.Type
	elem      Strategy
}

func (s *orderedMapStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	m, ok := asInterface[orderedEntries](v)
	if !ok {
		return w.WriteNull()
	}
	return writeEntries(c, w, s.key, s.elem, m.entries())
}

func (s *orderedMapStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	m := v.Addr().Interface().(orderedEntries)
	m.reset()
	return readEntries(c, r, s.typ, s.key, func(key reflect.Value) error {
		elem := reflect.New(s.valueType).Elem()
		if err := s.elem.Deserialize(c, r, elem); err != nil {
			return err
		}
		m.setEntry(key, elem)
		return nil
	})
}
