package databind

import (
	"context"
	"io"
	"reflect"

	"github.com/zoobzio/sentinel"
)

// bindingKey combines type and format for cache lookup.
type bindingKey struct {
	typ         Type
	contentType string
}

// Binding is a Mapper specialized to one type and one format.
type Binding[T any] struct {
	mapper *Mapper
	format Format
	typ    Type
}

// Use returns the cached Binding for T in format f, building it on first use.
// Building resolves both strategies, so unsupported types fail here rather
// than on the first call.
func Use[T any](m *Mapper, f Format) (*Binding[T], error) {
	m = orDefault(m)
	key := bindingKey{typ: TypeFor[T](), contentType: f.ContentType()}

	m.mu.RLock()
	if cached, ok := m.bindings[key]; ok {
		m.mu.RUnlock()
		return cached.(*Binding[T]), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.bindings[key]; ok {
		return cached.(*Binding[T]), nil
	}

	b, err := newBinding[T](m, f)
	if err != nil {
		return nil, err
	}
	m.bindings[key] = b
	return b, nil
}

func newBinding[T any](m *Mapper, f Format) (*Binding[T], error) {
	t := TypeFor[T]()
	if t.Kind() == reflect.Struct {
		sentinel.Scan[T]()
	}
	if _, err := m.registry.ResolveSerializer(t); err != nil {
		return nil, err
	}
	if _, err := m.registry.ResolveDeserializer(t); err != nil {
		return nil, err
	}
	emitBindingCreated(context.Background(), f.ContentType(), t.String())
	return &Binding[T]{mapper: m, format: f, typ: t}, nil
}

// Type returns the bound type.
func (b *Binding[T]) Type() Type { return b.typ }

// ContentType returns the bound format's content type.
func (b *Binding[T]) ContentType() string { return b.format.ContentType() }

// Marshal encodes v.
func (b *Binding[T]) Marshal(v T) ([]byte, error) { return Marshal(b.mapper, b.format, v) }

// Unmarshal decodes data into a new T.
func (b *Binding[T]) Unmarshal(data []byte) (T, error) { return Unmarshal[T](b.mapper, b.format, data) }

// Encode writes v to w.
func (b *Binding[T]) Encode(ctx context.Context, w io.Writer, v T) error {
	return b.mapper.encode(NewContext(ctx, b.mapper.registry), b.format, w, b.typ, reflect.ValueOf(&v).Elem())
}

// Decode reads one T from r.
func (b *Binding[T]) Decode(ctx context.Context, r io.Reader) (T, error) {
	var out T
	err := b.mapper.decode(NewContext(ctx, b.mapper.registry), b.format, r, reflect.ValueOf(&out).Elem())
	return out, err
}

// Schema describes the serialized shape of T.
func (b *Binding[T]) Schema() (*SchemaNode, error) { return b.mapper.registry.Visit(b.typ) }
