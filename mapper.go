package databind

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"
)

// Mapper couples a Registry with the formats it is used against.
//
// Mappers are safe for concurrent use. Register overrides through
// Registry() before or between calls; each registration starts a fresh
// strategy cache generation.
type Mapper struct {
	registry *Registry

	mu       sync.RWMutex
	bindings map[bindingKey]any
}

// NewMapper returns a Mapper configured from DefaultConfig and opts. It
// panics when the resulting Config fails Validate.
func NewMapper(opts ...Option) *Mapper {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Errorf("databind: NewMapper: %w", err))
	}
	return &Mapper{
		registry: NewRegistry(cfg),
		bindings: make(map[bindingKey]any),
	}
}

// Default returns the process-wide Mapper used when a nil *Mapper is passed
// to the generic helpers.
var Default = sync.OnceValue(func() *Mapper { return NewMapper() })

func orDefault(m *Mapper) *Mapper {
	if m == nil {
		return Default()
	}
	return m
}

// Registry returns the mapper's registry.
func (m *Mapper) Registry() *Registry { return m.registry }

// Config returns the configuration the mapper resolves with.
func (m *Mapper) Config() Config { return m.registry.Config() }

// Encode writes v to w in format f, using the dynamic type of v.
func (m *Mapper) Encode(ctx context.Context, f Format, w io.Writer, v any) error {
	rv := reflect.ValueOf(v)
	t := NullType
	if rv.IsValid() {
		t = TypeOf(rv.Type())
	}
	return m.encode(NewContext(ctx, m.registry), f, w, t, rv)
}

// Decode reads one value from r in format f into target, which must be a
// non-nil pointer.
func (m *Mapper) Decode(ctx context.Context, f Format, r io.Reader, target any) error {
	return m.DecodeContext(NewContext(ctx, m.registry), f, r, target)
}

// DecodeContext is Decode with a caller-supplied Context, whose Issues()
// holds what was reported under UnknownReport.
func (m *Mapper) DecodeContext(c *Context, f Format, r io.Reader, target any) error {
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return newCodecError(ErrUnmarshal, f.ContentType(), fmt.Errorf("%w: %T", ErrInvalidTarget, target))
	}
	return m.decode(c, f, r, rv.Elem())
}

type countingWriter struct {
	w io.Writer
	n int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += n
	return n, err
}

func (m *Mapper) encode(c *Context, f Format, w io.Writer, t Type, v reflect.Value) error {
	ct, name := f.ContentType(), t.String()
	start := time.Now()
	emitEncodeStart(c.ctx, ct, name)

	cw := &countingWriter{w: w}
	err := m.write(c, f.NewWriter(cw), t, v)
	if err != nil {
		err = newCodecError(ErrMarshal, ct, err)
	}
	emitEncodeComplete(c.ctx, ct, name, cw.n, time.Since(start), err)
	return err
}

func (m *Mapper) write(c *Context, w TokenWriter, t Type, v reflect.Value) error {
	s, err := m.registry.ResolveSerializer(t)
	if err != nil {
		return err
	}
	if err := s.Serialize(c, w, v); err != nil {
		return err
	}
	return w.Flush()
}

func (m *Mapper) decode(c *Context, f Format, r io.Reader, v reflect.Value) error {
	ct, name := f.ContentType(), TypeOf(v.Type()).String()
	start := time.Now()
	emitDecodeStart(c.ctx, ct, name)

	err := m.readFormat(c, f, r, v)
	if err != nil {
		err = newCodecError(ErrUnmarshal, ct, err)
	}
	emitDecodeComplete(c.ctx, ct, name, time.Since(start), c.IssueCount(), err)
	return err
}

func (m *Mapper) readFormat(c *Context, f Format, r io.Reader, v reflect.Value) error {
	tr, err := f.NewReader(r)
	if err != nil {
		return err
	}
	return m.read(c, tr, v)
}

// read binds exactly one value from r into v and requires r to end after it.
func (m *Mapper) read(c *Context, r TokenReader, v reflect.Value) error {
	s, err := m.registry.ResolveDeserializer(TypeOf(v.Type()))
	if err != nil {
		return err
	}
	if _, err := r.NextToken(); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty input", ErrMalformedInput)
		}
		return err
	}
	if err := s.Deserialize(c, r, v); err != nil {
		return err
	}
	tok, err := r.NextToken()
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return fmt.Errorf("%w: trailing %s after value", ErrMalformedInput, tok)
	}
}

// Marshal encodes v in format f using the static type T, so interface types
// pick up their polymorphic mapping.
func Marshal[T any](m *Mapper, f Format, v T) ([]byte, error) {
	m = orDefault(m)
	var buf bytes.Buffer
	err := m.encode(NewContext(context.Background(), m.registry), f, &buf, TypeFor[T](), reflect.ValueOf(&v).Elem())
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data in format f into a new T.
func Unmarshal[T any](m *Mapper, f Format, data []byte) (T, error) {
	m = orDefault(m)
	var out T
	err := m.decode(NewContext(context.Background(), m.registry), f, bytes.NewReader(data), reflect.ValueOf(&out).Elem())
	return out, err
}

// Convert rebinds v as a T by serializing it to tokens and reading them
// back, with no text format in between.
func Convert[T any](m *Mapper, v any) (T, error) {
	m = orDefault(m)
	var out T

	rv := reflect.ValueOf(v)
	t := NullType
	if rv.IsValid() {
		t = TypeOf(rv.Type())
	}
	buf := NewTokenBuffer()
	if err := m.write(NewContext(context.Background(), m.registry), buf, t, rv); err != nil {
		return out, err
	}
	if err := m.read(NewContext(context.Background(), m.registry), buf.Reader(), reflect.ValueOf(&out).Elem()); err != nil {
		return out, err
	}
	return out, nil
}

// Schema describes the serialized shape of T.
func Schema[T any](m *Mapper) (*SchemaNode, error) {
	return orDefault(m).registry.Visit(TypeFor[T]())
}
