package databind

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
)

// bufferFormat is a Format whose wire form is a shared TokenBuffer.
type bufferFormat struct {
	buf *TokenBuffer
}

func (bufferFormat) ContentType() string { return "application/x-tokens" }

func (f bufferFormat) NewWriter(io.Writer) TokenWriter { return f.buf }

func (f bufferFormat) NewReader(io.Reader) (TokenReader, error) { return f.buf.Reader(), nil }

func encodeTokens(t *testing.T, m *Mapper, v any) *TokenBuffer {
	t.Helper()
	b := NewTokenBuffer()
	rv := reflect.ValueOf(v)
	if err := m.write(NewContext(context.Background(), m.registry), b, TypeOf(rv.Type()), rv); err != nil {
		t.Fatalf("write(%T) error: %v", v, err)
	}
	return b
}

func decodeTokens(t *testing.T, m *Mapper, b *TokenBuffer, target any) error {
	t.Helper()
	return m.read(NewContext(context.Background(), m.registry), b.Reader(), reflect.ValueOf(target).Elem())
}

type point struct {
	X int `bind:"x"`
	Y int `bind:"y"`
}

func TestMapperEncodeDecode(t *testing.T) {
	m := NewMapper()
	f := bufferFormat{buf: NewTokenBuffer()}

	if err := m.Encode(context.Background(), f, io.Discard, point{X: 1, Y: 2}); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	var out point
	if err := m.Decode(context.Background(), f, nil, &out); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out != (point{X: 1, Y: 2}) {
		t.Errorf("Decode() = %+v, want {1 2}", out)
	}
}

func TestMapperDecodeInvalidTarget(t *testing.T) {
	m := NewMapper()
	f := bufferFormat{buf: NewTokenBuffer()}
	for _, target := range []any{nil, point{}, (*point)(nil)} {
		err := m.Decode(context.Background(), f, nil, target)
		if !errors.Is(err, ErrInvalidTarget) || !errors.Is(err, ErrUnmarshal) {
			t.Errorf("Decode(%T) error = %v, want ErrInvalidTarget and ErrUnmarshal", target, err)
		}
		var ce *CodecError
		if errors.As(err, &ce) && ce.ContentType != "application/x-tokens" {
			t.Errorf("CodecError.ContentType = %q", ce.ContentType)
		}
	}
}

func TestMapperReadBoundaries(t *testing.T) {
	m := NewMapper()
	var out point
	if err := decodeTokens(t, m, NewTokenBuffer(), &out); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("empty input error = %v, want ErrMalformedInput", err)
	}

	b := encodeTokens(t, m, point{X: 1})
	_ = b.WriteNull()
	if err := decodeTokens(t, m, b, &out); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("trailing input error = %v, want ErrMalformedInput", err)
	}
}

func TestMapperEncodeNil(t *testing.T) {
	m := NewMapper()
	buf := NewTokenBuffer()
	if err := m.Encode(context.Background(), bufferFormat{buf: buf}, io.Discard, nil); err != nil {
		t.Fatalf("Encode(nil) error: %v", err)
	}
	if buf.Len() != 1 {
		t.Fatalf("Encode(nil) wrote %d tokens, want 1", buf.Len())
	}
	if tok, _ := buf.Reader().NextToken(); tok != TokenNull {
		t.Errorf("Encode(nil) token = %s, want %s", tok, TokenNull)
	}
}

func TestMapperCanceledContext(t *testing.T) {
	m := NewMapper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Encode(ctx, bufferFormat{buf: NewTokenBuffer()}, io.Discard, point{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Encode() error = %v, want context.Canceled", err)
	}
}

func TestConvert(t *testing.T) {
	type pointCopy struct {
		X int     `bind:"x"`
		Y float64 `bind:"y"`
	}
	got, err := Convert[pointCopy](NewMapper(), point{X: 3, Y: 4})
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if got != (pointCopy{X: 3, Y: 4}) {
		t.Errorf("Convert() = %+v, want {3 4}", got)
	}

	generic, err := Convert[map[string]any](nil, point{X: 3, Y: 4})
	if err != nil {
		t.Fatalf("Convert(nil mapper) error: %v", err)
	}
	if generic["x"] != float64(3) {
		t.Errorf("generic[x] = %v (%T), want 3", generic["x"], generic["x"])
	}
}

func TestUseCachesBinding(t *testing.T) {
	m := NewMapper()
	f := bufferFormat{buf: NewTokenBuffer()}

	b1, err := Use[point](m, f)
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}
	b2, err := Use[point](m, f)
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}
	if b1 != b2 {
		t.Error("Use() returned a different binding for the same type and format")
	}
	if b1.Type() != TypeFor[point]() {
		t.Errorf("Type() = %s, want point", b1.Type())
	}

	if err := b1.Encode(context.Background(), io.Discard, point{X: 7}); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	out, err := b1.Decode(context.Background(), bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out.X != 7 {
		t.Errorf("Decode().X = %d, want 7", out.X)
	}
}

func TestUseUnsupported(t *testing.T) {
	if _, err := Use[chan int](NewMapper(), bufferFormat{buf: NewTokenBuffer()}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Use[chan int]() error = %v, want ErrUnsupportedType", err)
	}
}

func TestDefaultMapper(t *testing.T) {
	first, second := Default(), Default()
	if first != second {
		t.Error("Default() returned different mappers")
	}
	if Default().Config().UnknownPolicy != UnknownFail {
		t.Errorf("Default().Config().UnknownPolicy = %s, want fail", Default().Config().UnknownPolicy)
	}
}
