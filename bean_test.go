package databind

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// obj records an object of name/value pairs. Values may be string, int,
// bool or nil.
func obj(t *testing.T, pairs ...any) *TokenBuffer {
	t.Helper()
	b := NewTokenBuffer()
	_ = b.WriteStartObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		_ = b.WriteFieldName(pairs[i].(string))
		switch v := pairs[i+1].(type) {
		case string:
			_ = b.WriteString(v)
		case int:
			_ = b.WriteNumber(IntNumber(int64(v)))
		case bool:
			_ = b.WriteBoolean(v)
		case nil:
			_ = b.WriteNull()
		default:
			t.Fatalf("obj: unsupported value %T", v)
		}
	}
	_ = b.WriteEndObject()
	return b
}

func fieldNames(t *testing.T, b *TokenBuffer) []string {
	t.Helper()
	n, err := b.Node()
	if err != nil {
		t.Fatalf("Node() error: %v", err)
	}
	names := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		names[i] = f.Name
	}
	return names
}

type Base struct {
	ID string `bind:"id"`
}

type account struct {
	Base
	Name     string `bind:"name"`
	Nick     string `json:"nick,omitempty"`
	Age      int
	Internal string `bind:"-"`
	secret   string
}

func TestBeanProperties(t *testing.T) {
	m := NewMapper()
	got := strings.Join(fieldNames(t, encodeTokens(t, m, account{Base: Base{ID: "1"}, Name: "a", Internal: "x", secret: "s"})), ",")
	if got != "id,name,Age" {
		t.Errorf("properties = %q, want %q", got, "id,name,Age")
	}

	var out account
	if err := decodeTokens(t, m, obj(t, "id", "7", "name", "b", "nick", "n", "Age", 30), &out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := account{Base: Base{ID: "7"}, Name: "b", Nick: "n", Age: 30}
	if out != want {
		t.Errorf("decoded = %+v, want %+v", out, want)
	}
}

func TestBeanNullAndMissing(t *testing.T) {
	m := NewMapper()
	out := account{Name: "keep", Age: 3}

	b := NewTokenBuffer()
	_ = b.WriteNull()
	if err := decodeTokens(t, m, b, &out); err != nil {
		t.Fatalf("decode null error: %v", err)
	}
	if out != (account{}) {
		t.Errorf("null decoded to %+v, want zero value", out)
	}

	out = account{Name: "keep"}
	if err := decodeTokens(t, m, obj(t, "Age", 4), &out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.Name != "keep" || out.Age != 4 {
		t.Errorf("decoded = %+v, want absent properties untouched", out)
	}
}

func TestUnknownPolicies(t *testing.T) {
	input := func() *TokenBuffer { return obj(t, "x", 1, "z", "extra", "y", 2) }

	var out point
	err := decodeTokens(t, NewMapper(), input(), &out)
	var upe *UnknownPropertyError
	if !errors.As(err, &upe) {
		t.Fatalf("fail policy error = %v, want UnknownPropertyError", err)
	}
	if upe.Name != "z" || !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("UnknownPropertyError = %+v", upe)
	}

	out = point{}
	if err := decodeTokens(t, NewMapper(WithUnknownPolicy(UnknownIgnore)), input(), &out); err != nil {
		t.Fatalf("ignore policy error: %v", err)
	}
	if out != (point{X: 1, Y: 2}) {
		t.Errorf("ignore policy decoded %+v, want {1 2}", out)
	}

	m := NewMapper(WithUnknownPolicy(UnknownReport))
	c := NewContext(context.Background(), m.Registry())
	out = point{}
	if err := m.DecodeContext(c, bufferFormat{buf: input()}, nil, &out); err != nil {
		t.Fatalf("report policy error: %v", err)
	}
	if out != (point{X: 1, Y: 2}) {
		t.Errorf("report policy decoded %+v, want {1 2}", out)
	}
	if c.IssueCount() != 1 {
		t.Fatalf("IssueCount() = %d, want 1", c.IssueCount())
	}
	if issues := c.Issues(); issues == nil || !strings.Contains(issues.Error(), "z") {
		t.Errorf("Issues() = %v, want mention of z", issues)
	}
}

type signup struct {
	Email string `bind:"email,required"`
	Name  string `bind:"name,required"`
	Note  string `bind:"note"`
}

func TestRequiredProperties(t *testing.T) {
	m := NewMapper()
	var out signup
	err := decodeTokens(t, m, obj(t, "note", "hi"), &out)

	var mrp *MissingRequiredPropertyError
	if !errors.As(err, &mrp) {
		t.Fatalf("error = %v, want MissingRequiredPropertyError", err)
	}
	if strings.Join(mrp.Names, ",") != "email,name" {
		t.Errorf("Names = %v, want [email name]", mrp.Names)
	}

	if err := decodeTokens(t, m, obj(t, "email", "a@b", "name", nil), &out); err != nil {
		t.Errorf("explicit null for required property error: %v", err)
	}
}

type visibility struct {
	A *int   `bind:"a"`
	B string `bind:"b"`
	C string `bind:"c,always"`
}

type providedVisibility struct {
	A *int   `bind:"a"`
	B string `bind:"b"`
	C string `bind:"c,omitzero"`
}

func (providedVisibility) BindInclusion() Inclusion { return IncludeNonNull }

func TestInclusionPrecedence(t *testing.T) {
	tests := []struct {
		name string
		m    *Mapper
		v    any
		want string
	}{
		{"config default", NewMapper(), visibility{}, "a,b,c"},
		{"config non_default", NewMapper(WithDefaultInclusion(IncludeNonDefault)), visibility{}, "c"},
		{"config non_null", NewMapper(WithDefaultInclusion(IncludeNonNull)), visibility{}, "b,c"},
		{"provider over config", NewMapper(WithDefaultInclusion(IncludeAlways)), providedVisibility{}, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(fieldNames(t, encodeTokens(t, tt.m, tt.v)), ",")
			if got != tt.want {
				t.Errorf("properties = %q, want %q", got, tt.want)
			}
		})
	}

	m := NewMapper()
	m.Registry().RegisterInclusion(TypeFor[providedVisibility](), IncludeAlways)
	if got := strings.Join(fieldNames(t, encodeTokens(t, m, providedVisibility{})), ","); got != "a,b" {
		t.Errorf("registered over provider = %q, want %q", got, "a,b")
	}
}

func TestInvalidTags(t *testing.T) {
	type badOption struct {
		X string `bind:"x,bogus"`
	}
	type badTransform struct {
		N int `bind:"n,mask=email"`
	}
	type badMask struct {
		S string `bind:"s,mask=retina"`
	}
	r := NewRegistry(DefaultConfig())
	for _, typ := range []Type{TypeFor[badOption](), TypeFor[badTransform](), TypeFor[badMask]()} {
		if _, err := r.ResolveSerializer(typ); !errors.Is(err, ErrInvalidTag) {
			t.Errorf("ResolveSerializer(%s) error = %v, want ErrInvalidTag", typ, err)
		}
	}
}

func TestCyclicValue(t *testing.T) {
	loop := &linked{Name: "a"}
	loop.Next = loop

	m := NewMapper()
	err := m.write(NewContext(context.Background(), m.registry), NewTokenBuffer(), TypeFor[*linked](), reflect.ValueOf(loop))
	if !errors.Is(err, ErrCyclicValue) {
		t.Errorf("write(cycle) error = %v, want ErrCyclicValue", err)
	}

	shared := &linked{Name: "s"}
	twice := []*linked{shared, shared}
	if _, err := Convert[[]*linked](m, twice); err != nil {
		t.Errorf("Convert(shared, non-cyclic) error: %v", err)
	}
}

func TestMaxDepth(t *testing.T) {
	m := NewMapper(WithMaxDepth(2))
	deep := linked{Next: &linked{Next: &linked{}}}
	if _, err := Convert[linked](m, deep); !errors.Is(err, ErrMaxDepth) {
		t.Errorf("Convert(deep) error = %v, want ErrMaxDepth", err)
	}
	if _, err := Convert[linked](m, linked{Next: &linked{}}); err != nil {
		t.Errorf("Convert(shallow) error: %v", err)
	}
}

func TestConversionErrorPath(t *testing.T) {
	type wrapper struct {
		Points []point `bind:"points"`
	}
	b := NewTokenBuffer()
	_ = b.WriteStartObject()
	_ = b.WriteFieldName("points")
	_ = b.WriteStartArray()
	_ = b.WriteStartObject()
	_ = b.WriteFieldName("x")
	_ = b.WriteString("one")
	_ = b.WriteEndObject()
	_ = b.WriteEndArray()
	_ = b.WriteEndObject()

	var out wrapper
	err := decodeTokens(t, NewMapper(), b, &out)
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConversionError", err)
	}
	if got := ce.Path.String(); got != "points[0].x" {
		t.Errorf("Path = %q, want %q", got, "points[0].x")
	}
	if ce.Token != TokenString {
		t.Errorf("Token = %s, want %s", ce.Token, TokenString)
	}
}
