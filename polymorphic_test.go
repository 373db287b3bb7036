package databind

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type animal interface {
	Sound() string
}

type dog struct {
	Name  string `bind:"name"`
	Breed string `bind:"breed,omitzero"`
}

func (dog) Sound() string { return "woof" }

type cat struct {
	Name  string `bind:"name"`
	Lives int    `bind:"lives"`
}

func (*cat) Sound() string { return "meow" }

// chirp is a non-bean subtype, written under the wrapped value property.
type chirp string

func (chirp) Sound() string { return "tweet" }

type pen struct {
	Animals []animal `bind:"animals"`
}

func zooMapper(t *testing.T, opts ...Option) *Mapper {
	t.Helper()
	m := NewMapper(opts...)
	base := TypeFor[animal]()
	for id, sub := range map[string]Type{
		"dog":   TypeFor[dog](),
		"cat":   TypeFor[*cat](),
		"chirp": TypeFor[chirp](),
	} {
		if err := m.Registry().RegisterPolymorphicMapping(base, id, sub); err != nil {
			t.Fatalf("RegisterPolymorphicMapping(%q) error: %v", id, err)
		}
	}
	return m
}

func TestPolymorphicWrite(t *testing.T) {
	m := zooMapper(t)
	b := encodeTokens(t, m, pen{Animals: []animal{dog{Name: "Rex"}, &cat{Name: "Tom", Lives: 9}, chirp("hi"), nil}})
	n, err := b.Node()
	if err != nil {
		t.Fatalf("Node() error: %v", err)
	}
	items := n.Fields[0].Value.Items
	if len(items) != 4 {
		t.Fatalf("wrote %d animals, want 4", len(items))
	}

	wantIDs := []string{"dog", "cat", "chirp"}
	for i, id := range wantIDs {
		first := items[i].Fields[0]
		if first.Name != "type" || first.Value.Text != id {
			t.Errorf("animal %d discriminator = %s=%q, want type=%q", i, first.Name, first.Value.Text, id)
		}
	}
	if f := items[2].Fields[1]; f.Name != "value" || f.Value.Text != "hi" {
		t.Errorf("wrapped subtype wrote %s=%q, want value=\"hi\"", f.Name, f.Value.Text)
	}
	if items[3].Kind != TokenNull {
		t.Errorf("nil animal wrote %s, want %s", items[3].Kind, TokenNull)
	}
}

func TestPolymorphicRoundTrip(t *testing.T) {
	m := zooMapper(t)
	in := pen{Animals: []animal{dog{Name: "Rex", Breed: "lab"}, &cat{Name: "Tom", Lives: 9}, chirp("hi")}}
	out, err := Convert[pen](m, in)
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("Convert() = %#v, want %#v", out, in)
	}
}

func TestDiscriminatorNotFirst(t *testing.T) {
	m := zooMapper(t)
	var out animal
	if err := decodeTokens(t, m, obj(t, "lives", 3, "name", "Kit", "type", "cat"), &out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	c, ok := out.(*cat)
	if !ok {
		t.Fatalf("decoded %T, want *cat", out)
	}
	if *c != (cat{Name: "Kit", Lives: 3}) {
		t.Errorf("decoded %+v, want {Kit 3}", *c)
	}

	if err := decodeTokens(t, m, obj(t, "name", "Rex", "type", "dog", "breed", "pug"), &out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out != (dog{Name: "Rex", Breed: "pug"}) {
		t.Errorf("decoded %#v, want dog{Rex pug}", out)
	}
}

func TestPolymorphicReadErrors(t *testing.T) {
	m := zooMapper(t)
	var out animal

	err := decodeTokens(t, m, obj(t, "name", "Nemo"), &out)
	if !errors.Is(err, ErrMissingTypeProperty) {
		t.Errorf("missing discriminator error = %v, want ErrMissingTypeProperty", err)
	}

	err = decodeTokens(t, m, obj(t, "type", "fish"), &out)
	var use *UnknownSubtypeError
	if !errors.As(err, &use) || use.ID != "fish" {
		t.Errorf("unknown subtype error = %v, want UnknownSubtypeError for fish", err)
	}

	err = decodeTokens(t, m, obj(t, "type", 7), &out)
	if !errors.Is(err, ErrConversion) {
		t.Errorf("numeric discriminator error = %v, want ErrConversion", err)
	}

	var p pen
	err = decodeTokens(t, m, arrayTokens(t, 1), &p)
	if !errors.Is(err, ErrConversion) {
		t.Errorf("array into bean error = %v, want ErrConversion", err)
	}
}

type wolf struct{}

func (wolf) Sound() string { return "howl" }

func TestPolymorphicUnregisteredWrite(t *testing.T) {
	m := zooMapper(t)
	_, err := Convert[pen](m, pen{Animals: []animal{wolf{}}})
	if !errors.Is(err, ErrUnknownSubtype) {
		t.Errorf("Convert(wolf) error = %v, want ErrUnknownSubtype", err)
	}
}

func TestTypePropertyOverrides(t *testing.T) {
	m := zooMapper(t, WithTypeProperty("kind"))
	b := encodeTokens(t, m, pen{Animals: []animal{dog{Name: "Rex"}}})
	n, _ := b.Node()
	if got := n.Fields[0].Value.Items[0].Fields[0].Name; got != "kind" {
		t.Errorf("configured discriminator = %q, want kind", got)
	}

	if err := m.Registry().RegisterTypeProperty(TypeFor[animal](), "@type"); err != nil {
		t.Fatalf("RegisterTypeProperty() error: %v", err)
	}
	b = encodeTokens(t, m, pen{Animals: []animal{dog{Name: "Rex"}}})
	n, _ = b.Node()
	if got := n.Fields[0].Value.Items[0].Fields[0].Name; got != "@type" {
		t.Errorf("registered discriminator = %q, want @type", got)
	}
}

func TestPolymorphicRemap(t *testing.T) {
	m := zooMapper(t)
	if err := m.Registry().RegisterPolymorphicMapping(TypeFor[animal](), "hound", TypeFor[dog]()); err != nil {
		t.Fatalf("RegisterPolymorphicMapping() error: %v", err)
	}
	var out animal
	if err := decodeTokens(t, m, obj(t, "type", "hound", "name", "Rex"), &out); err != nil {
		t.Fatalf("decode hound error: %v", err)
	}
	if _, ok := out.(dog); !ok {
		t.Errorf("decoded %T, want dog", out)
	}
}

type square struct {
	Side int `bind:"side"`
}

func (*square) Sound() string { return "thud" }

func TestPolymorphicTypedNil(t *testing.T) {
	m := zooMapper(t)
	if err := m.Registry().RegisterPolymorphicMapping(TypeFor[animal](), "square", TypeFor[*square]()); err != nil {
		t.Fatalf("RegisterPolymorphicMapping() error: %v", err)
	}

	b := encodeTokens(t, m, pen{Animals: []animal{(*square)(nil), (*cat)(nil)}})
	n, err := b.Node()
	if err != nil {
		t.Fatalf("Node() error: %v", err)
	}
	for i, item := range n.Fields[0].Value.Items {
		if item.Kind != TokenNull {
			t.Errorf("typed nil %d wrote %s, want %s", i, item.Kind, TokenNull)
		}
	}

	var single animal = (*square)(nil)
	rv := reflect.ValueOf(&single).Elem()
	out := NewTokenBuffer()
	if err := m.write(NewContext(context.Background(), m.registry), out, TypeFor[animal](), rv); err != nil {
		t.Fatalf("write(typed nil) error: %v", err)
	}
	if out.Len() != 1 {
		t.Errorf("typed nil wrote %d tokens, want 1", out.Len())
	}
}

func TestPolymorphicRemapKeepsSharedSubtype(t *testing.T) {
	m := NewMapper()
	r := m.Registry()
	base := TypeFor[animal]()
	for _, step := range []struct {
		id  string
		sub Type
	}{
		{"dog", TypeFor[dog]()},
		{"hound", TypeFor[dog]()},
		{"hound", TypeFor[*square]()},
	} {
		if err := r.RegisterPolymorphicMapping(base, step.id, step.sub); err != nil {
			t.Fatalf("RegisterPolymorphicMapping(%q) error: %v", step.id, err)
		}
	}

	b := encodeTokens(t, m, pen{Animals: []animal{dog{Name: "Rex"}, &square{Side: 2}}})
	n, err := b.Node()
	if err != nil {
		t.Fatalf("Node() error: %v", err)
	}
	items := n.Fields[0].Value.Items
	if got := items[0].Fields[0].Value.Text; got != "dog" {
		t.Errorf("dog discriminator = %q, want dog", got)
	}
	if got := items[1].Fields[0].Value.Text; got != "hound" {
		t.Errorf("square discriminator = %q, want hound", got)
	}
}

type tagged struct {
	Type string `bind:"type"`
}

func (tagged) Sound() string { return "?" }

func TestDiscriminatorCollision(t *testing.T) {
	m := NewMapper()
	if err := m.Registry().RegisterPolymorphicMapping(TypeFor[animal](), "tagged", TypeFor[tagged]()); err != nil {
		t.Fatalf("RegisterPolymorphicMapping() error: %v", err)
	}
	if _, err := m.Registry().ResolveSerializer(TypeFor[animal]()); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("ResolveSerializer() error = %v, want ErrUnsupportedType", err)
	}

	other := NewMapper(WithTypeProperty("kind"))
	if err := other.Registry().RegisterPolymorphicMapping(TypeFor[animal](), "tagged", TypeFor[tagged]()); err != nil {
		t.Fatalf("RegisterPolymorphicMapping() error: %v", err)
	}
	if _, err := other.Registry().ResolveSerializer(TypeFor[animal]()); err != nil {
		t.Errorf("ResolveSerializer() with kind discriminator error: %v", err)
	}
}
