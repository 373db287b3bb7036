// Package testing provides fixtures shared by the databind test suites.
package testing

import (
	"testing"

	"github.com/zoobzio/databind"
)

// TestKey returns a valid 32-byte AES key for testing.
func TestKey(tb testing.TB) []byte {
	tb.Helper()
	return []byte("32-byte-key-for-aes-256-encrypt!")
}

// TestEncryptor returns an AES encryptor keyed with TestKey.
func TestEncryptor(tb testing.TB) databind.Encryptor {
	tb.Helper()
	enc, err := databind.AES(TestKey(tb))
	if err != nil {
		tb.Fatalf("AES() error: %v", err)
	}
	return enc
}

// TestMapper returns a mapper with the AES encryptor installed and the
// Animal hierarchy registered. opts are applied after the defaults.
func TestMapper(tb testing.TB, opts ...databind.Option) *databind.Mapper {
	tb.Helper()
	all := append([]databind.Option{databind.WithEncryptor(databind.EncryptAES, TestEncryptor(tb))}, opts...)
	m := databind.NewMapper(all...)
	RegisterAnimals(tb, m.Registry())
	return m
}

// RegisterAnimals maps "dog", "cat" and "bird" under Animal.
func RegisterAnimals(tb testing.TB, r *databind.Registry) {
	tb.Helper()
	base := databind.TypeFor[Animal]()
	for id, sub := range map[string]databind.Type{
		"dog":  databind.TypeFor[Dog](),
		"cat":  databind.TypeFor[Cat](),
		"bird": databind.TypeFor[Bird](),
	} {
		if err := r.RegisterPolymorphicMapping(base, id, sub); err != nil {
			tb.Fatalf("RegisterPolymorphicMapping(%q) error: %v", id, err)
		}
	}
}

// RoundTrip marshals v with f and unmarshals the result into a fresh T.
func RoundTrip[T any](tb testing.TB, m *databind.Mapper, f databind.Format, v T) T {
	tb.Helper()
	data, err := databind.Marshal(m, f, v)
	if err != nil {
		tb.Fatalf("Marshal(%s) error: %v", f.ContentType(), err)
	}
	out, err := databind.Unmarshal[T](m, f, data)
	if err != nil {
		tb.Fatalf("Unmarshal(%s) error: %v", f.ContentType(), err)
	}
	return out
}

// SimpleUser has no transforms.
type SimpleUser struct {
	ID   string `bind:"id,required"`
	Name string `bind:"name"`
}

// SanitizedUser carries one property per transform.
type SanitizedUser struct {
	ID       string `bind:"id"`
	Email    string `bind:"email,encrypt=aes"`
	Password string `bind:"password,hash=sha256"`
	SSN      string `bind:"ssn,mask=ssn"`
	Note     string `bind:"note,redact=[REDACTED]"`
}

// Animal is a polymorphic base.
type Animal interface {
	Sound() string
}

type Dog struct {
	Name  string `bind:"name"`
	Breed string `bind:"breed,omitzero"`
}

func (Dog) Sound() string { return "woof" }

type Cat struct {
	Name  string `bind:"name"`
	Lives int    `bind:"lives"`
}

func (Cat) Sound() string { return "meow" }

type Bird struct {
	Name   string `bind:"name"`
	CanFly bool   `bind:"can_fly"`
}

func (Bird) Sound() string { return "tweet" }

// Zoo holds polymorphic values in every container shape.
type Zoo struct {
	Keeper  string            `bind:"keeper"`
	Star    Animal            `bind:"star,omitnull"`
	Animals []Animal          `bind:"animals"`
	ByPen   map[string]Animal `bind:"by_pen,omitnull"`
}

// TreeNode is a self-referential type.
type TreeNode struct {
	Value    int         `bind:"value"`
	Children []*TreeNode `bind:"children,omitnull"`
}
