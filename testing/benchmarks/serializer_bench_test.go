package benchmarks

import (
	"context"
	"io"
	"testing"

	"github.com/zoobzio/databind"
	"github.com/zoobzio/databind/bson"
	"github.com/zoobzio/databind/json"
	"github.com/zoobzio/databind/msgpack"
	databindtest "github.com/zoobzio/databind/testing"
	"github.com/zoobzio/databind/yaml"
)

func sampleZoo() databindtest.Zoo {
	return databindtest.Zoo{
		Keeper: "sam",
		Star:   databindtest.Dog{Name: "Rex", Breed: "collie"},
		Animals: []databindtest.Animal{
			databindtest.Cat{Name: "Tom", Lives: 9},
			databindtest.Bird{Name: "Tweety", CanFly: true},
		},
	}
}

func BenchmarkMarshal_NoTransformation(b *testing.B) {
	m := databindtest.TestMapper(b)
	user := databindtest.SimpleUser{ID: "123", Name: "Alice"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = databind.Marshal(m, json.New(), user)
	}
}

func BenchmarkMarshal_WithEncryption(b *testing.B) {
	m := databindtest.TestMapper(b)
	user := databindtest.SanitizedUser{
		ID:       "123",
		Email:    "alice@example.com",
		Password: "secret",
		SSN:      "123-45-6789",
		Note:     "internal note",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = databind.Marshal(m, json.New(), user)
	}
}

func BenchmarkUnmarshal_WithDecryption(b *testing.B) {
	m := databindtest.TestMapper(b)
	data, err := databind.Marshal(m, json.New(), databindtest.SanitizedUser{ID: "123", Email: "alice@example.com"})
	if err != nil {
		b.Fatalf("Marshal() error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = databind.Unmarshal[databindtest.SanitizedUser](m, json.New(), data)
	}
}

func BenchmarkBinding_Polymorphic(b *testing.B) {
	formats := []databind.Format{json.New(), yaml.New(), msgpack.New(), bson.New()}
	m := databindtest.TestMapper(b)
	zoo := sampleZoo()

	for _, f := range formats {
		bind, err := databind.Use[databindtest.Zoo](m, f)
		if err != nil {
			b.Fatalf("Use(%s) error: %v", f.ContentType(), err)
		}
		data, err := bind.Marshal(zoo)
		if err != nil {
			b.Fatalf("Marshal(%s) error: %v", f.ContentType(), err)
		}

		b.Run(f.ContentType()+"/encode", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = bind.Encode(context.Background(), io.Discard, zoo)
			}
		})
		b.Run(f.ContentType()+"/decode", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = bind.Unmarshal(data)
			}
		})
	}
}

func BenchmarkResolve_Cached(b *testing.B) {
	r := databindtest.TestMapper(b).Registry()
	t := databind.TypeFor[databindtest.TreeNode]()
	if _, err := r.ResolveSerializer(t); err != nil {
		b.Fatalf("ResolveSerializer() error: %v", err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = r.ResolveSerializer(t)
		}
	})
}

func BenchmarkConvert(b *testing.B) {
	m := databindtest.TestMapper(b)
	zoo := sampleZoo()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = databind.Convert[databindtest.Zoo](m, zoo)
	}
}
