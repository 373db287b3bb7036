package databind

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

type recursiveMap map[string]recursiveMap

func TestTypeInterning(t *testing.T) {
	a := TypeFor[[]string]()
	b := TypeOf(reflect.TypeOf([]string{}))
	if a != b {
		t.Errorf("TypeFor[[]string]() != TypeOf([]string{})")
	}

	var wg sync.WaitGroup
	got := make([]Type, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = TypeFor[map[string][]int]()
		}(i)
	}
	wg.Wait()
	for i, g := range got {
		if g != got[0] {
			t.Errorf("descriptor %d differs from descriptor 0", i)
		}
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
		raw  string
	}{
		{TypeFor[int](), "int", "int"},
		{TypeFor[[]string](), "[][string]", "[]"},
		{TypeFor[map[string]int](), "map[string, int]", "map"},
		{TypeFor[*Number](), "*[github.com/zoobzio/databind.Number]", "*"},
		{NullType, "null", "null"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if got := tt.typ.Raw(); got != tt.raw {
			t.Errorf("Raw() = %q, want %q", got, tt.raw)
		}
	}
}

func TestOf(t *testing.T) {
	got, err := Of(reflect.TypeFor[[]int](), TypeFor[string]())
	if err != nil {
		t.Fatalf("Of() error: %v", err)
	}
	if got != TypeFor[[]string]() {
		t.Errorf("Of([], string) = %s, want []string", got)
	}

	m, err := Of(reflect.TypeFor[map[int]int](), TypeFor[string](), TypeFor[bool]())
	if err != nil {
		t.Fatalf("Of() error: %v", err)
	}
	if m.Key() != TypeFor[string]() || m.Elem() != TypeFor[bool]() {
		t.Errorf("Of(map, string, bool) = %s", m)
	}

	arityCases := []struct {
		name   string
		raw    reflect.Type
		params []Type
	}{
		{"slice without element", reflect.TypeFor[[]int](), nil},
		{"map with one parameter", reflect.TypeFor[map[string]int](), []Type{TypeFor[string]()}},
		{"scalar with parameter", reflect.TypeFor[int](), []Type{TypeFor[int]()}},
		{"null with parameter", nil, []Type{TypeFor[int]()}},
		{"zero parameter", reflect.TypeFor[[]int](), []Type{{}}},
		{"non-comparable key", reflect.TypeFor[map[string]int](), []Type{TypeFor[[]int](), TypeFor[int]()}},
	}
	for _, tc := range arityCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Of(tc.raw, tc.params...); !errors.Is(err, ErrArity) {
				t.Errorf("Of() error = %v, want ErrArity", err)
			}
		})
	}
}

func TestMustOfPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustOf() did not panic")
		}
	}()
	MustOf(reflect.TypeFor[[]int]())
}

func TestRecursiveTypeParams(t *testing.T) {
	rt := TypeFor[recursiveMap]()
	if rt.Elem() != rt {
		t.Errorf("Elem() of recursive map = %s, want itself", rt.Elem())
	}
	if rt.Key() != TypeFor[string]() {
		t.Errorf("Key() = %s, want string", rt.Key())
	}
	if got := len(rt.Params()); got != 2 {
		t.Errorf("len(Params()) = %d, want 2", got)
	}
}

func TestNullType(t *testing.T) {
	if TypeOf(nil) != NullType {
		t.Error("TypeOf(nil) != NullType")
	}
	if NullType.Kind() != reflect.Invalid {
		t.Errorf("NullType.Kind() = %v, want Invalid", NullType.Kind())
	}
	if NullType.IsZero() {
		t.Error("NullType.IsZero() = true")
	}
	if !(Type{}).IsZero() {
		t.Error("Type{}.IsZero() = false")
	}
}
