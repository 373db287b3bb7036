package databind

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestContextPath(t *testing.T) {
	c := NewContext(nil, NewRegistry(DefaultConfig())) //nolint:staticcheck // nil is documented as Background
	if c.Context() == nil {
		t.Fatal("Context() = nil, want Background")
	}

	c.Push(PropertyElem("zoo"))
	c.Push(IndexElem(1))
	snapshot := c.Path()
	c.Push(KeyElem("k"))
	if got := c.Path().String(); got != `zoo[1]["k"]` {
		t.Errorf("Path() = %q, want %q", got, `zoo[1]["k"]`)
	}
	c.Pop()
	c.Pop()
	c.Pop()
	if len(c.Path()) != 0 {
		t.Errorf("Path() after pops = %s, want empty", c.Path())
	}
	if snapshot.String() != "zoo[1]" {
		t.Errorf("snapshot = %s, want zoo[1]", snapshot)
	}
}

func TestContextIssues(t *testing.T) {
	c := NewContext(context.Background(), NewRegistry(DefaultConfig()))
	if c.Issues() != nil || c.IssueCount() != 0 {
		t.Fatal("new Context has issues")
	}

	c.Report(errors.New("at root"))
	c.Push(PropertyElem("name"))
	c.Report(errors.New("bad name"))
	c.Pop()

	if c.IssueCount() != 2 {
		t.Errorf("IssueCount() = %d, want 2", c.IssueCount())
	}
	msg := c.Issues().Error()
	for _, want := range []string{"$", "name", "bad name"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Issues() = %q, want mention of %q", msg, want)
		}
	}
}

func TestContextAnnotate(t *testing.T) {
	c := NewContext(context.Background(), NewRegistry(DefaultConfig()))
	c.Push(PropertyElem("outer"))
	inner := c.annotate(ErrMalformedInput)
	c.Push(PropertyElem("deeper"))

	if again := c.annotate(inner); again != inner {
		t.Errorf("annotate() rewrapped an annotated error: %v", again)
	}
	var pe *PathError
	if !errors.As(inner, &pe) || pe.Path.String() != "outer" {
		t.Errorf("annotate() = %v, want PathError at outer", inner)
	}
	if !errors.Is(inner, ErrMalformedInput) {
		t.Error("annotate() lost the wrapped sentinel")
	}
	if c.annotate(nil) != nil {
		t.Error("annotate(nil) != nil")
	}
}

func TestContextDelegates(t *testing.T) {
	m := NewMapper()
	c := NewContext(context.Background(), m.Registry())
	b := NewTokenBuffer()
	if err := c.Serialize(b, reflect.ValueOf(point{X: 5})); err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}

	r := b.Reader()
	if _, err := r.NextToken(); err != nil {
		t.Fatalf("NextToken() error: %v", err)
	}
	var out point
	if err := c.Deserialize(r, reflect.ValueOf(&out).Elem()); err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if out.X != 5 {
		t.Errorf("Deserialize() = %+v, want X 5", out)
	}
}
