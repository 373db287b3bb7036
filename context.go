package databind

import (
	"context"
	"errors"
	"reflect"

	"github.com/hengadev/errsx"
)

// Context carries the state of one top-level serialize or deserialize call.
// It is never shared between concurrent calls.
type Context struct {
	ctx      context.Context
	registry *Registry
	config   Config

	path     Path
	depth    int
	visiting map[visitKey]struct{}
	issues   errsx.Map
}

type visitKey struct {
	ptr uintptr
	typ reflect.Type
}

// NewContext returns a Context bound to r. A nil ctx is treated as context.Background().
func NewContext(ctx context.Context, r *Registry) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{ctx: ctx, registry: r, config: r.config}
}

// Context returns the cancellation context of the call.
func (c *Context) Context() context.Context { return c.ctx }

// Registry returns the shared strategy registry.
func (c *Context) Registry() *Registry { return c.registry }

// Config returns the configuration snapshot in effect for the call.
func (c *Context) Config() Config { return c.config }

// Path returns a copy of the current location.
func (c *Context) Path() Path {
	out := make(Path, len(c.path))
	copy(out, c.path)
	return out
}

// Push descends into elem. Every Push must be paired with Pop.
func (c *Context) Push(elem PathElem) { c.path = append(c.path, elem) }

// Pop returns to the parent location.
func (c *Context) Pop() { c.path = c.path[:len(c.path)-1] }

// Issues returns the non-fatal problems recorded during the call, or nil.
func (c *Context) Issues() error {
	if c.issues.IsEmpty() {
		return nil
	}
	return c.issues.AsError()
}

// IssueCount returns the number of recorded issues.
func (c *Context) IssueCount() int { return len(c.issues) }

// Report records a non-fatal issue at the current path.
func (c *Context) Report(err error) {
	key := c.path.String()
	if key == "" {
		key = "$"
	}
	c.issues.Set(key, err)
	emitIssue(c.ctx, key, err)
}

// Serialize writes v using the strategy resolved for its static type.
func (c *Context) Serialize(w TokenWriter, v reflect.Value) error {
	s, err := c.registry.ResolveSerializer(TypeOf(v.Type()))
	if err != nil {
		return c.annotate(err)
	}
	return s.Serialize(c, w, v)
}

// Deserialize reads into the settable v using the strategy resolved for its type.
func (c *Context) Deserialize(r TokenReader, v reflect.Value) error {
	s, err := c.registry.ResolveDeserializer(TypeOf(v.Type()))
	if err != nil {
		return c.annotate(err)
	}
	return s.Deserialize(c, r, v)
}

// enter guards one level of nesting against cancellation and runaway depth.
func (c *Context) enter() error {
	if err := c.ctx.Err(); err != nil {
		return c.annotate(err)
	}
	c.depth++
	if c.config.MaxDepth > 0 && c.depth > c.config.MaxDepth {
		c.depth--
		return c.annotate(ErrMaxDepth)
	}
	return nil
}

func (c *Context) leave() { c.depth-- }

// visit marks a reference as being serialized, failing if it already is.
func (c *Context) visit(v reflect.Value) (visitKey, error) {
	key := visitKey{ptr: v.Pointer(), typ: v.Type()}
	if c.visiting == nil {
		c.visiting = make(map[visitKey]struct{})
	}
	if _, ok := c.visiting[key]; ok {
		return key, c.annotate(ErrCyclicValue)
	}
	c.visiting[key] = struct{}{}
	return key, nil
}

func (c *Context) unvisit(key visitKey) { delete(c.visiting, key) }

// annotate attaches the current path to err unless a deeper frame already did.
func (c *Context) annotate(err error) error {
	if err == nil {
		return nil
	}
	var pe pathError
	if errors.As(err, &pe) {
		return err
	}
	return &PathError{Path: c.Path(), Err: err}
}

// conversionError reports that tok cannot be bound to t at the current path.
func (c *Context) conversionError(t Type, tok Token, cause error) error {
	return &ConversionError{Path: c.Path(), Type: t, Token: tok, Cause: cause}
}
