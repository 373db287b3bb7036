package databind

import (
	"fmt"
	"reflect"
	"sort"
)

// DefaultTypeProperty is the discriminator property used unless configured otherwise.
const DefaultTypeProperty = "type"

// wrappedValueProperty carries the payload of subtypes that are not beans.
const wrappedValueProperty = "value"

// polyMapping is the registered subtype table of one base interface.
type polyMapping struct {
	base     Type
	byID     map[string]reflect.Type
	byType   map[reflect.Type]string
	property string
}

func newPolyMapping(base Type) *polyMapping {
	return &polyMapping{
		base:   base,
		byID:   make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

func (m *polyMapping) clone() *polyMapping {
	out := newPolyMapping(m.base)
	out.property = m.property
	for id, t := range m.byID {
		out.byID[id] = t
	}
	for t, id := range m.byType {
		out.byType[t] = id
	}
	return out
}

// ids returns the registered discriminator values in sorted order.
func (m *polyMapping) ids() []string {
	out := make([]string, 0, len(m.byID))
	for id := range m.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type polySubtype struct {
	id       string
	typ      reflect.Type // concrete value type
	ptr      bool         // stored behind the interface as *typ
	strategy Strategy
}

// polymorphicStrategy binds an interface through its registered subtypes,
// tagging each object with a discriminator property.
type polymorphicStrategy struct {
	base     Type
	property string
	byID     map[string]*polySubtype
	byType   map[reflect.Type]*polySubtype
}

func (s *polymorphicStrategy) subtypeOf(v reflect.Value) (*polySubtype, reflect.Value, bool) {
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		if sub, ok := s.byType[v.Type().Elem()]; ok {
			return sub, v.Elem(), true
		}
	}
	if sub, ok := s.byType[v.Type()]; ok {
		return sub, v, true
	}
	return nil, v, false
}

func (s *polymorphicStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return w.WriteNull()
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return w.WriteNull()
	}
	sub, v, ok := s.subtypeOf(v)
	if !ok {
		return &UnknownSubtypeError{Path: c.Path(), Base: s.base, ID: v.Type().String()}
	}
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	if err := w.WriteStartObject(); err != nil {
		return c.annotate(err)
	}
	if err := w.WriteFieldName(s.property); err != nil {
		return c.annotate(err)
	}
	if err := w.WriteString(sub.id); err != nil {
		return c.annotate(err)
	}

	if bean, ok := unwrap(sub.strategy).(*beanStrategy); ok {
		if err := bean.serializeProperties(c, w, v); err != nil {
			return err
		}
	} else {
		if err := w.WriteFieldName(wrappedValueProperty); err != nil {
			return c.annotate(err)
		}
		c.Push(PropertyElem(wrappedValueProperty))
		err := c.annotate(sub.strategy.Serialize(c, w, v))
		c.Pop()
		if err != nil {
			return err
		}
	}
	return c.annotate(w.WriteEndObject())
}

// Deserialize finds the discriminator, buffering any properties that come
// before it, then replays them into the subtype's strategy followed by the
// rest of the object.
func (s *polymorphicStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if tok := r.CurrentToken(); tok != TokenStartObject {
		return c.conversionError(s.base, tok, nil)
	}

	buf := NewTokenBuffer()
	_ = buf.WriteStartObject()
	var id string
	for {
		tok, err := r.NextToken()
		if err != nil {
			return c.annotate(unexpectedEOF(err))
		}
		if tok == TokenEndObject {
			return c.annotate(fmt.Errorf("%w %q for %s", ErrMissingTypeProperty, s.property, s.base))
		}
		name, err := r.Text()
		if err != nil {
			return c.annotate(err)
		}
		if _, err := r.NextToken(); err != nil {
			return c.annotate(unexpectedEOF(err))
		}
		if name == s.property {
			if tok := r.CurrentToken(); tok != TokenString {
				c.Push(PropertyElem(name))
				defer c.Pop()
				return c.conversionError(TypeFor[string](), tok, nil)
			}
			if id, err = r.Text(); err != nil {
				return c.annotate(err)
			}
			break
		}
		_ = buf.WriteFieldName(name)
		if err := CopyValue(r, buf); err != nil {
			return c.annotate(err)
		}
	}

	sub, ok := s.byID[id]
	if !ok {
		return &UnknownSubtypeError{Path: c.Path(), Base: s.base, ID: id}
	}

	replay := chainReader(buf, r)
	nv := reflect.New(sub.typ).Elem()
	var err error
	if _, isBean := unwrap(sub.strategy).(*beanStrategy); isBean {
		err = sub.strategy.Deserialize(c, replay, nv)
	} else {
		err = s.readWrapped(c, replay, sub, nv)
	}
	if err != nil {
		return err
	}

	if sub.ptr || !nv.Type().AssignableTo(v.Type()) {
		v.Set(nv.Addr())
	} else {
		v.Set(nv)
	}
	return nil
}

// readWrapped reads {"value": ...} for subtypes that are not beans.
func (s *polymorphicStrategy) readWrapped(c *Context, r TokenReader, sub *polySubtype, v reflect.Value) error {
	for {
		tok, err := r.NextToken()
		if err != nil {
			return c.annotate(unexpectedEOF(err))
		}
		if tok == TokenEndObject {
			return nil
		}
		name, err := r.Text()
		if err != nil {
			return c.annotate(err)
		}
		if _, err := r.NextToken(); err != nil {
			return c.annotate(unexpectedEOF(err))
		}
		if name != wrappedValueProperty {
			if err := SkipValue(r); err != nil {
				return c.annotate(err)
			}
			continue
		}
		c.Push(PropertyElem(name))
		err = c.annotate(sub.strategy.Deserialize(c, r, v))
		c.Pop()
		if err != nil {
			return err
		}
	}
}
