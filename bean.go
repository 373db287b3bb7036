package databind

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zoobzio/sentinel"
)

func init() {
	// Register the binding tag with sentinel
	sentinel.Tag("bind")
}

// Inclusion decides whether a property is written.
type Inclusion uint8

const (
	// IncludeAlways writes the property unconditionally.
	IncludeAlways Inclusion = iota

	// IncludeNonNull omits nil pointers, interfaces, maps and slices.
	IncludeNonNull

	// IncludeNonDefault omits zero values.
	IncludeNonDefault
)

var inclusionNames = map[Inclusion]string{
	IncludeAlways:     "always",
	IncludeNonNull:    "non_null",
	IncludeNonDefault: "non_default",
}

func (i Inclusion) String() string {
	if name, ok := inclusionNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Inclusion(%d)", uint8(i))
}

// MarshalText implements encoding.TextMarshaler.
func (i Inclusion) MarshalText() ([]byte, error) {
	if _, ok := inclusionNames[i]; !ok {
		return nil, fmt.Errorf("%w: inclusion %d", ErrInvalidConfig, uint8(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Inclusion) UnmarshalText(text []byte) error {
	for k, name := range inclusionNames {
		if name == string(text) {
			*i = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown inclusion %q", ErrInvalidConfig, text)
}

func (i Inclusion) includes(v reflect.Value) bool {
	switch i {
	case IncludeNonNull:
		switch v.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			return !v.IsNil()
		}
		return true
	case IncludeNonDefault:
		return !v.IsZero()
	default:
		return true
	}
}

var inclusionProviderType = reflect.TypeFor[InclusionProvider]()

// PropertyBinding is the neutral description of one bean property,
// built once per type from its struct metadata.
type PropertyBinding struct {
	Name      string // Name on the wire
	Field     string // Go field path, e.g. "Address.Street"
	Index     []int  // reflect.Value.FieldByIndex access path
	Type      Type
	Inclusion Inclusion
	Required  bool
	Transform Transform
}

// propertyTag is the parsed form of a bind (or json) struct tag.
type propertyTag struct {
	name      string
	skip      bool
	inclusion Inclusion
	hasIncl   bool
	required  bool
	transform Transform
}

// parsePropertyTag parses `bind:"name,omitnull,omitzero,required,mask=email"`.
// Without a bind tag the json tag's name and omitempty are honoured.
func parsePropertyTag(field string, bind, json string, hasBind bool) (propertyTag, error) {
	raw := bind
	if !hasBind {
		raw = json
	}
	if raw == "-" {
		return propertyTag{skip: true}, nil
	}

	parts := strings.Split(raw, ",")
	pt := propertyTag{name: parts[0]}
	for _, opt := range parts[1:] {
		key, val, hasVal := strings.Cut(strings.TrimSpace(opt), "=")
		switch {
		case key == "":
		case key == "omitnull":
			pt.inclusion, pt.hasIncl = IncludeNonNull, true
		case key == "omitzero" || key == "omitempty":
			pt.inclusion, pt.hasIncl = IncludeNonDefault, true
		case key == "always":
			pt.inclusion, pt.hasIncl = IncludeAlways, true
		case key == "required":
			pt.required = true
		case hasVal && isTransformOp(key):
			t, err := parseTransform(field, key, val)
			if err != nil {
				return pt, err
			}
			pt.transform = t
		case !hasBind:
			// Unknown json options are not ours to reject.
		default:
			return pt, fmt.Errorf("%w: option %q on field %s", ErrInvalidTag, opt, field)
		}
	}
	return pt, nil
}

// beanMetadata returns sentinel metadata for a struct type, falling back
// to reflection when the type has not been scanned.
func beanMetadata(rt reflect.Type) sentinel.Metadata {
	if meta, ok := sentinel.Lookup(rt.String()); ok {
		return meta
	}

	meta := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        map[string]string{},
		}
		for _, key := range []string{"bind", "json"} {
			if val, ok := sf.Tag.Lookup(key); ok {
				fm.Tags[key] = val
			}
		}
		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}
		meta.Fields = append(meta.Fields, fm)
	}
	return meta
}

// fieldTag reads key from sentinel's captured tags, then from the struct field.
func fieldTag(fm sentinel.FieldMetadata, sf reflect.StructField, key string) (string, bool) {
	if val, ok := fm.Tags[key]; ok {
		return val, true
	}
	return sf.Tag.Lookup(key)
}

type candidate struct {
	binding PropertyBinding
	depth   int
}

// buildProperties derives the property bindings of struct type rt.
// Embedded structs without a name in their tag are flattened, and a
// shallower property shadows a deeper one of the same name.
func buildProperties(rt reflect.Type, typeIncl Inclusion) ([]PropertyBinding, error) {
	var cands []candidate
	if err := collectProperties(rt, nil, "", 0, typeIncl, map[reflect.Type]bool{}, &cands); err != nil {
		return nil, err
	}

	best := make(map[string]int, len(cands))
	for i, cd := range cands {
		j, ok := best[cd.binding.Name]
		if !ok || cd.depth < cands[j].depth {
			best[cd.binding.Name] = i
		}
	}
	props := make([]PropertyBinding, 0, len(best))
	for i, cd := range cands {
		if best[cd.binding.Name] == i {
			props = append(props, cd.binding)
		}
	}
	return props, nil
}

func collectProperties(rt reflect.Type, parent []int, prefix string, depth int, typeIncl Inclusion, seen map[reflect.Type]bool, out *[]candidate) error {
	if seen[rt] {
		return nil
	}
	seen[rt] = true
	defer delete(seen, rt)

	meta := beanMetadata(rt)
	for _, fm := range meta.Fields {
		sf := rt.FieldByIndex(fm.Index)
		bind, hasBind := fieldTag(fm, sf, "bind")
		json, _ := fieldTag(fm, sf, "json")

		fieldPath := sf.Name
		if prefix != "" {
			fieldPath = prefix + "." + sf.Name
		}
		tag, err := parsePropertyTag(fieldPath, bind, json, hasBind)
		if err != nil {
			return err
		}
		if tag.skip {
			continue
		}
		index := append(append([]int{}, parent...), fm.Index...)

		if sf.Anonymous && tag.name == "" {
			et := sf.Type
			if et.Kind() == reflect.Pointer {
				if !sf.IsExported() {
					continue
				}
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				if err := collectProperties(et, index, fieldPath, depth+1, typeIncl, seen, out); err != nil {
					return err
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		name := tag.name
		if name == "" {
			name = sf.Name
		}
		incl := typeIncl
		if tag.hasIncl {
			incl = tag.inclusion
		}
		if tag.transform.Op != TransformNone {
			if err := tag.transform.check(sf.Type); err != nil {
				return err
			}
		}
		*out = append(*out, candidate{
			depth: depth,
			binding: PropertyBinding{
				Name:      name,
				Field:     fieldPath,
				Index:     index,
				Type:      TypeOf(sf.Type),
				Inclusion: incl,
				Required:  tag.required,
				Transform: tag.transform,
			},
		})
	}
	return nil
}

// fieldForSet walks index from v, allocating nil embedded pointers.
func fieldForSet(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

type beanProperty struct {
	PropertyBinding
	strategy Strategy
}

// beanStrategy binds a struct as an object of its properties, written in
// declaration order.
type beanStrategy struct {
	typ      Type
	props    []beanProperty
	byName   map[string]int
	required bool
}

func newBeanStrategy(t Type, props []beanProperty) *beanStrategy {
	s := &beanStrategy{typ: t, props: props, byName: make(map[string]int, len(props))}
	for i, p := range props {
		s.byName[p.Name] = i
		if p.Required {
			s.required = true
		}
	}
	return s
}

// Properties returns the bindings of the bean in declaration order.
func (s *beanStrategy) Properties() []PropertyBinding {
	out := make([]PropertyBinding, len(s.props))
	for i, p := range s.props {
		out[i] = p.PropertyBinding
	}
	return out
}

func (s *beanStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	if err := w.WriteStartObject(); err != nil {
		return c.annotate(err)
	}
	if err := s.serializeProperties(c, w, v); err != nil {
		return err
	}
	return c.annotate(w.WriteEndObject())
}

// serializeProperties writes the properties of v without the enclosing object tokens.
func (s *beanStrategy) serializeProperties(c *Context, w TokenWriter, v reflect.Value) error {
	for i := range s.props {
		p := &s.props[i]
		fv, err := v.FieldByIndexErr(p.Index)
		if err != nil {
			continue
		}
		if !p.Inclusion.includes(fv) {
			continue
		}
		if err := c.ctx.Err(); err != nil {
			return c.annotate(err)
		}
		if err := w.WriteFieldName(p.Name); err != nil {
			return c.annotate(err)
		}
		c.Push(PropertyElem(p.Name))
		err = c.annotate(p.strategy.Serialize(c, w, fv))
		c.Pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *beanStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if tok := r.CurrentToken(); tok != TokenStartObject {
		return c.conversionError(s.typ, tok, nil)
	}
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	var seen []bool
	if s.required {
		seen = make([]bool, len(s.props))
	}
	for {
		tok, err := r.NextToken()
		if err != nil {
			return c.annotate(unexpectedEOF(err))
		}
		if tok == TokenEndObject {
			break
		}
		name, err := r.Text()
		if err != nil {
			return c.annotate(err)
		}
		if _, err := r.NextToken(); err != nil {
			return c.annotate(unexpectedEOF(err))
		}
		i, ok := s.byName[name]
		if !ok {
			if err := s.unknown(c, r, name); err != nil {
				return err
			}
			continue
		}
		if err := c.ctx.Err(); err != nil {
			return c.annotate(err)
		}
		p := &s.props[i]
		c.Push(PropertyElem(name))
		err = c.annotate(p.strategy.Deserialize(c, r, fieldForSet(v, p.Index)))
		c.Pop()
		if err != nil {
			return err
		}
		if seen != nil {
			seen[i] = true
		}
	}

	if seen != nil {
		var missing []string
		for i, p := range s.props {
			if p.Required && !seen[i] {
				missing = append(missing, p.Name)
			}
		}
		if len(missing) > 0 {
			return &MissingRequiredPropertyError{Path: c.Path(), Type: s.typ, Names: missing}
		}
	}
	return nil
}

// unknown applies the unknown-property policy to the value under name.
func (s *beanStrategy) unknown(c *Context, r TokenReader, name string) error {
	switch c.config.UnknownPolicy {
	case UnknownIgnore:
	case UnknownReport:
		c.Push(PropertyElem(name))
		c.Report(&UnknownPropertyError{Path: c.Path(), Type: s.typ, Name: name})
		c.Pop()
	default:
		return &UnknownPropertyError{Path: c.Path(), Type: s.typ, Name: name}
	}
	return c.annotate(SkipValue(r))
}
