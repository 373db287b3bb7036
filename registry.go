package databind

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Registry resolves strategies for types and holds user overrides.
//
// Resolution order: exact override, polymorphic mapping, built-in rule
// (enumerations, Serializable/Deserializable, OrderedMap, TextMarshaler,
// scalars, containers, maps, pointers, any), then bean introspection.
// Resolved strategies are cached; every Register call swaps in a fresh
// cache generation.
//
// A Registry is safe for concurrent use.
type Registry struct {
	cache  *strategyCache
	config Config

	// Guarded by cache.mu
	serializers   map[Type]Strategy
	deserializers map[Type]Strategy
	polymorphic   map[Type]*polyMapping
	inclusions    map[Type]Inclusion
	properties    map[propertyKey]Strategy
	enums         map[Type]*enumTable
}

type propertyKey struct {
	bean Type
	name string
}

// NewRegistry returns a registry resolving with cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cache:         newStrategyCache(),
		config:        cfg.normalized(),
		serializers:   make(map[Type]Strategy),
		deserializers: make(map[Type]Strategy),
		polymorphic:   make(map[Type]*polyMapping),
		inclusions:    make(map[Type]Inclusion),
		properties:    make(map[propertyKey]Strategy),
		enums:         make(map[Type]*enumTable),
	}
}

// Config returns the configuration the registry resolves with.
func (r *Registry) Config() Config { return r.config }

// ResolveSerializer returns the strategy that writes values of t.
func (r *Registry) ResolveSerializer(t Type) (Strategy, error) {
	return r.resolveFor(t, serialization)
}

// ResolveDeserializer returns the strategy that reads values of t.
func (r *Registry) ResolveDeserializer(t Type) (Strategy, error) {
	return r.resolveFor(t, deserialization)
}

func (r *Registry) resolveFor(t Type, dir direction) (Strategy, error) {
	if t.IsZero() {
		return nil, &UnsupportedTypeError{Type: t, Reason: "zero descriptor"}
	}
	return r.cache.getOrResolve(cacheKey{typ: t, dir: dir}, r.resolve)
}

// Stats reports the state of the strategy cache.
func (r *Registry) Stats() CacheStats { return r.cache.stats() }

// RegisterSerializer installs s as the writer for exactly t.
func (r *Registry) RegisterSerializer(t Type, s Strategy) {
	if s == nil {
		panic("databind: nil serializer for " + t.String())
	}
	r.reconfigure("serializer", t, func() { r.serializers[t] = s })
}

// RegisterDeserializer installs s as the reader for exactly t.
func (r *Registry) RegisterDeserializer(t Type, s Strategy) {
	if s == nil {
		panic("databind: nil deserializer for " + t.String())
	}
	r.reconfigure("deserializer", t, func() { r.deserializers[t] = s })
}

// RegisterPolymorphicMapping maps discriminator id to subtype under the
// interface base. subtype (or a pointer to it) must implement base.
func (r *Registry) RegisterPolymorphicMapping(base Type, id string, subtype Type) error {
	if base.Kind() != reflect.Interface {
		return &UnsupportedTypeError{Type: base, Reason: "polymorphic base must be an interface"}
	}
	if id == "" {
		return fmt.Errorf("%w: empty discriminator for %s", ErrInvalidConfig, base)
	}
	st := subtype.Reflect()
	if st == nil || st.Kind() == reflect.Interface {
		return &UnsupportedTypeError{Type: subtype, Reason: "subtype must be concrete"}
	}
	bt := base.Reflect()
	if !st.Implements(bt) && !reflect.PointerTo(st).Implements(bt) {
		return &UnsupportedTypeError{Type: subtype, Reason: fmt.Sprintf("does not implement %s", base)}
	}

	r.reconfigure("polymorphic", base, func() {
		m, ok := r.polymorphic[base]
		if ok {
			m = m.clone()
		} else {
			m = newPolyMapping(base)
		}
		prev, had := m.byID[id]
		m.byID[id] = st
		m.byType[st] = id
		if had && prev != st && m.byType[prev] == id {
			delete(m.byType, prev)
			for _, other := range m.ids() {
				if m.byID[other] == prev {
					m.byType[prev] = other
					break
				}
			}
		}
		r.polymorphic[base] = m
	})
	return nil
}

// RegisterTypeProperty overrides the discriminator property name for base.
func (r *Registry) RegisterTypeProperty(base Type, property string) error {
	if base.Kind() != reflect.Interface {
		return &UnsupportedTypeError{Type: base, Reason: "polymorphic base must be an interface"}
	}
	if property == "" {
		return fmt.Errorf("%w: empty type property for %s", ErrInvalidConfig, base)
	}
	r.reconfigure("type_property", base, func() {
		m, ok := r.polymorphic[base]
		if ok {
			m = m.clone()
		} else {
			m = newPolyMapping(base)
		}
		m.property = property
		r.polymorphic[base] = m
	})
	return nil
}

// RegisterInclusion sets the inclusion policy for the properties of bean type t.
func (r *Registry) RegisterInclusion(t Type, incl Inclusion) {
	r.reconfigure("inclusion", t, func() { r.inclusions[t] = incl })
}

// RegisterPropertyStrategy installs s for one property of bean type t in
// both directions.
func (r *Registry) RegisterPropertyStrategy(t Type, property string, s Strategy) error {
	if t.Kind() != reflect.Struct {
		return &UnsupportedTypeError{Type: t, Reason: "property strategies require a struct"}
	}
	if s == nil {
		return fmt.Errorf("%w: nil strategy for %s.%s", ErrInvalidConfig, t, property)
	}
	r.reconfigure("property", t, func() { r.properties[propertyKey{bean: t, name: property}] = s })
	return nil
}

// RegisterEnum binds T by the names given for each of its values.
func RegisterEnum[T comparable](r *Registry, names map[T]string) error {
	t := TypeFor[T]()
	values := make(map[any]string, len(names))
	seen := make(map[string]bool, len(names))
	for v, name := range names {
		if name == "" || seen[name] {
			return fmt.Errorf("%w: enum %s has empty or duplicate name %q", ErrInvalidConfig, t, name)
		}
		seen[name] = true
		values[v] = name
	}
	table := newEnumTable(t, values)
	r.reconfigure("enum", t, func() { r.enums[t] = table })
	return nil
}

func (r *Registry) reconfigure(kind string, t Type, fn func()) {
	gen := r.cache.reconfigure(fn)
	emitReconfigured(context.Background(), kind, t.String(), gen)
}

var (
	serializableType   = reflect.TypeFor[Serializable]()
	deserializableType = reflect.TypeFor[Deserializable]()
)

func implements(rt, it reflect.Type) bool {
	return rt.Implements(it) || reflect.PointerTo(rt).Implements(it)
}

// resolve builds the strategy for key. It runs under the cache's
// resolution lock.
func (r *Registry) resolve(s *session, key cacheKey) (Strategy, error) {
	t := key.typ
	if t == NullType {
		return Null, nil
	}
	overrides := r.serializers
	if key.dir == deserialization {
		overrides = r.deserializers
	}
	if st, ok := overrides[t]; ok {
		return st, nil
	}
	if m, ok := r.polymorphic[t]; ok && len(m.byID) > 0 {
		return r.buildPolymorphic(s, key, m)
	}
	if table, ok := r.enums[t]; ok {
		return &enumStrategy{table: table}, nil
	}

	rt := t.Reflect()
	if rt.Kind() != reflect.Pointer && rt.Kind() != reflect.Interface {
		switch {
		case key.dir == serialization && implements(rt, serializableType),
			key.dir == deserialization && reflect.PointerTo(rt).Implements(deserializableType):
			return &customStrategy{typ: t}, nil
		case rt.Kind() == reflect.Struct && reflect.PointerTo(rt).Implements(orderedEntriesType):
			return r.buildOrderedMap(s, key)
		case key.dir == serialization && implements(rt, textMarshalerType),
			key.dir == deserialization && reflect.PointerTo(rt).Implements(textUnmarshalerType):
			return &textStrategy{typ: t}, nil
		}
	}

	switch rt.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return &scalarStrategy{typ: t}, nil

	case reflect.Slice, reflect.Array:
		if rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8 {
			return &bytesStrategy{typ: t}, nil
		}
		elem, err := s.lookup(cacheKey{typ: t.Elem(), dir: key.dir})
		if err != nil {
			return nil, err
		}
		return &containerStrategy{typ: t, elem: elem}, nil

	case reflect.Pointer:
		elem, err := s.lookup(cacheKey{typ: t.Elem(), dir: key.dir})
		if err != nil {
			return nil, err
		}
		return &pointerStrategy{elem: elem}, nil

	case reflect.Map:
		kc, ok := newKeyCodec(rt.Key())
		if !ok {
			return nil, &UnsupportedTypeError{Type: t, Reason: fmt.Sprintf("map key %s is not text-representable", rt.Key())}
		}
		elem, err := s.lookup(cacheKey{typ: t.Elem(), dir: key.dir})
		if err != nil {
			return nil, err
		}
		return &mapStrategy{typ: t, key: kc, elem: elem}, nil

	case reflect.Interface:
		if rt.NumMethod() == 0 {
			return anyStrategy{}, nil
		}
		return nil, &UnsupportedTypeError{Type: t, Reason: "interface has no registered subtypes"}

	case reflect.Struct:
		return r.buildBean(s, key)

	default:
		return nil, &UnsupportedTypeError{Type: t}
	}
}

func (r *Registry) buildOrderedMap(s *session, key cacheKey) (Strategy, error) {
	m := reflect.New(key.typ.Reflect()).Interface().(orderedEntries)
	kt, vt := m.entryTypes()
	kc, ok := newKeyCodec(kt)
	if !ok {
		return nil, &UnsupportedTypeError{Type: key.typ, Reason: fmt.Sprintf("map key %s is not text-representable", kt)}
	}
	elem, err := s.lookup(cacheKey{typ: TypeOf(vt), dir: key.dir})
	if err != nil {
		return nil, err
	}
	return &orderedMapStrategy{typ: key.typ, key: kc, valueType: vt, elem: elem}, nil
}

// typeInclusion resolves the inclusion for the properties of rt:
// registered policy, then InclusionProvider, then the configured default.
func (r *Registry) typeInclusion(t Type) Inclusion {
	if incl, ok := r.inclusions[t]; ok {
		return incl
	}
	rt := t.Reflect()
	switch {
	case rt.Implements(inclusionProviderType):
		return reflect.Zero(rt).Interface().(InclusionProvider).BindInclusion()
	case reflect.PointerTo(rt).Implements(inclusionProviderType):
		return reflect.New(rt).Interface().(InclusionProvider).BindInclusion()
	}
	return r.config.DefaultInclusion
}

func (r *Registry) buildBean(s *session, key cacheKey) (Strategy, error) {
	bindings, err := buildProperties(key.typ.Reflect(), r.typeInclusion(key.typ))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key.typ, err)
	}

	props := make([]beanProperty, len(bindings))
	for i, b := range bindings {
		props[i].PropertyBinding = b
		var st Strategy
		if override, ok := r.properties[propertyKey{bean: key.typ, name: b.Name}]; ok {
			st = override
		} else if b.Transform.Op != TransformNone {
			st, err = newTransformStrategy(b.Type, b.Field, b.Transform, &r.config)
		} else {
			st, err = s.lookup(cacheKey{typ: b.Type, dir: key.dir})
		}
		if err != nil {
			return nil, prefixPath(PropertyElem(b.Name), err)
		}
		props[i].strategy = st
	}
	return newBeanStrategy(key.typ, props), nil
}

func (r *Registry) buildPolymorphic(s *session, key cacheKey, m *polyMapping) (Strategy, error) {
	ps := &polymorphicStrategy{
		base:     m.base,
		property: m.property,
		byID:     make(map[string]*polySubtype, len(m.byID)),
		byType:   make(map[reflect.Type]*polySubtype, len(m.byID)),
	}
	if ps.property == "" {
		ps.property = r.config.TypeProperty
	}
	for _, id := range m.ids() {
		st := m.byID[id]
		sub := &polySubtype{id: id, typ: st}
		if st.Kind() == reflect.Pointer {
			sub.typ = st.Elem()
			sub.ptr = true
		}
		strategy, err := s.lookup(cacheKey{typ: TypeOf(sub.typ), dir: key.dir})
		if err != nil {
			return nil, err
		}
		if err := checkDiscriminator(ps.property, sub.typ, strategy); err != nil {
			return nil, err
		}
		sub.strategy = strategy
		ps.byID[id] = sub
		if m.byType[st] == id {
			ps.byType[sub.typ] = sub
		}
	}
	return ps, nil
}

// checkDiscriminator rejects a bean subtype with a property named like the
// discriminator, which would be written twice and lost on read.
func checkDiscriminator(property string, rt reflect.Type, st Strategy) error {
	var props []PropertyBinding
	switch s := unwrap(st).(type) {
	case *beanStrategy:
		props = s.Properties()
	case *lazyStrategy:
		if rt.Kind() != reflect.Struct {
			return nil
		}
		var err error
		if props, err = buildProperties(rt, IncludeAlways); err != nil {
			return err
		}
	default:
		return nil
	}
	for _, p := range props {
		if p.Name == property {
			return &UnsupportedTypeError{
				Type:   TypeOf(rt),
				Reason: fmt.Sprintf("property %q collides with the type property", property),
			}
		}
	}
	return nil
}

// prefixPath records that a resolution failure happened below elem.
func prefixPath(elem PathElem, err error) error {
	var pe *PathError
	if errors.As(err, &pe) {
		return &PathError{Path: append(Path{elem}, pe.Path...), Err: pe.Err}
	}
	return &PathError{Path: Path{elem}, Err: err}
}
