package databind

// Override interfaces allow types to bypass reflection-based binding.
// When a type implements one of these interfaces, the registry resolves a
// strategy that calls the interface method instead of introspecting fields.
//
// This provides two benefits:
// 1. Performance: Avoid reflection overhead for hot paths
// 2. Custom logic: Wire shapes that can't be expressed via tags
//
// These interfaces are designed for codegen: a code generator can implement
// these methods from struct tags, providing compile-time safety and
// optimal performance.

// Serializable bypasses bean introspection on write.
type Serializable interface {
	// MarshalTokens writes exactly one value to w.
	// Nested values can be delegated with c.Serialize.
	MarshalTokens(c *Context, w TokenWriter) error
}

// Deserializable bypasses bean introspection on read.
// It is usually implemented on the pointer receiver.
type Deserializable interface {
	// UnmarshalTokens reads the value whose first token is current on r,
	// leaving r on the value's last token.
	UnmarshalTokens(c *Context, r TokenReader) error
}

// SchemaDescriber supplies the schema of a Serializable type, which the
// introspection visitor cannot otherwise see into.
type SchemaDescriber interface {
	DescribeSchema() *SchemaNode
}

// InclusionProvider lets a bean type declare the inclusion policy of its
// properties. Property tags still take precedence.
type InclusionProvider interface {
	BindInclusion() Inclusion
}
