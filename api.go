// Package databind binds Go values to and from a neutral token stream.
//
// A Format port turns a wire format into tokens (START_OBJECT, FIELD_NAME,
// STRING, NUMBER, ...) and back. A Registry resolves, once per type and
// direction, the Strategy that walks a Go value against that stream. The
// same strategies serve every format, so a type is introspected once and
// bound to JSON, YAML, MessagePack and BSON alike.
//
// # Basic Usage
//
//	type User struct {
//	    ID       string   `bind:"id,required"`
//	    Email    string   `bind:"email,mask=email"`
//	    Password string   `bind:"password,hash=argon2"`
//	    Tags     []string `bind:"tags,omitnull"`
//	}
//
//	m := databind.NewMapper(databind.WithUnknownPolicy(databind.UnknownIgnore))
//
//	data, _ := databind.Marshal(m, json.New(), user)
//	user, _ := databind.Unmarshal[User](m, json.New(), data)
//
// # Tag Syntax
//
//	bind:"name,opt,opt"
//
// Options:
//
//	required        - deserialization fails when the property is absent
//	omitnull        - skip nil pointers, slices, maps and interfaces on write
//	omitzero        - skip zero values on write (omitempty is accepted too)
//	always          - write even when the type or config says otherwise
//	mask=<type>     - mask on write (ssn, email, phone, card, ip, uuid, iban, name)
//	hash=<algo>     - hash on read (argon2, bcrypt, sha256, sha512)
//	encrypt=<algo>  - encrypt on write, decrypt on read (aes, rsa, envelope)
//	redact=<text>   - replace the value with text on write
//
// bind:"-" skips a field. Without a bind tag the json tag name is used.
// Untagged embedded structs are flattened into the outer object.
//
// # Resolution
//
// For a Type the registry picks, in order: a registered serializer or
// deserializer, a polymorphic mapping, a registered enumeration, the
// Serializable / Deserializable interfaces, OrderedMap, encoding.TextMarshaler,
// then the built-in rules for scalars, []byte, slices and arrays, pointers,
// maps and empty interfaces. Remaining structs become beans. Strategies are
// cached; recursive types resolve through a placeholder that is patched
// before the strategy is published.
//
// # Polymorphism
//
//	r.RegisterPolymorphicMapping(databind.TypeFor[Animal](), "dog", databind.TypeFor[Dog]())
//
// Values of Animal are written as {"type":"dog", ...Dog properties}. On read
// the discriminator may appear anywhere in the object; properties before it
// are buffered and replayed.
//
// # Formats
//
// Ports live in subpackages, each exporting New() databind.Format:
//
//   - json - application/json
//   - yaml - application/yaml
//   - msgpack - application/msgpack
//   - bson - application/bson
//
// # Schema
//
// Registry.Visit and Schema[T] describe the serialized shape of a type by
// walking its cached strategies, without I/O.
package databind
