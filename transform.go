package databind

import (
	"encoding/base64"
	"fmt"
	"reflect"
)

// TransformOp identifies a per-property value transformation.
type TransformOp uint8

const (
	TransformNone    TransformOp = iota
	TransformMask                // mask=<type>: masked on write
	TransformHash                // hash=<algo>: hashed on read
	TransformEncrypt             // encrypt=<algo>: encrypted on write, decrypted on read
	TransformRedact              // redact=<text>: replaced on write
)

var transformOps = map[string]TransformOp{
	"mask":    TransformMask,
	"hash":    TransformHash,
	"encrypt": TransformEncrypt,
	"redact":  TransformRedact,
}

func (op TransformOp) String() string {
	for name, o := range transformOps {
		if o == op {
			return name
		}
	}
	return "none"
}

// Transform is the transformation declared on a property, with its argument.
type Transform struct {
	Op  TransformOp
	Arg string
}

func isTransformOp(key string) bool {
	_, ok := transformOps[key]
	return ok
}

// parseTransform validates a transform option against the known capabilities.
func parseTransform(field, key, val string) (Transform, error) {
	t := Transform{Op: transformOps[key], Arg: val}
	switch t.Op {
	case TransformMask:
		if !IsValidMaskType(MaskType(val)) {
			return t, fmt.Errorf("%w: invalid mask type %q for field %s", ErrInvalidTag, val, field)
		}
	case TransformHash:
		if !IsValidHashAlgo(HashAlgo(val)) {
			return t, fmt.Errorf("%w: invalid hash algorithm %q for field %s", ErrInvalidTag, val, field)
		}
	case TransformEncrypt:
		if !IsValidEncryptAlgo(EncryptAlgo(val)) {
			return t, fmt.Errorf("%w: invalid encryption algorithm %q for field %s", ErrInvalidTag, val, field)
		}
	}
	return t, nil
}

// check rejects transforms on properties that are not strings or []byte.
func (t Transform) check(rt reflect.Type) error {
	if rt.Kind() == reflect.String || (rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8) {
		return nil
	}
	return fmt.Errorf("%w: %s on %s requires a string or []byte property", ErrInvalidTag, t.Op, rt)
}

// transformStrategy applies a property transform around the raw text of a
// string or []byte value.
type transformStrategy struct {
	typ       Type
	transform Transform
	encryptor Encryptor
	hasher    Hasher
	masker    Masker
}

// newTransformStrategy binds t to the handlers registered in cfg.
func newTransformStrategy(typ Type, property string, t Transform, cfg *Config) (*transformStrategy, error) {
	s := &transformStrategy{typ: typ, transform: t}
	switch t.Op {
	case TransformEncrypt:
		enc, ok := cfg.encryptors[EncryptAlgo(t.Arg)]
		if !ok {
			return nil, newConfigError(ErrMissingEncryptor, t.Arg, property)
		}
		s.encryptor = enc
	case TransformHash:
		h, ok := cfg.hashers[HashAlgo(t.Arg)]
		if !ok {
			return nil, newConfigError(ErrMissingHasher, t.Arg, property)
		}
		s.hasher = h
	case TransformMask:
		m, ok := cfg.maskers[MaskType(t.Arg)]
		if !ok {
			return nil, newConfigError(ErrMissingMasker, t.Arg, property)
		}
		s.masker = m
	}
	return s, nil
}

func rawText(v reflect.Value) []byte {
	if v.Kind() == reflect.String {
		return []byte(v.String())
	}
	return v.Bytes()
}

func setRawText(v reflect.Value, b []byte) {
	if v.Kind() == reflect.String {
		v.SetString(string(b))
		return
	}
	v.SetBytes(b)
}

func (s *transformStrategy) Serialize(c *Context, w TokenWriter, v reflect.Value) error {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return w.WriteNull()
	}
	plain := rawText(v)
	switch s.transform.Op {
	case TransformEncrypt:
		ciphertext, err := s.encryptor.Encrypt(plain)
		if err != nil {
			return &TransformError{Err: ErrEncrypt, Path: c.Path(), Operation: "encrypt", Cause: err}
		}
		return w.WriteString(base64.StdEncoding.EncodeToString(ciphertext))
	case TransformMask:
		return w.WriteString(s.masker.Mask(string(plain)))
	case TransformRedact:
		return w.WriteString(s.transform.Arg)
	}
	if v.Kind() == reflect.String {
		return w.WriteString(string(plain))
	}
	return w.WriteString(base64.StdEncoding.EncodeToString(plain))
}

func (s *transformStrategy) Deserialize(c *Context, r TokenReader, v reflect.Value) error {
	if readNull(r, v) {
		return nil
	}
	if tok := r.CurrentToken(); tok != TokenString {
		return c.conversionError(s.typ, tok, nil)
	}
	text, err := r.Text()
	if err != nil {
		return c.annotate(err)
	}

	switch s.transform.Op {
	case TransformEncrypt:
		ciphertext, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return &TransformError{Err: ErrDecrypt, Path: c.Path(), Operation: "decrypt", Cause: err}
		}
		plain, err := s.encryptor.Decrypt(ciphertext)
		if err != nil {
			return &TransformError{Err: ErrDecrypt, Path: c.Path(), Operation: "decrypt", Cause: err}
		}
		setRawText(v, plain)
		return nil
	case TransformHash:
		plain := []byte(text)
		if v.Kind() != reflect.String {
			if plain, err = base64.StdEncoding.DecodeString(text); err != nil {
				return c.conversionError(s.typ, TokenString, err)
			}
		}
		hashed, err := s.hasher.Hash(plain)
		if err != nil {
			return &TransformError{Err: ErrHash, Path: c.Path(), Operation: "hash", Cause: err}
		}
		setRawText(v, []byte(hashed))
		return nil
	}

	if v.Kind() == reflect.String {
		v.SetString(text)
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return c.conversionError(s.typ, TokenString, err)
	}
	v.SetBytes(b)
	return nil
}
