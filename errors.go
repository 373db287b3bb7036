package databind

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrArity indicates a type descriptor was constructed with the wrong number of parameters.
	ErrArity = errors.New("invalid type arity")

	// ErrUnsupportedType indicates no strategy can be resolved for a type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrConversion indicates a token could not be converted to the target type.
	ErrConversion = errors.New("conversion failed")

	// ErrUnknownSubtype indicates a discriminator value has no registered subtype.
	ErrUnknownSubtype = errors.New("unknown subtype")

	// ErrRecursiveResolution indicates a placeholder strategy was invoked before it was resolved.
	ErrRecursiveResolution = errors.New("recursive resolution")

	// ErrMissingRequiredProperty indicates a required property was absent from an object.
	ErrMissingRequiredProperty = errors.New("missing required property")

	// ErrUnknownProperty indicates an object carried a property the bean does not declare.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrMissingTypeProperty indicates a polymorphic object carried no discriminator.
	ErrMissingTypeProperty = errors.New("missing type property")

	// ErrMalformedInput indicates a token port could not parse its input.
	ErrMalformedInput = errors.New("malformed input")

	// ErrCyclicValue indicates a value graph references itself.
	ErrCyclicValue = errors.New("cyclic value")

	// ErrMaxDepth indicates nesting exceeded the configured maximum depth.
	ErrMaxDepth = errors.New("maximum depth exceeded")

	// ErrInvalidTarget indicates a decode target is not a non-nil pointer.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrMissingEncryptor indicates a required encryptor was not registered.
	ErrMissingEncryptor = errors.New("missing encryptor")

	// ErrMissingHasher indicates a required hasher was not registered.
	ErrMissingHasher = errors.New("missing hasher")

	// ErrMissingMasker indicates a required masker was not registered.
	ErrMissingMasker = errors.New("missing masker")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrUnmarshal indicates a format failed to produce a value.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates a format failed to emit a value.
	ErrMarshal = errors.New("marshal failed")

	// ErrEncrypt indicates encryption of a property failed.
	ErrEncrypt = errors.New("encrypt failed")

	// ErrDecrypt indicates decryption of a property failed.
	ErrDecrypt = errors.New("decrypt failed")

	// ErrHash indicates hashing of a property failed.
	ErrHash = errors.New("hash failed")
)

// pathError is implemented by errors that already carry a binding path.
type pathError interface {
	error
	ErrorPath() Path
}

func atPath(p Path) string {
	if len(p) == 0 {
		return ""
	}
	return " at " + p.String()
}

// UnsupportedTypeError reports a type no strategy can handle.
type UnsupportedTypeError struct {
	Type   Type
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported type %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("unsupported type %s", e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedType }

// ConversionError reports a token that does not fit the target type.
type ConversionError struct {
	Path  Path
	Type  Type  // Target type
	Token Token // Token found in the stream
	Cause error // Optional underlying failure (range, parse)
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("cannot bind %s to %s%s", e.Token, e.Type, atPath(e.Path))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConversionError) ErrorPath() Path { return e.Path }

func (e *ConversionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrConversion, e.Cause}
	}
	return []error{ErrConversion}
}

// UnknownSubtypeError reports a discriminator with no registered subtype.
type UnknownSubtypeError struct {
	Path Path
	Base Type
	ID   string
}

func (e *UnknownSubtypeError) Error() string {
	return fmt.Sprintf("unknown subtype %q for %s%s", e.ID, e.Base, atPath(e.Path))
}

func (e *UnknownSubtypeError) ErrorPath() Path { return e.Path }

func (e *UnknownSubtypeError) Unwrap() error { return ErrUnknownSubtype }

// RecursiveResolutionError reports a placeholder used before its strategy was resolved.
type RecursiveResolutionError struct {
	Type Type
}

func (e *RecursiveResolutionError) Error() string {
	return fmt.Sprintf("strategy for %s used before resolution completed", e.Type)
}

func (e *RecursiveResolutionError) Unwrap() error { return ErrRecursiveResolution }

// MissingRequiredPropertyError lists required properties absent from an object.
type MissingRequiredPropertyError struct {
	Path  Path
	Type  Type
	Names []string
}

func (e *MissingRequiredPropertyError) Error() string {
	return fmt.Sprintf("missing required properties [%s] for %s%s",
		strings.Join(e.Names, ", "), e.Type, atPath(e.Path))
}

func (e *MissingRequiredPropertyError) ErrorPath() Path { return e.Path }

func (e *MissingRequiredPropertyError) Unwrap() error { return ErrMissingRequiredProperty }

// UnknownPropertyError reports a property the bean does not declare.
type UnknownPropertyError struct {
	Path Path
	Type Type
	Name string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("unknown property %q for %s%s", e.Name, e.Type, atPath(e.Path))
}

func (e *UnknownPropertyError) ErrorPath() Path { return e.Path }

func (e *UnknownPropertyError) Unwrap() error { return ErrUnknownProperty }

// PathError annotates an error raised without path information.
type PathError struct {
	Path Path
	Err  error
}

func (e *PathError) Error() string {
	return e.Err.Error() + atPath(e.Path)
}

func (e *PathError) ErrorPath() Path { return e.Path }

func (e *PathError) Unwrap() error { return e.Err }

// ConfigError represents a binding configuration error.
// It wraps a sentinel error with additional context about the property and algorithm.
type ConfigError struct {
	Err       error  // Underlying sentinel error (ErrMissingEncryptor, etc.)
	Property  string // Property that triggered the error
	Algorithm string // Algorithm or type that was missing/invalid
}

func (e *ConfigError) Error() string {
	if e.Property != "" && e.Algorithm != "" {
		return fmt.Sprintf("%s for algorithm %q (property %s)", e.Err.Error(), e.Algorithm, e.Property)
	}
	if e.Algorithm != "" {
		return fmt.Sprintf("%s for algorithm %q", e.Err.Error(), e.Algorithm)
	}
	if e.Property != "" {
		return fmt.Sprintf("%s (property %s)", e.Err.Error(), e.Property)
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransformError represents an error during property transformation.
type TransformError struct {
	Err       error  // Underlying sentinel error (ErrEncrypt, ErrDecrypt, ErrHash)
	Path      Path   // Property that failed
	Operation string // Operation that failed (encrypt, decrypt, hash)
	Cause     error  // Original error from the underlying operation
}

func (e *TransformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %v", e.Operation, atPath(e.Path), e.Cause)
	}
	return e.Operation + atPath(e.Path)
}

func (e *TransformError) ErrorPath() Path { return e.Path }

func (e *TransformError) Unwrap() error {
	return e.Err
}

// CodecError represents a top-level marshal/unmarshal failure.
// Both the sentinel and the cause remain reachable through errors.Is and errors.As.
type CodecError struct {
	Err         error  // Underlying sentinel error (ErrMarshal, ErrUnmarshal)
	ContentType string // Format that was in use
	Cause       error  // Structured binding or port error
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Err.Error(), e.ContentType, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Err.Error(), e.ContentType)
}

func (e *CodecError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// newConfigError creates a ConfigError for missing handler scenarios.
func newConfigError(sentinel error, algorithm, property string) error {
	return &ConfigError{
		Err:       sentinel,
		Algorithm: algorithm,
		Property:  property,
	}
}

// newCodecError creates a CodecError for marshal/unmarshal failures.
func newCodecError(sentinel error, contentType string, cause error) error {
	return &CodecError{
		Err:         sentinel,
		ContentType: contentType,
		Cause:       cause,
	}
}
