package databind

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Token is one atomic unit of a streaming format.
type Token uint8

// Token kinds.
const (
	TokenNone Token = iota
	TokenStartObject
	TokenEndObject
	TokenStartArray
	TokenEndArray
	TokenFieldName
	TokenString
	TokenNumber
	TokenTrue
	TokenFalse
	TokenNull
)

var tokenNames = [...]string{
	TokenNone:        "NONE",
	TokenStartObject: "START_OBJECT",
	TokenEndObject:   "END_OBJECT",
	TokenStartArray:  "START_ARRAY",
	TokenEndArray:    "END_ARRAY",
	TokenFieldName:   "FIELD_NAME",
	TokenString:      "STRING",
	TokenNumber:      "NUMBER",
	TokenTrue:        "TRUE",
	TokenFalse:       "FALSE",
	TokenNull:        "NULL",
}

func (t Token) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}
	return fmt.Sprintf("Token(%d)", uint8(t))
}

// IsScalar reports whether the token is a complete value on its own.
func (t Token) IsScalar() bool {
	switch t {
	case TokenString, TokenNumber, TokenTrue, TokenFalse, TokenNull:
		return true
	}
	return false
}

// NumberKind identifies the representation held by a Number.
type NumberKind uint8

// Number representations.
const (
	NumberInt NumberKind = iota
	NumberUint
	NumberFloat
)

// Number is a numeric token value that keeps the source representation
// without loss. Floats parsed from text keep the original literal.
type Number struct {
	kind NumberKind
	i    int64
	u    uint64
	f    float64
	text string
}

// IntNumber returns a signed integer Number.
func IntNumber(i int64) Number { return Number{kind: NumberInt, i: i} }

// UintNumber returns an unsigned integer Number.
func UintNumber(u uint64) Number { return Number{kind: NumberUint, u: u} }

// FloatNumber returns a floating point Number.
func FloatNumber(f float64) Number { return Number{kind: NumberFloat, f: f} }

// ParseNumber parses a numeric literal, preferring int64, then uint64, then float64.
func ParseNumber(s string) (Number, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntNumber(i), nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return UintNumber(u), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}, fmt.Errorf("%w: invalid number %q", ErrMalformedInput, s)
	}
	return Number{kind: NumberFloat, f: f, text: s}, nil
}

// Kind returns the representation of n.
func (n Number) Kind() NumberKind { return n.kind }

// Int64 returns n as an int64, failing if the value does not fit exactly.
func (n Number) Int64() (int64, error) {
	switch n.kind {
	case NumberInt:
		return n.i, nil
	case NumberUint:
		if n.u > math.MaxInt64 {
			return 0, fmt.Errorf("%s overflows int64", n)
		}
		return int64(n.u), nil
	default:
		if n.f != math.Trunc(n.f) || n.f < math.MinInt64 || n.f >= math.MaxInt64 {
			return 0, fmt.Errorf("%s is not an integer", n)
		}
		return int64(n.f), nil
	}
}

// Uint64 returns n as a uint64, failing on negative or fractional values.
func (n Number) Uint64() (uint64, error) {
	switch n.kind {
	case NumberUint:
		return n.u, nil
	case NumberInt:
		if n.i < 0 {
			return 0, fmt.Errorf("%s is negative", n)
		}
		return uint64(n.i), nil
	default:
		if n.f != math.Trunc(n.f) || n.f < 0 || n.f >= math.MaxUint64 {
			return 0, fmt.Errorf("%s is not an unsigned integer", n)
		}
		return uint64(n.f), nil
	}
}

// Float64 returns n as a float64. Large integers may round.
func (n Number) Float64() float64 {
	switch n.kind {
	case NumberInt:
		return float64(n.i)
	case NumberUint:
		return float64(n.u)
	default:
		return n.f
	}
}

// String renders n as a decimal literal.
func (n Number) String() string {
	switch n.kind {
	case NumberInt:
		return strconv.FormatInt(n.i, 10)
	case NumberUint:
		return strconv.FormatUint(n.u, 10)
	default:
		if n.text != "" {
			return n.text
		}
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
}

// Path locates a value inside the structure being bound.
type Path []PathElem

// PathElem is one step of a Path: a property name, a sequence index or a map key.
type PathElem struct {
	Property string
	Key      string
	Index    int
	kind     pathKind
}

type pathKind uint8

const (
	pathProperty pathKind = iota
	pathIndex
	pathKey
)

// PropertyElem returns a path step into a named property.
func PropertyElem(name string) PathElem { return PathElem{Property: name, kind: pathProperty} }

// IndexElem returns a path step into a sequence element.
func IndexElem(i int) PathElem { return PathElem{Index: i, kind: pathIndex} }

// KeyElem returns a path step into a map entry.
func KeyElem(key string) PathElem { return PathElem{Key: key, kind: pathKey} }

// String renders p as name.child[0]["key"].
func (p Path) String() string {
	var b strings.Builder
	for i, e := range p {
		switch e.kind {
		case pathIndex:
			fmt.Fprintf(&b, "[%d]", e.Index)
		case pathKey:
			fmt.Fprintf(&b, "[%q]", e.Key)
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(e.Property)
		}
	}
	return b.String()
}
