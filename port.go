package databind

import (
	"errors"
	"fmt"
	"io"
)

// TokenWriter is the output side of a streaming format.
// Implementations own buffering; Flush pushes everything written so far to
// the underlying transport.
type TokenWriter interface {
	WriteStartObject() error
	WriteEndObject() error
	WriteStartArray() error
	WriteEndArray() error
	WriteFieldName(name string) error
	WriteString(s string) error
	WriteNumber(n Number) error
	WriteBoolean(b bool) error
	WriteNull() error
	Flush() error
}

// TokenReader is the input side of a streaming format.
//
// NextToken advances and returns the new current token, or io.EOF once the
// input is exhausted. Text returns the field name or string value of the
// current token and NumberValue the value of a number token.
type TokenReader interface {
	NextToken() (Token, error)
	CurrentToken() Token
	Text() (string, error)
	NumberValue() (Number, error)
}

// Format binds a content type to its token port implementation.
type Format interface {
	// ContentType returns the MIME type for this format (e.g., "application/json").
	ContentType() string

	// NewWriter returns a writer emitting to w.
	NewWriter(w io.Writer) TokenWriter

	// NewReader returns a reader consuming r.
	NewReader(r io.Reader) (TokenReader, error)
}

// SkipValue consumes the value whose first token is current, leaving the
// reader on its last token.
func SkipValue(r TokenReader) error {
	switch r.CurrentToken() {
	case TokenStartObject, TokenStartArray:
	case TokenFieldName:
		return fmt.Errorf("%w: expected value, found %s", ErrMalformedInput, TokenFieldName)
	default:
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := r.NextToken()
		if err != nil {
			return unexpectedEOF(err)
		}
		switch tok {
		case TokenStartObject, TokenStartArray:
			depth++
		case TokenEndObject, TokenEndArray:
			depth--
		}
	}
	return nil
}

// CopyValue replays the value whose first token is current on r onto w,
// leaving r on the value's last token.
func CopyValue(r TokenReader, w TokenWriter) error {
	depth := 0
	for {
		if err := copyToken(r, w); err != nil {
			return err
		}
		switch r.CurrentToken() {
		case TokenStartObject, TokenStartArray:
			depth++
		case TokenEndObject, TokenEndArray:
			depth--
		}
		if depth == 0 {
			return nil
		}
		if _, err := r.NextToken(); err != nil {
			return unexpectedEOF(err)
		}
	}
}

func copyToken(r TokenReader, w TokenWriter) error {
	switch tok := r.CurrentToken(); tok {
	case TokenStartObject:
		return w.WriteStartObject()
	case TokenEndObject:
		return w.WriteEndObject()
	case TokenStartArray:
		return w.WriteStartArray()
	case TokenEndArray:
		return w.WriteEndArray()
	case TokenFieldName:
		name, err := r.Text()
		if err != nil {
			return err
		}
		return w.WriteFieldName(name)
	case TokenString:
		s, err := r.Text()
		if err != nil {
			return err
		}
		return w.WriteString(s)
	case TokenNumber:
		n, err := r.NumberValue()
		if err != nil {
			return err
		}
		return w.WriteNumber(n)
	case TokenTrue:
		return w.WriteBoolean(true)
	case TokenFalse:
		return w.WriteBoolean(false)
	case TokenNull:
		return w.WriteNull()
	default:
		return fmt.Errorf("%w: no current token", ErrMalformedInput)
	}
}

// unexpectedEOF turns a premature io.EOF into a malformed input error.
func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected end of input", ErrMalformedInput)
	}
	return err
}
