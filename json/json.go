// Package json provides the JSON token port.
package json

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/goccy/go-json"

	"github.com/zoobzio/databind"
)

// ContentType is the MIME type of the JSON format.
const ContentType = "application/json"

type jsonFormat struct{}

// New returns the JSON format.
func New() databind.Format {
	return jsonFormat{}
}

func (jsonFormat) ContentType() string { return ContentType }

func (jsonFormat) NewWriter(w io.Writer) databind.TokenWriter {
	return &writer{w: bufio.NewWriter(w)}
}

func (jsonFormat) NewReader(r io.Reader) (databind.TokenReader, error) {
	return &reader{in: bufio.NewReader(r)}, nil
}

// frame tracks one open object or array being written.
type frame struct {
	object  bool
	count   int  // values written so far
	pending bool // object: a field name awaits its value
}

// writer emits compact JSON.
type writer struct {
	w     *bufio.Writer
	stack []frame
	err   error
}

func (w *writer) top() *frame {
	if len(w.stack) == 0 {
		return nil
	}
	return &w.stack[len(w.stack)-1]
}

// beginValue writes the separator a value needs in its current position.
func (w *writer) beginValue() error {
	if w.err != nil {
		return w.err
	}
	f := w.top()
	switch {
	case f == nil:
	case f.object:
		if !f.pending {
			return w.fail(errors.New("value without field name"))
		}
		f.pending = false
		f.count++
	default:
		if f.count > 0 {
			w.w.WriteByte(',')
		}
		f.count++
	}
	return nil
}

func (w *writer) fail(err error) error {
	if w.err == nil {
		w.err = fmt.Errorf("json: %w", err)
	}
	return w.err
}

func (w *writer) open(object bool, b byte) error {
	if err := w.beginValue(); err != nil {
		return err
	}
	w.stack = append(w.stack, frame{object: object})
	return w.w.WriteByte(b)
}

func (w *writer) close(object bool, b byte) error {
	if w.err != nil {
		return w.err
	}
	f := w.top()
	if f == nil || f.object != object || f.pending {
		return w.fail(fmt.Errorf("unbalanced %q", b))
	}
	w.stack = w.stack[:len(w.stack)-1]
	return w.w.WriteByte(b)
}

func (w *writer) WriteStartObject() error { return w.open(true, '{') }
func (w *writer) WriteEndObject() error   { return w.close(true, '}') }
func (w *writer) WriteStartArray() error  { return w.open(false, '[') }
func (w *writer) WriteEndArray() error    { return w.close(false, ']') }

func (w *writer) WriteFieldName(name string) error {
	if w.err != nil {
		return w.err
	}
	f := w.top()
	if f == nil || !f.object || f.pending {
		return w.fail(fmt.Errorf("field name %q outside object", name))
	}
	if f.count > 0 {
		w.w.WriteByte(',')
	}
	f.pending = true
	if err := w.quote(name); err != nil {
		return err
	}
	return w.w.WriteByte(':')
}

func (w *writer) WriteString(s string) error {
	if err := w.beginValue(); err != nil {
		return err
	}
	return w.quote(s)
}

func (w *writer) quote(s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return w.fail(err)
	}
	_, err = w.w.Write(b)
	return err
}

func (w *writer) WriteNumber(n databind.Number) error {
	if n.Kind() == databind.NumberFloat {
		if f := n.Float64(); math.IsNaN(f) || math.IsInf(f, 0) {
			return w.fail(fmt.Errorf("unsupported number %s", n))
		}
	}
	if err := w.beginValue(); err != nil {
		return err
	}
	_, err := w.w.WriteString(n.String())
	return err
}

func (w *writer) WriteBoolean(b bool) error {
	if err := w.beginValue(); err != nil {
		return err
	}
	if b {
		_, err := w.w.WriteString("true")
		return err
	}
	_, err := w.w.WriteString("false")
	return err
}

func (w *writer) WriteNull() error {
	if err := w.beginValue(); err != nil {
		return err
	}
	_, err := w.w.WriteString("null")
	return err
}

func (w *writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// readState is what an open container accepts next.
type readState uint8

const (
	stateFirst readState = iota // just opened: a value, a field name or the closer
	stateName                   // after ',' in an object
	stateColon                  // after a field name
	stateValue                  // after ':' or after ',' in an array
	stateComma                  // after a value: ',' or the closer
)

type readFrame struct {
	object bool
	state  readState
}

// reader tokenizes JSON and checks its grammar. Strings are unquoted and
// number literals validated by go-json.
type reader struct {
	in    *bufio.Reader
	off   int
	stack []readFrame
	done  bool // the top-level value is complete
	cur   databind.Token
	text  string
	num   databind.Number
}

func (r *reader) malformed(format string, args ...any) error {
	return fmt.Errorf("%w: json: %s at offset %d", databind.ErrMalformedInput, fmt.Sprintf(format, args...), r.off)
}

func (r *reader) readByte() (byte, error) {
	c, err := r.in.ReadByte()
	if err == nil {
		r.off++
	}
	return c, err
}

func (r *reader) skipSpace() (byte, error) {
	for {
		c, err := r.readByte()
		if err != nil {
			return 0, err
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c, nil
	}
}

func (r *reader) NextToken() (databind.Token, error) {
	tok, err := r.next()
	if err != nil {
		r.cur = databind.TokenNone
		return databind.TokenNone, err
	}
	r.cur = tok
	return tok, nil
}

func (r *reader) next() (databind.Token, error) {
	for {
		c, err := r.skipSpace()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return databind.TokenNone, fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
			}
			if len(r.stack) > 0 {
				return databind.TokenNone, r.malformed("unexpected end of input")
			}
			return databind.TokenNone, io.EOF
		}

		if len(r.stack) == 0 {
			if r.done {
				return databind.TokenNone, r.malformed("trailing data %q", c)
			}
			return r.value(c)
		}

		f := &r.stack[len(r.stack)-1]
		switch f.state {
		case stateFirst:
			if r.closes(f, c) {
				return r.close()
			}
			if f.object {
				return r.name(c)
			}
			return r.value(c)
		case stateName:
			return r.name(c)
		case stateColon:
			if c != ':' {
				return databind.TokenNone, r.malformed("expected ':' after field name, found %q", c)
			}
			f.state = stateValue
		case stateValue:
			return r.value(c)
		case stateComma:
			if r.closes(f, c) {
				return r.close()
			}
			if c != ',' {
				return databind.TokenNone, r.malformed("expected ',' or closing delimiter, found %q", c)
			}
			f.state = stateValue
			if f.object {
				f.state = stateName
			}
		}
	}
}

func (r *reader) closes(f *readFrame, c byte) bool {
	return (f.object && c == '}') || (!f.object && c == ']')
}

func (r *reader) close() (databind.Token, error) {
	object := r.stack[len(r.stack)-1].object
	r.stack = r.stack[:len(r.stack)-1]
	r.valueDone()
	if object {
		return databind.TokenEndObject, nil
	}
	return databind.TokenEndArray, nil
}

func (r *reader) valueDone() {
	if len(r.stack) == 0 {
		r.done = true
		return
	}
	r.stack[len(r.stack)-1].state = stateComma
}

func (r *reader) name(c byte) (databind.Token, error) {
	if c != '"' {
		return databind.TokenNone, r.malformed("expected field name, found %q", c)
	}
	s, err := r.readString()
	if err != nil {
		return databind.TokenNone, err
	}
	r.text = s
	r.stack[len(r.stack)-1].state = stateColon
	return databind.TokenFieldName, nil
}

func (r *reader) value(c byte) (databind.Token, error) {
	switch {
	case c == '{':
		r.stack = append(r.stack, readFrame{object: true})
		return databind.TokenStartObject, nil
	case c == '[':
		r.stack = append(r.stack, readFrame{})
		return databind.TokenStartArray, nil
	case c == '"':
		s, err := r.readString()
		if err != nil {
			return databind.TokenNone, err
		}
		r.text = s
		r.valueDone()
		return databind.TokenString, nil
	case c == '-' || (c >= '0' && c <= '9'):
		n, err := r.readNumber(c)
		if err != nil {
			return databind.TokenNone, err
		}
		r.num = n
		r.valueDone()
		return databind.TokenNumber, nil
	case c >= 'a' && c <= 'z':
		tok, err := r.readLiteral(c)
		if err != nil {
			return databind.TokenNone, err
		}
		r.valueDone()
		return tok, nil
	}
	return databind.TokenNone, r.malformed("unexpected %q", c)
}

// readString reads the rest of a string whose opening quote was consumed.
func (r *reader) readString() (string, error) {
	raw := []byte{'"'}
	escaped := false
	for {
		c, err := r.readByte()
		if err != nil {
			return "", r.malformed("unterminated string")
		}
		if c < 0x20 {
			return "", r.malformed("control character in string")
		}
		raw = append(raw, c)
		if c == '"' {
			break
		}
		if c == '\\' {
			escaped = true
			next, err := r.readByte()
			if err != nil {
				return "", r.malformed("unterminated string")
			}
			raw = append(raw, next)
		}
	}
	if !escaped {
		return string(raw[1 : len(raw)-1]), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", r.malformed("invalid string: %v", err)
	}
	return s, nil
}

func (r *reader) readNumber(first byte) (databind.Number, error) {
	raw := []byte{first}
	for {
		b, err := r.in.Peek(1)
		if err != nil || !isNumberByte(b[0]) {
			break
		}
		c, _ := r.readByte()
		raw = append(raw, c)
	}
	if !json.Valid(raw) {
		return databind.Number{}, r.malformed("invalid number %q", raw)
	}
	n, err := databind.ParseNumber(string(raw))
	if err != nil {
		return databind.Number{}, fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
	}
	return n, nil
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

func (r *reader) readLiteral(first byte) (databind.Token, error) {
	raw := []byte{first}
	for {
		b, err := r.in.Peek(1)
		if err != nil || b[0] < 'a' || b[0] > 'z' {
			break
		}
		c, _ := r.readByte()
		raw = append(raw, c)
	}
	switch string(raw) {
	case "true":
		return databind.TokenTrue, nil
	case "false":
		return databind.TokenFalse, nil
	case "null":
		return databind.TokenNull, nil
	}
	return databind.TokenNone, r.malformed("invalid literal %q", raw)
}

func (r *reader) CurrentToken() databind.Token { return r.cur }

func (r *reader) Text() (string, error) {
	switch r.cur {
	case databind.TokenFieldName, databind.TokenString:
		return r.text, nil
	case databind.TokenNumber:
		return r.num.String(), nil
	default:
		return "", fmt.Errorf("%w: no text for %s", databind.ErrMalformedInput, r.cur)
	}
}

func (r *reader) NumberValue() (databind.Number, error) {
	if r.cur != databind.TokenNumber {
		return databind.Number{}, fmt.Errorf("%w: no number for %s", databind.ErrMalformedInput, r.cur)
	}
	return r.num, nil
}
