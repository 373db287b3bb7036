// Package msgpack provides the MessagePack token port.
package msgpack

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/zoobzio/databind"
)

// ContentType is the MIME type of the MessagePack format.
const ContentType = "application/msgpack"

type msgpackFormat struct{}

// New returns the MessagePack format.
func New() databind.Format {
	return msgpackFormat{}
}

func (msgpackFormat) ContentType() string { return ContentType }

// NewWriter returns a writer that collects the value and encodes it on
// Flush, since maps and arrays carry their length up front.
func (msgpackFormat) NewWriter(w io.Writer) databind.TokenWriter {
	return &writer{TokenBuffer: databind.NewTokenBuffer(), enc: msgpack.NewEncoder(w)}
}

func (msgpackFormat) NewReader(r io.Reader) (databind.TokenReader, error) {
	return &reader{dec: msgpack.NewDecoder(r)}, nil
}

type writer struct {
	*databind.TokenBuffer
	enc *msgpack.Encoder
}

func (w *writer) Flush() error {
	if w.Len() == 0 {
		return nil
	}
	n, err := w.Node()
	if err != nil {
		return err
	}
	w.Reset()
	return encode(w.enc, n)
}

func encode(enc *msgpack.Encoder, n *databind.Node) error {
	switch n.Kind {
	case databind.TokenStartObject:
		if err := enc.EncodeMapLen(len(n.Fields)); err != nil {
			return err
		}
		for _, f := range n.Fields {
			if err := enc.EncodeString(f.Name); err != nil {
				return err
			}
			if err := encode(enc, f.Value); err != nil {
				return err
			}
		}
		return nil
	case databind.TokenStartArray:
		if err := enc.EncodeArrayLen(len(n.Items)); err != nil {
			return err
		}
		for _, item := range n.Items {
			if err := encode(enc, item); err != nil {
				return err
			}
		}
		return nil
	case databind.TokenString:
		return enc.EncodeString(n.Text)
	case databind.TokenNumber:
		switch n.Number.Kind() {
		case databind.NumberInt:
			i, _ := n.Number.Int64()
			return enc.EncodeInt(i)
		case databind.NumberUint:
			u, _ := n.Number.Uint64()
			return enc.EncodeUint(u)
		default:
			return enc.EncodeFloat64(n.Number.Float64())
		}
	case databind.TokenTrue:
		return enc.EncodeBool(true)
	case databind.TokenFalse:
		return enc.EncodeBool(false)
	default:
		return enc.EncodeNil()
	}
}

// container is an open map or array with the number of entries left.
type container struct {
	object    bool
	remaining int
	wantName  bool
}

// reader streams tokens straight off the decoder.
type reader struct {
	dec   *msgpack.Decoder
	stack []container
	cur   databind.Token
	text  string
	num   databind.Number
}

func malformed(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: unexpected end of input", databind.ErrMalformedInput)
	}
	return fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
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
	if n := len(r.stack); n > 0 {
		top := &r.stack[n-1]
		if top.remaining == 0 && (!top.object || top.wantName) {
			r.stack = r.stack[:n-1]
			if top.object {
				return databind.TokenEndObject, nil
			}
			return databind.TokenEndArray, nil
		}
		if top.object && top.wantName {
			name, err := r.key()
			if err != nil {
				return databind.TokenNone, err
			}
			top.wantName = false
			r.text = name
			return databind.TokenFieldName, nil
		}
		top.remaining--
		if top.object {
			top.wantName = true
		}
	} else if _, err := r.dec.PeekCode(); err != nil {
		if errors.Is(err, io.EOF) {
			return databind.TokenNone, io.EOF
		}
		return databind.TokenNone, malformed(err)
	}
	return r.value()
}

func (r *reader) key() (string, error) {
	v, err := r.dec.DecodeInterfaceLoose()
	if err != nil {
		return "", malformed(err)
	}
	switch k := v.(type) {
	case string:
		return k, nil
	case []byte:
		return string(k), nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case uint64:
		return strconv.FormatUint(k, 10), nil
	default:
		return "", fmt.Errorf("%w: unsupported map key %T", databind.ErrMalformedInput, v)
	}
}

func (r *reader) value() (databind.Token, error) {
	code, err := r.dec.PeekCode()
	if err != nil {
		return databind.TokenNone, malformed(err)
	}
	switch {
	case code == msgpcode.Nil:
		if err := r.dec.DecodeNil(); err != nil {
			return databind.TokenNone, malformed(err)
		}
		return databind.TokenNull, nil

	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		n, err := r.dec.DecodeMapLen()
		if err != nil {
			return databind.TokenNone, malformed(err)
		}
		r.stack = append(r.stack, container{object: true, remaining: n, wantName: true})
		return databind.TokenStartObject, nil

	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := r.dec.DecodeArrayLen()
		if err != nil {
			return databind.TokenNone, malformed(err)
		}
		r.stack = append(r.stack, container{remaining: n})
		return databind.TokenStartArray, nil
	}

	v, err := r.dec.DecodeInterfaceLoose()
	if err != nil {
		return databind.TokenNone, malformed(err)
	}
	switch x := v.(type) {
	case bool:
		if x {
			return databind.TokenTrue, nil
		}
		return databind.TokenFalse, nil
	case string:
		r.text = x
		return databind.TokenString, nil
	case []byte:
		r.text = base64.StdEncoding.EncodeToString(x)
		return databind.TokenString, nil
	case int64:
		r.num = databind.IntNumber(x)
		return databind.TokenNumber, nil
	case uint64:
		r.num = databind.UintNumber(x)
		return databind.TokenNumber, nil
	case float64:
		r.num = databind.FloatNumber(x)
		return databind.TokenNumber, nil
	case time.Time:
		r.text = x.UTC().Format(time.RFC3339Nano)
		return databind.TokenString, nil
	default:
		return databind.TokenNone, fmt.Errorf("%w: unsupported value %T", databind.ErrMalformedInput, v)
	}
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
