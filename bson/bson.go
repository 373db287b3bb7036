// Package bson provides the BSON token port.
//
// BSON documents are always objects, so the top-level value written or read
// must be an object. Unsigned integers beyond int64 are stored as Decimal128.
package bson

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zoobzio/databind"
)

// ContentType is the MIME type of the BSON format.
const ContentType = "application/bson"

type bsonFormat struct{}

// New returns the BSON format.
func New() databind.Format {
	return bsonFormat{}
}

func (bsonFormat) ContentType() string { return ContentType }

func (bsonFormat) NewWriter(w io.Writer) databind.TokenWriter {
	return &writer{TokenBuffer: databind.NewTokenBuffer(), w: w}
}

// NewReader reads exactly one document from r.
func (bsonFormat) NewReader(r io.Reader) (databind.TokenReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return databind.NewTokenBuffer().Reader(), nil
	}
	if len(data) < 5 || int(binary.LittleEndian.Uint32(data)) != len(data) {
		return nil, fmt.Errorf("%w: document length does not match input", databind.ErrMalformedInput)
	}
	raw := bson.Raw(data)
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
	}
	n, err := fromDocument(raw)
	if err != nil {
		return nil, err
	}
	return n.Reader(), nil
}

type writer struct {
	*databind.TokenBuffer
	w io.Writer
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
	if n.Kind != databind.TokenStartObject {
		return fmt.Errorf("%w: bson root must be a document, got %s", databind.ErrUnsupportedType, n.Kind)
	}
	doc, err := toValue(n)
	if err != nil {
		return err
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.w.Write(data)
	return err
}

func toValue(n *databind.Node) (any, error) {
	switch n.Kind {
	case databind.TokenStartObject:
		d := make(bson.D, 0, len(n.Fields))
		for _, f := range n.Fields {
			v, err := toValue(f.Value)
			if err != nil {
				return nil, err
			}
			d = append(d, bson.E{Key: f.Name, Value: v})
		}
		return d, nil
	case databind.TokenStartArray:
		a := make(bson.A, 0, len(n.Items))
		for _, item := range n.Items {
			v, err := toValue(item)
			if err != nil {
				return nil, err
			}
			a = append(a, v)
		}
		return a, nil
	case databind.TokenString:
		return n.Text, nil
	case databind.TokenNumber:
		return toNumber(n.Number)
	case databind.TokenTrue:
		return true, nil
	case databind.TokenFalse:
		return false, nil
	default:
		return nil, nil
	}
}

func toNumber(num databind.Number) (any, error) {
	switch num.Kind() {
	case databind.NumberInt:
		i, _ := num.Int64()
		return i, nil
	case databind.NumberUint:
		u, _ := num.Uint64()
		if u <= math.MaxInt64 {
			return int64(u), nil
		}
		d, err := primitive.ParseDecimal128(num.String())
		if err != nil {
			return nil, fmt.Errorf("bson: %s: %w", num, err)
		}
		return d, nil
	default:
		return num.Float64(), nil
	}
}

func fromDocument(raw bson.Raw) (*databind.Node, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
	}
	out := &databind.Node{Kind: databind.TokenStartObject, Fields: make([]databind.NodeField, 0, len(elems))}
	for _, e := range elems {
		v, err := fromValue(e.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Key(), err)
		}
		out.Fields = append(out.Fields, databind.NodeField{Name: e.Key(), Value: v})
	}
	return out, nil
}

func fromValue(v bson.RawValue) (*databind.Node, error) {
	switch v.Type {
	case bsontype.EmbeddedDocument:
		return fromDocument(v.Document())

	case bsontype.Array:
		vals, err := v.Array().Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", databind.ErrMalformedInput, err)
		}
		out := &databind.Node{Kind: databind.TokenStartArray, Items: make([]*databind.Node, 0, len(vals))}
		for _, item := range vals {
			n, err := fromValue(item)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, n)
		}
		return out, nil

	case bsontype.String:
		return text(v.StringValue()), nil
	case bsontype.Symbol:
		return text(v.Symbol()), nil
	case bsontype.Binary:
		_, data := v.Binary()
		return text(base64.StdEncoding.EncodeToString(data)), nil
	case bsontype.ObjectID:
		return text(v.ObjectID().Hex()), nil
	case bsontype.DateTime:
		return text(v.Time().UTC().Format(time.RFC3339Nano)), nil

	case bsontype.Int32:
		return number(databind.IntNumber(int64(v.Int32()))), nil
	case bsontype.Int64:
		return number(databind.IntNumber(v.Int64())), nil
	case bsontype.Double:
		return number(databind.FloatNumber(v.Double())), nil
	case bsontype.Decimal128:
		n, err := databind.ParseNumber(v.Decimal128().String())
		if err != nil {
			return nil, err
		}
		return number(n), nil

	case bsontype.Boolean:
		if v.Boolean() {
			return &databind.Node{Kind: databind.TokenTrue}, nil
		}
		return &databind.Node{Kind: databind.TokenFalse}, nil
	case bsontype.Null, bsontype.Undefined:
		return &databind.Node{Kind: databind.TokenNull}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported bson type %s", databind.ErrMalformedInput, v.Type)
	}
}

func text(s string) *databind.Node {
	return &databind.Node{Kind: databind.TokenString, Text: s}
}

func number(n databind.Number) *databind.Node {
	return &databind.Node{Kind: databind.TokenNumber, Number: n}
}
