package databind

import (
	"fmt"
	"io"
)

type bufferedToken struct {
	tok  Token
	text string
	num  Number
}

// TokenBuffer records tokens in memory. It is a TokenWriter, and any number
// of independent readers can replay what it holds.
//
// Buffers back polymorphic discriminator look-ahead, value conversion
// between types, and the tree-building writers of formats that need
// container lengths before encoding.
type TokenBuffer struct {
	toks []bufferedToken
}

// NewTokenBuffer returns an empty buffer.
func NewTokenBuffer() *TokenBuffer {
	return &TokenBuffer{}
}

// Len returns the number of recorded tokens.
func (b *TokenBuffer) Len() int { return len(b.toks) }

// Reset discards all recorded tokens.
func (b *TokenBuffer) Reset() { b.toks = b.toks[:0] }

func (b *TokenBuffer) push(t bufferedToken) error {
	b.toks = append(b.toks, t)
	return nil
}

func (b *TokenBuffer) WriteStartObject() error { return b.push(bufferedToken{tok: TokenStartObject}) }
func (b *TokenBuffer) WriteEndObject() error   { return b.push(bufferedToken{tok: TokenEndObject}) }
func (b *TokenBuffer) WriteStartArray() error  { return b.push(bufferedToken{tok: TokenStartArray}) }
func (b *TokenBuffer) WriteEndArray() error    { return b.push(bufferedToken{tok: TokenEndArray}) }
func (b *TokenBuffer) WriteNull() error        { return b.push(bufferedToken{tok: TokenNull}) }
func (b *TokenBuffer) Flush() error            { return nil }

func (b *TokenBuffer) WriteFieldName(name string) error {
	return b.push(bufferedToken{tok: TokenFieldName, text: name})
}

func (b *TokenBuffer) WriteString(s string) error {
	return b.push(bufferedToken{tok: TokenString, text: s})
}

func (b *TokenBuffer) WriteNumber(n Number) error {
	return b.push(bufferedToken{tok: TokenNumber, num: n})
}

func (b *TokenBuffer) WriteBoolean(v bool) error {
	if v {
		return b.push(bufferedToken{tok: TokenTrue})
	}
	return b.push(bufferedToken{tok: TokenFalse})
}

// Reader returns a reader over the recorded tokens, positioned before the first.
func (b *TokenBuffer) Reader() TokenReader {
	return &replayReader{toks: b.toks, pos: -1}
}

// replayReader reads buffered tokens and, once they run out, continues with
// base when one is set.
type replayReader struct {
	toks   []bufferedToken
	pos    int
	base   TokenReader
	onBase bool
}

// chainReader replays b positioned on its first token, then continues with base.
func chainReader(b *TokenBuffer, base TokenReader) TokenReader {
	return &replayReader{toks: b.toks, pos: 0, base: base}
}

func (r *replayReader) NextToken() (Token, error) {
	if r.onBase {
		return r.base.NextToken()
	}
	if r.pos+1 < len(r.toks) {
		r.pos++
		return r.toks[r.pos].tok, nil
	}
	if r.base == nil {
		r.pos = len(r.toks)
		return TokenNone, io.EOF
	}
	r.onBase = true
	return r.base.NextToken()
}

func (r *replayReader) CurrentToken() Token {
	if r.onBase {
		return r.base.CurrentToken()
	}
	if r.pos < 0 || r.pos >= len(r.toks) {
		return TokenNone
	}
	return r.toks[r.pos].tok
}

func (r *replayReader) Text() (string, error) {
	if r.onBase {
		return r.base.Text()
	}
	switch tok := r.CurrentToken(); tok {
	case TokenFieldName, TokenString:
		return r.toks[r.pos].text, nil
	case TokenNumber:
		return r.toks[r.pos].num.String(), nil
	default:
		return "", fmt.Errorf("%w: no text for %s", ErrMalformedInput, tok)
	}
}

func (r *replayReader) NumberValue() (Number, error) {
	if r.onBase {
		return r.base.NumberValue()
	}
	if tok := r.CurrentToken(); tok != TokenNumber {
		return Number{}, fmt.Errorf("%w: no number for %s", ErrMalformedInput, tok)
	}
	return r.toks[r.pos].num, nil
}

// Node is a materialized value: an object, an array or a scalar.
// Formats that encode container lengths up front build a Node tree from a
// TokenBuffer before encoding, and readers of tree-shaped formats produce
// tokens by walking one.
type Node struct {
	Kind   Token // TokenStartObject, TokenStartArray or a scalar token
	Text   string
	Number Number
	Fields []NodeField
	Items  []*Node
}

// NodeField is one property of an object Node.
type NodeField struct {
	Name  string
	Value *Node
}

// Node assembles the recorded tokens into a tree. The buffer must hold
// exactly one complete value.
func (b *TokenBuffer) Node() (*Node, error) {
	if len(b.toks) == 0 {
		return nil, fmt.Errorf("%w: empty token stream", ErrMalformedInput)
	}
	n, next, err := buildNode(b.toks, 0)
	if err != nil {
		return nil, err
	}
	if next != len(b.toks) {
		return nil, fmt.Errorf("%w: %d trailing tokens", ErrMalformedInput, len(b.toks)-next)
	}
	return n, nil
}

func buildNode(toks []bufferedToken, i int) (*Node, int, error) {
	if i >= len(toks) {
		return nil, i, fmt.Errorf("%w: unexpected end of tokens", ErrMalformedInput)
	}
	t := toks[i]
	switch t.tok {
	case TokenStartObject:
		n := &Node{Kind: TokenStartObject, Fields: []NodeField{}}
		i++
		for {
			if i >= len(toks) {
				return nil, i, fmt.Errorf("%w: unterminated object", ErrMalformedInput)
			}
			if toks[i].tok == TokenEndObject {
				return n, i + 1, nil
			}
			if toks[i].tok != TokenFieldName {
				return nil, i, fmt.Errorf("%w: expected field name, found %s", ErrMalformedInput, toks[i].tok)
			}
			name := toks[i].text
			child, next, err := buildNode(toks, i+1)
			if err != nil {
				return nil, next, err
			}
			n.Fields = append(n.Fields, NodeField{Name: name, Value: child})
			i = next
		}
	case TokenStartArray:
		n := &Node{Kind: TokenStartArray, Items: []*Node{}}
		i++
		for {
			if i >= len(toks) {
				return nil, i, fmt.Errorf("%w: unterminated array", ErrMalformedInput)
			}
			if toks[i].tok == TokenEndArray {
				return n, i + 1, nil
			}
			child, next, err := buildNode(toks, i)
			if err != nil {
				return nil, next, err
			}
			n.Items = append(n.Items, child)
			i = next
		}
	case TokenString, TokenNumber, TokenTrue, TokenFalse, TokenNull:
		return &Node{Kind: t.tok, Text: t.text, Number: t.num}, i + 1, nil
	default:
		return nil, i, fmt.Errorf("%w: unexpected %s", ErrMalformedInput, t.tok)
	}
}

// Reader returns a reader over the tokens of n, positioned before the first.
func (n *Node) Reader() TokenReader {
	b := NewTokenBuffer()
	n.writeTo(b)
	return b.Reader()
}

func (n *Node) writeTo(b *TokenBuffer) {
	if n == nil {
		_ = b.WriteNull()
		return
	}
	switch n.Kind {
	case TokenStartObject:
		_ = b.WriteStartObject()
		for _, f := range n.Fields {
			_ = b.WriteFieldName(f.Name)
			f.Value.writeTo(b)
		}
		_ = b.WriteEndObject()
	case TokenStartArray:
		_ = b.WriteStartArray()
		for _, item := range n.Items {
			item.writeTo(b)
		}
		_ = b.WriteEndArray()
	default:
		_ = b.push(bufferedToken{tok: n.Kind, text: n.Text, num: n.Number})
	}
}
