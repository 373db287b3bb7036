package yaml

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/databind"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/yaml", New().ContentType())
}

func TestWriterQuotesAmbiguousStrings(t *testing.T) {
	var buf bytes.Buffer
	w := New().NewWriter(&buf)

	require.NoError(t, w.WriteStartObject())
	require.NoError(t, w.WriteFieldName("flag"))
	require.NoError(t, w.WriteString("true"))
	require.NoError(t, w.WriteFieldName("count"))
	require.NoError(t, w.WriteNumber(databind.IntNumber(3)))
	require.NoError(t, w.WriteFieldName("list"))
	require.NoError(t, w.WriteStartArray())
	require.NoError(t, w.WriteString("a"))
	require.NoError(t, w.WriteNull())
	require.NoError(t, w.WriteEndArray())
	require.NoError(t, w.WriteEndObject())
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.Contains(t, out, `flag: "true"`)
	assert.Contains(t, out, "count: 3\n")
	assert.Contains(t, out, "- null\n")
}

func tokens(t *testing.T, input string) []databind.Token {
	t.Helper()
	r, err := New().NewReader(strings.NewReader(input))
	require.NoError(t, err)
	var out []databind.Token
	for {
		tok, err := r.NextToken()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, tok)
	}
}

func TestReaderScalars(t *testing.T) {
	got := tokens(t, "a: yes\nb: true\nc: ~\nd: 0x1F\ne: .inf\nf: '12'\n")
	assert.Equal(t, []databind.Token{
		databind.TokenStartObject,
		databind.TokenFieldName, databind.TokenString,
		databind.TokenFieldName, databind.TokenTrue,
		databind.TokenFieldName, databind.TokenNull,
		databind.TokenFieldName, databind.TokenNumber,
		databind.TokenFieldName, databind.TokenNumber,
		databind.TokenFieldName, databind.TokenString,
		databind.TokenEndObject,
	}, got)
}

func TestReaderAliasAndMerge(t *testing.T) {
	type point struct {
		X int `bind:"x"`
		Y int `bind:"y"`
	}
	type doc struct {
		Base  point `bind:"base"`
		Other point `bind:"other"`
		Copy  point `bind:"copy"`
	}
	input := "base: &b {x: 1, y: 2}\nother:\n  <<: *b\n  y: 5\ncopy: *b\n"

	out, err := databind.Unmarshal[doc](databind.NewMapper(), New(), []byte(input))
	require.NoError(t, err)
	assert.Equal(t, doc{Base: point{1, 2}, Other: point{1, 5}, Copy: point{1, 2}}, out)
}

func TestReaderEmptyAndMalformed(t *testing.T) {
	assert.Empty(t, tokens(t, ""))

	_, err := New().NewReader(strings.NewReader("a: [1, 2"))
	assert.ErrorIs(t, err, databind.ErrMalformedInput)
}

func TestMapperRoundTrip(t *testing.T) {
	type item struct {
		Name  string            `bind:"name"`
		Price float64           `bind:"price"`
		Tags  []string          `bind:"tags"`
		Attrs map[string]string `bind:"attrs"`
	}
	m := databind.NewMapper()
	in := item{Name: "on", Price: 2.5, Tags: []string{"1", "null"}, Attrs: map[string]string{"k": "v"}}

	data, err := databind.Marshal(m, New(), in)
	require.NoError(t, err)

	out, err := databind.Unmarshal[item](m, New(), data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
