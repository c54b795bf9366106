package backend

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataStream_WriteFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, "Hel"))
	require.NoError(t, WriteText(&buf, "lo \"there\"\n"))
	require.NoError(t, WriteFinish(&buf, "stop", nil))

	assert.Equal(t, "0:\"Hel\"\n0:\"lo \\\"there\\\"\\n\"\nd:{\"finishReason\":\"stop\"}\n", buf.String())
}

func TestPartReader_ReadsPartsInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, "Hel"))
	require.NoError(t, WriteText(&buf, "lo"))
	require.NoError(t, WriteError(&buf, "upstream failed"))
	require.NoError(t, WriteFinish(&buf, "stop", &Usage{TotalTokens: 7}))

	pr := NewPartReader(&buf)

	p, err := pr.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(PartText), p.Type)
	assert.Equal(t, "Hel", p.Text)

	p, err = pr.Next()
	require.NoError(t, err)
	assert.Equal(t, "lo", p.Text)

	p, err = pr.Next()
	require.NoError(t, err)
	assert.Equal(t, byte(PartError), p.Type)
	assert.Equal(t, "upstream failed", p.Text)

	p, err = pr.Next()
	require.NoError(t, err)
	require.NotNil(t, p.Finish)
	assert.Equal(t, "stop", p.Finish.FinishReason)
	assert.Equal(t, 7, p.Finish.Usage.TotalTokens)

	_, err = pr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPartReader_SkipsBlankLines(t *testing.T) {
	pr := NewPartReader(strings.NewReader("\r\n0:\"a\"\r\n\n"))
	p, err := pr.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", p.Text)
	_, err = pr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParsePart_Malformed(t *testing.T) {
	for _, line := range []string{"x", "0\"a\"", "0:not-json", "d:[1"} {
		_, err := ParsePart(line)
		assert.Error(t, err, line)
	}
}
