package pretty_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apoxy-dev/shorty/pretty"
)

func TestTablePrint(t *testing.T) {
	var buf bytes.Buffer
	pretty.Table{
		Header: pretty.Header{"Key", "URL"},
		Rows: pretty.Rows{
			{"abc", "https://example.com"},
			{"xyz", "https://example.org/long/path"},
		},
	}.Print(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Key"), lines[0])
	assert.Contains(t, lines[1], "https://example.com")
	assert.Contains(t, lines[2], "https://example.org/long/path")
	assert.NotContains(t, buf.String(), "|")
}
