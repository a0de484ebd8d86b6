package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRender(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	table := NewTable("STAGE", "REF", "CLASS")
	table.AddRow("enrich", "bucket/raw/order-created/100/abc.json", "transient_api_error")
	table.AddRow("load", "bucket/enriched/pdv/200.json", "schema_mismatch_error")

	var buf bytes.Buffer
	table.Render(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4, "header, separator, and one line per row")

	assert.Contains(t, lines[0], "STAGE")
	assert.Contains(t, lines[0], "CLASS")
	assert.True(t, strings.HasPrefix(lines[1], "-----"))
	assert.Contains(t, lines[2], "bucket/raw/order-created/100/abc.json")
	assert.Contains(t, lines[3], "schema_mismatch_error")

	// Columns align: every cell is padded to its column width.
	assert.Equal(t, strings.Index(lines[2], "bucket/"), strings.Index(lines[3], "bucket/"))
}

func TestTableRenderEmptyRows(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var buf bytes.Buffer
	NewTable("ID").Render(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2, "just header and separator")
}
