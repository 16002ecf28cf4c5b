package supacheck

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRowsJSON(t *testing.T) {
	out, err := renderRows("json", []string{"id", "name"}, []Row{{"id": 1, "name": "sam"}})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"name":"sam"}]`, out)

	out, err = renderRows("json", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, out)
}

func TestRenderRowsTable(t *testing.T) {
	out, err := renderRows("table", []string{"id", "name"}, []Row{{"id": 1, "name": nil}})
	require.NoError(t, err)

	for _, token := range []string{"| id", "| name", "NULL"} {
		assert.Contains(t, out, token)
	}
}

func TestRenderRowsTableDerivesColumns(t *testing.T) {
	out, err := renderRows("table", nil, []Row{{"b": 2, "a": 1}})
	require.NoError(t, err)
	assert.Contains(t, out, "| a | b |")

	out, err = renderRows("table", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "No rows returned.", out)
}

func TestRenderRowsUnknownFormat(t *testing.T) {
	_, err := renderRows("yaml", nil, nil)
	assert.Error(t, err)
}

func TestRenderTableAlignsMultibyteValues(t *testing.T) {
	out := renderTable([]string{"id", "name"}, []Row{
		{"id": 1, "name": "José"},
		{"id": 2, "name": "Zoë Ångström"},
		{"id": 3, "name": "sam"},
	})

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 7)
	want := utf8.RuneCountInString(lines[0])
	for _, line := range lines {
		assert.Equal(t, want, utf8.RuneCountInString(line), "line %q", line)
	}
	assert.Contains(t, out, "| José         |")
}
