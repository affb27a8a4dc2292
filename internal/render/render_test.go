package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/kqlrun/internal/config"
)

var sampleRows = []any{
	map[string]any{"Computer": "web-01", "Count": 3.0, "TimeGenerated": "2026-01-01T00:00:00Z"},
	map[string]any{"Computer": "web-02", "Count": 9.0, "TimeGenerated": "2026-01-01T00:01:00Z"},
}

var sampleColumns = []string{"TimeGenerated", "Computer", "Count"}

func TestRenderJSONRoundTrip(t *testing.T) {
	b, err := Render(sampleRows, sampleColumns, config.FormatJSON, false)
	require.NoError(t, err)

	var back any
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, sampleRows, back, "render then parse must be a faithful encoding")
}

func TestRenderYAML(t *testing.T) {
	b, err := Render(sampleRows, sampleColumns, config.FormatYAML, false)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "Computer: web-01")
	assert.Contains(t, out, "Count: 9")
}

func TestRenderTableColumnOrder(t *testing.T) {
	b, err := Render(sampleRows, sampleColumns, config.FormatTable, false)
	require.NoError(t, err)
	out := string(b)

	// header follows the hinted (backend) column order
	header := strings.SplitN(out, "\n", 2)[0]
	ti := strings.Index(header, "TimeGenerated")
	ci := strings.Index(header, "Computer")
	ni := strings.Index(header, "Count")
	require.GreaterOrEqual(t, ti, 0)
	assert.Less(t, ti, ci)
	assert.Less(t, ci, ni)

	assert.Contains(t, out, "web-01")
	assert.Contains(t, out, "web-02")
}

func TestRenderTableUnhintedColumnsSorted(t *testing.T) {
	rows := []any{map[string]any{"zeta": 1.0, "alpha": 2.0, "mid": 3.0}}
	b, err := Render(rows, nil, config.FormatTable, false)
	require.NoError(t, err)

	header := strings.SplitN(string(b), "\n", 2)[0]
	ai := strings.Index(header, "alpha")
	mi := strings.Index(header, "mid")
	zi := strings.Index(header, "zeta")
	require.GreaterOrEqual(t, ai, 0)
	assert.Less(t, ai, mi)
	assert.Less(t, mi, zi)
}

func TestRenderTSV(t *testing.T) {
	b, err := Render(sampleRows, sampleColumns, config.FormatTSV, false)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	require.Len(t, lines, 3, "one header row plus one row per record")
	assert.Equal(t, "TimeGenerated\tComputer\tCount", lines[0])
	assert.Equal(t, "2026-01-01T00:00:00Z\tweb-01\t3", lines[1])
	assert.Equal(t, "2026-01-01T00:01:00Z\tweb-02\t9", lines[2])
}

func TestRenderSingleObjectAsOneRow(t *testing.T) {
	b, err := Render(map[string]any{"a": "x"}, []string{"a"}, config.FormatTSV, false)
	require.NoError(t, err)
	assert.Equal(t, "a\nx\n", string(b))
}

func TestRenderUnrenderableShape(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		format config.Format
	}{
		{name: "scalar as table", value: 42.0, format: config.FormatTable},
		{name: "scalar as tsv", value: "hello", format: config.FormatTSV},
		{name: "sequence of scalars as table", value: []any{1.0, 2.0}, format: config.FormatTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.value, nil, tt.format, false)
			var shapeErr *UnrenderableShapeError
			require.ErrorAs(t, err, &shapeErr)
			assert.Equal(t, tt.format, shapeErr.Format)
		})
	}
}

func TestRenderNone(t *testing.T) {
	b, err := Render(sampleRows, sampleColumns, config.FormatNone, false)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestRenderJSONCWithoutColorMatchesJSON(t *testing.T) {
	plain, err := Render(sampleRows, sampleColumns, config.FormatJSON, false)
	require.NoError(t, err)
	uncolored, err := Render(sampleRows, sampleColumns, config.FormatJSONC, false)
	require.NoError(t, err)
	assert.Equal(t, plain, uncolored, "jsonc without colorize must equal plain json")
}

func TestRenderJSONCColorized(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	b, err := Render(sampleRows, sampleColumns, config.FormatJSONC, true)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "\x1b[", "colorized output must carry ANSI escapes")

	// stripping the escapes restores the plain encoding
	plain, err := Render(sampleRows, sampleColumns, config.FormatJSON, false)
	require.NoError(t, err)
	assert.Equal(t, string(plain), stripANSI(out))
}

func TestRenderYAMLCColorized(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	b, err := Render(sampleRows, sampleColumns, config.FormatYAMLC, true)
	require.NoError(t, err)
	assert.Contains(t, string(b), "\x1b[")

	plain, err := Render(sampleRows, sampleColumns, config.FormatYAML, false)
	require.NoError(t, err)
	assert.Equal(t, string(plain), stripANSI(string(b)))
}

func stripANSI(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		out.WriteByte(s[i])
	}
	return out.String()
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "plain", cellString("plain"))
	assert.Equal(t, "3.5", cellString(3.5))
	assert.Equal(t, "true", cellString(true))
	assert.Equal(t, `{"a":1}`, cellString(map[string]any{"a": 1}))
	assert.Equal(t, `["x","y"]`, cellString([]any{"x", "y"}))
}
