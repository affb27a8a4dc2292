package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantErr  bool
		identity bool
	}{
		{
			name:     "empty is identity",
			text:     "",
			identity: true,
		},
		{
			name:     "blank is identity",
			text:     "  \n\t ",
			identity: true,
		},
		{
			name: "simple projection",
			text: "[].name",
		},
		{
			name: "multiline expression is normalized",
			text: "[].{name: name,\n  count: count}",
		},
		{
			name:    "unbalanced bracket",
			text:    "[].name[",
			wantErr: true,
		},
		{
			name:    "garbage",
			text:    "][",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Compile(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.identity, expr.IsIdentity())
		})
	}
}

func TestApplyIdentity(t *testing.T) {
	expr, err := Compile("")
	require.NoError(t, err)

	in := []any{map[string]any{"a": 1.0}}
	out, err := expr.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// A nil expression pointer is also the identity.
	var nilExpr *Expression
	out, err = nilExpr.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestApplyProjection(t *testing.T) {
	rows := []any{
		map[string]any{"name": "conn", "count": 3.0},
		map[string]any{"name": "dns", "count": 9.0},
		map[string]any{"name": "auth", "count": 5.0},
	}

	tests := []struct {
		name string
		text string
		want any
	}{
		{
			name: "field projection",
			text: "[].name",
			want: []any{"conn", "dns", "auth"},
		},
		{
			name: "sort_by ascending",
			text: "sort_by(@, &count)[].name",
			want: []any{"conn", "auth", "dns"},
		},
		{
			name: "sort_by reversed",
			text: "reverse(sort_by(@, &count))[].name",
			want: []any{"dns", "auth", "conn"},
		},
		{
			name: "slicing",
			text: "[:2].name",
			want: []any{"conn", "dns"},
		},
		{
			name: "join",
			text: "join(',', [].name)",
			want: "conn,dns,auth",
		},
		{
			name: "map construction",
			text: "[].{n: name}",
			want: []any{
				map[string]any{"n": "conn"},
				map[string]any{"n": "dns"},
				map[string]any{"n": "auth"},
			},
		},
		{
			name: "missing key yields null",
			text: "[0].nope",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Compile(tt.text)
			require.NoError(t, err)
			got, err := expr.Apply(rows)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	rows := []any{
		map[string]any{"name": "b"},
		map[string]any{"name": "a"},
	}
	expr := MustCompile("sort_by(@, &name)")

	_, err := expr.Apply(rows)
	require.NoError(t, err)

	assert.Equal(t, "b", rows[0].(map[string]any)["name"], "input order must be preserved")
	assert.Equal(t, "a", rows[1].(map[string]any)["name"])
}
