package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/monitor/azquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records the query text it receives and serves canned results.
type fakeBackend struct {
	lastWorkspace string
	lastQuery     string
	result        *ResultSet
	err           error
}

func (f *fakeBackend) Query(_ context.Context, workspaceID, query string) (*ResultSet, error) {
	f.lastWorkspace = workspaceID
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestRunPassesQueryText(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "conn.kql"), []byte("Heartbeat | take 5"), 0o644))

	backend := &fakeBackend{result: &ResultSet{Columns: []string{"a"}}}
	r := New(backend)

	rs, err := r.Run(context.Background(), folder, "conn.kql", "ws-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rs.Columns)
	assert.Equal(t, "ws-123", backend.lastWorkspace)
	assert.Equal(t, "Heartbeat | take 5", backend.lastQuery)
}

func TestRunWrapsBackendFailure(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "bad.kql"), []byte("syntax |||"), 0o644))

	backend := &fakeBackend{err: errors.New("semantic error")}
	r := New(backend)

	_, err := r.Run(context.Background(), folder, "bad.kql", "ws")
	require.Error(t, err)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "bad.kql", be.QueryFile)
	assert.ErrorContains(t, be, "semantic error")
}

func TestRunMissingQueryFile(t *testing.T) {
	r := New(&fakeBackend{})
	_, err := r.Run(context.Background(), t.TempDir(), "ghost.kql", "ws")

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "ghost.kql", be.QueryFile)
}

func TestRecords(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"name", "count"},
		Rows: []Row{
			{"name": "conn", "count": 3.0},
			{"name": "dns", "count": 9.0},
		},
	}
	records := rs.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "conn", records[0].(map[string]any)["name"])

	empty := &ResultSet{}
	assert.NotNil(t, empty.Records())
	assert.Empty(t, empty.Records())
}

func TestResultSetFromTable(t *testing.T) {
	table := &azquery.Table{
		Columns: []*azquery.Column{
			{Name: to.Ptr("TimeGenerated")},
			{Name: to.Ptr("Computer")},
		},
		Rows: []azquery.Row{
			{"2026-01-01T00:00:00Z", "web-01"},
			{"2026-01-01T00:01:00Z", "web-02"},
		},
	}

	rs := resultSetFromTable(table)
	assert.Equal(t, []string{"TimeGenerated", "Computer"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "web-01", rs.Rows[0]["Computer"])
	assert.Equal(t, "2026-01-01T00:01:00Z", rs.Rows[1]["TimeGenerated"])
}

func TestResultSetFromTableUnnamedColumn(t *testing.T) {
	table := &azquery.Table{
		Columns: []*azquery.Column{
			{Name: to.Ptr("a")},
			{Name: nil},
			{Name: to.Ptr("c")},
		},
		Rows: []azquery.Row{{"cell-a", "cell-b", "cell-c"}},
	}

	rs := resultSetFromTable(table)
	assert.Equal(t, []string{"a", "c"}, rs.Columns)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "cell-a", rs.Rows[0]["a"])
	// the cell keeps its original position despite the dropped column
	assert.Equal(t, "cell-c", rs.Rows[0]["c"])
}

func TestResultSetFromTableShortRow(t *testing.T) {
	table := &azquery.Table{
		Columns: []*azquery.Column{
			{Name: to.Ptr("a")},
			{Name: to.Ptr("b")},
		},
		Rows: []azquery.Row{{"only-a"}},
	}

	rs := resultSetFromTable(table)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "only-a", rs.Rows[0]["a"])
	_, ok := rs.Rows[0]["b"]
	assert.False(t, ok, "missing cells are absent, not nil-filled")
}
