package runner

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/monitor/azquery"
)

// AzureBackend runs KQL against Azure Monitor Log Analytics workspaces.
type AzureBackend struct {
	client *azquery.LogsClient
}

// NewAzureBackend builds a backend authenticated with the default Azure
// credential chain (environment, workload identity, managed identity,
// azure CLI).
func NewAzureBackend() (*AzureBackend, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("acquire azure credential: %w", err)
	}
	client, err := azquery.NewLogsClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create logs client: %w", err)
	}
	return &AzureBackend{client: client}, nil
}

// Query runs one KQL program against the workspace. No timespan is passed:
// lookback bounds belong to the query text itself.
func (b *AzureBackend) Query(ctx context.Context, workspaceID, query string) (*ResultSet, error) {
	res, err := b.client.QueryWorkspace(ctx, workspaceID, azquery.Body{Query: to.Ptr(query)}, nil)
	if err != nil {
		return nil, err
	}
	// The service can return a partial failure alongside tables; treat it as
	// a failed query rather than serving truncated data.
	if res.Error != nil {
		return nil, res.Error
	}
	if len(res.Tables) == 0 {
		return &ResultSet{}, nil
	}
	return resultSetFromTable(res.Tables[0]), nil
}

// resultSetFromTable converts the primary response table, keeping the
// service's column order. Cells are indexed by the original column position
// so an unnamed column never shifts its neighbors.
func resultSetFromTable(t *azquery.Table) *ResultSet {
	rs := &ResultSet{}
	indices := make([]int, 0, len(t.Columns))
	for i, col := range t.Columns {
		if col != nil && col.Name != nil {
			rs.Columns = append(rs.Columns, *col.Name)
			indices = append(indices, i)
		}
	}
	for _, row := range t.Rows {
		m := make(Row, len(rs.Columns))
		for j, name := range rs.Columns {
			if indices[j] < len(row) {
				m[name] = row[indices[j]]
			}
		}
		rs.Rows = append(rs.Rows, m)
	}
	return rs
}
