package service

import (
	"strings"

	"powerbi-glean-connector/internal/model"
)

// SchemaWalker flattens a workspace scan tree into the list of
// queryable tables
type SchemaWalker struct {
	systemPrefixes []string
}

// NewSchemaWalker creates a walker that skips tables matching any of
// the given name prefixes. Calendar helper tables the service
// generates for date columns are the usual targets.
func NewSchemaWalker(systemPrefixes []string) *SchemaWalker {
	return &SchemaWalker{systemPrefixes: systemPrefixes}
}

// Walk enumerates every non-system (dataset, table) pair in snapshot
// order: dataset order first, then table order within each dataset.
// The order is deterministic so runs over the same snapshot are
// reproducible.
func (w *SchemaWalker) Walk(scan *model.WorkspaceScan) []model.TableRef {
	var refs []model.TableRef

	for _, workspace := range scan.Workspaces {
		for _, dataset := range workspace.Datasets {
			for _, table := range dataset.Tables {
				if w.isSystemTable(table.Name) {
					continue
				}
				refs = append(refs, model.TableRef{
					WorkspaceID: workspace.ID,
					DatasetID:   dataset.ID,
					DatasetName: dataset.Name,
					TableName:   table.Name,
				})
			}
		}
	}

	return refs
}

func (w *SchemaWalker) isSystemTable(name string) bool {
	for _, prefix := range w.systemPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
