package service

import (
	"testing"

	"powerbi-glean-connector/internal/model"
)

func testScan() *model.WorkspaceScan {
	return &model.WorkspaceScan{
		Workspaces: []model.Workspace{
			{
				ID:   "ws-123",
				Name: "Data Team",
				Datasets: []model.Dataset{
					{
						ID:   "ds-1",
						Name: "Sales",
						Tables: []model.Table{
							{Name: "Orders"},
							{Name: "DateTableTemplate_8a6e1cff"},
							{Name: "Returns"},
						},
					},
					{
						ID:   "ds-2",
						Name: "Marketing",
						Tables: []model.Table{
							{Name: "LocalDateTable_1b7c"},
							{Name: "Campaigns"},
						},
					},
				},
			},
		},
	}
}

func TestWalkOrderAndSystemTableFiltering(t *testing.T) {
	walker := NewSchemaWalker([]string{"Date", "LocalDate", "RowNumber"})

	refs := walker.Walk(testScan())
	if len(refs) != 3 {
		t.Fatalf("Expected 3 queryable tables, got %d", len(refs))
	}

	expected := []model.TableRef{
		{WorkspaceID: "ws-123", DatasetID: "ds-1", DatasetName: "Sales", TableName: "Orders"},
		{WorkspaceID: "ws-123", DatasetID: "ds-1", DatasetName: "Sales", TableName: "Returns"},
		{WorkspaceID: "ws-123", DatasetID: "ds-2", DatasetName: "Marketing", TableName: "Campaigns"},
	}
	for i, ref := range refs {
		if ref != expected[i] {
			t.Errorf("Expected ref %+v at position %d, got %+v", expected[i], i, ref)
		}
	}
}

func TestWalkNoPrefixes(t *testing.T) {
	walker := NewSchemaWalker(nil)

	refs := walker.Walk(testScan())
	if len(refs) != 5 {
		t.Errorf("Expected all 5 tables without prefixes, got %d", len(refs))
	}
}

func TestWalkEmptyScan(t *testing.T) {
	walker := NewSchemaWalker([]string{"Date"})

	refs := walker.Walk(&model.WorkspaceScan{})
	if len(refs) != 0 {
		t.Errorf("Expected no tables for an empty scan, got %d", len(refs))
	}
}

func TestWalkPrefixMatchesNameStartOnly(t *testing.T) {
	walker := NewSchemaWalker([]string{"Date"})

	scan := &model.WorkspaceScan{
		Workspaces: []model.Workspace{
			{
				ID: "ws-123",
				Datasets: []model.Dataset{
					{
						ID:   "ds-1",
						Name: "Sales",
						Tables: []model.Table{
							{Name: "OrderDates"},
							{Name: "DateDim"},
						},
					},
				},
			},
		},
	}

	refs := walker.Walk(scan)
	if len(refs) != 1 {
		t.Fatalf("Expected 1 table, got %d", len(refs))
	}
	if refs[0].TableName != "OrderDates" {
		t.Errorf("Expected OrderDates to survive, got %s", refs[0].TableName)
	}
}
