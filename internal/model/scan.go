package model

// Types mirroring the Power BI admin scanner result tree. Field names
// follow the scanner API JSON, which is camelCase.

// WorkspaceScan is the root of a scanResult payload
type WorkspaceScan struct {
	Workspaces []Workspace `json:"workspaces"`
}

// Workspace is one scanned workspace with its full metadata tree
type Workspace struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type,omitempty"`
	State      string      `json:"state,omitempty"`
	Datasets   []Dataset   `json:"datasets,omitempty"`
	Reports    []Report    `json:"reports,omitempty"`
	Dashboards []Dashboard `json:"dashboards,omitempty"`
	Dataflows  []Dataflow  `json:"dataflows,omitempty"`
}

// Dataset is a semantic model inside a workspace
type Dataset struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ConfiguredBy string  `json:"configuredBy,omitempty"`
	Tables       []Table `json:"tables,omitempty"`
}

// Table is one table of a dataset schema
type Table struct {
	Name     string        `json:"name"`
	IsHidden bool          `json:"isHidden,omitempty"`
	Columns  []Column      `json:"columns,omitempty"`
	Measures []Measure     `json:"measures,omitempty"`
	Source   []TableSource `json:"source,omitempty"`
}

// Column describes one table column
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"dataType,omitempty"`
}

// Measure describes one DAX measure
type Measure struct {
	Name       string `json:"name"`
	Expression string `json:"expression,omitempty"`
}

// TableSource carries the M expression a table is loaded from
type TableSource struct {
	Expression string `json:"expression,omitempty"`
}

// Report is workspace report metadata, kept for the scan archive
type Report struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DatasetID string `json:"datasetId,omitempty"`
	WebURL    string `json:"webUrl,omitempty"`
}

// Dashboard is workspace dashboard metadata, kept for the scan archive
type Dashboard struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Dataflow is workspace dataflow metadata, kept for the scan archive
type Dataflow struct {
	ObjectID string `json:"objectId"`
	Name     string `json:"name"`
}

// TableRef locates one queryable table inside a scanned workspace
type TableRef struct {
	WorkspaceID string
	DatasetID   string
	DatasetName string
	TableName   string
}

// RowCell is a single column value of a queried row, as text
type RowCell struct {
	Column string
	Text   string
}

// ExtractedRow is one table row with its cells in query result order.
// Cell order is significant: the document mapper assigns meaning by
// position, not by column name.
type ExtractedRow struct {
	Cells []RowCell
}
