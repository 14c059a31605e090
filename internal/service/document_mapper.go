package service

import (
	"fmt"
	"strings"

	"powerbi-glean-connector/internal/model"
)

// DocumentMapper converts one extracted row into an index document.
// The second return is false when the row yields no document.
//
// Implementations decide how table cells become document fields. The
// default positional mapper works on any table without schema
// knowledge; a schema-aware mapper can be substituted without touching
// the orchestrator.
type DocumentMapper interface {
	Map(ref model.TableRef, row model.ExtractedRow) (*model.Document, bool)
}

// positionalMapper derives document fields from column positions: the
// first cell identifies the row, the second is the display title, the
// body joins every cell in order.
type positionalMapper struct {
	portalBaseURL string
}

// NewPositionalMapper creates the default schema-agnostic mapper.
// portalBaseURL is the web portal root used to build view links.
func NewPositionalMapper(portalBaseURL string) DocumentMapper {
	return &positionalMapper{
		portalBaseURL: strings.TrimRight(portalBaseURL, "/"),
	}
}

// Map builds a document from row. Rows with no cells, or whose first
// cell is empty, yield no document: the first cell becomes part of the
// document ID and an empty one would collide across rows.
func (m *positionalMapper) Map(ref model.TableRef, row model.ExtractedRow) (*model.Document, bool) {
	if len(row.Cells) == 0 {
		return nil, false
	}

	rowID := row.Cells[0].Text
	if rowID == "" {
		return nil, false
	}

	title := fmt.Sprintf("%s - %s", ref.DatasetName, ref.TableName)
	if len(row.Cells) > 1 {
		title = row.Cells[1].Text
	}

	parts := make([]string, 0, len(row.Cells))
	for _, cell := range row.Cells {
		parts = append(parts, cell.Text)
	}

	return &model.Document{
		ID:      fmt.Sprintf("%s_%s_%s", ref.DatasetName, ref.TableName, rowID),
		Title:   title,
		Body:    strings.Join(parts, " | "),
		ViewURL: fmt.Sprintf("%s/groups/%s/datasets/%s", m.portalBaseURL, ref.WorkspaceID, ref.DatasetID),
	}, true
}
