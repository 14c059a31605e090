package service

import (
	"context"

	"powerbi-glean-connector/internal/model"
	"powerbi-glean-connector/internal/powerbi"
	"powerbi-glean-connector/internal/utils"
)

// TableExtractor pulls a bounded sample of rows from one dataset table
type TableExtractor struct {
	client   *powerbi.Client
	rowLimit int
}

// NewTableExtractor creates an extractor that fetches at most rowLimit
// rows per table
func NewTableExtractor(client *powerbi.Client, rowLimit int) *TableExtractor {
	return &TableExtractor{
		client:   client,
		rowLimit: rowLimit,
	}
}

// Extract queries the table and returns its rows in response order.
// Query failures come back as query errors carrying the table
// identity, except credential failures which keep their own type so
// the caller can abort the whole run instead of retrying every table.
func (e *TableExtractor) Extract(ctx context.Context, ref model.TableRef) ([]model.ExtractedRow, error) {
	rows, err := e.client.QueryTableTop(ctx, ref.DatasetID, ref.TableName, e.rowLimit)
	if err != nil {
		if utils.IsErrorType(err, utils.ErrCodeAuth) {
			return nil, err
		}
		return nil, utils.NewQueryError(ref.DatasetName, ref.TableName, err)
	}
	return rows, nil
}
