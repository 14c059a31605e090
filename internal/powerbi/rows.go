package powerbi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"powerbi-glean-connector/internal/model"
)

// decodeRows parses an executeQueries rows array preserving the cell
// order of each row object. A plain map decode would lose the column
// positions the document mapper depends on.
func decodeRows(raw json.RawMessage) ([]model.ExtractedRow, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected rows array, got %v", tok)
	}

	var rows []model.ExtractedRow
	for dec.More() {
		row, err := decodeRow(dec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	// closing bracket
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return rows, nil
}

func decodeRow(dec *json.Decoder) (model.ExtractedRow, error) {
	var row model.ExtractedRow

	tok, err := dec.Token()
	if err != nil {
		return row, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return row, fmt.Errorf("expected row object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return row, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return row, fmt.Errorf("expected cell name, got %v", keyTok)
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return row, err
		}

		row.Cells = append(row.Cells, model.RowCell{
			Column: stripTableQualifier(key),
			Text:   cellText(value),
		})
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return row, err
	}

	return row, nil
}

// stripTableQualifier turns "Orders[OrderID]" into "OrderID". Keys
// arrive either fully qualified or bare depending on the query shape.
func stripTableQualifier(key string) string {
	open := strings.IndexByte(key, '[')
	if open >= 0 && strings.HasSuffix(key, "]") {
		return key[open+1 : len(key)-1]
	}
	return key
}

// cellText coerces a decoded JSON value to its text form. Numbers pass
// through as written so identifiers like 1001 do not gain exponents.
func cellText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
