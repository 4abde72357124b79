package tablemodel

import (
	"strings"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
)

// FilterRows returns the rows with at least one cell containing the term,
// case-insensitively. An empty term keeps every row. The input is not
// mutated; the result is a fresh slice over the same rows.
func FilterRows(data catalog.TableData, term string) []catalog.TableRow {
	if term == "" {
		rows := make([]catalog.TableRow, len(data.Rows))
		copy(rows, data.Rows)
		return rows
	}

	needle := strings.ToLower(term)
	rows := make([]catalog.TableRow, 0, len(data.Rows))
	for _, row := range data.Rows {
		for _, column := range data.Columns {
			if strings.Contains(strings.ToLower(row.Data[column.ID]), needle) {
				rows = append(rows, row)
				break
			}
		}
	}
	return rows
}
