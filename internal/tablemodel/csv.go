package tablemodel

import (
	"encoding/csv"
	"io"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
)

// ExportCSV writes the grid as CSV: one header row of column names, then one
// record per row with cells in column order. Missing cells become empty
// fields; quoting follows standard CSV rules.
func ExportCSV(w io.Writer, data catalog.TableData) error {
	writer := csv.NewWriter(w)

	header := make([]string, len(data.Columns))
	for index, column := range data.Columns {
		header[index] = column.Name
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, len(data.Columns))
	for _, row := range data.Rows {
		for index, column := range data.Columns {
			record[index] = row.Data[column.ID]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
