package sheets

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/gocarina/gocsv"
)

// parseCSV reads an exported worksheet. Rows may have different lengths and
// cells keep their inner whitespace; a UTF-8 BOM on the first cell is dropped.
func parseCSV(body []byte) ([][]string, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	reader := gocsv.LazyCSVReader(bytes.NewReader(body))
	if r, ok := reader.(*csv.Reader); ok {
		r.FieldsPerRecord = -1
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	return trimTrailingBlankRows(rows), nil
}

// trimTrailingBlankRows drops empty rows the export appends after the data
func trimTrailingBlankRows(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && strings.TrimSpace(strings.Join(rows[end-1], "")) == "" {
		end--
	}
	return rows[:end]
}
