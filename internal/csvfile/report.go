package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// FailedRow is one row that could not be synced.
type FailedRow struct {
	Line   int
	Phase  string
	Reason string
	Data   []string
}

// WriteFailed writes failed rows as a CSV with bookkeeping columns in front
// of the original header so the file can be corrected and dropped again.
func WriteFailed(w io.Writer, header []string, rows []FailedRow) error {
	cw := csv.NewWriter(w)

	out := append([]string{"_line", "_phase", "_error"}, header...)
	if err := cw.Write(out); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		rec := make([]string, 0, 3+len(row.Data))
		rec = append(rec, strconv.Itoa(row.Line), row.Phase, row.Reason)
		rec = append(rec, row.Data...)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write line %d: %w", row.Line, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FailedName returns the report path for an input file:
// "contacts.csv" becomes "contacts - failed.csv".
func FailedName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + " - failed" + ext
}
