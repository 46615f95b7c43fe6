// Package roster parses uploaded student workbooks into candidate
// records. Validation stops at column presence: anything with the right
// columns is handed to storage, which enforces the real constraints.
package roster

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one parsed workbook row.
type Row struct {
	Name        string
	Age         int
	ClassLabel  string
	Email       string
	PhoneNumber string
}

// RequiredColumns must all appear in the header row. Extra columns are
// ignored. class_label may be empty per row but the column itself is
// part of the expected layout.
var RequiredColumns = []string{"name", "age", "class_label", "email", "phone_number"}

// MissingColumnsError reports header columns absent from the workbook.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("workbook is missing required columns: %s", strings.Join(e.Columns, ", "))
}

// Parse reads the first sheet of an xlsx workbook. The first row is the
// header; every following non-empty row becomes a Row.
func Parse(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, &MissingColumnsError{Columns: RequiredColumns}
	}

	columns, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var parsed []Row
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}

		ageCell := cell(row, columns["age"])
		age, err := strconv.Atoi(strings.TrimSpace(ageCell))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid age %q", i+2, ageCell)
		}

		parsed = append(parsed, Row{
			Name:        strings.TrimSpace(cell(row, columns["name"])),
			Age:         age,
			ClassLabel:  strings.TrimSpace(cell(row, columns["class_label"])),
			Email:       strings.TrimSpace(cell(row, columns["email"])),
			PhoneNumber: strings.TrimSpace(cell(row, columns["phone_number"])),
		})
	}
	return parsed, nil
}

func headerIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Columns: missing}
	}
	return columns, nil
}

// cell tolerates short rows: excelize trims trailing empty cells.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
