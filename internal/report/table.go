package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/oukeidos/mqcomet/internal/apperrors"
)

// Table is the first sheet of an existing workbook, read fully into memory
// so a score column can be appended and the file saved again.
type Table struct {
	f      *excelize.File
	sheet  string
	header []string
	rows   [][]string
}

// OpenTable reads the first sheet of an xlsx workbook. The first row is the
// header.
func OpenTable(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.MalformedDocument("The file is not a readable xlsx workbook.", fmt.Errorf("open xlsx: %w", err))
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, apperrors.MalformedDocument("The workbook has no sheets.", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, apperrors.MalformedDocument("The workbook could not be read.", fmt.Errorf("read rows: %w", err))
	}
	if len(rows) == 0 {
		_ = f.Close()
		return nil, apperrors.InputNotFound("The workbook's first sheet is empty.", nil)
	}
	return &Table{f: f, sheet: sheets[0], header: rows[0], rows: rows[1:]}, nil
}

func (t *Table) Close() error {
	return t.f.Close()
}

// Sheet returns the name of the sheet being read.
func (t *Table) Sheet() string { return t.sheet }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Column finds a header by name, ignoring case and surrounding spaces.
func (t *Table) Column(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

// RequireColumns returns the index of every named column, or a validation
// error listing those that are missing.
func (t *Table) RequireColumns(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	var missing []string
	for i, n := range names {
		idx[i] = t.Column(n)
		if idx[i] < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.New(
			apperrors.KindValidation,
			fmt.Sprintf("Missing required columns: %s. The sheet must contain: %s.", strings.Join(missing, ", "), strings.Join(names, ", ")),
			nil,
		)
	}
	return idx, nil
}

// Value returns the trimmed cell at data row i, column col. Short rows read
// as empty.
func (t *Table) Value(i, col int) string {
	if col < 0 || i < 0 || i >= len(t.rows) || col >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][col])
}

// SetScores writes scores keyed by data row into the column named name,
// replacing it when it already exists or appending it otherwise. Rows with
// no entry are left blank.
func (t *Table) SetScores(name string, scores map[int]float64) error {
	col := t.Column(name)
	if col < 0 {
		col = len(t.header)
		t.header = append(t.header, name)
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := t.f.SetCellStr(t.sheet, cell, name); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i := range t.rows {
		cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
		v, ok := scores[i]
		var err error
		if ok {
			err = t.f.SetCellFloat(t.sheet, cell, v, -1, 64)
		} else {
			err = t.f.SetCellValue(t.sheet, cell, nil)
		}
		if err != nil {
			return fmt.Errorf("write score row %d: %w", i+2, err)
		}
	}
	return nil
}

// Bytes renders the workbook with any appended column.
func (t *Table) Bytes() ([]byte, error) {
	buf, err := t.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
