package statement

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"bookkeeping-go/internal/apperr"
)

// Statement columns.
const (
	ColDate        = "Date"
	ColDescription = "Description"
	ColAmount      = "Amount"
	ColCategory    = "Category"
)

var (
	requiredColumns = []string{ColDate, ColDescription, ColAmount}
	optionalColumns = []string{ColCategory}
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data row keyed by canonical column name. Line is the 1-based
// position among data rows, header excluded.
type Row struct {
	Line  int
	Cells map[string]string
}

func (r Row) Get(col string) string {
	return r.Cells[col]
}

type Table struct {
	Columns []string
	Rows    []Row
}

// SupportedExtension reports whether name ends in .csv or .xlsx, ignoring case.
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Parse reads a bank statement file. It requires Date, Description and
// Amount columns; Category is carried when present.
func Parse(path string) (*Table, error) {
	return ReadTable(path, requiredColumns, optionalColumns)
}

// ReadTable reads a .csv or .xlsx file whose first non-blank row is a header.
// Header cells are matched against required and optional column names
// case-insensitively after trimming. Blank rows are skipped.
func ReadTable(path string, required, optional []string) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		return nil, apperr.Newf(apperr.UnsupportedFileType, "unsupported extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	records = dropBlank(records)
	if len(records) == 0 {
		return nil, apperr.New(apperr.EmptyFile, "")
	}
	if len(records) == 1 {
		return nil, apperr.New(apperr.EmptyFile, "no data rows after header")
	}

	index := make(map[string]int)
	for i, h := range records[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	var columns, missing []string
	lookup := make(map[string]int)
	for _, col := range required {
		i, ok := index[strings.ToLower(col)]
		if !ok {
			missing = append(missing, col)
			continue
		}
		lookup[col] = i
		columns = append(columns, col)
	}
	if len(missing) > 0 {
		return nil, apperr.Newf(apperr.SchemaError, "missing columns: %s", strings.Join(missing, ", "))
	}
	for _, col := range optional {
		if i, ok := index[strings.ToLower(col)]; ok {
			lookup[col] = i
			columns = append(columns, col)
		}
	}

	t := &Table{Columns: columns, Rows: make([]Row, 0, len(records)-1)}
	for n, rec := range records[1:] {
		cells := make(map[string]string, len(lookup))
		for col, i := range lookup {
			if i < len(rec) {
				cells[col] = strings.TrimSpace(rec[i])
			}
		}
		t.Rows = append(t.Rows, Row{Line: n + 1, Cells: cells})
	}
	return t, nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// Bank exports without a declared encoding are almost always latin-1.
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return nil, apperr.Newf(apperr.SchemaError, "unreadable text encoding")
		}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Newf(apperr.SchemaError, "malformed csv: %v", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperr.Newf(apperr.SchemaError, "unreadable workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperr.Newf(apperr.SchemaError, "unreadable sheet %q: %v", sheets[0], err)
	}
	return rows, nil
}

func dropBlank(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}
