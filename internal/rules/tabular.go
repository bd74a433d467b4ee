package rules

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// table is one logical grid of policy rows.
// Name is the sheet name, or the file base name for delimited files.
type table struct {
	Name string
	Rows [][]string
}

// readTables reads every logical table in a policy file
func readTables(path string) ([]table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path)
	case ".csv":
		return readDelimited(path, ',')
	case ".tsv":
		return readDelimited(path, '\t')
	default:
		return nil, fmt.Errorf("unsupported rule file %s (supported: .xlsx, .csv, .tsv)", path)
	}
}

func readWorkbook(path string) ([]table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var tables []table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
		}
		tables = append(tables, table{Name: sheet, Rows: rows})
	}
	return tables, nil
}

func readDelimited(path string, comma rune) ([]table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	r := csv.NewReader(file)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, record)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []table{{Name: name, Rows: rows}}, nil
}
