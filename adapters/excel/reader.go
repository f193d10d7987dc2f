// Package excel reads observation columns from spreadsheets and CSV files.
package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gobayes/domain/core"
	domain "gobayes/domain/inference"
	"gobayes/internal"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

// NewDataReader creates a reader; the file type follows the extension.
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: internal.NewDiscardLogger()}
}

// WithSheet selects a worksheet by name instead of the first one.
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

func (r *DataReader) WithLogger(l *internal.Logger) *DataReader {
	r.logger = l.With("excel")
	return r
}

// ReadData reads the whole table.
func (r *DataReader) ReadData() (*Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

func (r *DataReader) readExcelData() (*Table, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("excel file %s has no sheets", r.filePath)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	r.logger.Debug("sheet %q read in %.2fms (%d rows)", sheet, float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	return r.processRows(rows)
}

func (r *DataReader) readCSVData() (*Table, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug("CSV file read (%d rows)", len(rows))

	return r.processRows(rows)
}

func (r *DataReader) processRows(rows [][]string) (*Table, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}

	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	data := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		data = append(data, rowData)
	}
	return &Table{Headers: headers, Rows: data}, nil
}

// Column parses a numeric column. Blank cells are skipped; anything else
// that is not a finite number is an invalid-data error naming the row.
func (t *Table) Column(name string) ([]float64, error) {
	if !t.HasColumn(name) {
		return nil, core.NewInvalidDataError("column", fmt.Sprintf("%q not found (have %s)", name, strings.Join(t.Headers, ", ")))
	}
	values := make([]float64, 0, len(t.Rows))
	for i, row := range t.Rows {
		cell := row[name]
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			// Header is row 1, so data row i is spreadsheet row i+2.
			return nil, core.NewInvalidDataError(fmt.Sprintf("%s row %d", name, i+2), fmt.Sprintf("not a finite number (got %q)", cell))
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, core.NewInvalidDataError("column", fmt.Sprintf("%q has no values", name))
	}
	return values, nil
}

// Binomial summarises a 0/1 outcome column as successes over trials.
func (t *Table) Binomial(name string) (domain.BinomialData, error) {
	values, err := t.Column(name)
	if err != nil {
		return domain.BinomialData{}, err
	}
	out := domain.BinomialData{Trials: len(values)}
	for i, v := range values {
		switch v {
		case 0:
		case 1:
			out.Successes++
		default:
			return domain.BinomialData{}, core.NewInvalidDataError(fmt.Sprintf("%s[%d]", name, i), fmt.Sprintf("binomial outcomes must be 0 or 1 (got %g)", v))
		}
	}
	return out, nil
}

// ReadColumn is the one-call path used by the CLI.
func ReadColumn(path, column string) ([]float64, error) {
	table, err := NewDataReader(path).ReadData()
	if err != nil {
		return nil, err
	}
	return table.Column(column)
}
