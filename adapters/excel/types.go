package excel

// RawRowData maps header names to trimmed cell text for one row.
type RawRowData map[string]string

// Table is the header plus rows of the first sheet (or the CSV body).
type Table struct {
	Headers []string
	Rows    []RawRowData
}

// HasColumn reports whether name is one of the headers.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}
