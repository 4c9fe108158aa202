package domain

// TableData is a column-oriented sample of rows, used for failed-row samples
// attached to a check outside the main versioned record.
type TableData struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// ColumnIndex returns the position of the named column, or -1.
func (d TableData) ColumnIndex(name string) int {
	for i, column := range d.Columns {
		if column == name {
			return i
		}
	}
	return -1
}
