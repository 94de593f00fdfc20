package export

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
	// Summary lines are rendered after the table, e.g. "Overall rating: 4.33".
	Summary []string
	// Cells maps template cell references ("C19") to values for template-based workbooks.
	Cells map[string]interface{}
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}
