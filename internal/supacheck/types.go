package supacheck

import "sort"

// Row is a single record keyed by column name. Its shape is defined by the
// remote table.
type Row map[string]any

// Response is the result of a select. Err is set when the service reported an
// error instead of data.
type Response struct {
	Columns []string
	Rows    []Row
	Err     *APIError
}

func columnsOf(rows []Row) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for col := range row {
			seen[col] = struct{}{}
		}
	}

	columns := make([]string, 0, len(seen))
	for col := range seen {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
