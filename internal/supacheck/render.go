package supacheck

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	tagOK   = "✅"
	tagFail = "❌"
)

// Report prints the outcome. Success and reported errors go to stdout,
// unexpected errors go to stderr.
func Report(stdout, stderr io.Writer, outcome Outcome, format string) error {
	switch outcome.Kind {
	case OutcomeOK:
		rendered, err := renderRows(format, outcome.Response.Columns, outcome.Response.Rows)
		if err != nil {
			return err
		}
		sep := " "
		if format == "table" {
			sep = "\n"
		}
		_, err = fmt.Fprintf(stdout, "%s Connection OK, data:%s%s\n", tagOK, sep, rendered)
		return err
	case OutcomeReported:
		var payload any = outcome.Response.Err
		if outcome.Response.Err == nil {
			payload = fmt.Sprint(outcome.Err)
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal reported error: %w", err)
		}
		_, err = fmt.Fprintf(stdout, "%s Supabase error: %s\n", tagFail, encoded)
		return err
	default:
		_, err := fmt.Fprintf(stderr, "%s Unexpected error: %v\n", tagFail, outcome.Err)
		return err
	}
}

func renderRows(format string, columns []string, rows []Row) (string, error) {
	if rows == nil {
		rows = make([]Row, 0)
	}

	switch format {
	case "json":
		payload, err := json.Marshal(rows)
		if err != nil {
			return "", fmt.Errorf("marshal json output: %w", err)
		}
		return string(payload), nil
	case "table":
		if len(columns) == 0 {
			columns = columnsOf(rows)
		}
		return renderTable(columns, rows), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

func renderTable(columns []string, rows []Row) string {
	if len(columns) == 0 {
		return "No rows returned."
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = utf8.RuneCountInString(col)
	}

	stringRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, col := range columns {
			v := formatCellValue(row[col])
			line[i] = v
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
		stringRows = append(stringRows, line)
	}

	hline := buildHorizontalLine(widths)
	var b strings.Builder
	b.WriteString(hline)
	b.WriteByte('\n')
	b.WriteString(buildTableRow(columns, widths))
	b.WriteByte('\n')
	b.WriteString(hline)
	b.WriteByte('\n')

	for _, line := range stringRows {
		b.WriteString(buildTableRow(line, widths))
		b.WriteByte('\n')
	}

	b.WriteString(hline)
	if len(rows) == 0 {
		b.WriteString("\n(0 rows)")
	}

	return b.String()
}

func buildHorizontalLine(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func buildTableRow(values []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, v := range values {
		b.WriteByte(' ')
		b.WriteString(v)
		if padding := widths[i] - utf8.RuneCountInString(v); padding > 0 {
			b.WriteString(strings.Repeat(" ", padding))
		}
		b.WriteString(" |")
	}
	return b.String()
}

func formatCellValue(v any) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)
	str = strings.ReplaceAll(str, "\n", " ")
	str = strings.ReplaceAll(str, "\r", " ")
	return str
}
