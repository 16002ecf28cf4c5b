package supacheck

import (
	"errors"
	"fmt"
	"strings"
)

func quoteIdent(backend, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("identifier cannot be empty")
	}

	parts := strings.Split(name, ".")
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", fmt.Errorf("invalid identifier %q", name)
		}
		if backend == "mysql" {
			quoted = append(quoted, "`"+strings.ReplaceAll(p, "`", "``")+"`")
		} else {
			quoted = append(quoted, `"`+strings.ReplaceAll(p, `"`, `""`)+`"`)
		}
	}
	return strings.Join(quoted, "."), nil
}

func buildSelect(backend, table, columns string, limit int) (string, error) {
	if limit <= 0 {
		return "", fmt.Errorf("limit must be > 0, got %d", limit)
	}

	from, err := quoteIdent(backend, table)
	if err != nil {
		return "", fmt.Errorf("table: %w", err)
	}

	selectList := "*"
	if cols := splitAndTrimCSV(columns); len(cols) > 0 && !(len(cols) == 1 && cols[0] == "*") {
		quoted := make([]string, 0, len(cols))
		for _, col := range cols {
			q, err := quoteIdent(backend, col)
			if err != nil {
				return "", fmt.Errorf("column: %w", err)
			}
			quoted = append(quoted, q)
		}
		selectList = strings.Join(quoted, ", ")
	}

	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", selectList, from, limit), nil
}

func splitAndTrimCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
