package core

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// scanMaps reads every row into a column map. Driver byte slices are
// converted to strings so that cast handling sees one textual type.
func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	var result []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := sqlx.MapScan(rows, row); err != nil {
			return nil, err
		}
		for k, v := range row {
			row[k] = normalizeValue(v)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// scanFirstColumn reads the first column of the first row.
func scanFirstColumn(rows *sql.Rows) (any, bool, error) {
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	values, err := sqlx.SliceScan(rows)
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, true, nil
	}
	return normalizeValue(values[0]), true, nil
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
