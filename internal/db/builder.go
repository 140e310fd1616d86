// Generic SQL generation from the declared schemas. All identifiers come
// from the schema declarations, never from request data; only values are
// bound as parameters.

package db

import (
	"fmt"
	"strings"

	"github.com/aniways/anipush/internal/apperr"
)

// BuildCreateTable returns the CREATE TABLE statement for a schema.
func BuildCreateTable(s *Schema) string {
	defs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		defs[i] = fmt.Sprintf("%s %s", c.Name, c.Decl)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.Name, strings.Join(defs, ", "))
}

// BuildDropTable returns the DROP TABLE statement for a schema.
func BuildDropTable(s *Schema) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", s.Name)
}

// BuildUpsert builds an INSERT for the row's columns with an ON CONFLICT
// clause updating every non-conflict column. An empty conflict list
// yields a plain INSERT.
func BuildUpsert(s *Schema, row Row, conflictColumns []string) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, apperr.New(apperr.ParamNotFound, "upsert into %s: empty row", s.Name)
	}
	cols, args, err := orderedColumns(s, row)
	if err != nil {
		return "", nil, err
	}
	for _, cc := range conflictColumns {
		if !s.HasColumn(cc) {
			return "", nil, apperr.New(apperr.UnSupportedType,
				"upsert into %s: conflict column %q not in schema", s.Name, cc)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.Name, strings.Join(cols, ", "), placeholders)

	if len(conflictColumns) > 0 {
		var sets []string
		conflict := make(map[string]bool, len(conflictColumns))
		for _, cc := range conflictColumns {
			conflict[cc] = true
		}
		for _, col := range cols {
			if conflict[col] {
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		}
		query += fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s",
			strings.Join(conflictColumns, ", "), strings.Join(sets, ", "))
	}
	return query, args, nil
}

// BuildSelect builds a SELECT over the given columns (all declared
// columns when empty) with optional where/order/limit/offset.
func BuildSelect(s *Schema, columns []string, where Row, orderBy string, limit, offset int) (string, []any, error) {
	if len(columns) == 0 {
		columns = s.ColumnNames()
	}
	for _, col := range columns {
		if !s.HasColumn(col) {
			return "", nil, apperr.New(apperr.UnSupportedType,
				"select from %s: column %q not in schema", s.Name, col)
		}
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), s.Name)

	var args []any
	if len(where) > 0 {
		clause, whereArgs, err := whereClause(s, where)
		if err != nil {
			return "", nil, err
		}
		query += " WHERE " + clause
		args = append(args, whereArgs...)
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	}
	return query, args, nil
}

// BuildUpdate builds an UPDATE; both the set and where maps must be
// non-empty.
func BuildUpdate(s *Schema, set Row, where Row) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, apperr.New(apperr.ParamNotFound, "update %s: empty set clause", s.Name)
	}
	if len(where) == 0 {
		return "", nil, apperr.New(apperr.ParamNotFound, "update %s: empty where clause", s.Name)
	}
	setCols, setArgs, err := orderedColumns(s, set)
	if err != nil {
		return "", nil, err
	}
	assignments := make([]string, len(setCols))
	for i, col := range setCols {
		assignments[i] = col + " = ?"
	}
	clause, whereArgs, err := whereClause(s, where)
	if err != nil {
		return "", nil, err
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		s.Name, strings.Join(assignments, ", "), clause)
	return query, append(setArgs, whereArgs...), nil
}

// orderedColumns validates a row against the schema and returns its
// columns and values in schema declaration order.
func orderedColumns(s *Schema, row Row) ([]string, []any, error) {
	for col := range row {
		if !s.HasColumn(col) {
			return nil, nil, apperr.New(apperr.UnSupportedType,
				"table %s: column %q not in schema", s.Name, col)
		}
	}
	var cols []string
	var args []any
	for _, c := range s.Columns {
		if v, ok := row[c.Name]; ok {
			cols = append(cols, c.Name)
			args = append(args, v)
		}
	}
	return cols, args, nil
}

func whereClause(s *Schema, where Row) (string, []any, error) {
	cols, args, err := orderedColumns(s, where)
	if err != nil {
		return "", nil, err
	}
	conds := make([]string, len(cols))
	for i, col := range cols {
		conds[i] = col + " = ?"
	}
	return strings.Join(conds, " AND "), args, nil
}
