package db

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/aniways/anipush/internal/apperr"
)

// ValidateSchema checks every declared table against the live database
// and drops and recreates any table whose column set does not match.
// Recovery is destructive: mismatched tables lose their rows. It runs
// once at startup before any pipeline activity; an error here is fatal.
func ValidateSchema(database *sql.DB) error {
	if _, err := database.Exec("PRAGMA foreign_keys = OFF;"); err != nil {
		return apperr.Wrap(apperr.DatabaseError, err, "failed to disable foreign keys for schema check")
	}
	defer database.Exec("PRAGMA foreign_keys = ON;")

	for _, schema := range Schemas() {
		actual, err := actualColumns(database, schema.Name)
		if err != nil {
			return err
		}
		if columnSetsEqual(schema.ColumnNames(), actual) {
			continue
		}
		if len(actual) == 0 {
			log.Printf("SchemaCheck: table %s missing, creating", schema.Name)
		} else {
			log.Printf("SchemaCheck: table %s does not match its declaration, rebuilding (existing rows are discarded)", schema.Name)
			if _, err := database.Exec(BuildDropTable(schema)); err != nil {
				return apperr.Wrap(apperr.DatabaseError, err, "failed to drop table %s", schema.Name)
			}
		}
		if _, err := database.Exec(BuildCreateTable(schema)); err != nil {
			return apperr.Wrap(apperr.DatabaseError, err, "failed to create table %s", schema.Name)
		}
	}
	return nil
}

// actualColumns returns the live column names of a table, empty when the
// table does not exist.
func actualColumns(database *sql.DB, table Table) ([]string, error) {
	rows, err := database.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "failed to introspect table %s", table)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseError, err, "failed to scan table_info for %s", table)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.DatabaseError, err, "failed to read table_info for %s", table)
	}
	return names, nil
}

func columnSetsEqual(declared, actual []string) bool {
	if len(declared) != len(actual) {
		return false
	}
	set := make(map[string]bool, len(declared))
	for _, n := range declared {
		set[n] = true
	}
	for _, n := range actual {
		if !set[n] {
			return false
		}
	}
	return true
}
