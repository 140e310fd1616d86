// To handle all database interactions. This is our data access layer,
// keeping SQL generation and row plumbing separate from pipeline logic.

package store

import (
	"database/sql"
	"log"

	"github.com/aniways/anipush/internal/apperr"
	"github.com/aniways/anipush/internal/db"
)

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(database *sql.DB) *Store {
	return &Store{db: database}
}

// Upsert inserts the row into the table, updating every non-conflict
// column when the conflict key already exists. An empty conflict list
// performs a plain insert.
func (s *Store) Upsert(table db.Table, row db.Row, conflictColumns []string) error {
	schema, err := db.SchemaFor(table)
	if err != nil {
		return err
	}
	query, args, err := db.BuildUpsert(schema, row, conflictColumns)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return apperr.Wrap(apperr.DatabaseDaoError, err, "upsert into %s failed", table)
	}
	return nil
}

// Select returns matching rows as ordered value tuples, one per schema
// column when columns is empty. An empty result is not an error.
func (s *Store) Select(table db.Table, columns []string, where db.Row, orderBy string, limit, offset int) ([][]any, error) {
	schema, err := db.SchemaFor(table)
	if err != nil {
		return nil, err
	}
	query, args, err := db.BuildSelect(schema, columns, where, orderBy, limit, offset)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseDaoError, err, "select from %s failed", table)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperr.Wrap(apperr.DatabaseDaoError, err, "select from %s: column read failed", table)
	}
	var result [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperr.Wrap(apperr.DatabaseDaoError, err, "select from %s: scan failed", table)
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.DatabaseDaoError, err, "select from %s failed", table)
	}
	return result, nil
}

// Update applies the set columns to every row matching where. Both maps
// must be non-empty.
func (s *Store) Update(table db.Table, set db.Row, where db.Row) error {
	schema, err := db.SchemaFor(table)
	if err != nil {
		return err
	}
	query, args, err := db.BuildUpdate(schema, set, where)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return apperr.Wrap(apperr.DatabaseDaoError, err, "update %s failed", table)
	}
	return nil
}

// LatestUnsent returns the most recent row of the table with
// send_status=0, or ok=false when every row has been pushed.
func (s *Store) LatestUnsent(table db.Table) (db.Row, bool, error) {
	tuples, err := s.Select(table, nil, db.Row{"send_status": 0}, "id DESC", 1, 0)
	if err != nil {
		return nil, false, err
	}
	if len(tuples) == 0 {
		return nil, false, nil
	}
	schema, err := db.SchemaFor(table)
	if err != nil {
		return nil, false, err
	}
	row, err := schema.RowFromValues(tuples[0])
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// MarkSent flips a source row's send_status to 1, keyed by row id. The
// row is excluded from all future unsent selections.
func (s *Store) MarkSent(table db.Table, id int64) error {
	return s.Update(table, db.Row{"send_status": 1}, db.Row{"id": id})
}

// AnimeByTMDBID returns the aggregate row for a TMDB id. Zero rows and
// the defensive more-than-one case both report ok=false; the latter is
// logged because it means the unique constraint has been bypassed.
func (s *Store) AnimeByTMDBID(tmdbID string) (db.Row, bool, error) {
	tuples, err := s.Select(db.TableAnime, nil, db.Row{"tmdb_id": tmdbID}, "", 0, 0)
	if err != nil {
		return nil, false, err
	}
	if len(tuples) == 0 {
		return nil, false, nil
	}
	if len(tuples) > 1 {
		log.Printf("Store: %d aggregate rows for tmdb_id %s, expected at most one; treating as absent", len(tuples), tmdbID)
		return nil, false, nil
	}
	schema, _ := db.SchemaFor(db.TableAnime)
	row, err := schema.RowFromValues(tuples[0])
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// UpsertAnime writes an aggregate row keyed by tmdb_id.
func (s *Store) UpsertAnime(row db.Row) error {
	return s.Upsert(db.TableAnime, row, []string{"tmdb_id"})
}
