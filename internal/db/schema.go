// Declarative table definitions. The query builder and the startup
// self-check both work from these, so the schema here is the single
// source of truth for what the database must look like.

package db

import "github.com/aniways/anipush/internal/apperr"

// Table identifies one of the declared tables.
type Table string

const (
	TableEmby   Table = "Emby"
	TableAniRSS Table = "AniRSS"
	TableAnime  Table = "Anime"
)

// Column is one typed column of a declared table.
type Column struct {
	Name string
	Decl string // SQL type and constraints, e.g. "TEXT UNIQUE"
}

// Schema is the ordered column set of a table.
type Schema struct {
	Name    Table
	Columns []Column
}

// Row maps column names to values. A nil value persists as NULL.
type Row map[string]any

var schemas = []*Schema{
	{
		Name: TableEmby,
		Columns: []Column{
			{"id", "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"send_status", "INTEGER NOT NULL DEFAULT 0"},
			{"title", "TEXT"},
			{"type", "TEXT"},
			{"season", "TEXT"},
			{"episode", "TEXT"},
			{"episode_title", "TEXT"},
			{"merged_episode", "TEXT"},
			{"timestamp", "TEXT"},
			{"tmdb_id", "TEXT UNIQUE"},
			{"series_id", "TEXT"},
			{"server_id", "TEXT"},
			{"series_tag", "TEXT"},
		},
	},
	{
		Name: TableAniRSS,
		Columns: []Column{
			{"id", "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"send_status", "INTEGER NOT NULL DEFAULT 0"},
			{"action", "TEXT"},
			{"title", "TEXT"},
			{"season", "TEXT"},
			{"episode", "TEXT"},
			{"tmdb_episode_title", "TEXT"},
			{"bangumi_episode_title", "TEXT"},
			{"bangumi_jp_episode_title", "TEXT"},
			{"score", "TEXT"},
			{"tmdb_id", "TEXT UNIQUE"},
			{"tmdb_title", "TEXT"},
			{"tmdb_url", "TEXT"},
			{"bangumi_url", "TEXT"},
			{"image_url", "TEXT"},
			{"timestamp", "TEXT"},
		},
	},
	{
		Name: TableAnime,
		Columns: []Column{
			{"id", "INTEGER PRIMARY KEY AUTOINCREMENT"},
			{"emby_title", "TEXT"},
			{"tmdb_title", "TEXT"},
			{"tmdb_id", "TEXT UNIQUE"},
			{"score", "TEXT"},
			{"tmdb_url", "TEXT"},
			{"bangumi_url", "TEXT"},
			{"ani_rss_image", "TEXT"},
			{"emby_series_tag", "TEXT"},
			{"emby_series_url", "TEXT"},
			{"group_subscriber", "TEXT"},
			{"private_subscriber", "TEXT"},
		},
	},
}

// Schemas returns all declared table schemas in declaration order.
func Schemas() []*Schema { return schemas }

// SchemaFor returns the schema for the given table.
func SchemaFor(table Table) (*Schema, error) {
	for _, s := range schemas {
		if s.Name == table {
			return s, nil
		}
	}
	return nil, apperr.New(apperr.ParamNotFound, "no schema declared for table %q", table)
}

// ColumnNames returns the table's column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the schema declares the named column.
func (s *Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// DefaultRow returns a row with every declared column set to nil.
func (s *Schema) DefaultRow() Row {
	row := make(Row, len(s.Columns))
	for _, c := range s.Columns {
		row[c.Name] = nil
	}
	return row
}

// RowFromValues zips an ordered value tuple (as returned by a full-column
// select) back into a named row.
func (s *Schema) RowFromValues(values []any) (Row, error) {
	if len(values) != len(s.Columns) {
		return nil, apperr.New(apperr.InvalidLength,
			"table %s: expected %d values, got %d", s.Name, len(s.Columns), len(values))
	}
	row := make(Row, len(s.Columns))
	for i, c := range s.Columns {
		row[c.Name] = normalize(values[i])
	}
	return row, nil
}

// normalize maps driver byte slices to strings so row values compare and
// serialize predictably.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
