package processor

import (
	"sync"

	"github.com/aniways/anipush/internal/apperr"
	"github.com/aniways/anipush/internal/db"
	"github.com/aniways/anipush/internal/store"
)

// Columns the merge never takes from new source data: they originate
// from subscription commands only and are force-preserved from the
// existing aggregate row.
var preservedColumns = map[string]bool{
	"group_subscriber":   true,
	"private_subscriber": true,
}

// Merger folds canonical per-source fields into the aggregate table,
// keyed by TMDB id. A per-key mutex serializes the read-merge-write
// sequence so concurrent pipelines for the same title cannot overwrite
// each other's merge.
type Merger struct {
	st          *store.Store
	embyEnabled bool
	embyHost    string
	locks       keyedMutex
}

func NewMerger(st *store.Store, embyEnabled bool, embyHost string) *Merger {
	return &Merger{st: st, embyEnabled: embyEnabled, embyHost: embyHost}
}

// Merge loads the aggregate row for the event's TMDB id, overlays the
// new source contribution (new non-nil fields win, subscriber columns
// are copied from the existing row verbatim) and upserts the result.
// Either the full merged row is written or nothing changes.
func (m *Merger) Merge(source db.Table, fields db.Row) error {
	tmdbID, ok := fields["tmdb_id"].(string)
	if !ok || tmdbID == "" {
		return apperr.New(apperr.ParamNotFound, "%s: merge needs a tmdb_id", source)
	}
	unlock := m.locks.lock(tmdbID)
	defer unlock()

	contribution, err := m.contribution(source, fields)
	if err != nil {
		return err
	}

	schema, err := db.SchemaFor(db.TableAnime)
	if err != nil {
		return err
	}
	existing, found, err := m.st.AnimeByTMDBID(tmdbID)
	if err != nil {
		return err
	}
	if !found {
		existing = schema.DefaultRow()
	}

	merged := make(db.Row, len(schema.Columns))
	for _, col := range schema.ColumnNames() {
		if col == "id" {
			continue
		}
		if preservedColumns[col] {
			merged[col] = existing[col]
			continue
		}
		if v := contribution[col]; v != nil {
			merged[col] = v
		} else {
			merged[col] = existing[col]
		}
	}
	return m.st.UpsertAnime(merged)
}

// contribution maps a source's canonical fields onto aggregate columns.
// Fields a source never supplies stay nil rather than absent.
func (m *Merger) contribution(source db.Table, fields db.Row) (db.Row, error) {
	schema, err := db.SchemaFor(db.TableAnime)
	if err != nil {
		return nil, err
	}
	row := schema.DefaultRow()
	delete(row, "id")
	row["tmdb_id"] = fields["tmdb_id"]

	switch source {
	case db.TableEmby:
		row["emby_title"] = fields["title"]
		row["emby_series_tag"] = fields["series_tag"]
		if m.embyEnabled {
			seriesID, _ := fields["series_id"].(string)
			serverID, _ := fields["server_id"].(string)
			if url, err := EmbySeriesURL(m.embyHost, seriesID, serverID); err == nil {
				row["emby_series_url"] = url
			}
		}
	case db.TableAniRSS:
		row["tmdb_title"] = fields["tmdb_title"]
		row["score"] = fields["score"]
		row["tmdb_url"] = fields["tmdb_url"]
		row["bangumi_url"] = fields["bangumi_url"]
		row["ani_rss_image"] = fields["image_url"]
	default:
		return nil, apperr.New(apperr.UnSupportedType, "no aggregate mapping for source %q", source)
	}
	return row, nil
}

// keyedMutex hands out one mutex per key. Keys are TMDB ids, so the map
// stays small and is never shrunk.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
