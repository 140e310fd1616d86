// Covers the data access layer over an in-memory SQLite database.

package store_test

import (
	"testing"

	"github.com/aniways/anipush/internal/db"
	"github.com/aniways/anipush/internal/store"
	"github.com/aniways/anipush/internal/testutil"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(testutil.SetupTestDB(t))
}

func TestUpsertIsIdempotentOnConflictKey(t *testing.T) {
	s := setupStore(t)

	row := db.Row{"tmdb_id": "100", "title": "Frieren", "send_status": 0}
	if err := s.Upsert(db.TableEmby, row, []string{"tmdb_id"}); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	row["title"] = "Frieren: Beyond Journey's End"
	if err := s.Upsert(db.TableEmby, row, []string{"tmdb_id"}); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	tuples, err := s.Select(db.TableEmby, []string{"title"}, db.Row{"tmdb_id": "100"}, "", 0, 0)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(tuples) != 1 {
		t.Fatalf("Expected 1 row after conflicting upserts, got %d", len(tuples))
	}
	if tuples[0][0] != "Frieren: Beyond Journey's End" {
		t.Errorf("Expected updated title, got %v", tuples[0][0])
	}
}

func TestLatestUnsent(t *testing.T) {
	s := setupStore(t)

	t.Run("Empty Table", func(t *testing.T) {
		_, ok, err := s.LatestUnsent(db.TableAniRSS)
		if err != nil {
			t.Fatalf("LatestUnsent failed: %v", err)
		}
		if ok {
			t.Error("Expected no row from an empty table")
		}
	})

	t.Run("Picks Most Recent Unsent Row", func(t *testing.T) {
		for _, title := range []string{"first", "second", "third"} {
			err := s.Upsert(db.TableAniRSS, db.Row{"title": title, "send_status": 0}, nil)
			if err != nil {
				t.Fatalf("Upsert failed: %v", err)
			}
		}

		row, ok, err := s.LatestUnsent(db.TableAniRSS)
		if err != nil {
			t.Fatalf("LatestUnsent failed: %v", err)
		}
		if !ok {
			t.Fatal("Expected an unsent row")
		}
		if row["title"] != "third" {
			t.Errorf("Expected the most recent row, got %v", row["title"])
		}
	})

	t.Run("Sent Rows Are Excluded", func(t *testing.T) {
		row, ok, err := s.LatestUnsent(db.TableAniRSS)
		if err != nil || !ok {
			t.Fatalf("LatestUnsent failed: %v ok=%v", err, ok)
		}
		id, isInt := row["id"].(int64)
		if !isInt {
			t.Fatalf("Expected int64 id, got %#v", row["id"])
		}
		if err := s.MarkSent(db.TableAniRSS, id); err != nil {
			t.Fatalf("MarkSent failed: %v", err)
		}

		next, ok, err := s.LatestUnsent(db.TableAniRSS)
		if err != nil {
			t.Fatalf("LatestUnsent failed: %v", err)
		}
		if !ok {
			t.Fatal("Expected an older unsent row")
		}
		if next["id"] == row["id"] {
			t.Error("Sent row was selected again")
		}
		if next["title"] != "second" {
			t.Errorf("Expected the next unsent row, got %v", next["title"])
		}
	})
}

func TestAnimeByTMDBID(t *testing.T) {
	s := setupStore(t)

	t.Run("Absent", func(t *testing.T) {
		_, ok, err := s.AnimeByTMDBID("404")
		if err != nil {
			t.Fatalf("AnimeByTMDBID failed: %v", err)
		}
		if ok {
			t.Error("Expected no aggregate row")
		}
	})

	t.Run("Found", func(t *testing.T) {
		if err := s.UpsertAnime(db.Row{"tmdb_id": "7", "tmdb_title": "Bocchi"}); err != nil {
			t.Fatalf("UpsertAnime failed: %v", err)
		}
		row, ok, err := s.AnimeByTMDBID("7")
		if err != nil {
			t.Fatalf("AnimeByTMDBID failed: %v", err)
		}
		if !ok {
			t.Fatal("Expected the aggregate row")
		}
		if row["tmdb_title"] != "Bocchi" {
			t.Errorf("Unexpected title %v", row["tmdb_title"])
		}
	})

	t.Run("Upsert Updates In Place", func(t *testing.T) {
		if err := s.UpsertAnime(db.Row{"tmdb_id": "7", "score": "8.9"}); err != nil {
			t.Fatalf("UpsertAnime failed: %v", err)
		}
		tuples, err := s.Select(db.TableAnime, []string{"id"}, db.Row{"tmdb_id": "7"}, "", 0, 0)
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if len(tuples) != 1 {
			t.Errorf("Expected 1 aggregate row, got %d", len(tuples))
		}
	})
}
