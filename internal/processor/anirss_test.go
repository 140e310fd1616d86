package processor

import (
	"testing"

	"github.com/aniways/anipush/internal/apperr"
)

func TestAniRSSReformat(t *testing.T) {
	proc := NewAniRSS()

	t.Run("Full Notification", func(t *testing.T) {
		payload := `{
			"action": "downloaded",
			"title": "Bocchi the Rock!",
			"season": 1,
			"episode": "5",
			"tmdbEpisodeTitle": "Neon Sign",
			"score": 8.76,
			"tmdbid": 119100,
			"tmdbTitle": "BOCCHI THE ROCK!",
			"tmdbUrl": "https://www.themoviedb.org/tv/119100",
			"bgmUrl": "https://bgm.tv/subject/345678",
			"image": "https://img.example.com/cover.jpg"
		}`
		row, err := proc.Reformat([]byte(payload))
		if err != nil {
			t.Fatalf("Reformat failed: %v", err)
		}
		// Numbers and strings both normalize to strings.
		if row["season"] != "1" || row["episode"] != "5" {
			t.Errorf("Unexpected season/episode %v/%v", row["season"], row["episode"])
		}
		if row["score"] != "8.76" {
			t.Errorf("Unexpected score %v", row["score"])
		}
		if row["tmdb_id"] != "119100" {
			t.Errorf("Unexpected tmdb_id %v", row["tmdb_id"])
		}
		if row["tmdb_episode_title"] != "Neon Sign" {
			t.Errorf("Unexpected episode title %v", row["tmdb_episode_title"])
		}
		if row["image_url"] != "https://img.example.com/cover.jpg" {
			t.Errorf("Unexpected image url %v", row["image_url"])
		}
		if row["send_status"] != 0 {
			t.Errorf("New rows must be unsent, got %v", row["send_status"])
		}
	})

	t.Run("Absent Fields Stay Nil", func(t *testing.T) {
		row, err := proc.Reformat([]byte(`{"action": "downloaded", "title": "X"}`))
		if err != nil {
			t.Fatalf("Reformat failed: %v", err)
		}
		if row["tmdb_id"] != nil {
			t.Errorf("Expected nil tmdb_id, got %v", row["tmdb_id"])
		}
		if row["score"] != nil {
			t.Errorf("Expected nil score, got %v", row["score"])
		}
	})

	t.Run("Empty Payload Rejected", func(t *testing.T) {
		_, err := proc.Reformat([]byte(`{}`))
		if !apperr.IsKind(err, apperr.MissingData) {
			t.Errorf("Expected MissingData, got %v", err)
		}
	})
}

func TestLooseString(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want any
	}{
		{"Integer", `42`, "42"},
		{"Float", `8.5`, "8.5"},
		{"String", `"42"`, "42"},
		{"Empty String", `""`, nil},
		{"Null", `null`, nil},
		{"Object", `{}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := looseString([]byte(tc.raw)); got != tc.want {
				t.Errorf("looseString(%s) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}
