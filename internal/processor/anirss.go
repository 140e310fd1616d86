package processor

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/aniways/anipush/internal/apperr"
	"github.com/aniways/anipush/internal/db"
)

// aniRSSPayload is the ani-rss webhook notification body. Numeric
// fields arrive as numbers or strings depending on the template, so
// they decode loosely.
type aniRSSPayload struct {
	Action            string          `json:"action"`
	Title             string          `json:"title"`
	Season            json.RawMessage `json:"season"`
	Episode           json.RawMessage `json:"episode"`
	TMDBEpisodeTitle  string          `json:"tmdbEpisodeTitle"`
	BgmEpisodeTitle   string          `json:"bgmEpisodeTitle"`
	BgmJpEpisodeTitle string          `json:"bgmJpEpisodeTitle"`
	Score             json.RawMessage `json:"score"`
	TMDBID            json.RawMessage `json:"tmdbid"`
	TMDBTitle         string          `json:"tmdbTitle"`
	TMDBURL           string          `json:"tmdbUrl"`
	BgmURL            string          `json:"bgmUrl"`
	Image             string          `json:"image"`
}

// AniRSS normalizes ani-rss release-notifier webhooks.
type AniRSS struct{}

func NewAniRSS() *AniRSS { return &AniRSS{} }

func (a *AniRSS) Source() db.Table  { return db.TableAniRSS }
func (a *AniRSS) EnableMerge() bool { return true }

func (a *AniRSS) Reformat(raw []byte) (db.Row, error) {
	var payload aniRSSPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.Wrap(apperr.UnSupportedType, err, "ani-rss payload is not valid JSON")
	}
	if payload.Title == "" && payload.Action == "" {
		return nil, apperr.New(apperr.MissingData, "ani-rss payload carries neither title nor action")
	}

	schema, err := db.SchemaFor(db.TableAniRSS)
	if err != nil {
		return nil, err
	}
	row := schema.DefaultRow()
	delete(row, "id")
	row["send_status"] = 0
	row["action"] = nonEmpty(payload.Action)
	row["title"] = nonEmpty(payload.Title)
	row["season"] = looseString(payload.Season)
	row["episode"] = looseString(payload.Episode)
	row["tmdb_episode_title"] = nonEmpty(payload.TMDBEpisodeTitle)
	row["bangumi_episode_title"] = nonEmpty(payload.BgmEpisodeTitle)
	row["bangumi_jp_episode_title"] = nonEmpty(payload.BgmJpEpisodeTitle)
	row["score"] = looseString(payload.Score)
	row["tmdb_id"] = looseString(payload.TMDBID)
	row["tmdb_title"] = nonEmpty(payload.TMDBTitle)
	row["tmdb_url"] = nonEmpty(payload.TMDBURL)
	row["bangumi_url"] = nonEmpty(payload.BgmURL)
	row["image_url"] = nonEmpty(payload.Image)
	row["timestamp"] = time.Now().Format(time.RFC3339)
	return row, nil
}

// looseString renders a JSON number or string as a string value, nil
// when absent or empty.
func looseString(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return nonEmpty(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return nil
}
