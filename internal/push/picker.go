// Field picking: turn one unsent source row plus its aggregate row into
// the display fields, subscriber sets and image candidates of a push.

package push

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aniways/anipush/internal/db"
	"github.com/aniways/anipush/internal/store"
)

// Picked is the fully resolved input of one notification.
type Picked struct {
	RowID       int64
	TMDBID      string
	SeriesID    string
	Fields      map[string]string
	GroupSubs   store.GroupSubscribers
	PrivateSubs []int64
	ImageQueue  []string
}

// pick resolves all display fields and subscriber sets. sourceRow must
// be non-empty; animeRow may be nil when no aggregate exists.
func pick(source db.Table, sourceRow, animeRow db.Row, groupTargets, privateTargets []int64) *Picked {
	p := &Picked{
		RowID:    rowInt(sourceRow, "id"),
		SeriesID: rowString(sourceRow, "series_id"),
		Fields:   make(map[string]string),
	}

	p.TMDBID = rowString(sourceRow, "tmdb_id")
	if p.TMDBID == "" {
		p.TMDBID = rowString(animeRow, "tmdb_id")
	}

	setField(p.Fields, "title", pickTitle(source, sourceRow, animeRow))
	setField(p.Fields, "episode", pickEpisode(source, sourceRow))
	setField(p.Fields, "episode_title", pickEpisodeTitle(source, sourceRow))
	setField(p.Fields, "timestamp", pickTimestamp(sourceRow))
	setField(p.Fields, "source", string(source))
	setField(p.Fields, "action", pickAction(source, sourceRow))
	setField(p.Fields, "score", pickScore(source, sourceRow, animeRow))
	setField(p.Fields, "tmdbid", p.TMDBID)

	p.GroupSubs, p.PrivateSubs = pickSubscribers(animeRow, groupTargets, privateTargets)
	p.ImageQueue = pickImageQueue(source, sourceRow, animeRow)
	return p
}

func pickTitle(source db.Table, sourceRow, animeRow db.Row) string {
	if title := rowString(sourceRow, "title"); title != "" {
		return title
	}
	if title := rowString(animeRow, "emby_title"); title != "" {
		return title
	}
	if title := rowString(animeRow, "tmdb_title"); title != "" {
		return title
	}
	log.Printf("Pusher: no title found for %s row", source)
	return ""
}

// pickEpisode formats the episode designation. The media-server source
// branches on item type; anything without numeric season and episode
// yields no episode text rather than an error.
func pickEpisode(source db.Table, sourceRow db.Row) string {
	var season, episode string
	switch source {
	case db.TableAniRSS:
		season = rowString(sourceRow, "season")
		episode = rowString(sourceRow, "episode")
	case db.TableEmby:
		itemType := rowString(sourceRow, "type")
		switch itemType {
		case "":
			log.Printf("Pusher: %s row carries no item type", source)
			return ""
		case "Series":
			if merged := rowString(sourceRow, "merged_episode"); merged != "" {
				return fmt.Sprintf("Bulk update, %s episodes added", merged)
			}
			return ""
		case "Episode":
			season = rowString(sourceRow, "season")
			episode = rowString(sourceRow, "episode")
		default:
			log.Printf("Pusher: unhandled %s item type %q", source, itemType)
			return ""
		}
	}
	s, errS := strconv.Atoi(season)
	e, errE := strconv.Atoi(episode)
	if errS != nil || errE != nil {
		log.Printf("Pusher: %s season/episode not numeric (season=%q episode=%q)", source, season, episode)
		return ""
	}
	return fmt.Sprintf("S%02d-E%02d", s, e)
}

func pickEpisodeTitle(source db.Table, sourceRow db.Row) string {
	switch source {
	case db.TableAniRSS:
		for _, key := range []string{"tmdb_episode_title", "bangumi_episode_title", "bangumi_jp_episode_title"} {
			if title := rowString(sourceRow, key); title != "" {
				return title
			}
		}
		return ""
	case db.TableEmby:
		return rowString(sourceRow, "episode_title")
	}
	return ""
}

func pickTimestamp(sourceRow db.Row) string {
	raw := rowString(sourceRow, "timestamp")
	if raw == "" {
		log.Printf("Pusher: row carries no timestamp")
		return ""
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Printf("Pusher: unparseable timestamp %q: %v", raw, err)
		return ""
	}
	return ts.Format("01-02 15:04:05")
}

func pickAction(source db.Table, sourceRow db.Row) string {
	switch source {
	case db.TableAniRSS:
		return rowString(sourceRow, "action")
	case db.TableEmby:
		return "Library updated"
	}
	return ""
}

func pickScore(source db.Table, sourceRow, animeRow db.Row) string {
	if source == db.TableAniRSS {
		if score := rowString(sourceRow, "score"); score != "" {
			return score
		}
	}
	return rowString(animeRow, "score")
}

// pickSubscribers resolves the stored subscriber sets against the
// current destination lists: a destination that was unregistered stops
// receiving pushes even if stale subscriber data remains.
func pickSubscribers(animeRow db.Row, groupTargets, privateTargets []int64) (store.GroupSubscribers, []int64) {
	if animeRow == nil {
		return store.GroupSubscribers{}, nil
	}
	storedGroups := store.ParseGroupSubscribers(animeRow["group_subscriber"])
	storedPrivate := store.ParsePrivateSubscribers(animeRow["private_subscriber"])

	groups := make(store.GroupSubscribers)
	for _, target := range groupTargets {
		key := strconv.FormatInt(target, 10)
		if users, ok := storedGroups[key]; ok {
			groups[key] = users
		}
	}

	targetSet := make(map[int64]bool, len(privateTargets))
	for _, t := range privateTargets {
		targetSet[t] = true
	}
	var private []int64
	for _, u := range storedPrivate {
		if targetSet[u] {
			private = append(private, u)
		}
	}
	return groups, private
}

// pickImageQueue builds the image candidate queue in fixed priority
// order, blank entries dropped, first occurrence wins.
func pickImageQueue(source db.Table, sourceRow, animeRow db.Row) []string {
	var raw []string
	raw = append(raw, rowString(animeRow, "emby_series_tag"))
	if source == db.TableEmby {
		raw = append(raw, rowString(sourceRow, "series_tag"))
	}
	raw = append(raw, rowString(animeRow, "ani_rss_image"))
	if source == db.TableAniRSS {
		raw = append(raw, rowString(sourceRow, "image_url"))
	}

	seen := make(map[string]bool)
	var queue []string
	for _, item := range raw {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		queue = append(queue, item)
	}
	return queue
}

func setField(fields map[string]string, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

// rowString reads a row value as a string; nil rows, NULLs and
// non-strings read as empty.
func rowString(row db.Row, key string) string {
	if row == nil {
		return ""
	}
	switch v := row[key].(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// rowInt reads a row value as an int64, 0 when absent.
func rowInt(row db.Row, key string) int64 {
	if row == nil {
		return 0
	}
	switch v := row[key].(type) {
	case int64:
		return v
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
