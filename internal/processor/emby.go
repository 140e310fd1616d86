package processor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aniways/anipush/internal/apperr"
	"github.com/aniways/anipush/internal/db"
)

// embyPayload is the relevant slice of an Emby webhook notification.
type embyPayload struct {
	Event string `json:"Event"`
	Title string `json:"Title"`
	Item  struct {
		Name                  string            `json:"Name"`
		SeriesName            string            `json:"SeriesName"`
		Type                  string            `json:"Type"`
		IndexNumber           *int              `json:"IndexNumber"`
		ParentIndexNumber     *int              `json:"ParentIndexNumber"`
		ChildCount            *int              `json:"ChildCount"`
		ProviderIds           map[string]string `json:"ProviderIds"`
		SeriesID              string            `json:"SeriesId"`
		SeriesPrimaryImageTag string            `json:"SeriesPrimaryImageTag"`
		ImageTags             map[string]string `json:"ImageTags"`
	} `json:"Item"`
	Server struct {
		ID string `json:"Id"`
	} `json:"Server"`
}

// Emby normalizes Emby library-update webhooks.
type Emby struct{}

func NewEmby() *Emby { return &Emby{} }

func (e *Emby) Source() db.Table  { return db.TableEmby }
func (e *Emby) EnableMerge() bool { return true }

// Reformat extracts the canonical Emby fields. Episodes report their
// series title; the item name becomes the episode title. A row always
// carries every column, nil where the payload has nothing.
func (e *Emby) Reformat(raw []byte) (db.Row, error) {
	var payload embyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.Wrap(apperr.UnSupportedType, err, "emby payload is not valid JSON")
	}
	if payload.Item.Type == "" {
		return nil, apperr.New(apperr.MissingData, "emby payload has no item type")
	}

	schema, err := db.SchemaFor(db.TableEmby)
	if err != nil {
		return nil, err
	}
	row := schema.DefaultRow()
	delete(row, "id")
	row["send_status"] = 0
	row["type"] = payload.Item.Type
	row["timestamp"] = time.Now().Format(time.RFC3339)

	switch payload.Item.Type {
	case "Episode":
		row["title"] = nonEmpty(payload.Item.SeriesName)
		row["episode_title"] = nonEmpty(payload.Item.Name)
	default:
		row["title"] = nonEmpty(firstNonEmpty(payload.Item.Name, payload.Title))
	}
	if payload.Item.ParentIndexNumber != nil {
		row["season"] = strconv.Itoa(*payload.Item.ParentIndexNumber)
	}
	if payload.Item.IndexNumber != nil {
		row["episode"] = strconv.Itoa(*payload.Item.IndexNumber)
	}
	if payload.Item.Type == "Series" && payload.Item.ChildCount != nil {
		row["merged_episode"] = strconv.Itoa(*payload.Item.ChildCount)
	}
	row["tmdb_id"] = nonEmpty(payload.Item.ProviderIds["Tmdb"])
	row["series_id"] = nonEmpty(payload.Item.SeriesID)
	row["server_id"] = nonEmpty(payload.Server.ID)
	row["series_tag"] = nonEmpty(firstNonEmpty(
		payload.Item.SeriesPrimaryImageTag, payload.Item.ImageTags["Primary"]))
	return row, nil
}

// EmbySeriesURL builds the web link to a series on the configured host.
func EmbySeriesURL(host, seriesID, serverID string) (string, error) {
	if host == "" || seriesID == "" || serverID == "" {
		return "", apperr.New(apperr.MissingData, "emby series url needs host, series id and server id")
	}
	for len(host) > 0 && host[len(host)-1] == '/' {
		host = host[:len(host)-1]
	}
	return fmt.Sprintf("%s/web/index.html#!/item?id=%s&serverId=%s", host, seriesID, serverID), nil
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
