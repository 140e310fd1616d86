// Subscriber bookkeeping on aggregate rows. The two subscriber columns
// are JSON text: group_subscriber maps a group id (decimal string key)
// to the users subscribed inside that group, private_subscriber is a
// flat user id list.

package store

import (
	"encoding/json"
	"strconv"

	"github.com/aniways/anipush/internal/apperr"
	"github.com/aniways/anipush/internal/db"
)

// GroupSubscribers maps group id -> subscribed user ids.
type GroupSubscribers map[string][]int64

// AddGroupSubscriber registers a user against a title inside a group.
// The aggregate row must already exist.
func (s *Store) AddGroupSubscriber(tmdbID string, groupID, userID int64) error {
	return s.mutateGroupSubscribers(tmdbID, func(subs GroupSubscribers) GroupSubscribers {
		key := strconv.FormatInt(groupID, 10)
		for _, existing := range subs[key] {
			if existing == userID {
				return subs
			}
		}
		subs[key] = append(subs[key], userID)
		return subs
	})
}

// RemoveGroupSubscriber removes a user's subscription inside a group.
func (s *Store) RemoveGroupSubscriber(tmdbID string, groupID, userID int64) error {
	return s.mutateGroupSubscribers(tmdbID, func(subs GroupSubscribers) GroupSubscribers {
		key := strconv.FormatInt(groupID, 10)
		users := subs[key]
		for i, u := range users {
			if u == userID {
				subs[key] = append(users[:i], users[i+1:]...)
				break
			}
		}
		if len(subs[key]) == 0 {
			delete(subs, key)
		}
		return subs
	})
}

// AddPrivateSubscriber registers a user for direct delivery of a title.
func (s *Store) AddPrivateSubscriber(tmdbID string, userID int64) error {
	return s.mutatePrivateSubscribers(tmdbID, func(users []int64) []int64 {
		for _, u := range users {
			if u == userID {
				return users
			}
		}
		return append(users, userID)
	})
}

// RemovePrivateSubscriber removes a user's direct-delivery subscription.
func (s *Store) RemovePrivateSubscriber(tmdbID string, userID int64) error {
	return s.mutatePrivateSubscribers(tmdbID, func(users []int64) []int64 {
		for i, u := range users {
			if u == userID {
				return append(users[:i], users[i+1:]...)
			}
		}
		return users
	})
}

func (s *Store) mutateGroupSubscribers(tmdbID string, mutate func(GroupSubscribers) GroupSubscribers) error {
	row, ok, err := s.AnimeByTMDBID(tmdbID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.TargetNotFound, "no aggregate row for tmdb_id %s", tmdbID)
	}
	subs := ParseGroupSubscribers(row["group_subscriber"])
	subs = mutate(subs)
	encoded, err := json.Marshal(subs)
	if err != nil {
		return apperr.Wrap(apperr.UnknownError, err, "failed to encode group subscribers")
	}
	return s.Update(db.TableAnime, db.Row{"group_subscriber": string(encoded)}, db.Row{"tmdb_id": tmdbID})
}

func (s *Store) mutatePrivateSubscribers(tmdbID string, mutate func([]int64) []int64) error {
	row, ok, err := s.AnimeByTMDBID(tmdbID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.TargetNotFound, "no aggregate row for tmdb_id %s", tmdbID)
	}
	users := ParsePrivateSubscribers(row["private_subscriber"])
	users = mutate(users)
	encoded, err := json.Marshal(users)
	if err != nil {
		return apperr.Wrap(apperr.UnknownError, err, "failed to encode private subscribers")
	}
	return s.Update(db.TableAnime, db.Row{"private_subscriber": string(encoded)}, db.Row{"tmdb_id": tmdbID})
}

// ParseGroupSubscribers decodes the group_subscriber column, tolerating
// NULL and malformed JSON by returning an empty map.
func ParseGroupSubscribers(value any) GroupSubscribers {
	subs := make(GroupSubscribers)
	text, ok := value.(string)
	if !ok || text == "" {
		return subs
	}
	if err := json.Unmarshal([]byte(text), &subs); err != nil {
		return make(GroupSubscribers)
	}
	return subs
}

// ParsePrivateSubscribers decodes the private_subscriber column,
// tolerating NULL and malformed JSON by returning an empty list.
func ParsePrivateSubscribers(value any) []int64 {
	text, ok := value.(string)
	if !ok || text == "" {
		return nil
	}
	var users []int64
	if err := json.Unmarshal([]byte(text), &users); err != nil {
		return nil
	}
	return users
}
