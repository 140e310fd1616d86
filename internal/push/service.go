package push

import (
	"context"
	"log"
	"strconv"

	"github.com/aniways/anipush/internal/apperr"
	"github.com/aniways/anipush/internal/db"
	"github.com/aniways/anipush/internal/onebot"
	"github.com/aniways/anipush/internal/store"
)

// TargetSource exposes the current delivery destinations per source.
type TargetSource interface {
	GroupTargets(source string) []int64
	PrivateTargets(source string) []int64
}

// ImageResolver turns an image candidate queue into local file paths.
type ImageResolver interface {
	Resolve(ctx context.Context, queue []string, seriesID string) []string
}

// Deliverer sends a composed message to chat destinations.
type Deliverer interface {
	SendGroup(ctx context.Context, groupID int64, msg []onebot.Segment) error
	SendPrivate(ctx context.Context, userIDs []int64, msg []onebot.Segment) error
}

// Service selects the latest unsent row of a source, composes the
// notification and delivers it to every registered destination.
type Service struct {
	st      *store.Store
	targets TargetSource
	images  ImageResolver
	bot     Deliverer
}

func NewService(st *store.Store, targets TargetSource, images ImageResolver, bot Deliverer) *Service {
	return &Service{st: st, targets: targets, images: images, bot: bot}
}

// Push handles one push cycle for a source. A source with no unsent
// rows is a no-op. The sent mark is written only after every delivery
// succeeded; a failed send leaves the row pending for a later cycle.
func (s *Service) Push(ctx context.Context, source db.Table) error {
	row, ok, err := s.st.LatestUnsent(source)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("Pusher: no pending %s rows", source)
		return nil
	}

	tmdbID, _ := row["tmdb_id"].(string)
	var animeRow db.Row
	if tmdbID != "" {
		animeRow, _, err = s.st.AnimeByTMDBID(tmdbID)
		if err != nil {
			return err
		}
	}

	groupTargets := s.targets.GroupTargets(string(source))
	privateTargets := s.targets.PrivateTargets(string(source))
	picked := pick(source, row, animeRow, groupTargets, privateTargets)
	if picked.RowID == 0 {
		return apperr.New(apperr.MissingData, "push: %s row carries no id", source)
	}

	base := s.compose(ctx, picked)
	if err := s.deliver(ctx, picked, base, groupTargets, privateTargets); err != nil {
		return err
	}

	if err := s.st.MarkSent(source, picked.RowID); err != nil {
		return err
	}
	log.Printf("Pusher: %s row %d pushed and marked sent", source, picked.RowID)
	return nil
}

// compose builds the base message: head, cover image when one
// resolves, then the field body.
func (s *Service) compose(ctx context.Context, picked *Picked) []onebot.Segment {
	msg := []onebot.Segment{onebot.Text(PushHead.Fill(picked.Fields))}
	if paths := s.images.Resolve(ctx, picked.ImageQueue, picked.SeriesID); len(paths) > 0 {
		msg = append(msg, onebot.Image(paths[0]))
	}
	msg = append(msg, onebot.Text("\n"+PushBody.Fill(picked.Fields)))
	return msg
}

// deliver fans the message out to every registered group, mentioning
// that group's subscribers, then sends the base message to each
// private destination. The first failed send aborts the remaining
// destinations so the row stays unsent.
func (s *Service) deliver(ctx context.Context, picked *Picked, base []onebot.Segment, groupTargets, privateTargets []int64) error {
	for _, groupID := range groupTargets {
		msg := make([]onebot.Segment, len(base), len(base)+4)
		copy(msg, base)
		if users := picked.GroupSubs[strconv.FormatInt(groupID, 10)]; len(users) > 0 {
			msg = append(msg, onebot.Text("\n"+SubscriberHead.Fill(nil)+"\n"))
			for _, userID := range users {
				msg = append(msg, onebot.At(userID))
			}
		}
		if err := s.bot.SendGroup(ctx, groupID, msg); err != nil {
			log.Printf("Pusher: group %d delivery failed: %v", groupID, err)
			return apperr.Wrap(apperr.RequestError, err, "group %d delivery failed", groupID)
		}
	}

	if len(picked.PrivateSubs) > 0 {
		if err := s.bot.SendPrivate(ctx, privateTargets, base); err != nil {
			log.Printf("Pusher: private delivery failed: %v", err)
			return apperr.Wrap(apperr.RequestError, err, "private delivery failed")
		}
	}
	return nil
}
