package thread

import (
	"context"
	"fmt"
	"math"
	"time"

	"anoa.com/threadfeed/internal/entity"
	engagementRepo "anoa.com/threadfeed/internal/modules/engagement/repository"
	"anoa.com/threadfeed/pkg/apperror"
	commonDto "anoa.com/threadfeed/pkg/dto"
	"anoa.com/threadfeed/pkg/ratelimiter"
	"github.com/google/uuid"
)

// decorate attaches media and annotations after the thread row exists.
// Failures are logged; the thread stays valid without them.
func (s *service) decorate(ctx context.Context, thread *entity.Thread, media []entity.ThreadMedia) []string {
	if len(media) > 0 {
		if err := s.mediaRepo.Attach(ctx, thread.ID, media); err != nil {
			s.log.Error().Err(err).Str("thread_id", thread.ID.String()).Int("media", len(media)).Msg("attach media")
		}
	}

	res, err := s.annotator.Annotate(ctx, thread)
	if err != nil {
		s.log.Warn().Err(err).Str("thread_id", thread.ID.String()).Msg("annotate thread")
	}
	if res == nil {
		return nil
	}
	s.notifyMentions(ctx, thread, res.Mentioned)
	return res.Hashtags
}

func (s *service) notifyMentions(ctx context.Context, thread *entity.Thread, users []uuid.UUID) {
	for _, userID := range users {
		s.notify(ctx, entity.EngagementEvent{
			Kind:     entity.EventMention,
			ThreadID: thread.ID,
			ActorID:  thread.AuthorID,
			OwnerID:  userID,
		})
	}
}

func (s *service) notify(ctx context.Context, event entity.EngagementEvent) {
	if s.notifier == nil || event.ActorID == event.OwnerID {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("kind", string(event.Kind)).
			Str("thread_id", event.ThreadID.String()).
			Msg("notify")
	}
}

// checkCreateRateLimit claims the global and per-kind cooldowns. The returned
// cleanup releases both if the create fails afterwards.
func (s *service) checkCreateRateLimit(ctx context.Context, userID uuid.UUID, reply bool) (func(), error) {
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redis, userID, ratelimiter.ScopeGlobal, s.opts.RateLimitGlobal)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redis, userID, ratelimiter.ScopeGlobal)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are doing that too fast, please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	scope, limit := ratelimiter.ScopeThread, s.opts.RateLimitThread
	if reply {
		scope, limit = ratelimiter.ScopeReply, s.opts.RateLimitReply
	}
	allowed, err = ratelimiter.CheckAndSetRateLimit(ctx, s.redis, userID, scope, limit)
	if err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redis, userID, ratelimiter.ScopeGlobal)
		return nil, apperror.Internal(err)
	}
	if !allowed {
		_ = ratelimiter.ClearRateLimit(ctx, s.redis, userID, ratelimiter.ScopeGlobal)
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redis, userID, scope)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you can post again in %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	return func() {
		_ = ratelimiter.ClearRateLimit(ctx, s.redis, userID, ratelimiter.ScopeGlobal)
		_ = ratelimiter.ClearRateLimit(ctx, s.redis, userID, scope)
	}, nil
}

// index pushes a thread to search with its author loaded. Rows fresh from
// Create carry only AuthorID.
func (s *service) index(ctx context.Context, thread *entity.Thread, tags []string) {
	if thread.Author.ID == uuid.Nil {
		stored, err := s.threadRepo.FindByID(ctx, thread.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("thread_id", thread.ID.String()).Msg("load author for search index")
		} else {
			thread.Author = stored.Author
		}
	}
	s.search.IndexThread(thread, tags)
}

func (s *service) renderOne(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*commonDto.ThreadResponse, error) {
	thread, err := s.findThread(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.render(ctx, []*entity.Thread{thread}, callerID, true)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// render builds views in batch. Quoted threads are expanded one level when
// expandQuotes is set and the caller may read them.
func (s *service) render(ctx context.Context, threads []*entity.Thread, callerID *uuid.UUID, expandQuotes bool) ([]commonDto.ThreadResponse, error) {
	views := make([]commonDto.ThreadResponse, 0, len(threads))
	if len(threads) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}

	media, err := s.mediaRepo.FindByThreadIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	hashtags, mentions, err := s.annotator.Labels(ctx, ids)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	reactions, err := s.ledger.ReactionCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	states := map[uuid.UUID]engagementRepo.CallerState{}
	if callerID != nil {
		if states, err = s.ledger.CallerState(ctx, ids, *callerID); err != nil {
			return nil, err
		}
	}

	quoted := map[uuid.UUID]commonDto.ThreadResponse{}
	if expandQuotes {
		if quoted, err = s.renderQuoted(ctx, threads, callerID); err != nil {
			return nil, err
		}
	}

	for _, t := range threads {
		view := buildThreadResponse(t, media[t.ID], hashtags[t.ID], mentions[t.ID], reactions[t.ID], states[t.ID])
		if t.QuotedThreadID != nil {
			if q, ok := quoted[*t.QuotedThreadID]; ok {
				view.QuotedThread = &q
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *service) renderQuoted(ctx context.Context, threads []*entity.Thread, callerID *uuid.UUID) (map[uuid.UUID]commonDto.ThreadResponse, error) {
	out := map[uuid.UUID]commonDto.ThreadResponse{}

	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, t := range threads {
		if t.QuotedThreadID != nil && !seen[*t.QuotedThreadID] {
			seen[*t.QuotedThreadID] = true
			ids = append(ids, *t.QuotedThreadID)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	found, err := s.threadRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	readable := make([]*entity.Thread, 0, len(found))
	for _, q := range found {
		if s.guard.CanRead(ctx, q, callerID) == nil {
			readable = append(readable, q)
		}
	}

	views, err := s.render(ctx, readable, callerID, false)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		out[v.ID] = v
	}
	return out, nil
}

func buildThreadResponse(t *entity.Thread, media []entity.ThreadMedia, hashtags, mentions []string, reactions map[entity.ReactionKind]int64, state engagementRepo.CallerState) commonDto.ThreadResponse {
	author := commonDto.AuthorResponse{ID: t.AuthorID, Username: "unknown"}
	if t.Author.Username != "" {
		author.Username = t.Author.Username
		author.DisplayName = t.Author.DisplayName
		author.AvatarURL = t.Author.AvatarURL
	}

	mediaResponses := make([]commonDto.MediaResponse, 0, len(media))
	for _, m := range media {
		mediaResponses = append(mediaResponses, commonDto.MediaResponse{
			Position: m.Position,
			Type:     string(m.Type),
			URL:      m.URL,
			Width:    m.Width,
			Height:   m.Height,
		})
	}

	counts := make(map[string]int64, len(reactions))
	for kind, n := range reactions {
		counts[string(kind)] = n
	}
	var myReaction *string
	if state.Reaction != nil {
		r := string(*state.Reaction)
		myReaction = &r
	}

	var editedAt *string
	if t.EditedAt != nil {
		e := t.EditedAt.Format(time.RFC3339)
		editedAt = &e
	}

	if hashtags == nil {
		hashtags = []string{}
	}
	if mentions == nil {
		mentions = []string{}
	}

	return commonDto.ThreadResponse{
		ID:              t.ID,
		Author:          author,
		Content:         t.Content,
		Kind:            string(t.Kind),
		ParentID:        t.ParentID,
		RootID:          t.RootID,
		Level:           t.Level,
		Path:            t.Path,
		QuotedThreadID:  t.QuotedThreadID,
		QuoteCaption:    t.QuoteCaption,
		ReplyPermission: string(t.ReplyPermission),
		IsPublic:        t.IsPublic,
		IsEdited:        t.IsEdited,
		EditedAt:        editedAt,
		LikesCount:      t.LikesCount,
		RepliesCount:    t.RepliesCount,
		RepostsCount:    t.RepostsCount,
		BookmarksCount:  t.BookmarksCount,
		ViewsCount:      t.ViewsCount,
		Media:           mediaResponses,
		Hashtags:        hashtags,
		Mentions:        mentions,
		Reactions:       commonDto.ReactionsResponse{Counts: counts, UserReacted: myReaction},
		IsLiked:         state.Liked,
		IsReposted:      state.Reposted,
		IsBookmarked:    state.Bookmarked,
		MyReaction:      myReaction,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	}
}

// pageBounds clamps paging input and returns the row offset.
func (s *service) pageBounds(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}
	return page, limit, (page - 1) * limit
}

func (s *service) paginate(ctx context.Context, threads []*entity.Thread, total int64, page, limit int, callerID *uuid.UUID) (*commonDto.PaginatedThreadResponse, error) {
	views, err := s.render(ctx, threads, callerID, true)
	if err != nil {
		return nil, err
	}
	return &commonDto.PaginatedThreadResponse{
		Data: views,
		Meta: commonDto.PaginationMeta{
			CurrentPage: page,
			TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
			TotalItems:  total,
			Limit:       limit,
		},
	}, nil
}
