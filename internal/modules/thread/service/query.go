package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anoa.com/threadfeed/internal/entity"
	"anoa.com/threadfeed/pkg/apperror"
	commonDto "anoa.com/threadfeed/pkg/dto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *service) GetThread(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*commonDto.ThreadResponse, error) {
	thread, err := s.findThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanRead(ctx, thread, callerID); err != nil {
		return nil, err
	}

	if s.views != nil {
		if err := s.views.RecordView(ctx, id, callerID); err != nil {
			s.log.Warn().Err(err).Str("thread_id", id.String()).Msg("record view")
		}
	}

	views, err := s.render(ctx, []*entity.Thread{thread}, callerID, true)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *service) ListTopThreads(ctx context.Context, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error) {
	page, limit, offset := s.pageBounds(page, limit)
	threads, total, err := s.threadRepo.FindTopLevel(ctx, callerID, offset, limit)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return s.paginate(ctx, threads, total, page, limit, callerID)
}

func (s *service) ListReplies(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) ([]commonDto.ThreadResponse, error) {
	parent, err := s.findThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanRead(ctx, parent, callerID); err != nil {
		return nil, err
	}

	replies, err := s.threadRepo.FindReplies(ctx, id, callerID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return s.render(ctx, replies, callerID, true)
}

// ListConversation returns every readable descendant, shallowest first.
func (s *service) ListConversation(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) ([]commonDto.ThreadResponse, error) {
	thread, err := s.findThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanRead(ctx, thread, callerID); err != nil {
		return nil, err
	}

	descendants, err := s.threadRepo.FindDescendants(ctx, thread.SubtreePrefix(), callerID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return s.render(ctx, descendants, callerID, true)
}

func (s *service) ListByAuthor(ctx context.Context, username string, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error) {
	author, err := s.users.FindByUsername(ctx, strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
		}
		return nil, apperror.Internal(err)
	}

	page, limit, offset := s.pageBounds(page, limit)
	threads, total, err := s.threadRepo.FindByAuthor(ctx, author.ID, callerID, offset, limit)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return s.paginate(ctx, threads, total, page, limit, callerID)
}

// SearchThreads asks the index for candidates when it is up and lets SQL
// apply visibility and paging; otherwise it matches content in SQL.
func (s *service) SearchThreads(ctx context.Context, query string, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required: %w", apperror.ErrInvalidInput)
	}
	page, limit, offset := s.pageBounds(page, limit)

	var (
		threads []*entity.Thread
		total   int64
		err     error
	)
	if ids, ok := s.search.CandidateIDs(query); ok {
		threads, total, err = s.threadRepo.FindByIDsVisible(ctx, ids, callerID, offset, limit)
	} else {
		threads, total, err = s.threadRepo.Search(ctx, query, callerID, offset, limit)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return s.paginate(ctx, threads, total, page, limit, callerID)
}

func (s *service) ThreadsByHashtag(ctx context.Context, tag string, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error) {
	tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	if tag == "" {
		return nil, fmt.Errorf("hashtag is required: %w", apperror.ErrInvalidInput)
	}

	page, limit, offset := s.pageBounds(page, limit)
	threads, total, err := s.threadRepo.FindByHashtag(ctx, tag, callerID, offset, limit)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return s.paginate(ctx, threads, total, page, limit, callerID)
}

func (s *service) TrendingThreads(ctx context.Context, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error) {
	page, limit, offset := s.pageBounds(page, limit)
	since := s.now().Add(-s.opts.TrendingWindow)

	threads, total, err := s.threadRepo.GetTrending(ctx, since, callerID, offset, limit)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return s.paginate(ctx, threads, total, page, limit, callerID)
}

func (s *service) TrendingHashtags(ctx context.Context, limit int) ([]commonDto.HashtagResponse, error) {
	_, limit, _ = s.pageBounds(1, limit)
	hashtags, err := s.annotator.TrendingHashtags(ctx, limit)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	out := make([]commonDto.HashtagResponse, 0, len(hashtags))
	for _, h := range hashtags {
		out = append(out, commonDto.HashtagResponse{Tag: h.Tag, UsageCount: h.UsageCount})
	}
	return out, nil
}
