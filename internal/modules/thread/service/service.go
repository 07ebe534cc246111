package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/threadfeed/internal/entity"
	annotation "anoa.com/threadfeed/internal/modules/annotation/service"
	engagementDto "anoa.com/threadfeed/internal/modules/engagement/dto"
	engagement "anoa.com/threadfeed/internal/modules/engagement/service"
	hierarchy "anoa.com/threadfeed/internal/modules/hierarchy/service"
	mediaRepo "anoa.com/threadfeed/internal/modules/media/repository"
	search "anoa.com/threadfeed/internal/modules/search/service"
	threadDto "anoa.com/threadfeed/internal/modules/thread/dto"
	repo "anoa.com/threadfeed/internal/modules/thread/repository"
	visibility "anoa.com/threadfeed/internal/modules/visibility/service"
	"anoa.com/threadfeed/pkg/apperror"
	commonDto "anoa.com/threadfeed/pkg/dto"
	"anoa.com/threadfeed/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Service interface {
	CreateThread(ctx context.Context, authorID uuid.UUID, req threadDto.CreateThreadRequest) (*commonDto.ThreadResponse, error)
	CreateQuoteRepost(ctx context.Context, authorID, quotedID uuid.UUID, req threadDto.CreateQuoteRequest) (*commonDto.ThreadResponse, error)
	GetThread(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) (*commonDto.ThreadResponse, error)
	EditThread(ctx context.Context, id, callerID uuid.UUID, content string) (*commonDto.ThreadResponse, error)
	DeleteThread(ctx context.Context, id, callerID uuid.UUID) (bool, error)

	ListTopThreads(ctx context.Context, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error)
	ListReplies(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) ([]commonDto.ThreadResponse, error)
	ListConversation(ctx context.Context, id uuid.UUID, callerID *uuid.UUID) ([]commonDto.ThreadResponse, error)
	ListByAuthor(ctx context.Context, username string, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error)
	SearchThreads(ctx context.Context, query string, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error)
	ThreadsByHashtag(ctx context.Context, tag string, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error)
	TrendingThreads(ctx context.Context, callerID *uuid.UUID, page, limit int) (*commonDto.PaginatedThreadResponse, error)
	TrendingHashtags(ctx context.Context, limit int) ([]commonDto.HashtagResponse, error)

	ToggleLike(ctx context.Context, id, callerID uuid.UUID) (*engagementDto.ToggleResponse, error)
	ToggleRepost(ctx context.Context, id, callerID uuid.UUID, quoteText *string) (*engagementDto.ToggleResponse, error)
	ToggleBookmark(ctx context.Context, id, callerID uuid.UUID) (*engagementDto.ToggleResponse, error)
	SetReaction(ctx context.Context, id, callerID uuid.UUID, kind string) (*engagementDto.ToggleResponse, error)
}

type UserDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, event entity.EngagementEvent) error
}

type ViewRecorder interface {
	RecordView(ctx context.Context, threadID uuid.UUID, viewerID *uuid.UUID) error
}

type Options struct {
	RateLimitGlobal time.Duration
	RateLimitThread time.Duration
	RateLimitReply  time.Duration
	TrendingWindow  time.Duration
	MaxPageSize     int
}

// Dependencies wires the store. Notifier, Views and Redis may be nil.
type Dependencies struct {
	Threads   repo.Repository
	Media     mediaRepo.MediaRepository
	Users     UserDirectory
	Hierarchy hierarchy.Builder
	Annotator annotation.Service
	Ledger    engagement.Ledger
	Guard     visibility.Guard
	Search    search.SearchService
	Notifier  Notifier
	Views     ViewRecorder
	Redis     *redis.Client
	Options   Options
}

type service struct {
	threadRepo repo.Repository
	mediaRepo  mediaRepo.MediaRepository
	users      UserDirectory
	hierarchy  hierarchy.Builder
	annotator  annotation.Service
	ledger     engagement.Ledger
	guard      visibility.Guard
	search     search.SearchService
	notifier   Notifier
	views      ViewRecorder
	redis      *redis.Client
	opts       Options
	log        zerolog.Logger
	now        func() time.Time
}

func NewService(deps Dependencies) Service {
	opts := deps.Options
	if opts.MaxPageSize < 1 {
		opts.MaxPageSize = 50
	}
	if opts.TrendingWindow <= 0 {
		opts.TrendingWindow = 24 * time.Hour
	}
	if deps.Search == nil {
		deps.Search = search.NewSearchService(nil)
	}
	return &service{
		threadRepo: deps.Threads,
		mediaRepo:  deps.Media,
		users:      deps.Users,
		hierarchy:  deps.Hierarchy,
		annotator:  deps.Annotator,
		ledger:     deps.Ledger,
		guard:      deps.Guard,
		search:     deps.Search,
		notifier:   deps.Notifier,
		views:      deps.Views,
		redis:      deps.Redis,
		opts:       opts,
		log:        logger.Module("thread"),
		now:        time.Now,
	}
}

func (s *service) CreateThread(ctx context.Context, authorID uuid.UUID, req threadDto.CreateThreadRequest) (*commonDto.ThreadResponse, error) {
	content, err := validContent(req.Content)
	if err != nil {
		return nil, err
	}
	perm, err := entity.ParseReplyPermission(req.ReplyPermission)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), apperror.ErrInvalidInput)
	}
	media, err := toMedia(req.Media)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, authorID); err != nil {
		return nil, err
	}

	placement, parent, err := s.hierarchy.Place(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.guard.CanReply(ctx, parent, authorID); err != nil {
			return nil, err
		}
	}

	cleanup, err := s.checkCreateRateLimit(ctx, authorID, parent != nil)
	if err != nil {
		return nil, err
	}

	thread := &entity.Thread{
		AuthorID:        authorID,
		Content:         content,
		Kind:            entity.ThreadKindOriginal,
		ReplyPermission: perm,
		IsPublic:        perm.IsPublic(),
	}
	if parent != nil {
		thread.Kind = entity.ThreadKindReply
	}
	placement.Apply(thread, req.ParentID)

	if err := s.threadRepo.Create(ctx, thread); err != nil {
		cleanup()
		return nil, apperror.Internal(err)
	}

	tags := s.decorate(ctx, thread, media)
	if parent != nil {
		s.notify(ctx, entity.EngagementEvent{Kind: entity.EventReply, ThreadID: parent.ID, ActorID: authorID, OwnerID: parent.AuthorID})
	}
	s.index(ctx, thread, tags)

	return s.renderOne(ctx, thread.ID, &authorID)
}

func (s *service) CreateQuoteRepost(ctx context.Context, authorID, quotedID uuid.UUID, req threadDto.CreateQuoteRequest) (*commonDto.ThreadResponse, error) {
	content, err := validContent(req.Content)
	if err != nil {
		return nil, err
	}
	media, err := toMedia(req.Media)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, authorID); err != nil {
		return nil, err
	}

	quoted, err := s.findThread(ctx, quotedID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanRead(ctx, quoted, &authorID); err != nil {
		return nil, err
	}

	cleanup, err := s.checkCreateRateLimit(ctx, authorID, false)
	if err != nil {
		return nil, err
	}

	thread := &entity.Thread{
		AuthorID:        authorID,
		Content:         content,
		Kind:            entity.ThreadKindQuote,
		QuotedThreadID:  &quoted.ID,
		QuoteCaption:    &content,
		ReplyPermission: entity.ReplyAnyone,
		IsPublic:        true,
	}
	s.hierarchy.PlaceQuote().Apply(thread, nil)

	if err := s.threadRepo.Create(ctx, thread); err != nil {
		cleanup()
		return nil, apperror.Internal(err)
	}

	res, err := s.ledger.RecordQuote(ctx, quoted, authorID, content)
	if err != nil {
		s.log.Error().Err(err).Str("thread_id", thread.ID.String()).Msg("record quote repost")
	} else if res.Event != nil {
		s.notify(ctx, *res.Event)
	}

	tags := s.decorate(ctx, thread, media)
	s.index(ctx, thread, tags)

	return s.renderOne(ctx, thread.ID, &authorID)
}

func (s *service) EditThread(ctx context.Context, id, callerID uuid.UUID, content string) (*commonDto.ThreadResponse, error) {
	content, err := validContent(content)
	if err != nil {
		return nil, err
	}

	thread, err := s.findThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if thread.AuthorID != callerID {
		return nil, fmt.Errorf("only the author can edit this thread: %w", apperror.ErrForbidden)
	}

	editedAt := s.now()
	if err := s.threadRepo.UpdateContent(ctx, id, content, editedAt); err != nil {
		return nil, apperror.Internal(err)
	}
	thread.Content = content
	thread.IsEdited = true
	thread.EditedAt = &editedAt

	res, err := s.annotator.Reannotate(ctx, thread)
	if err != nil {
		s.log.Warn().Err(err).Str("thread_id", id.String()).Msg("re-annotate edited thread")
	}
	var tags []string
	if res != nil {
		tags = res.Hashtags
		s.notifyMentions(ctx, thread, res.Mentioned)
	}
	s.index(ctx, thread, tags)

	return s.renderOne(ctx, id, &callerID)
}

func (s *service) DeleteThread(ctx context.Context, id, callerID uuid.UUID) (bool, error) {
	thread, err := s.findThread(ctx, id)
	if err != nil {
		return false, err
	}
	if thread.AuthorID != callerID {
		return false, fmt.Errorf("only the author can delete this thread: %w", apperror.ErrForbidden)
	}

	deleted, err := s.threadRepo.SoftDelete(ctx, thread)
	if err != nil {
		return false, apperror.Internal(err)
	}
	if !deleted {
		return false, fmt.Errorf("thread not found: %w", apperror.ErrNotFound)
	}

	s.search.DeleteThread(id)
	return true, nil
}

// findThread hides soft-deleted threads behind ErrNotFound.
func (s *service) findThread(ctx context.Context, id uuid.UUID) (*entity.Thread, error) {
	thread, err := s.threadRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("thread not found: %w", apperror.ErrNotFound)
		}
		return nil, apperror.Internal(err)
	}
	if thread.IsDeleted {
		return nil, fmt.Errorf("thread not found: %w", apperror.ErrNotFound)
	}
	return thread, nil
}

func (s *service) ensureUser(ctx context.Context, id uuid.UUID) error {
	ok, err := s.users.UserExists(ctx, id)
	if err != nil {
		return apperror.Internal(err)
	}
	if !ok {
		return fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}
	return nil
}

func validContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("content is required: %w", apperror.ErrInvalidInput)
	}
	return content, nil
}

func toMedia(reqs []threadDto.MediaRequest) ([]entity.ThreadMedia, error) {
	media := make([]entity.ThreadMedia, 0, len(reqs))
	for _, m := range reqs {
		kind, err := entity.ParseMediaType(m.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), apperror.ErrInvalidInput)
		}
		if strings.TrimSpace(m.URL) == "" {
			return nil, fmt.Errorf("media url is required: %w", apperror.ErrInvalidInput)
		}
		media = append(media, entity.ThreadMedia{Type: kind, URL: m.URL, Width: m.Width, Height: m.Height})
	}
	return media, nil
}
