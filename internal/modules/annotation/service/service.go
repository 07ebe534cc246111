package annotation

import (
	"context"
	"fmt"
	"strings"

	"anoa.com/threadfeed/internal/entity"
	annotationRepo "anoa.com/threadfeed/internal/modules/annotation/repository"
	"github.com/google/uuid"
)

type UsernameResolver interface {
	ResolveUsernames(ctx context.Context, usernames []string) (map[string]uuid.UUID, error)
}

// Result lists the users mentioned for the first time by this pass.
type Result struct {
	Hashtags  []string
	Mentioned []uuid.UUID
}

type Service interface {
	// Annotate runs once after the thread row exists.
	Annotate(ctx context.Context, thread *entity.Thread) (*Result, error)
	// Reannotate brings associations in line with edited content. The
	// mention set of a MENTIONED_ONLY thread is never touched.
	Reannotate(ctx context.Context, thread *entity.Thread) (*Result, error)
	TrendingHashtags(ctx context.Context, limit int) ([]entity.Hashtag, error)
	// Labels returns hashtags and mentioned usernames keyed by thread.
	Labels(ctx context.Context, threadIDs []uuid.UUID) (hashtags, mentions map[uuid.UUID][]string, err error)
}

type service struct {
	repo  annotationRepo.AnnotationRepository
	users UsernameResolver
}

func NewService(repo annotationRepo.AnnotationRepository, users UsernameResolver) Service {
	return &service{repo: repo, users: users}
}

func (s *service) Annotate(ctx context.Context, thread *entity.Thread) (*Result, error) {
	tags := ExtractHashtags(thread.Content)
	if err := s.repo.AttachHashtags(ctx, thread.ID, tags); err != nil {
		return nil, fmt.Errorf("attach hashtags: %w", err)
	}

	mentions, err := s.resolveMentions(ctx, thread)
	if err != nil {
		return &Result{Hashtags: tags}, err
	}
	if err := s.repo.AddMentions(ctx, mentions); err != nil {
		return &Result{Hashtags: tags}, fmt.Errorf("add mentions: %w", err)
	}

	return &Result{Hashtags: tags, Mentioned: mentionedUsers(mentions, nil)}, nil
}

func (s *service) Reannotate(ctx context.Context, thread *entity.Thread) (*Result, error) {
	tags := ExtractHashtags(thread.Content)

	existing, err := s.repo.FindHashtagsByThreadIDs(ctx, []uuid.UUID{thread.ID})
	if err != nil {
		return nil, fmt.Errorf("load hashtags: %w", err)
	}
	if err := s.repo.AttachHashtags(ctx, thread.ID, tags); err != nil {
		return nil, fmt.Errorf("attach hashtags: %w", err)
	}
	if err := s.repo.DetachHashtags(ctx, thread.ID, missingFrom(existing[thread.ID], tags)); err != nil {
		return nil, fmt.Errorf("detach hashtags: %w", err)
	}

	// Mentions are the read list of a MENTIONED_ONLY thread, so they stay
	// as created.
	if thread.ReplyPermission == entity.ReplyMentionedOnly {
		return &Result{Hashtags: tags}, nil
	}

	before, err := s.repo.FindMentionedUserIDs(ctx, thread.ID)
	if err != nil {
		return &Result{Hashtags: tags}, fmt.Errorf("load mentions: %w", err)
	}
	mentions, err := s.resolveMentions(ctx, thread)
	if err != nil {
		return &Result{Hashtags: tags}, err
	}
	if err := s.repo.ReplaceMentions(ctx, thread.ID, mentions); err != nil {
		return &Result{Hashtags: tags}, fmt.Errorf("replace mentions: %w", err)
	}

	return &Result{Hashtags: tags, Mentioned: mentionedUsers(mentions, before)}, nil
}

func (s *service) TrendingHashtags(ctx context.Context, limit int) ([]entity.Hashtag, error) {
	return s.repo.TrendingHashtags(ctx, limit)
}

func (s *service) Labels(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID][]string, map[uuid.UUID][]string, error) {
	hashtags, err := s.repo.FindHashtagsByThreadIDs(ctx, threadIDs)
	if err != nil {
		return nil, nil, err
	}
	mentions, err := s.repo.FindMentionsByThreadIDs(ctx, threadIDs)
	if err != nil {
		return nil, nil, err
	}
	return hashtags, mentions, nil
}

// resolveMentions drops spans whose username is unknown.
func (s *service) resolveMentions(ctx context.Context, thread *entity.Thread) ([]entity.ThreadMention, error) {
	spans := ExtractMentions(thread.Content)
	if len(spans) == 0 {
		return nil, nil
	}

	ids, err := s.users.ResolveUsernames(ctx, distinctUsernames(spans))
	if err != nil {
		return nil, fmt.Errorf("resolve usernames: %w", err)
	}

	mentions := make([]entity.ThreadMention, 0, len(spans))
	for _, span := range spans {
		userID, ok := ids[strings.ToLower(span.Username)]
		if !ok {
			continue
		}
		mentions = append(mentions, entity.ThreadMention{
			ThreadID:    thread.ID,
			UserID:      userID,
			StartOffset: span.Start,
			EndOffset:   span.End,
		})
	}
	return mentions, nil
}

func mentionedUsers(mentions []entity.ThreadMention, already []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(already)+len(mentions))
	for _, id := range already {
		seen[id] = struct{}{}
	}
	var out []uuid.UUID
	for _, m := range mentions {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m.UserID)
	}
	return out
}

func missingFrom(old, current []string) []string {
	keep := make(map[string]struct{}, len(current))
	for _, t := range current {
		keep[t] = struct{}{}
	}
	var gone []string
	for _, t := range old {
		if _, ok := keep[t]; !ok {
			gone = append(gone, t)
		}
	}
	return gone
}
