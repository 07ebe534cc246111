package thread

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"anoa.com/threadfeed/internal/entity"
	annotation "anoa.com/threadfeed/internal/modules/annotation/service"
	engagementRepo "anoa.com/threadfeed/internal/modules/engagement/repository"
	engagement "anoa.com/threadfeed/internal/modules/engagement/service"
	hierarchy "anoa.com/threadfeed/internal/modules/hierarchy/service"
	visibility "anoa.com/threadfeed/internal/modules/visibility/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type pair struct{ thread, user uuid.UUID }

type followKey struct{ follower, following uuid.UUID }

// store is one in-memory world behind every repository the service touches,
// so counters, annotations and visibility stay consistent with each other.
type store struct {
	mu    sync.Mutex
	clock time.Time

	users   map[uuid.UUID]*entity.User
	follows map[followKey]bool
	threads map[uuid.UUID]*entity.Thread
	media   map[uuid.UUID][]entity.ThreadMedia

	usage    map[string]int64
	tags     map[uuid.UUID][]string
	mentions map[uuid.UUID][]entity.ThreadMention

	likes     map[pair]bool
	bookmarks map[pair]bool
	reposts   map[pair]bool
	reactions map[pair]entity.ReactionKind
}

func newStore() *store {
	return &store{
		clock:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		users:     map[uuid.UUID]*entity.User{},
		follows:   map[followKey]bool{},
		threads:   map[uuid.UUID]*entity.Thread{},
		media:     map[uuid.UUID][]entity.ThreadMedia{},
		usage:     map[string]int64{},
		tags:      map[uuid.UUID][]string{},
		mentions:  map[uuid.UUID][]entity.ThreadMention{},
		likes:     map[pair]bool{},
		bookmarks: map[pair]bool{},
		reposts:   map[pair]bool{},
		reactions: map[pair]entity.ReactionKind{},
	}
}

func (s *store) addUser(username string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &entity.User{ID: uuid.New(), Username: username, DisplayName: strings.ToUpper(username[:1]) + username[1:]}
	s.users[u.ID] = u
	return u.ID
}

func (s *store) follow(follower, following uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[followKey{follower, following}] = true
}

func (s *store) thread(id uuid.UUID) entity.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.threads[id]
}

// copyOf must be called with mu held.
func (s *store) copyOf(t *entity.Thread) *entity.Thread {
	c := *t
	if u, ok := s.users[t.AuthorID]; ok {
		c.Author = *u
	}
	return &c
}

// visible mirrors the SQL visibility scope. Must be called with mu held.
func (s *store) visible(t *entity.Thread, viewer *uuid.UUID) bool {
	if t.IsDeleted {
		return false
	}
	if t.IsPublic {
		return true
	}
	if viewer == nil {
		return false
	}
	if t.AuthorID == *viewer {
		return true
	}
	switch t.ReplyPermission {
	case entity.ReplyFollowers:
		return s.follows[followKey{*viewer, t.AuthorID}]
	case entity.ReplyFollowing:
		return s.follows[followKey{t.AuthorID, *viewer}]
	case entity.ReplyMentionedOnly:
		for _, m := range s.mentions[t.ID] {
			if m.UserID == *viewer {
				return true
			}
		}
	}
	return false
}

func (s *store) filter(viewer *uuid.UUID, keep func(*entity.Thread) bool) []*entity.Thread {
	var out []*entity.Thread
	for _, t := range s.threads {
		if s.visible(t, viewer) && keep(t) {
			out = append(out, s.copyOf(t))
		}
	}
	return out
}

func newestFirst(threads []*entity.Thread) {
	sort.Slice(threads, func(i, j int) bool { return threads[i].CreatedAt.After(threads[j].CreatedAt) })
}

func window(threads []*entity.Thread, offset, limit int) ([]*entity.Thread, int64) {
	total := int64(len(threads))
	if offset >= len(threads) {
		return nil, total
	}
	end := offset + limit
	if end > len(threads) {
		end = len(threads)
	}
	return threads[offset:end], total
}

// Thread repository.

func (s *store) Create(_ context.Context, t *entity.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.clock = s.clock.Add(time.Second)
	t.CreatedAt, t.UpdatedAt = s.clock, s.clock
	c := *t
	s.threads[t.ID] = &c
	if t.ParentID != nil {
		s.threads[*t.ParentID].RepliesCount++
	}
	return nil
}

func (s *store) FindByID(_ context.Context, id uuid.UUID) (*entity.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.copyOf(t), nil
}

func (s *store) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Thread
	for _, id := range ids {
		if t, ok := s.threads[id]; ok {
			out = append(out, s.copyOf(t))
		}
	}
	return out, nil
}

func (s *store) FindTopLevel(_ context.Context, viewer *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(viewer, func(t *entity.Thread) bool { return t.ParentID == nil })
	newestFirst(out)
	page, total := window(out, offset, limit)
	return page, total, nil
}

func (s *store) FindReplies(_ context.Context, parentID uuid.UUID, viewer *uuid.UUID) ([]*entity.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(viewer, func(t *entity.Thread) bool { return t.ParentID != nil && *t.ParentID == parentID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *store) FindDescendants(_ context.Context, prefix string, viewer *uuid.UUID) ([]*entity.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(viewer, func(t *entity.Thread) bool {
		return t.Path == prefix || strings.HasPrefix(t.Path, prefix+entity.PathSeparator)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *store) FindByAuthor(_ context.Context, authorID uuid.UUID, viewer *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(viewer, func(t *entity.Thread) bool { return t.AuthorID == authorID })
	newestFirst(out)
	page, total := window(out, offset, limit)
	return page, total, nil
}

func (s *store) FindByHashtag(_ context.Context, tag string, viewer *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(viewer, func(t *entity.Thread) bool {
		for _, have := range s.tags[t.ID] {
			if have == tag {
				return true
			}
		}
		return false
	})
	newestFirst(out)
	page, total := window(out, offset, limit)
	return page, total, nil
}

func (s *store) FindByIDsVisible(_ context.Context, ids []uuid.UUID, viewer *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rank := map[uuid.UUID]int{}
	for i, id := range ids {
		rank[id] = i
	}
	out := s.filter(viewer, func(t *entity.Thread) bool {
		_, ok := rank[t.ID]
		return ok
	})
	sort.Slice(out, func(i, j int) bool { return rank[out[i].ID] < rank[out[j].ID] })
	page, total := window(out, offset, limit)
	return page, total, nil
}

func (s *store) Search(_ context.Context, keyword string, viewer *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keyword = strings.ToLower(keyword)
	out := s.filter(viewer, func(t *entity.Thread) bool { return strings.Contains(strings.ToLower(t.Content), keyword) })
	newestFirst(out)
	page, total := window(out, offset, limit)
	return page, total, nil
}

func (s *store) GetTrending(_ context.Context, since time.Time, viewer *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(viewer, func(t *entity.Thread) bool { return t.ParentID == nil && !t.CreatedAt.Before(since) })
	score := func(t *entity.Thread) int64 { return t.LikesCount + 2*t.RepostsCount + t.RepliesCount }
	sort.Slice(out, func(i, j int) bool { return score(out[i]) > score(out[j]) })
	page, total := window(out, offset, limit)
	return page, total, nil
}

func (s *store) UpdateContent(_ context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threads[id]
	t.Content = content
	t.IsEdited = true
	t.EditedAt = &editedAt
	return nil
}

func (s *store) SoftDelete(_ context.Context, thread *entity.Thread) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.threads[thread.ID]
	if t.IsDeleted {
		return false, nil
	}
	t.IsDeleted = true
	if t.ParentID != nil {
		if p := s.threads[*t.ParentID]; p.RepliesCount > 0 {
			p.RepliesCount--
		}
	}
	return true, nil
}

func (s *store) IncrementViews(_ context.Context, id uuid.UUID, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[id].ViewsCount += n
	return nil
}

// Media repository.

func (s *store) Attach(_ context.Context, threadID uuid.UUID, media []entity.ThreadMedia) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := len(s.media[threadID])
	for _, m := range media {
		m.ThreadID = threadID
		m.Position = next
		next++
		s.media[threadID] = append(s.media[threadID], m)
	}
	return nil
}

func (s *store) FindByThreadIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]entity.ThreadMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID][]entity.ThreadMedia{}
	for _, id := range ids {
		if m := s.media[id]; len(m) > 0 {
			out[id] = m
		}
	}
	return out, nil
}

// Annotation repository.

func (s *store) AttachHashtags(_ context.Context, threadID uuid.UUID, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		if contains(s.tags[threadID], tag) {
			continue
		}
		s.tags[threadID] = append(s.tags[threadID], tag)
		s.usage[tag]++
	}
	return nil
}

func (s *store) DetachHashtags(_ context.Context, threadID uuid.UUID, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range tags {
		if !contains(s.tags[threadID], tag) {
			continue
		}
		kept := s.tags[threadID][:0]
		for _, have := range s.tags[threadID] {
			if have != tag {
				kept = append(kept, have)
			}
		}
		s.tags[threadID] = kept
		if s.usage[tag] > 0 {
			s.usage[tag]--
		}
	}
	return nil
}

func (s *store) FindHashtagsByThreadIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID][]string{}
	for _, id := range ids {
		if tags := s.tags[id]; len(tags) > 0 {
			out[id] = append([]string(nil), tags...)
		}
	}
	return out, nil
}

func (s *store) TrendingHashtags(_ context.Context, limit int) ([]entity.Hashtag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Hashtag
	for tag, n := range s.usage {
		if n > 0 {
			out = append(out, entity.Hashtag{Tag: tag, UsageCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *store) AddMentions(_ context.Context, mentions []entity.ThreadMention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range mentions {
		s.mentions[m.ThreadID] = append(s.mentions[m.ThreadID], m)
	}
	return nil
}

func (s *store) ReplaceMentions(_ context.Context, threadID uuid.UUID, mentions []entity.ThreadMention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mentions[threadID] = append([]entity.ThreadMention(nil), mentions...)
	return nil
}

func (s *store) FindMentionedUserIDs(_ context.Context, threadID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, m := range s.mentions[threadID] {
		out = append(out, m.UserID)
	}
	return out, nil
}

func (s *store) FindMentionsByThreadIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID][]string{}
	for _, id := range ids {
		for _, m := range s.mentions[id] {
			name := s.users[m.UserID].Username
			if !contains(out[id], name) {
				out[id] = append(out[id], name)
			}
		}
	}
	return out, nil
}

func (s *store) IsMentioned(_ context.Context, threadID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.mentions[threadID] {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Engagement repository.

func (s *store) flip(set map[pair]bool, k pair, counter func(*entity.Thread) *int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := counter(s.threads[k.thread])
	if set[k] {
		delete(set, k)
		if *c > 0 {
			*c--
		}
		return false
	}
	set[k] = true
	*c++
	return true
}

func (s *store) ToggleLike(_ context.Context, threadID, userID uuid.UUID) (bool, error) {
	return s.flip(s.likes, pair{threadID, userID}, func(t *entity.Thread) *int64 { return &t.LikesCount }), nil
}

func (s *store) ToggleBookmark(_ context.Context, threadID, userID uuid.UUID) (bool, error) {
	return s.flip(s.bookmarks, pair{threadID, userID}, func(t *entity.Thread) *int64 { return &t.BookmarksCount }), nil
}

func (s *store) ToggleRepost(_ context.Context, threadID, userID uuid.UUID, _ *string) (bool, error) {
	return s.flip(s.reposts, pair{threadID, userID}, func(t *entity.Thread) *int64 { return &t.RepostsCount }), nil
}

func (s *store) UpsertQuoteRepost(_ context.Context, threadID, userID uuid.UUID, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{threadID, userID}
	if s.reposts[k] {
		return false, nil
	}
	s.reposts[k] = true
	s.threads[threadID].RepostsCount++
	return true, nil
}

func (s *store) SetReaction(_ context.Context, threadID, userID uuid.UUID, kind entity.ReactionKind) (engagementRepo.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pair{threadID, userID}
	prev, ok := s.reactions[k]
	switch {
	case !ok:
		s.reactions[k] = kind
		return engagementRepo.OutcomeAdded, nil
	case prev == kind:
		delete(s.reactions, k)
		return engagementRepo.OutcomeRemoved, nil
	default:
		s.reactions[k] = kind
		return engagementRepo.OutcomeChanged, nil
	}
}

func (s *store) CallerState(_ context.Context, ids []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]engagementRepo.CallerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID]engagementRepo.CallerState{}
	for _, id := range ids {
		k := pair{id, userID}
		st := engagementRepo.CallerState{Liked: s.likes[k], Reposted: s.reposts[k], Bookmarked: s.bookmarks[k]}
		if r, ok := s.reactions[k]; ok {
			st.Reaction = &r
		}
		out[id] = st
	}
	return out, nil
}

func (s *store) ReactionCounts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]map[entity.ReactionKind]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[uuid.UUID]map[entity.ReactionKind]int64{}
	for k, kind := range s.reactions {
		if !want[k.thread] {
			continue
		}
		if out[k.thread] == nil {
			out[k.thread] = map[entity.ReactionKind]int64{}
		}
		out[k.thread][kind]++
	}
	return out, nil
}

// Users.

func (s *store) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok, nil
}

func (s *store) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			c := *u
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *store) ResolveUsernames(_ context.Context, usernames []string) (map[string]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]uuid.UUID{}
	for _, name := range usernames {
		for _, u := range s.users {
			if strings.EqualFold(u.Username, name) {
				out[strings.ToLower(name)] = u.ID
			}
		}
	}
	return out, nil
}

func (s *store) Follows(_ context.Context, follower, following uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.follows[followKey{follower, following}], nil
}

func contains(list []string, v string) bool {
	for _, have := range list {
		if have == v {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []entity.EngagementEvent
}

func (n *recordingNotifier) Notify(_ context.Context, e entity.EngagementEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) kinds() []entity.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []entity.EventKind
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

type countingViews struct {
	mu    sync.Mutex
	views map[uuid.UUID]int
}

func (v *countingViews) RecordView(_ context.Context, id uuid.UUID, _ *uuid.UUID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.views == nil {
		v.views = map[uuid.UUID]int{}
	}
	v.views[id]++
	return nil
}

// recordingIndex stands in for meilisearch. With candidates nil keyword
// search falls back to the store.
type recordingIndex struct {
	mu         sync.Mutex
	indexed    []entity.Thread
	candidates []uuid.UUID
}

func (r *recordingIndex) Enabled() bool { return r.candidates != nil }

func (r *recordingIndex) IndexThread(thread *entity.Thread, _ []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, *thread)
}

func (r *recordingIndex) DeleteThread(uuid.UUID) {}

func (r *recordingIndex) CandidateIDs(string) ([]uuid.UUID, bool) {
	return r.candidates, r.candidates != nil
}

func (r *recordingIndex) last() entity.Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexed[len(r.indexed)-1]
}

type fixture struct {
	svc      Service
	store    *store
	notifier *recordingNotifier
	views    *countingViews
	index    *recordingIndex
}

func newFixture(rdb *redis.Client, opts Options) *fixture {
	st := newStore()
	n := &recordingNotifier{}
	v := &countingViews{}
	idx := &recordingIndex{}
	svc := NewService(Dependencies{
		Threads:   st,
		Media:     st,
		Users:     st,
		Hierarchy: hierarchy.NewBuilder(st),
		Annotator: annotation.NewService(st, st),
		Ledger:    engagement.NewLedger(st),
		Guard:     visibility.NewGuard(st, st),
		Notifier:  n,
		Views:     v,
		Search:    idx,
		Redis:     rdb,
		Options:   opts,
	})
	svc.(*service).now = func() time.Time {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.clock
	}
	return &fixture{svc: svc, store: st, notifier: n, views: v, index: idx}
}
