package search

import (
	"anoa.com/threadfeed/internal/entity"
	"anoa.com/threadfeed/pkg/logger"
	"github.com/google/uuid"
)

// MaxCandidates caps how many ids one keyword search pulls from the index
// before visibility filtering and paging happen in SQL.
const MaxCandidates = 1000

type SearchService interface {
	// Enabled reports whether keyword search is served by the index.
	Enabled() bool
	IndexThread(thread *entity.Thread, hashtags []string)
	DeleteThread(id uuid.UUID)
	// CandidateIDs returns ok=false when the caller should fall back to SQL.
	CandidateIDs(query string) (ids []uuid.UUID, ok bool)
}

type searchService struct {
	meili *Meili
}

// NewSearchService accepts a nil Meili; every call then degrades to a no-op.
func NewSearchService(meili *Meili) SearchService {
	return &searchService{meili: meili}
}

func (s *searchService) Enabled() bool {
	return s.meili != nil && s.meili.Healthy()
}

func (s *searchService) IndexThread(thread *entity.Thread, hashtags []string) {
	if !s.Enabled() {
		return
	}
	t := *thread
	go func() {
		if err := s.meili.IndexThread(&t, hashtags); err != nil {
			logger.Warn().Err(err).Str("thread_id", t.ID.String()).Msg("index thread")
		}
	}()
}

func (s *searchService) DeleteThread(id uuid.UUID) {
	if !s.Enabled() {
		return
	}
	go func() {
		if err := s.meili.DeleteThread(id); err != nil {
			logger.Warn().Err(err).Str("thread_id", id.String()).Msg("delete thread from index")
		}
	}()
}

func (s *searchService) CandidateIDs(query string) ([]uuid.UUID, bool) {
	if !s.Enabled() {
		return nil, false
	}
	ids, err := s.meili.SearchIDs(query, MaxCandidates)
	if err != nil {
		logger.Warn().Err(err).Msg("meilisearch error, falling back to SQL search")
		return nil, false
	}
	return ids, true
}
