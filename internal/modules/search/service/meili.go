package search

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync/atomic"
	"time"

	"anoa.com/threadfeed/internal/entity"
	"anoa.com/threadfeed/pkg/logger"
	"github.com/google/uuid"
	meili "github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const idxThreads = "threads"

type threadDoc struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Author    string   `json:"author"`
	Hashtags  []string `json:"hashtags"`
	Kind      string   `json:"kind"`
	IsPublic  bool     `json:"is_public"`
	CreatedAt int64    `json:"created_at"`
}

// Meili indexes thread text. Visibility is never decided from the index.
type Meili struct {
	client    meili.ServiceManager
	sanitizer *bluemonday.Policy
	healthy   atomic.Bool
	done      chan struct{}
}

// NewMeili returns nil when host is empty.
func NewMeili(host, apiKey string) *Meili {
	if host == "" {
		return nil
	}
	m := &Meili{
		client:    meili.New(host, meili.WithAPIKey(apiKey)),
		sanitizer: bluemonday.StrictPolicy(),
		done:      make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn().Err(err).Str("host", host).Msg("meilisearch unavailable, using SQL search")
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxThreads, PrimaryKey: "id"}); err != nil {
		logger.Debug().Err(err).Msg("create threads index (may already exist)")
	}

	index := m.client.Index(idxThreads)
	filterable := []interface{}{"is_public", "kind", "hashtags"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		logger.Warn().Err(err).Msg("update threads filterable attributes")
	}
	sortable := []string{"created_at"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		logger.Warn().Err(err).Msg("update threads sortable attributes")
	}
	searchable := []string{"content", "author", "hashtags"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		logger.Warn().Err(err).Msg("update threads searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				logger.Info().Msg("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the health loop. Safe on a nil client.
func (m *Meili) Close() {
	if m == nil {
		return
	}
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m != nil && m.healthy.Load()
}

func (m *Meili) IndexThread(thread *entity.Thread, hashtags []string) error {
	doc := threadDoc{
		ID:        thread.ID.String(),
		Content:   CleanContent(m.sanitizer, thread.Content),
		Author:    thread.Author.Username,
		Hashtags:  hashtags,
		Kind:      string(thread.Kind),
		IsPublic:  thread.IsPublic,
		CreatedAt: thread.CreatedAt.Unix(),
	}
	_, err := m.client.Index(idxThreads).AddDocuments([]threadDoc{doc}, nil)
	return err
}

func (m *Meili) DeleteThread(id uuid.UUID) error {
	_, err := m.client.Index(idxThreads).DeleteDocument(id.String(), nil)
	return err
}

// SearchIDs returns candidate thread ids in relevance order.
func (m *Meili) SearchIDs(query string, limit int64) ([]uuid.UUID, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.Index(idxThreads).Search(query, &meili.SearchRequest{
		Limit:                limit,
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, ok := hit["id"]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// CleanContent strips markup and collapses whitespace.
func CleanContent(policy *bluemonday.Policy, content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")
	content = strings.ReplaceAll(content, "</div>", " ")

	clean := html.UnescapeString(policy.Sanitize(content))
	return strings.Join(strings.Fields(clean), " ")
}
