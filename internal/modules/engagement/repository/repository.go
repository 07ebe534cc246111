package repository

import (
	"context"
	"strings"

	"anoa.com/threadfeed/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeRemoved Outcome = "removed"
	OutcomeChanged Outcome = "changed"
)

// CallerState is what one user has done to one thread.
type CallerState struct {
	Liked      bool
	Reposted   bool
	Bookmarked bool
	Reaction   *entity.ReactionKind
}

// EngagementRepository applies every toggle as one transaction: the
// association row change and the counter delta commit together, and the
// (thread, user) primary key is the only duplicate guard.
type EngagementRepository interface {
	ToggleLike(ctx context.Context, threadID, userID uuid.UUID) (bool, error)
	ToggleBookmark(ctx context.Context, threadID, userID uuid.UUID) (bool, error)
	ToggleRepost(ctx context.Context, threadID, userID uuid.UUID, quoteText *string) (bool, error)
	// UpsertQuoteRepost returns true when the repost record is new.
	UpsertQuoteRepost(ctx context.Context, threadID, userID uuid.UUID, quoteText string) (bool, error)
	SetReaction(ctx context.Context, threadID, userID uuid.UUID, kind entity.ReactionKind) (Outcome, error)

	CallerState(ctx context.Context, threadIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]CallerState, error)
	ReactionCounts(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID]map[entity.ReactionKind]int64, error)
}

type engagementRepository struct {
	db *gorm.DB
}

func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func (r *engagementRepository) ToggleLike(ctx context.Context, threadID, userID uuid.UUID) (bool, error) {
	return r.toggle(ctx, threadID, userID, "likes_count",
		&entity.ThreadLike{}, &entity.ThreadLike{ThreadID: threadID, UserID: userID})
}

func (r *engagementRepository) ToggleBookmark(ctx context.Context, threadID, userID uuid.UUID) (bool, error) {
	return r.toggle(ctx, threadID, userID, "bookmarks_count",
		&entity.ThreadBookmark{}, &entity.ThreadBookmark{ThreadID: threadID, UserID: userID})
}

func (r *engagementRepository) ToggleRepost(ctx context.Context, threadID, userID uuid.UUID, quoteText *string) (bool, error) {
	repost := &entity.ThreadRepost{ThreadID: threadID, UserID: userID, Kind: entity.RepostPlain}
	if quoteText != nil && strings.TrimSpace(*quoteText) != "" {
		repost.Kind = entity.RepostQuote
		repost.QuoteText = quoteText
	}
	return r.toggle(ctx, threadID, userID, "reposts_count", &entity.ThreadRepost{}, repost)
}

// toggle deletes the row if present, otherwise inserts it. Both statements
// are single-row atomic, so concurrent callers can never move the counter
// without a matching row change.
func (r *engagementRepository) toggle(ctx context.Context, threadID, userID uuid.UUID, counter string, model, record any) (bool, error) {
	var active bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed := tx.Where("thread_id = ? AND user_id = ?", threadID, userID).Delete(model)
		if removed.Error != nil {
			return removed.Error
		}
		if removed.RowsAffected > 0 {
			active = false
			return adjustCounter(tx, threadID, counter, -1)
		}

		added := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
		if added.Error != nil {
			return added.Error
		}
		active = true
		if added.RowsAffected == 0 {
			// a concurrent toggle by the same user inserted first
			return nil
		}
		return adjustCounter(tx, threadID, counter, 1)
	})
	return active, err
}

func (r *engagementRepository) UpsertQuoteRepost(ctx context.Context, threadID, userID uuid.UUID, quoteText string) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		added := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.ThreadRepost{
			ThreadID:  threadID,
			UserID:    userID,
			Kind:      entity.RepostQuote,
			QuoteText: &quoteText,
		})
		if added.Error != nil {
			return added.Error
		}
		if added.RowsAffected > 0 {
			created = true
			return adjustCounter(tx, threadID, "reposts_count", 1)
		}
		return tx.Model(&entity.ThreadRepost{}).
			Where("thread_id = ? AND user_id = ?", threadID, userID).
			Updates(map[string]any{"kind": entity.RepostQuote, "quote_text": quoteText}).Error
	})
	return created, err
}

func (r *engagementRepository) SetReaction(ctx context.Context, threadID, userID uuid.UUID, kind entity.ReactionKind) (Outcome, error) {
	var outcome Outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []entity.ThreadReaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("thread_id = ? AND user_id = ?", threadID, userID).
			Limit(1).
			Find(&existing).Error; err != nil {
			return err
		}

		if len(existing) == 0 {
			added := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.ThreadReaction{
				ThreadID: threadID,
				UserID:   userID,
				Kind:     kind,
			})
			if added.Error != nil {
				return added.Error
			}
			if added.RowsAffected > 0 {
				outcome = OutcomeAdded
				return nil
			}
			// lost the insert race; apply against the winner's row
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("thread_id = ? AND user_id = ?", threadID, userID).
				Limit(1).
				Find(&existing).Error; err != nil {
				return err
			}
			if len(existing) == 0 {
				return gorm.ErrRecordNotFound
			}
		}

		record := existing[0]
		if record.Kind == kind {
			outcome = OutcomeRemoved
			return tx.Where("thread_id = ? AND user_id = ?", threadID, userID).Delete(&entity.ThreadReaction{}).Error
		}
		outcome = OutcomeChanged
		return tx.Model(&entity.ThreadReaction{}).
			Where("thread_id = ? AND user_id = ?", threadID, userID).
			Update("kind", kind).Error
	})
	return outcome, err
}

func (r *engagementRepository) CallerState(ctx context.Context, threadIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]CallerState, error) {
	states := make(map[uuid.UUID]CallerState, len(threadIDs))
	if len(threadIDs) == 0 {
		return states, nil
	}
	db := r.db.WithContext(ctx)

	mark := func(model any, set func(*CallerState)) error {
		var ids []uuid.UUID
		if err := db.Model(model).
			Where("user_id = ? AND thread_id IN ?", userID, threadIDs).
			Pluck("thread_id", &ids).Error; err != nil {
			return err
		}
		for _, id := range ids {
			s := states[id]
			set(&s)
			states[id] = s
		}
		return nil
	}

	if err := mark(&entity.ThreadLike{}, func(s *CallerState) { s.Liked = true }); err != nil {
		return nil, err
	}
	if err := mark(&entity.ThreadRepost{}, func(s *CallerState) { s.Reposted = true }); err != nil {
		return nil, err
	}
	if err := mark(&entity.ThreadBookmark{}, func(s *CallerState) { s.Bookmarked = true }); err != nil {
		return nil, err
	}

	var reactions []entity.ThreadReaction
	if err := db.Where("user_id = ? AND thread_id IN ?", userID, threadIDs).Find(&reactions).Error; err != nil {
		return nil, err
	}
	for _, re := range reactions {
		s := states[re.ThreadID]
		kind := re.Kind
		s.Reaction = &kind
		states[re.ThreadID] = s
	}
	return states, nil
}

func (r *engagementRepository) ReactionCounts(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID]map[entity.ReactionKind]int64, error) {
	counts := make(map[uuid.UUID]map[entity.ReactionKind]int64, len(threadIDs))
	if len(threadIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ThreadID uuid.UUID
		Kind     entity.ReactionKind
		Count    int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.ThreadReaction{}).
		Select("thread_id, kind, count(*) as count").
		Where("thread_id IN ?", threadIDs).
		Group("thread_id, kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if counts[row.ThreadID] == nil {
			counts[row.ThreadID] = make(map[entity.ReactionKind]int64)
		}
		counts[row.ThreadID][row.Kind] = row.Count
	}
	return counts, nil
}

func adjustCounter(tx *gorm.DB, threadID uuid.UUID, column string, delta int) error {
	expr := gorm.Expr(column + " + 1")
	if delta < 0 {
		expr = gorm.Expr("GREATEST(" + column + " - 1, 0)")
	}
	return tx.Model(&entity.Thread{}).Where("id = ?", threadID).UpdateColumn(column, expr).Error
}
