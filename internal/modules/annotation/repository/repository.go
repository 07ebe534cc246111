package repository

import (
	"context"

	"anoa.com/threadfeed/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnnotationRepository interface {
	// AttachHashtags links tags to a thread. A tag's usage counter moves only
	// when its association with the thread is new.
	AttachHashtags(ctx context.Context, threadID uuid.UUID, tags []string) error
	DetachHashtags(ctx context.Context, threadID uuid.UUID, tags []string) error
	FindHashtagsByThreadIDs(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID][]string, error)
	TrendingHashtags(ctx context.Context, limit int) ([]entity.Hashtag, error)

	AddMentions(ctx context.Context, mentions []entity.ThreadMention) error
	ReplaceMentions(ctx context.Context, threadID uuid.UUID, mentions []entity.ThreadMention) error
	FindMentionedUserIDs(ctx context.Context, threadID uuid.UUID) ([]uuid.UUID, error)
	FindMentionsByThreadIDs(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID][]string, error)
	IsMentioned(ctx context.Context, threadID, userID uuid.UUID) (bool, error)
}

type annotationRepository struct {
	db *gorm.DB
}

func NewAnnotationRepository(db *gorm.DB) AnnotationRepository {
	return &annotationRepository{db: db}
}

func (r *annotationRepository) AttachHashtags(ctx context.Context, threadID uuid.UUID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, tag := range tags {
			hashtag := entity.Hashtag{Tag: tag}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tag"}},
				DoNothing: true,
			}).Create(&hashtag).Error; err != nil {
				return err
			}
			if hashtag.ID == 0 {
				if err := tx.Where("tag = ?", tag).First(&hashtag).Error; err != nil {
					return err
				}
			}

			link := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Omit(clause.Associations).
				Create(&entity.ThreadHashtag{ThreadID: threadID, HashtagID: hashtag.ID})
			if link.Error != nil {
				return link.Error
			}
			if link.RowsAffected == 0 {
				continue
			}

			if err := tx.Model(&entity.Hashtag{}).
				Where("id = ?", hashtag.ID).
				UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *annotationRepository) DetachHashtags(ctx context.Context, threadID uuid.UUID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hashtags []entity.Hashtag
		if err := tx.Where("tag IN ?", tags).Find(&hashtags).Error; err != nil {
			return err
		}
		for _, h := range hashtags {
			res := tx.Where("thread_id = ? AND hashtag_id = ?", threadID, h.ID).Delete(&entity.ThreadHashtag{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			if err := tx.Model(&entity.Hashtag{}).
				Where("id = ?", h.ID).
				UpdateColumn("usage_count", gorm.Expr("GREATEST(usage_count - 1, 0)")).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *annotationRepository) FindHashtagsByThreadIDs(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ThreadID uuid.UUID
		Tag      string
	}
	err := r.db.WithContext(ctx).
		Table("thread_hashtags").
		Select("thread_hashtags.thread_id, hashtags.tag").
		Joins("JOIN hashtags ON hashtags.id = thread_hashtags.hashtag_id").
		Where("thread_hashtags.thread_id IN ?", threadIDs).
		Order("thread_hashtags.created_at ASC, hashtags.tag ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ThreadID] = append(out[row.ThreadID], row.Tag)
	}
	return out, nil
}

func (r *annotationRepository) TrendingHashtags(ctx context.Context, limit int) ([]entity.Hashtag, error) {
	var hashtags []entity.Hashtag
	err := r.db.WithContext(ctx).
		Where("usage_count > 0").
		Order("usage_count DESC, updated_at DESC").
		Limit(limit).
		Find(&hashtags).Error
	return hashtags, err
}

func (r *annotationRepository) AddMentions(ctx context.Context, mentions []entity.ThreadMention) error {
	if len(mentions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&mentions).Error
}

func (r *annotationRepository) ReplaceMentions(ctx context.Context, threadID uuid.UUID, mentions []entity.ThreadMention) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&entity.ThreadMention{}).Error; err != nil {
			return err
		}
		if len(mentions) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&mentions).Error
	})
}

func (r *annotationRepository) FindMentionedUserIDs(ctx context.Context, threadID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.ThreadMention{}).
		Distinct("user_id").
		Where("thread_id = ?", threadID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *annotationRepository) FindMentionsByThreadIDs(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	out := make(map[uuid.UUID][]string, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ThreadID uuid.UUID
		Username string
	}
	err := r.db.WithContext(ctx).
		Table("thread_mentions").
		Select("thread_mentions.thread_id, users.username").
		Joins("JOIN users ON users.id = thread_mentions.user_id").
		Where("thread_mentions.thread_id IN ?", threadIDs).
		Order("thread_mentions.start_offset ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]map[string]struct{})
	for _, row := range rows {
		if seen[row.ThreadID] == nil {
			seen[row.ThreadID] = make(map[string]struct{})
		}
		if _, dup := seen[row.ThreadID][row.Username]; dup {
			continue
		}
		seen[row.ThreadID][row.Username] = struct{}{}
		out[row.ThreadID] = append(out[row.ThreadID], row.Username)
	}
	return out, nil
}

func (r *annotationRepository) IsMentioned(ctx context.Context, threadID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ThreadMention{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error
	return count > 0, err
}
