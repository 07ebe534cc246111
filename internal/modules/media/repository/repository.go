package repository

import (
	"context"

	"anoa.com/threadfeed/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MediaRepository stores already validated media references; uploads happen
// elsewhere.
type MediaRepository interface {
	// Attach appends media to a thread, numbering positions in slice order.
	Attach(ctx context.Context, threadID uuid.UUID, media []entity.ThreadMedia) error
	FindByThreadIDs(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID][]entity.ThreadMedia, error)
}

type mediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Attach(ctx context.Context, threadID uuid.UUID, media []entity.ThreadMedia) error {
	if len(media) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&entity.ThreadMedia{}).
			Where("thread_id = ?", threadID).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return err
		}

		rows := make([]entity.ThreadMedia, len(media))
		for i, m := range media {
			m.ID = 0
			m.ThreadID = threadID
			m.Position = next + i
			rows[i] = m
		}
		return tx.Create(&rows).Error
	})
}

func (r *mediaRepository) FindByThreadIDs(ctx context.Context, threadIDs []uuid.UUID) (map[uuid.UUID][]entity.ThreadMedia, error) {
	out := make(map[uuid.UUID][]entity.ThreadMedia, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}

	var media []entity.ThreadMedia
	if err := r.db.WithContext(ctx).
		Where("thread_id IN ?", threadIDs).
		Order("thread_id, position ASC").
		Find(&media).Error; err != nil {
		return nil, err
	}
	for _, m := range media {
		out[m.ThreadID] = append(out[m.ThreadID], m)
	}
	return out, nil
}
