package thread

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"anoa.com/threadfeed/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository lists only rows the viewer may read; a nil viewer is anonymous.
// FindByID and FindByIDs return soft-deleted rows too.
type Repository interface {
	Create(ctx context.Context, thread *entity.Thread) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Thread, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Thread, error)

	FindTopLevel(ctx context.Context, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error)
	FindReplies(ctx context.Context, parentID uuid.UUID, viewerID *uuid.UUID) ([]*entity.Thread, error)
	FindDescendants(ctx context.Context, pathPrefix string, viewerID *uuid.UUID) ([]*entity.Thread, error)
	FindByAuthor(ctx context.Context, authorID uuid.UUID, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error)
	FindByHashtag(ctx context.Context, tag string, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error)
	FindByIDsVisible(ctx context.Context, ids []uuid.UUID, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error)
	Search(ctx context.Context, keyword string, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error)
	GetTrending(ctx context.Context, since time.Time, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error)

	UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	// SoftDelete reports false when the thread was already deleted.
	SoftDelete(ctx context.Context, thread *entity.Thread) (bool, error)
	IncrementViews(ctx context.Context, id uuid.UUID, n int64) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// visibleTo mirrors the read policy of the visibility guard in SQL.
func visibleTo(viewerID *uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("threads.is_deleted = ?", false)
		if viewerID == nil {
			return db.Where("threads.is_public = ?", true)
		}
		return db.Where(`(threads.is_public = TRUE
			OR threads.author_id = @viewer
			OR (threads.reply_permission = 'FOLLOWERS' AND EXISTS (
				SELECT 1 FROM follows f WHERE f.follower_id = @viewer AND f.following_id = threads.author_id))
			OR (threads.reply_permission = 'FOLLOWING' AND EXISTS (
				SELECT 1 FROM follows f WHERE f.follower_id = threads.author_id AND f.following_id = @viewer))
			OR (threads.reply_permission = 'MENTIONED_ONLY' AND EXISTS (
				SELECT 1 FROM thread_mentions m WHERE m.thread_id = threads.id AND m.user_id = @viewer)))`,
			sql.Named("viewer", *viewerID))
	}
}

func (r *repository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&entity.Thread{})
}

// page counts before applying order and paging.
func page(query *gorm.DB, order any, offset, limit int) ([]*entity.Thread, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var threads []*entity.Thread
	if err := query.Preload("Author").Order(order).Offset(offset).Limit(limit).Find(&threads).Error; err != nil {
		return nil, 0, err
	}
	return threads, total, nil
}

func (r *repository) Create(ctx context.Context, thread *entity.Thread) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author").Create(thread).Error; err != nil {
			return err
		}
		if thread.ParentID == nil {
			return nil
		}
		return tx.Model(&entity.Thread{}).
			Where("id = ?", *thread.ParentID).
			UpdateColumn("replies_count", gorm.Expr("replies_count + 1")).Error
	})
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Thread, error) {
	var thread entity.Thread
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ?", id).
		First(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Thread, error) {
	var threads []*entity.Thread
	if len(ids) == 0 {
		return threads, nil
	}
	err := r.db.WithContext(ctx).Preload("Author").Where("id IN ?", ids).Find(&threads).Error
	return threads, err
}

func (r *repository) FindTopLevel(ctx context.Context, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	query := r.base(ctx).Scopes(visibleTo(viewerID)).Where("threads.parent_id IS NULL")
	return page(query, "threads.created_at DESC", offset, limit)
}

func (r *repository) FindReplies(ctx context.Context, parentID uuid.UUID, viewerID *uuid.UUID) ([]*entity.Thread, error) {
	var threads []*entity.Thread
	err := r.base(ctx).
		Preload("Author").
		Scopes(visibleTo(viewerID)).
		Where("threads.parent_id = ?", parentID).
		Order("threads.created_at ASC").
		Find(&threads).Error
	return threads, err
}

func (r *repository) FindDescendants(ctx context.Context, pathPrefix string, viewerID *uuid.UUID) ([]*entity.Thread, error) {
	var threads []*entity.Thread
	err := r.base(ctx).
		Preload("Author").
		Scopes(visibleTo(viewerID)).
		Where("(threads.path = ? OR threads.path LIKE ?)", pathPrefix, escapeLike(pathPrefix+entity.PathSeparator)+"%").
		Order("threads.level ASC, threads.created_at ASC").
		Find(&threads).Error
	return threads, err
}

func (r *repository) FindByAuthor(ctx context.Context, authorID uuid.UUID, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	query := r.base(ctx).Scopes(visibleTo(viewerID)).Where("threads.author_id = ?", authorID)
	return page(query, "threads.created_at DESC", offset, limit)
}

func (r *repository) FindByHashtag(ctx context.Context, tag string, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	query := r.base(ctx).
		Scopes(visibleTo(viewerID)).
		Where(`EXISTS (SELECT 1 FROM thread_hashtags th JOIN hashtags h ON h.id = th.hashtag_id
			WHERE th.thread_id = threads.id AND h.tag = ?)`, tag)
	return page(query, "threads.created_at DESC", offset, limit)
}

func (r *repository) FindByIDsVisible(ctx context.Context, ids []uuid.UUID, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	if len(ids) == 0 {
		return []*entity.Thread{}, 0, nil
	}
	query := r.base(ctx).Scopes(visibleTo(viewerID)).Where("threads.id IN ?", ids)
	return page(query, candidateOrder(ids), offset, limit)
}

func (r *repository) Search(ctx context.Context, keyword string, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	query := r.base(ctx).
		Scopes(visibleTo(viewerID)).
		Where("threads.content ILIKE ?", "%"+escapeLike(keyword)+"%")
	return page(query, "threads.created_at DESC", offset, limit)
}

// GetTrending ranks recent top-level threads by weighted engagement decayed
// by age in hours.
func (r *repository) GetTrending(ctx context.Context, since time.Time, viewerID *uuid.UUID, offset, limit int) ([]*entity.Thread, int64, error) {
	query := r.base(ctx).
		Scopes(visibleTo(viewerID)).
		Where("threads.parent_id IS NULL AND threads.created_at >= ?", since)

	score := orderExpr(`(threads.likes_count * 5 + threads.replies_count * 30 + threads.reposts_count * 20
		+ threads.bookmarks_count * 10 + threads.views_count)
		/ POWER(EXTRACT(EPOCH FROM (NOW() - threads.created_at)) / 3600 + 2, 1.8) DESC, threads.created_at DESC`)
	return page(query, score, offset, limit)
}

// orderExpr wraps raw SQL so Order keeps it; a bare clause.Expr is ignored.
func orderExpr(sql string, vars ...any) clause.OrderBy {
	return clause.OrderBy{Expression: clause.Expr{SQL: sql, Vars: vars, WithoutParentheses: true}}
}

// candidateOrder keeps the relevance order the index returned. The ids go in
// as one array literal so gorm does not expand them into a row.
func candidateOrder(ids []uuid.UUID) clause.OrderBy {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return orderExpr("array_position(?::uuid[], threads.id), threads.created_at DESC", "{"+strings.Join(parts, ",")+"}")
}

func (r *repository) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.Thread{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"content":   content,
			"is_edited": true,
			"edited_at": editedAt,
		}).Error
}

func (r *repository) SoftDelete(ctx context.Context, thread *entity.Thread) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Thread{}).
			Where("id = ? AND is_deleted = ?", thread.ID, false).
			UpdateColumn("is_deleted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		if thread.ParentID == nil {
			return nil
		}
		return tx.Model(&entity.Thread{}).
			Where("id = ?", *thread.ParentID).
			UpdateColumn("replies_count", gorm.Expr("GREATEST(replies_count - 1, 0)")).Error
	})
	return deleted, err
}

func (r *repository) IncrementViews(ctx context.Context, id uuid.UUID, n int64) error {
	return r.db.WithContext(ctx).Model(&entity.Thread{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", n)).Error
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
