package repository

import (
	"context"
	"strings"

	"anoa.com/threadfeed/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	// ResolveUsernames matches case-insensitively; keys are lowercased.
	ResolveUsernames(ctx context.Context, usernames []string) (map[string]uuid.UUID, error)
	Follow(ctx context.Context, followerID, followingID uuid.UUID) error
	Follows(ctx context.Context, followerID, followingID uuid.UUID) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) ResolveUsernames(ctx context.Context, usernames []string) (map[string]uuid.UUID, error) {
	resolved := make(map[string]uuid.UUID, len(usernames))
	if len(usernames) == 0 {
		return resolved, nil
	}

	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(u)
	}

	var users []entity.User
	if err := r.db.WithContext(ctx).
		Select("id", "username").
		Where("LOWER(username) IN ?", lowered).
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		resolved[strings.ToLower(u.Username)] = u.ID
	}
	return resolved, nil
}

func (r *userRepository) Follow(ctx context.Context, followerID, followingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entity.Follow{FollowerID: followerID, FollowingID: followingID}).Error
}

func (r *userRepository) Follows(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}
