package bootstrap

import (
	"context"
	"errors"

	"anoa.com/threadfeed/internal/entity"
	userRepo "anoa.com/threadfeed/internal/modules/user/repository"
	"anoa.com/threadfeed/pkg/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Follow{},
		&entity.Thread{},
		&entity.ThreadMedia{},
		&entity.ThreadLike{},
		&entity.ThreadBookmark{},
		&entity.ThreadRepost{},
		&entity.ThreadReaction{},
		&entity.Hashtag{},
		&entity.ThreadHashtag{},
		&entity.ThreadMention{},
		&entity.Notification{},
	); err != nil {
		return err
	}

	// Descendant lookups use LIKE 'prefix.%' on path.
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_threads_path_prefix ON threads (path text_pattern_ops)").Error
}

type devUser struct {
	username    string
	displayName string
}

var devUsers = []devUser{
	{username: "alice", displayName: "Alice"},
	{username: "bob", displayName: "Bob"},
	{username: "carol", displayName: "Carol"},
}

const devPassword = "password123"

// SeedDevUsers creates a small follow graph for local development and returns
// the seeded users. Existing users are left alone.
func SeedDevUsers(ctx context.Context, users userRepo.UserRepository) ([]entity.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(devPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	seeded := make([]entity.User, 0, len(devUsers))
	for _, du := range devUsers {
		user, err := users.FindByUsername(ctx, du.username)
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = &entity.User{
				Username:     du.username,
				Email:        du.username + "@threadfeed.local",
				PasswordHash: string(hash),
				DisplayName:  du.displayName,
			}
			if err := users.Create(ctx, user); err != nil {
				return nil, err
			}
			logger.Info().Str("username", user.Username).Msg("seeded dev user")
		default:
			return nil, err
		}
		seeded = append(seeded, *user)
	}

	// bob and carol follow alice; alice follows bob.
	follows := [][2]int{{1, 0}, {2, 0}, {0, 1}}
	for _, f := range follows {
		if err := users.Follow(ctx, seeded[f[0]].ID, seeded[f[1]].ID); err != nil {
			return nil, err
		}
	}

	return seeded, nil
}
