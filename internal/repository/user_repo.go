package repository

import (
	"context"
	"strings"

	"github.com/oggyb/swipelingo/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository covers user rows, teacher profiles and the candidate feed.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// FindByID returns a user with its teacher profile, if any.
func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Preload("Teacher").First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByIDs loads several users at once, keyed by id. Unknown ids are absent.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]db.User, error) {
	out := make(map[uint64]db.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []db.User
	if err := r.db.WithContext(ctx).Preload("Teacher").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// MissingIDs returns which of ids have no user row.
func (r *UserRepository) MissingIDs(ctx context.Context, ids ...uint64) ([]uint64, error) {
	var found []uint64
	err := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]bool, len(found))
	for _, id := range found {
		seen[id] = true
	}
	var missing []uint64
	for _, id := range ids {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// UpsertByTelegramID creates the user on first sync from the chat platform,
// or refreshes name and photo on later syncs.
func (r *UserRepository) UpsertByTelegramID(
	ctx context.Context,
	telegramID int64,
	name string,
	photoURL *string,
) (u *db.User, created bool, err error) {
	row := db.User{
		TelegramID: telegramID,
		Name:       name,
		PhotoURL:   photoURL,
		Role:       db.RoleLearner,
	}

	var before int64
	if err := r.db.WithContext(ctx).Model(&db.User{}).Where("telegram_id = ?", telegramID).Count(&before).Error; err != nil {
		return nil, false, err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "photo_url", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, false, err
	}

	var stored db.User
	if err := r.db.WithContext(ctx).Preload("Teacher").Where("telegram_id = ?", telegramID).First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, before == 0, nil
}

// UserPatch lists optional profile changes; nil fields stay untouched.
type UserPatch struct {
	Name              *string
	PhotoURL          *string
	NativeLanguages   *[]string
	LearningLanguages *[]string
	Timezone          *string
	Role              *db.Role
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.PhotoURL == nil && p.NativeLanguages == nil &&
		p.LearningLanguages == nil && p.Timezone == nil && p.Role == nil
}

// Update applies a partial profile change and returns the stored user.
func (r *UserRepository) Update(ctx context.Context, id uint64, patch UserPatch) (*db.User, error) {
	var out db.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u db.User
		if err := tx.First(&u, id).Error; err != nil {
			return err
		}

		cols := []string{"updated_at"}
		if patch.Name != nil {
			u.Name = *patch.Name
			cols = append(cols, "name")
		}
		if patch.PhotoURL != nil {
			u.PhotoURL = patch.PhotoURL
			cols = append(cols, "photo_url")
		}
		if patch.NativeLanguages != nil {
			u.NativeLanguages = *patch.NativeLanguages
			cols = append(cols, "native_languages")
		}
		if patch.LearningLanguages != nil {
			u.LearningLanguages = *patch.LearningLanguages
			cols = append(cols, "learning_languages")
		}
		if patch.Timezone != nil {
			u.Timezone = patch.Timezone
			cols = append(cols, "timezone")
		}
		if patch.Role != nil {
			u.Role = *patch.Role
			cols = append(cols, "role")
		}

		if err := tx.Model(&u).Select(cols).Updates(&u).Error; err != nil {
			return err
		}
		return tx.Preload("Teacher").First(&out, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Candidates returns up to limit users that userID has not decided on yet,
// in random order, optionally restricted to users who speak or learn one of
// languages.
//
// Behavior:
//   - Excludes userID itself.
//   - Excludes every target of any preference row by userID (like or dislike).
//   - Languages are matched against the JSON-encoded language lists, which
//     keeps the query portable across MySQL, Postgres and SQLite.
func (r *UserRepository) Candidates(
	ctx context.Context,
	userID uint64,
	languages []string,
	limit int,
) ([]db.User, error) {
	decided := r.db.
		Model(&db.Preference{}).
		Select("target_id").
		Where("actor_id = ?", userID)

	query := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("id <> ?", userID).
		Where("id NOT IN (?)", decided)

	if where, args := languageFilter("native_languages", "learning_languages", languages); where != "" {
		query = query.Where(where, args...)
	}

	var users []db.User
	err := query.
		Order(db.RandomOrder(r.db)).
		Limit(limit).
		Find(&users).Error
	return users, err
}

// TeacherFilter narrows the teacher listing.
type TeacherFilter struct {
	Subject string
	MinRate *float64
	MaxRate *float64
	Search  string
	Limit   int
}

// ListTeachers returns teachers with profiles, best rated first.
func (r *UserRepository) ListTeachers(ctx context.Context, f TeacherFilter) ([]db.User, error) {
	query := r.db.WithContext(ctx).
		Model(&db.User{}).
		Select("users.*").
		Joins("JOIN teacher_profiles t ON t.user_id = users.id").
		Preload("Teacher")

	if f.Subject != "" {
		where, args := languageFilter("users.native_languages", "users.learning_languages", []string{f.Subject})
		query = query.Where(where, args...)
	}
	if f.MinRate != nil {
		query = query.Where("t.hourly_rate >= ?", *f.MinRate)
	}
	if f.MaxRate != nil {
		query = query.Where("t.hourly_rate <= ?", *f.MaxRate)
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		like := "%" + escapeLike(s) + "%"
		query = query.Where("(LOWER(users.name) LIKE ? OR LOWER(t.bio) LIKE ?)", like, like)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var users []db.User
	err := query.
		Order("t.rating DESC, t.reviews_count DESC, users.id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// UpsertTeacherProfile promotes the user to teacher and creates or updates
// the tutoring profile in one transaction.
func (r *UserRepository) UpsertTeacherProfile(
	ctx context.Context,
	userID uint64,
	hourlyRate float64,
	bio *string,
) (*db.TeacherProfile, error) {
	var out db.TeacherProfile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u db.User
		if err := tx.First(&u, userID).Error; err != nil {
			return err
		}
		if err := tx.Model(&u).Update("role", db.RoleTeacher).Error; err != nil {
			return err
		}

		profile := db.TeacherProfile{UserID: userID, HourlyRate: hourlyRate, Bio: bio}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"hourly_rate", "bio", "updated_at"}),
		}).Create(&profile).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// languageFilter builds "col LIKE %"lang"% OR ..." over two JSON list columns.
func languageFilter(nativeCol, learningCol string, languages []string) (string, []any) {
	var parts []string
	var args []any
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		pattern := `%"` + escapeLike(strings.ReplaceAll(lang, `"`, "")) + `"%`
		parts = append(parts, nativeCol+" LIKE ? OR "+learningCol+" LIKE ?")
		args = append(args, pattern, pattern)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// escapeLike drops LIKE wildcards from user input.
func escapeLike(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}
