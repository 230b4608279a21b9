package profile

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"
	"github.com/oggyb/swipelingo/internal/repository"
)

const maxNameLen = 128

// Service manages user profiles synced from the chat platform and the
// teacher directory.
type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
	}
}

// SyncUser creates the user on first contact from the chat platform and
// refreshes display name and photo afterwards.
func (s *Service) SyncUser(ctx context.Context, telegramID int64, name string, photoURL *string) (*db.User, bool, error) {
	const op = "profile.sync"

	if telegramID <= 0 {
		return nil, false, svcErr.Validation(op, "telegram_id is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, svcErr.Validation(op, "name is required")
	}
	if len(name) > maxNameLen {
		return nil, false, svcErr.Validation(op, "name is too long")
	}

	u, created, err := s.users.UpsertByTelegramID(ctx, telegramID, name, photoURL)
	if err != nil {
		s.appCtx.Logger.Error("UpsertByTelegramID failed", "op", op, "telegram_id", telegramID, "err", err)
		return nil, false, svcErr.Map(op, err)
	}
	if created {
		s.appCtx.Logger.Info("user registered", "user_id", u.ID, "telegram_id", telegramID)
	}
	return u, created, nil
}

func (s *Service) GetUser(ctx context.Context, id uint64) (*db.User, error) {
	const op = "profile.get"

	u, err := s.users.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound(op, strconv.FormatUint(id, 10), "user not found")
	}
	if err != nil {
		return nil, svcErr.Map(op, err)
	}
	return u, nil
}

// UpdateUser applies a partial profile change. Language lists are trimmed
// and de-duplicated.
func (s *Service) UpdateUser(ctx context.Context, id uint64, patch repository.UserPatch) (*db.User, error) {
	const op = "profile.update"

	if patch.Empty() {
		return nil, svcErr.Validation(op, "nothing to update")
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" || len(name) > maxNameLen {
			return nil, svcErr.Validation(op, "name must be 1-128 characters")
		}
		patch.Name = &name
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, svcErr.Validation(op, "user_role must be learner or teacher")
	}
	if patch.NativeLanguages != nil {
		langs := normalizeLanguages(*patch.NativeLanguages)
		patch.NativeLanguages = &langs
	}
	if patch.LearningLanguages != nil {
		langs := normalizeLanguages(*patch.LearningLanguages)
		patch.LearningLanguages = &langs
	}

	u, err := s.users.Update(ctx, id, patch)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound(op, strconv.FormatUint(id, 10), "user not found")
	}
	if err != nil {
		s.appCtx.Logger.Error("Update failed", "op", op, "user", id, "err", err)
		return nil, svcErr.Map(op, err)
	}
	return u, nil
}

// UpsertTeacher turns the user into a teacher with the given offer.
func (s *Service) UpsertTeacher(ctx context.Context, userID uint64, hourlyRate float64, bio *string) (*db.TeacherProfile, error) {
	const op = "profile.upsert_teacher"

	if userID == 0 {
		return nil, svcErr.Validation(op, "user_id is required")
	}
	if hourlyRate < 0 {
		return nil, svcErr.Validation(op, "hourly_rate must not be negative")
	}

	p, err := s.users.UpsertTeacherProfile(ctx, userID, hourlyRate, bio)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound(op, strconv.FormatUint(userID, 10), "user not found")
	}
	if err != nil {
		s.appCtx.Logger.Error("UpsertTeacherProfile failed", "op", op, "user", userID, "err", err)
		return nil, svcErr.Map(op, err)
	}
	return p, nil
}

func (s *Service) ListTeachers(ctx context.Context, f repository.TeacherFilter) ([]db.User, error) {
	const op = "profile.list_teachers"

	if f.MinRate != nil && f.MaxRate != nil && *f.MinRate > *f.MaxRate {
		return nil, svcErr.Validation(op, "min_rate exceeds max_rate")
	}

	teachers, err := s.users.ListTeachers(ctx, f)
	if err != nil {
		return nil, svcErr.Map(op, err)
	}
	if teachers == nil {
		teachers = []db.User{}
	}
	return teachers, nil
}

func normalizeLanguages(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, l := range in {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}
