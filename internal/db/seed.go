package db

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	seedFirstNames = []string{
		"Emma", "Liam", "Olivia", "Noah", "Yuki", "Hiroshi", "Carlos", "Maria",
		"Pierre", "Sophie", "Hans", "Greta", "Ivan", "Olga", "Ahmed", "Layla",
		"Raj", "Priya", "Wei", "Mei",
	}
	seedLastNames = []string{
		"Smith", "Garcia", "Tanaka", "Kim", "Chen", "Müller", "Ivanov", "Martin",
	}
	seedLanguages = []string{
		"English", "Spanish", "French", "German", "Italian", "Portuguese",
		"Russian", "Chinese", "Japanese", "Korean", "Arabic", "Hindi",
	}
	seedTimezones = []string{
		"America/New_York", "Europe/London", "Europe/Berlin", "Asia/Tokyo",
		"Asia/Seoul", "Australia/Sydney", "America/Sao_Paulo",
	}
	seedBios = []string{
		"Native speaker with a focus on conversational skills.",
		"Certified teacher with a degree in linguistics.",
		"Patient and encouraging teaching style for all levels.",
		"Expert in exam preparation (TOEFL, IELTS, DELE, DELF).",
	}
)

// SeedOptions controls the size of the demo dataset.
type SeedOptions struct {
	Users         int
	SwipesPerUser int
	Reset         bool
	Seed          int64
	Logger        *slog.Logger
}

// SeedTestData populates the database with demo users, swipes, matches and
// messages.
//
// Behavior:
//  1. Optionally clears messages, matches, preferences, teacher profiles and users.
//  2. Creates Users users; every 4th one is a teacher with a profile.
//  3. Each user swipes on ~SwipesPerUser others with ~70% likes; every 3rd
//     like is reciprocated so matches appear.
//  4. Every match gets a short opening exchange.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedTestData(database *gorm.DB, opts SeedOptions) error {
	if opts.Users <= 1 {
		opts.Users = 20
	}
	if opts.SwipesPerUser <= 0 {
		opts.SwipesPerUser = 12
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := rand.New(rand.NewSource(opts.Seed))

	if opts.Reset {
		for _, table := range []string{"messages", "matches", "preferences", "teacher_profiles", "users"} {
			if err := database.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		log.Info("cleared existing data")
	}

	// --- Users ---
	users := make([]User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		native := pick(r, seedLanguages, 1, 2)
		tz := seedTimezones[r.Intn(len(seedTimezones))]
		u := User{
			TelegramID:        int64(100000 + r.Intn(900000000)),
			Name:              seedFirstNames[r.Intn(len(seedFirstNames))] + " " + seedLastNames[r.Intn(len(seedLastNames))],
			NativeLanguages:   native,
			LearningLanguages: pick(r, seedLanguages, 1, 3),
			Timezone:          &tz,
			Role:              RoleLearner,
		}
		if i%4 == 0 {
			u.Role = RoleTeacher
		}
		err := database.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).Create(&u).Error
		if err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		if err := database.Where("telegram_id = ?", u.TelegramID).First(&u).Error; err != nil {
			return fmt.Errorf("failed to reload seeded user: %w", err)
		}

		if u.Role == RoleTeacher {
			bio := seedBios[r.Intn(len(seedBios))]
			profile := TeacherProfile{
				UserID:       u.ID,
				HourlyRate:   float64(10+r.Intn(60)) + 0.5,
				Bio:          &bio,
				Rating:       3.5 + r.Float64()*1.5,
				ReviewsCount: r.Intn(200),
			}
			if err := database.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"hourly_rate", "bio", "updated_at"}),
			}).Create(&profile).Error; err != nil {
				return fmt.Errorf("failed to seed teacher profile: %w", err)
			}
		}
		users = append(users, u)
	}
	log.Info("seeded users", "count", len(users))

	// --- Swipes, matches, messages ---
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
	}
	matches := 0
	counter := 0
	for _, actor := range users {
		for j := 0; j < opts.SwipesPerUser; j++ {
			target := users[r.Intn(len(users))]
			if target.ID == actor.ID {
				continue
			}

			dir := DirectionDislike
			if r.Intn(100) < 70 {
				dir = DirectionLike
			}
			if dir == DirectionLike && counter%3 == 0 {
				back := Preference{ActorID: target.ID, TargetID: actor.ID, Direction: DirectionLike}
				if err := database.Clauses(upsert).Create(&back).Error; err != nil {
					return fmt.Errorf("failed to seed reciprocal swipe: %w", err)
				}
			}
			counter++

			p := Preference{ActorID: actor.ID, TargetID: target.ID, Direction: dir}
			if err := database.Clauses(upsert).Create(&p).Error; err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}
		}
	}

	// Derive matches from mutual likes so the seeded data obeys the
	// "match iff both directions are like" invariant.
	var pairs []struct {
		ActorID  uint64
		TargetID uint64
	}
	err := database.Table("preferences p").
		Select("p.actor_id, p.target_id").
		Joins("JOIN preferences q ON q.actor_id = p.target_id AND q.target_id = p.actor_id").
		Where("p.direction = ? AND q.direction = ? AND p.actor_id < p.target_id", DirectionLike, DirectionLike).
		Scan(&pairs).Error
	if err != nil {
		return fmt.Errorf("failed to find mutual likes: %w", err)
	}

	openers := []string{"Hi! Want to practice together?", "Hello there 👋", "Nice to match with you!"}
	for _, pair := range pairs {
		u1, u2 := CanonicalPair(pair.ActorID, pair.TargetID)
		m := Match{User1ID: u1, User2ID: u2}
		if err := database.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
			return fmt.Errorf("failed to seed match: %w", err)
		}
		if err := database.Where("user1_id = ? AND user2_id = ?", u1, u2).First(&m).Error; err != nil {
			return fmt.Errorf("failed to reload match: %w", err)
		}
		matches++

		var existing int64
		database.Model(&Message{}).Where("match_id = ?", m.ID).Count(&existing)
		if existing > 0 {
			continue
		}
		now := time.Now().UTC()
		msgs := []Message{
			{MatchID: m.ID, Seq: 1, SenderID: u1, Body: openers[r.Intn(len(openers))], CreatedAt: now.Add(-2 * time.Minute)},
			{MatchID: m.ID, Seq: 2, SenderID: u2, Body: "Sure, when are you free?", CreatedAt: now.Add(-time.Minute)},
		}
		if err := database.Create(&msgs).Error; err != nil {
			return fmt.Errorf("failed to seed messages: %w", err)
		}
	}
	log.Info("seeded swipes", "swipes", counter, "matches", matches)

	return nil
}

func pick(r *rand.Rand, from []string, lo, hi int) []string {
	n := lo + r.Intn(hi-lo+1)
	idx := r.Perm(len(from))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, from[i])
	}
	return out
}
