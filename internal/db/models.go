package db

import (
	"time"
)

type Role string

const (
	RoleLearner Role = "learner"
	RoleTeacher Role = "teacher"
)

func (r Role) Valid() bool { return r == RoleLearner || r == RoleTeacher }

type Direction string

const (
	DirectionLike    Direction = "like"
	DirectionDislike Direction = "dislike"
)

func (d Direction) Valid() bool { return d == DirectionLike || d == DirectionDislike }

// User is created on first sync from the external chat platform and is
// never hard-deleted.
type User struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TelegramID        int64           `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Name              string          `gorm:"size:128;not null" json:"name"`
	PhotoURL          *string         `gorm:"size:512" json:"photo_url"`
	NativeLanguages   []string        `gorm:"serializer:json;type:text" json:"native_languages"`
	LearningLanguages []string        `gorm:"serializer:json;type:text" json:"learning_languages"`
	Timezone          *string         `gorm:"size:64" json:"timezone"`
	Role              Role            `gorm:"size:16;not null;default:learner" json:"user_role"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Teacher           *TeacherProfile `gorm:"foreignKey:UserID;references:ID" json:"teacher,omitempty"`
}

// TeacherProfile holds the tutoring offer of a user with role teacher.
type TeacherProfile struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64    `gorm:"uniqueIndex;not null" json:"user_id"`
	HourlyRate   float64   `gorm:"not null;default:0" json:"hourly_rate"`
	Bio          *string   `gorm:"type:text" json:"bio"`
	Rating       float64   `gorm:"not null;default:0;index:idx_teacher_rating,priority:1,sort:desc" json:"rating"`
	ReviewsCount int       `gorm:"not null;default:0;index:idx_teacher_rating,priority:2,sort:desc" json:"reviews_count"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Preference is an actor's like/dislike decision about a target.
//
// Composite PK: (ActorID, TargetID)
//   - Ensures a single row per ordered pair (overwrite guarantee).
//
// Indexes:
//   - idx_target_direction(target_id, direction)
//     Serves the reverse-like lookup of match detection.
//
// UpdatedAt is the decision timestamp; it is refreshed on every overwrite.
type Preference struct {
	ActorID   uint64    `gorm:"primaryKey;autoIncrement:false" json:"actor_id"`
	TargetID  uint64    `gorm:"primaryKey;autoIncrement:false;index:idx_target_direction,priority:1" json:"target_id"`
	Direction Direction `gorm:"size:8;not null;index:idx_target_direction,priority:2" json:"direction"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"decided_at"`
}

// Match is the undirected pairing of two users. User1ID < User2ID always
// holds, and idx_match_pair makes the unordered pair unique.
type Match struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	User1ID   uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:1" json:"user1_id"`
	User2ID   uint64    `gorm:"not null;uniqueIndex:idx_match_pair,priority:2;index:idx_match_user2" json:"user2_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"matched_at"`
}

// CanonicalPair orders two user ids so (a,b) and (b,a) address the same match.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// HasUser reports whether userID is one of the two participants.
func (m *Match) HasUser(userID uint64) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// OtherUserID returns the counterpart of userID.
func (m *Match) OtherUserID(userID uint64) (uint64, bool) {
	switch userID {
	case m.User1ID:
		return m.User2ID, true
	case m.User2ID:
		return m.User1ID, true
	}
	return 0, false
}

// Message belongs to exactly one match. Seq is the per-match insertion
// sequence and defines thread order; CreatedAt never decreases along Seq.
// ReadAt is set once, by the counterpart's fetch, and never unset.
type Message struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID   uint64     `gorm:"not null;uniqueIndex:idx_message_match_seq,priority:1;index:idx_message_unread,priority:1" json:"match_id"`
	Seq       uint64     `gorm:"not null;uniqueIndex:idx_message_match_seq,priority:2" json:"seq"`
	SenderID  uint64     `gorm:"not null;index:idx_message_unread,priority:2" json:"sender_id"`
	Body      string     `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	ReadAt    *time.Time `gorm:"index:idx_message_unread,priority:3" json:"read_at"`
}

// All lists every model in migration order.
func All() []any {
	return []any{&User{}, &TeacherProfile{}, &Preference{}, &Match{}, &Message{}}
}
