package repository

import (
	"context"

	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository owns the matches table.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CreateIfAbsent inserts the canonical match row for {a, b} unless it already
// exists, then returns the stored row. created is true only for the call whose
// insert took effect.
//
// The unique idx_match_pair plus ON CONFLICT DO NOTHING makes this safe when
// both users like each other at the same instant: the losing insert is a
// no-op and both callers read back the same row. A duplicate-key error from a
// dialect that reports instead of ignoring is treated the same way.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, a, b uint64) (m *db.Match, created bool, err error) {
	u1, u2 := db.CanonicalPair(a, b)
	row := db.Match{User1ID: u1, User2ID: u2}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if res.Error != nil && !svcErr.IsDuplicateKey(res.Error) {
		return nil, false, res.Error
	}
	created = res.Error == nil && res.RowsAffected > 0

	m, err = r.FindByPair(ctx, u1, u2)
	if err != nil {
		return nil, false, err
	}
	return m, created, nil
}

// FindByPair looks a match up by its two users in either order.
func (r *MatchRepository) FindByPair(ctx context.Context, a, b uint64) (*db.Match, error) {
	u1, u2 := db.CanonicalPair(a, b)
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) FindByID(ctx context.Context, id uint64) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListForUser returns every match the user takes part in, newest first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&matches).Error
	return matches, err
}

// CountPair returns how many rows exist for the unordered pair. Used to
// verify the at-most-one invariant.
func (r *MatchRepository) CountPair(ctx context.Context, a, b uint64) (int64, error) {
	u1, u2 := db.CanonicalPair(a, b)
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)", u1, u2, u2, u1).
		Count(&n).Error
	return n, err
}
