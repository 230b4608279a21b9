package repository

import (
	"context"

	"github.com/oggyb/swipelingo/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceRepository provides data access for swipe decisions.
type PreferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new repository bound to the given DB connection.
func NewPreferenceRepository(database *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: database}
}

// Upsert inserts or overwrites the decision made by actor -> target.
//
// Behavior:
//   - If (actor_id, target_id) exists the row's direction and updated_at are overwritten.
//   - If it doesn't exist a new row is inserted.
//   - The composite PK turns concurrent writers into a single statement-level
//     upsert: one row survives, carrying whichever write the store applied last.
//
// The stored row is re-read so CreatedAt reflects the first decision.
func (r *PreferenceRepository) Upsert(
	ctx context.Context,
	actorID, targetID uint64,
	direction db.Direction,
) (*db.Preference, error) {
	p := db.Preference{
		ActorID:   actorID,
		TargetID:  targetID,
		Direction: direction,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
		}).
		Create(&p).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, actorID, targetID)
}

// Get returns the stored decision of actor about target.
func (r *PreferenceRepository) Get(ctx context.Context, actorID, targetID uint64) (*db.Preference, error) {
	var p db.Preference
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// HasLiked checks whether an actor currently likes a target.
func (r *PreferenceRepository) HasLiked(ctx context.Context, actorID, targetID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Preference{}).
		Where("actor_id = ? AND target_id = ? AND direction = ?", actorID, targetID, db.DirectionLike).
		Count(&count).Error
	return count > 0, err
}
