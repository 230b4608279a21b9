package matching

import (
	"context"
	"strconv"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"
	"github.com/oggyb/swipelingo/internal/repository"
	"github.com/oggyb/swipelingo/internal/service/ratelimit"
)

const defaultCandidateBatch = 20

// Service records swipes, detects mutual likes and serves the candidate feed.
type Service struct {
	appCtx      *app.AppContext
	users       *repository.UserRepository
	preferences *repository.PreferenceRepository
	matches     *repository.MatchRepository
	swipeGuard  *ratelimit.Guard
}

// SwipeResult is what the UI needs after a swipe: the stored decision and,
// when both sides like each other, the match.
type SwipeResult struct {
	Preference *db.Preference `json:"preference"`
	Match      *db.Match      `json:"match"`
	IsMatch    bool           `json:"is_match"`
}

type Option func(*Service)

// WithSwipeGuard replaces the Redis backed swipe rate limit.
func WithSwipeGuard(g *ratelimit.Guard) Option {
	return func(s *Service) { s.swipeGuard = g }
}

// NewService creates a new matching service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, opts ...Option) *Service {
	cfg := appCtx.Config.Matching
	s := &Service{
		appCtx:      appCtx,
		users:       repository.NewUserRepository(appCtx.DB),
		preferences: repository.NewPreferenceRepository(appCtx.DB),
		matches:     repository.NewMatchRepository(appCtx.DB),
		swipeGuard:  ratelimit.FromApp(appCtx, "swipe", cfg.SwipeRateLimit, cfg.RateWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordSwipe stores actor's decision about target and, for a like, runs
// match detection before returning.
//
// Behavior:
//   - Self swipes and directions other than like/dislike are validation errors.
//   - Both users must exist.
//   - The decision is upserted on (actor, target); re-swiping overwrites.
//   - The upsert commits before the reverse-like lookup, so of two concurrent
//     mutual likes at least one sees the other and forms the match.
//   - A store failure is transient; retrying the whole swipe is safe.
func (s *Service) RecordSwipe(
	ctx context.Context,
	actorID, targetID uint64,
	direction db.Direction,
) (*SwipeResult, error) {
	const op = "matching.record"
	log := s.appCtx.Logger

	log.Debug("RecordSwipe called", "actor", actorID, "target", targetID, "direction", direction)

	if actorID == 0 || targetID == 0 {
		return nil, svcErr.Validation(op, "actor_id and target_id are required")
	}
	if actorID == targetID {
		return nil, svcErr.Validation(op, "cannot swipe on yourself")
	}
	if !direction.Valid() {
		return nil, svcErr.Validation(op, "direction must be like or dislike")
	}

	if err := s.swipeGuard.Check(ctx, op, actorID); err != nil {
		return nil, err
	}

	missing, err := s.users.MissingIDs(ctx, actorID, targetID)
	if err != nil {
		log.Error("MissingIDs failed", "op", op, "err", err)
		return nil, svcErr.Map(op, err)
	}
	if len(missing) > 0 {
		return nil, svcErr.NotFound(op, strconv.FormatUint(missing[0], 10), "user not found")
	}

	pref, err := s.preferences.Upsert(ctx, actorID, targetID, direction)
	if err != nil {
		log.Error("preference upsert failed", "op", op, "actor", actorID, "target", targetID, "err", err)
		return nil, svcErr.Map(op, err)
	}

	res := &SwipeResult{Preference: pref}
	if direction != db.DirectionLike {
		return res, nil
	}

	m, err := s.TryFormMatch(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	res.Match = m
	res.IsMatch = m != nil
	return res, nil
}

// TryFormMatch creates the match for {actor, target} when target already
// likes actor, and returns it. It returns nil when the reverse like is
// missing.
//
// The match row is written with insert-or-ignore on the canonical pair, so
// repeated or concurrent calls for the same pair all return the same row.
func (s *Service) TryFormMatch(ctx context.Context, actorID, targetID uint64) (*db.Match, error) {
	const op = "matching.try_form_match"
	log := s.appCtx.Logger

	liked, err := s.preferences.HasLiked(ctx, targetID, actorID)
	if err != nil {
		log.Error("reverse like lookup failed", "op", op, "actor", actorID, "target", targetID, "err", err)
		return nil, svcErr.Map(op, err)
	}
	if !liked {
		return nil, nil
	}

	m, created, err := s.matches.CreateIfAbsent(ctx, actorID, targetID)
	if err != nil {
		log.Error("match insert failed", "op", op, "actor", actorID, "target", targetID, "err", err)
		return nil, svcErr.Map(op, err)
	}
	if created {
		log.Info("match formed", "match_id", m.ID, "user1", m.User1ID, "user2", m.User2ID)
	}
	return m, nil
}

// NextCandidates returns a random batch of users that userID has not swiped
// on yet, optionally restricted to languages.
func (s *Service) NextCandidates(ctx context.Context, userID uint64, languages []string) ([]db.User, error) {
	const op = "matching.candidates"
	log := s.appCtx.Logger

	log.Debug("NextCandidates called", "user", userID, "languages", languages)

	if userID == 0 {
		return nil, svcErr.Validation(op, "user_id is required")
	}

	missing, err := s.users.MissingIDs(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(op, err)
	}
	if len(missing) > 0 {
		return nil, svcErr.NotFound(op, strconv.FormatUint(userID, 10), "user not found")
	}

	batch := s.appCtx.Config.Matching.CandidateBatch
	if batch <= 0 {
		batch = defaultCandidateBatch
	}

	users, err := s.users.Candidates(ctx, userID, languages, batch)
	if err != nil {
		log.Error("Candidates failed", "op", op, "user", userID, "err", err)
		return nil, svcErr.Map(op, err)
	}
	if users == nil {
		users = []db.User{}
	}

	log.Debug("NextCandidates result", "user", userID, "count", len(users))
	return users, nil
}
