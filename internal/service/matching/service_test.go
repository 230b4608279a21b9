package matching_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"
	"github.com/oggyb/swipelingo/internal/repository"
	"github.com/oggyb/swipelingo/internal/service/matching"
	"github.com/oggyb/swipelingo/internal/testutil"
)

func TestRecordSwipe_Validation(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	svc := matching.NewService(appCtx)
	users := testutil.CreateUsers(t, appCtx.DB, 2)

	tests := []struct {
		name   string
		actor  uint64
		target uint64
		dir    db.Direction
	}{
		{"self swipe", users[0].ID, users[0].ID, db.DirectionLike},
		{"invalid direction", users[0].ID, users[1].ID, db.Direction("superlike")},
		{"empty direction", users[0].ID, users[1].ID, ""},
		{"missing actor", 0, users[1].ID, db.DirectionLike},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordSwipe(ctx, tt.actor, tt.target, tt.dir)
			assert.True(t, svcErr.Is(err, svcErr.KindValidation), "got %v", err)
		})
	}

	var n int64
	require.NoError(t, appCtx.DB.Model(&db.Preference{}).Count(&n).Error)
	assert.Zero(t, n, "rejected swipes leave no rows")
}

func TestRecordSwipe_UnknownUser(t *testing.T) {
	appCtx := testutil.NewAppContext(t)
	svc := matching.NewService(appCtx)
	u := testutil.CreateUser(t, appCtx.DB, "a", nil, nil)

	_, err := svc.RecordSwipe(context.Background(), u.ID, 999, db.DirectionLike)
	require.Error(t, err)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	assert.Contains(t, err.Error(), "id=999")
}

func TestRecordSwipe_IdempotentPreference(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	svc := matching.NewService(appCtx)
	users := testutil.CreateUsers(t, appCtx.DB, 2)
	a, b := users[0].ID, users[1].ID

	for i := 0; i < 2; i++ {
		res, err := svc.RecordSwipe(ctx, a, b, db.DirectionDislike)
		require.NoError(t, err)
		assert.Equal(t, db.DirectionDislike, res.Preference.Direction)
		assert.False(t, res.IsMatch)
	}
	res, err := svc.RecordSwipe(ctx, a, b, db.DirectionLike)
	require.NoError(t, err)
	assert.Equal(t, db.DirectionLike, res.Preference.Direction)

	var rows []db.Preference
	require.NoError(t, appCtx.DB.Where("actor_id = ? AND target_id = ?", a, b).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, db.DirectionLike, rows[0].Direction, "last write wins")
}

func TestRecordSwipe_MutualLikeEitherOrder(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	svc := matching.NewService(appCtx)
	matches := repository.NewMatchRepository(appCtx.DB)
	users := testutil.CreateUsers(t, appCtx.DB, 4)

	pairs := [][2]uint64{
		{users[0].ID, users[1].ID},
		{users[3].ID, users[2].ID},
	}
	for _, p := range pairs {
		first, err := svc.RecordSwipe(ctx, p[0], p[1], db.DirectionLike)
		require.NoError(t, err)
		assert.False(t, first.IsMatch, "one-sided like is not a match")
		assert.Nil(t, first.Match)

		second, err := svc.RecordSwipe(ctx, p[1], p[0], db.DirectionLike)
		require.NoError(t, err)
		assert.True(t, second.IsMatch)
		require.NotNil(t, second.Match)
		assert.Less(t, second.Match.User1ID, second.Match.User2ID)

		// repeating either side never duplicates the match
		again, err := svc.RecordSwipe(ctx, p[0], p[1], db.DirectionLike)
		require.NoError(t, err)
		assert.True(t, again.IsMatch)
		assert.Equal(t, second.Match.ID, again.Match.ID)

		n, err := matches.CountPair(ctx, p[0], p[1])
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}
}

func TestRecordSwipe_DislikeBlocksMatch(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	svc := matching.NewService(appCtx)
	matches := repository.NewMatchRepository(appCtx.DB)
	users := testutil.CreateUsers(t, appCtx.DB, 2)
	a, b := users[0].ID, users[1].ID

	_, err := svc.RecordSwipe(ctx, a, b, db.DirectionDislike)
	require.NoError(t, err)

	res, err := svc.RecordSwipe(ctx, b, a, db.DirectionLike)
	require.NoError(t, err)
	assert.False(t, res.IsMatch)

	n, err := matches.CountPair(ctx, a, b)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A re-swipes: now the pair closes
	res, err = svc.RecordSwipe(ctx, a, b, db.DirectionLike)
	require.NoError(t, err)
	assert.True(t, res.IsMatch)
}

func TestRecordSwipe_ConcurrentMutualLikes(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	svc := matching.NewService(appCtx)
	matches := repository.NewMatchRepository(appCtx.DB)

	const pairs = 10
	users := testutil.CreateUsers(t, appCtx.DB, pairs*2)

	var wg sync.WaitGroup
	results := make([][2]*matching.SwipeResult, pairs)
	for i := 0; i < pairs; i++ {
		a, b := users[2*i].ID, users[2*i+1].ID
		for side := 0; side < 2; side++ {
			actor, target := a, b
			if side == 1 {
				actor, target = b, a
			}
			wg.Add(1)
			go func(i, side int) {
				defer wg.Done()
				res, err := svc.RecordSwipe(ctx, actor, target, db.DirectionLike)
				if assert.NoError(t, err) {
					results[i][side] = res
				}
			}(i, side)
		}
	}
	wg.Wait()

	for i := 0; i < pairs; i++ {
		a, b := users[2*i].ID, users[2*i+1].ID
		n, err := matches.CountPair(ctx, a, b)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "pair %d", i)

		r := results[i]
		require.NotNil(t, r[0])
		require.NotNil(t, r[1])
		assert.True(t, r[0].IsMatch || r[1].IsMatch, "at least one side observes the match")
	}
}

func TestTryFormMatch_NoReverseLike(t *testing.T) {
	appCtx := testutil.NewAppContext(t)
	svc := matching.NewService(appCtx)

	m, err := svc.TryFormMatch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRecordSwipe_RateLimited(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	rc, _ := testutil.NewTestRedis(t)
	appCtx.RedisCache = rc
	appCtx.Config.Matching.SwipeRateLimit = 2
	svc := matching.NewService(appCtx)

	users := testutil.CreateUsers(t, appCtx.DB, 4)
	for _, target := range users[1:3] {
		_, err := svc.RecordSwipe(ctx, users[0].ID, target.ID, db.DirectionLike)
		require.NoError(t, err)
	}
	_, err := svc.RecordSwipe(ctx, users[0].ID, users[3].ID, db.DirectionLike)
	assert.True(t, svcErr.Is(err, svcErr.KindRateLimited))

	// other actors are unaffected
	_, err = svc.RecordSwipe(ctx, users[3].ID, users[0].ID, db.DirectionLike)
	assert.NoError(t, err)
}

func TestNextCandidates(t *testing.T) {
	ctx := context.Background()
	appCtx := testutil.NewAppContext(t)
	appCtx.Config.Matching.CandidateBatch = 3
	svc := matching.NewService(appCtx)
	users := testutil.CreateUsers(t, appCtx.DB, 6)
	me := users[0].ID

	_, err := svc.RecordSwipe(ctx, me, users[1].ID, db.DirectionLike)
	require.NoError(t, err)
	_, err = svc.RecordSwipe(ctx, me, users[2].ID, db.DirectionDislike)
	require.NoError(t, err)

	got, err := svc.NextCandidates(ctx, me, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3, "batch size bounds the feed")
	for _, u := range got {
		assert.NotEqual(t, me, u.ID)
		assert.NotEqual(t, users[1].ID, u.ID)
		assert.NotEqual(t, users[2].ID, u.ID)
	}

	none, err := svc.NextCandidates(ctx, me, []string{"Klingon"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = svc.NextCandidates(ctx, 12345, nil)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	_, err = svc.NextCandidates(ctx, 0, nil)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
}
