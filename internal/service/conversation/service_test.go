package conversation_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"
	"github.com/oggyb/swipelingo/internal/service/conversation"
	"github.com/oggyb/swipelingo/internal/service/matching"
	"github.com/oggyb/swipelingo/internal/testutil"
)

type fixture struct {
	appCtx *app.AppContext
	clock  *testutil.Clock
	chat   *conversation.Service
	swipes *matching.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	appCtx := testutil.NewAppContext(t)
	// start after any match row the store stamps with wall time
	clock := &testutil.Clock{T: time.Now().UTC().Add(time.Hour).Truncate(time.Second)}
	appCtx.Now = clock.Now
	return &fixture{
		appCtx: appCtx,
		clock:  clock,
		chat:   conversation.NewService(appCtx),
		swipes: matching.NewService(appCtx),
	}
}

// match makes a and b like each other and returns the resulting match.
func (f *fixture) match(t *testing.T, a, b uint64) *db.Match {
	t.Helper()
	ctx := context.Background()
	_, err := f.swipes.RecordSwipe(ctx, a, b, db.DirectionLike)
	require.NoError(t, err)
	res, err := f.swipes.RecordSwipe(ctx, b, a, db.DirectionLike)
	require.NoError(t, err)
	require.True(t, res.IsMatch)
	return res.Match
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users := testutil.CreateUsers(t, f.appCtx.DB, 2)
	a, b := users[0].ID, users[1].ID

	res, err := f.swipes.RecordSwipe(ctx, a, b, db.DirectionLike)
	require.NoError(t, err)
	assert.False(t, res.IsMatch)

	res, err = f.swipes.RecordSwipe(ctx, b, a, db.DirectionLike)
	require.NoError(t, err)
	require.True(t, res.IsMatch)
	m := res.Match

	sent, err := f.chat.Send(ctx, m.ID, a, "hi")
	require.NoError(t, err)
	assert.Nil(t, sent.ReadAt)

	list, err := f.chat.ListMatches(ctx, b)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, m.ID, list[0].MatchID)
	assert.Equal(t, int64(1), list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hi", list[0].LastMessage.Body)
	require.NotNil(t, list[0].OtherUser)
	assert.Equal(t, a, list[0].OtherUser.ID)

	f.clock.Advance(time.Minute)
	thread, err := f.chat.FetchThread(ctx, m.ID, b, 0, 0)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	require.NotNil(t, thread[0].ReadAt)
	assert.True(t, thread[0].ReadAt.Equal(f.clock.Now()))

	list, err = f.chat.ListMatches(ctx, b)
	require.NoError(t, err)
	assert.Zero(t, list[0].UnreadCount)

	// the sender's own list never counted its own message
	list, err = f.chat.ListMatches(ctx, a)
	require.NoError(t, err)
	assert.Zero(t, list[0].UnreadCount)
}

func TestSend_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.appCtx.Config.Chat.MaxBodyLen = 5
	chat := conversation.NewService(f.appCtx)
	users := testutil.CreateUsers(t, f.appCtx.DB, 3)
	m := f.match(t, users[0].ID, users[1].ID)

	_, err := chat.Send(ctx, m.ID, users[0].ID, "   \n\t ")
	assert.True(t, svcErr.Is(err, svcErr.KindValidation), "blank body")

	_, err = chat.Send(ctx, m.ID, users[0].ID, "toolong")
	assert.True(t, svcErr.Is(err, svcErr.KindValidation), "oversized body")

	// rune count, not bytes
	msg, err := chat.Send(ctx, m.ID, users[0].ID, "  héllo ")
	require.NoError(t, err)
	assert.Equal(t, "héllo", msg.Body)

	_, err = chat.Send(ctx, 0, users[0].ID, "hi")
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = chat.Send(ctx, 9999, users[0].ID, "hi")
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	_, err = chat.Send(ctx, m.ID, users[2].ID, "hi")
	assert.True(t, svcErr.Is(err, svcErr.KindAuthorization))

	var n int64
	require.NoError(t, f.appCtx.DB.Model(&db.Message{}).Count(&n).Error)
	assert.Equal(t, int64(1), n, "rejected sends have no effect")
}

func TestFetchThread_AuthorizationAndPaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.appCtx.Config.Chat.MaxPageSize = 3
	chat := conversation.NewService(f.appCtx)
	users := testutil.CreateUsers(t, f.appCtx.DB, 3)
	a, b := users[0].ID, users[1].ID
	m := f.match(t, a, b)

	empty, err := chat.FetchThread(ctx, m.ID, a, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for i := 1; i <= 5; i++ {
		sender := a
		if i%2 == 0 {
			sender = b
		}
		_, err := chat.Send(ctx, m.ID, sender, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	page, err := chat.FetchThread(ctx, m.ID, a, 100, 0)
	require.NoError(t, err)
	require.Len(t, page, 3, "limit is capped")
	assert.Equal(t, "m1", page[0].Body)

	page, err = chat.FetchThread(ctx, m.ID, a, 2, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []string{"m4", "m5"}, []string{page[0].Body, page[1].Body})

	_, err = chat.FetchThread(ctx, m.ID, a, -1, 0)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
	_, err = chat.FetchThread(ctx, m.ID, a, 10, -2)
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = chat.FetchThread(ctx, m.ID, users[2].ID, 10, 0)
	assert.True(t, svcErr.Is(err, svcErr.KindAuthorization))

	// the outsider's attempt did not mark anything for b
	list, err := chat.ListMatches(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(3), list[0].UnreadCount)
}

func TestMessageOrderAndReadMonotonicity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users := testutil.CreateUsers(t, f.appCtx.DB, 2)
	a, b := users[0].ID, users[1].ID
	m := f.match(t, a, b)

	var sent []string
	for i := 0; i < 4; i++ {
		body := fmt.Sprintf("msg-%d", i)
		_, err := f.chat.Send(ctx, m.ID, a, body)
		require.NoError(t, err)
		sent = append(sent, body)
	}
	// the server clock going backwards does not reorder the thread
	f.clock.Advance(-time.Hour)
	_, err := f.chat.Send(ctx, m.ID, a, "late clock")
	require.NoError(t, err)
	sent = append(sent, "late clock")

	f.clock.Advance(2 * time.Hour)
	firstRead := f.clock.Now()
	thread, err := f.chat.FetchThread(ctx, m.ID, b, 0, 0)
	require.NoError(t, err)
	require.Len(t, thread, len(sent))
	for i, msg := range thread {
		assert.Equal(t, sent[i], msg.Body)
		if i > 0 {
			assert.False(t, msg.CreatedAt.Before(thread[i-1].CreatedAt))
		}
		require.NotNil(t, msg.ReadAt)
	}

	f.clock.Advance(time.Hour)
	again, err := f.chat.FetchThread(ctx, m.ID, b, 0, 0)
	require.NoError(t, err)
	for _, msg := range again {
		assert.True(t, msg.ReadAt.Equal(firstRead), "read_at never moves")
	}

	list, err := f.chat.ListMatches(ctx, b)
	require.NoError(t, err)
	assert.Zero(t, list[0].UnreadCount)
}

func TestConcurrentSendsAndFetches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users := testutil.CreateUsers(t, f.appCtx.DB, 2)
	a, b := users[0].ID, users[1].ID
	m := f.match(t, a, b)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := f.chat.Send(ctx, m.ID, a, fmt.Sprintf("a%d", i))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			_, err := f.chat.FetchThread(ctx, m.ID, b, 0, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// whatever b has not displayed yet is exactly what is unread
	var unread int64
	require.NoError(t, f.appCtx.DB.Model(&db.Message{}).
		Where("match_id = ? AND sender_id = ? AND read_at IS NULL", m.ID, a).
		Count(&unread).Error)
	list, err := f.chat.ListMatches(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, unread, list[0].UnreadCount)

	thread, err := f.chat.FetchThread(ctx, m.ID, b, 0, 0)
	require.NoError(t, err)
	require.Len(t, thread, 10)
	for i, msg := range thread {
		assert.Equal(t, uint64(i+1), msg.Seq)
	}
}

func TestListMatches_Ordering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	users := testutil.CreateUsers(t, f.appCtx.DB, 4)
	me := users[0].ID

	m1 := f.match(t, me, users[1].ID)
	m2 := f.match(t, me, users[2].ID)
	m3 := f.match(t, users[3].ID, me)

	list, err := f.chat.ListMatches(ctx, me)
	require.NoError(t, err)
	require.Len(t, list, 3)
	// no messages yet: newest match first
	assert.Equal(t, []uint64{m3.ID, m2.ID, m1.ID}, []uint64{list[0].MatchID, list[1].MatchID, list[2].MatchID})
	for _, s := range list {
		assert.Nil(t, s.LastMessage)
		assert.Zero(t, s.UnreadCount)
	}

	// a message moves the oldest match to the top
	_, err = f.chat.Send(ctx, m1.ID, users[1].ID, "hey there")
	require.NoError(t, err)

	list, err = f.chat.ListMatches(ctx, me)
	require.NoError(t, err)
	assert.Equal(t, m1.ID, list[0].MatchID)
	assert.Equal(t, int64(1), list[0].UnreadCount)
	assert.Equal(t, users[1].ID, list[0].OtherUser.ID)
	assert.Equal(t, users[3].ID, list[1].OtherUser.ID)

	_, err = f.chat.ListMatches(ctx, 4242)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	lonely := testutil.CreateUser(t, f.appCtx.DB, "lonely", nil, nil)
	none, err := f.chat.ListMatches(ctx, lonely.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSend_RateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rc, _ := testutil.NewTestRedis(t)
	f.appCtx.RedisCache = rc
	f.appCtx.Config.Chat.MessageRateLimit = 2
	chat := conversation.NewService(f.appCtx)

	users := testutil.CreateUsers(t, f.appCtx.DB, 2)
	m := f.match(t, users[0].ID, users[1].ID)

	for i := 0; i < 2; i++ {
		_, err := chat.Send(ctx, m.ID, users[0].ID, strings.Repeat("x", i+1))
		require.NoError(t, err)
	}
	_, err := chat.Send(ctx, m.ID, users[0].ID, "one more")
	assert.True(t, svcErr.Is(err, svcErr.KindRateLimited))

	_, err = chat.Send(ctx, m.ID, users[1].ID, "my turn")
	assert.NoError(t, err)
}
