package conversation

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/swipelingo/internal/app"
	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"
	"github.com/oggyb/swipelingo/internal/repository"
	"github.com/oggyb/swipelingo/internal/service/ratelimit"
)

// Service owns the message threads of matches and the match list read path.
type Service struct {
	appCtx    *app.AppContext
	users     *repository.UserRepository
	matches   *repository.MatchRepository
	messages  *repository.MessageRepository
	sendGuard *ratelimit.Guard
}

// MatchSummary is one row of a user's match list.
type MatchSummary struct {
	MatchID     uint64      `json:"match_id"`
	MatchedAt   time.Time   `json:"matched_at"`
	OtherUser   *db.User    `json:"other_user"`
	LastMessage *db.Message `json:"last_message"`
	UnreadCount int64       `json:"unread_count"`

	activity time.Time
}

type Option func(*Service)

// WithSendGuard replaces the Redis backed send rate limit.
func WithSendGuard(g *ratelimit.Guard) Option {
	return func(s *Service) { s.sendGuard = g }
}

func NewService(appCtx *app.AppContext, opts ...Option) *Service {
	s := &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
		sendGuard: ratelimit.FromApp(appCtx, "message",
			appCtx.Config.Chat.MessageRateLimit, appCtx.Config.Matching.RateWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send appends a message from senderID to the match thread.
//
// Behavior:
//   - The body is trimmed; an empty or oversized body is a validation error.
//   - The match must exist and senderID must be one of its two users.
//   - The server assigns created_at; it never decreases along the thread.
//   - Send is not idempotent: a retried call stores a second message.
func (s *Service) Send(ctx context.Context, matchID, senderID uint64, body string) (*db.Message, error) {
	const op = "conversation.send"
	log := s.appCtx.Logger

	log.Debug("Send called", "match", matchID, "sender", senderID, "len", len(body))

	if matchID == 0 || senderID == 0 {
		return nil, svcErr.Validation(op, "match_id and sender_id are required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, svcErr.Validation(op, "message body is empty")
	}
	if maxLen := s.appCtx.Config.Chat.MaxBodyLen; maxLen > 0 && utf8.RuneCountInString(body) > maxLen {
		return nil, svcErr.Validation(op, "message body exceeds "+strconv.Itoa(maxLen)+" characters")
	}

	if _, err := s.participant(ctx, op, matchID, senderID); err != nil {
		return nil, err
	}
	if err := s.sendGuard.Check(ctx, op, senderID); err != nil {
		return nil, err
	}

	msg, err := s.messages.Append(ctx, matchID, senderID, body, s.appCtx.Now())
	if err != nil {
		log.Error("Append failed", "op", op, "match", matchID, "sender", senderID, "err", err)
		return nil, svcErr.Transient(op, err)
	}
	return msg, nil
}

// FetchThread returns one oldest-first page of the thread and marks every
// message the counterpart sent so far as read by viewerID.
//
// limit 0 means the default page size; limits above the maximum are capped.
func (s *Service) FetchThread(ctx context.Context, matchID, viewerID uint64, limit, offset int) ([]db.Message, error) {
	const op = "conversation.fetch_thread"
	log := s.appCtx.Logger
	cfg := s.appCtx.Config.Chat

	log.Debug("FetchThread called", "match", matchID, "viewer", viewerID, "limit", limit, "offset", offset)

	if matchID == 0 || viewerID == 0 {
		return nil, svcErr.Validation(op, "match_id and viewer_id are required")
	}
	if limit < 0 || offset < 0 {
		return nil, svcErr.Validation(op, "limit and offset must not be negative")
	}
	if limit == 0 {
		limit = cfg.DefaultPageSize
	}
	if cfg.MaxPageSize > 0 && limit > cfg.MaxPageSize {
		limit = cfg.MaxPageSize
	}

	if _, err := s.participant(ctx, op, matchID, viewerID); err != nil {
		return nil, err
	}

	msgs, marked, err := s.messages.FetchThread(ctx, matchID, viewerID, limit, offset, s.appCtx.Now())
	if err != nil {
		log.Error("FetchThread failed", "op", op, "match", matchID, "viewer", viewerID, "err", err)
		return nil, svcErr.Map(op, err)
	}

	log.Debug("FetchThread result", "match", matchID, "count", len(msgs), "marked_read", marked)
	return msgs, nil
}

// ListMatches returns every match of userID with the counterpart, the
// latest message and the unread count, most recently active first.
//
// Activity is the later of the last message time and the match time; ties
// fall back to the newer match id.
func (s *Service) ListMatches(ctx context.Context, userID uint64) ([]MatchSummary, error) {
	const op = "conversation.list_matches"
	log := s.appCtx.Logger

	log.Debug("ListMatches called", "user", userID)

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

	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		log.Error("ListForUser failed", "op", op, "user", userID, "err", err)
		return nil, svcErr.Map(op, err)
	}
	out := make([]MatchSummary, 0, len(matches))
	if len(matches) == 0 {
		return out, nil
	}

	matchIDs := make([]uint64, 0, len(matches))
	otherIDs := make([]uint64, 0, len(matches))
	for i := range matches {
		matchIDs = append(matchIDs, matches[i].ID)
		other, _ := matches[i].OtherUserID(userID)
		otherIDs = append(otherIDs, other)
	}

	others, err := s.users.FindByIDs(ctx, otherIDs)
	if err != nil {
		return nil, svcErr.Map(op, err)
	}
	last, err := s.messages.LastMessages(ctx, matchIDs)
	if err != nil {
		return nil, svcErr.Map(op, err)
	}
	unread, err := s.messages.UnreadCounts(ctx, matchIDs, userID)
	if err != nil {
		return nil, svcErr.Map(op, err)
	}

	for i := range matches {
		m := matches[i]
		sum := MatchSummary{
			MatchID:     m.ID,
			MatchedAt:   m.CreatedAt,
			UnreadCount: unread[m.ID],
			activity:    m.CreatedAt,
		}
		if u, ok := others[otherIDs[i]]; ok {
			sum.OtherUser = &u
		} else {
			log.Warn("match counterpart missing", "match", m.ID, "user", otherIDs[i])
		}
		if msg, ok := last[m.ID]; ok {
			sum.LastMessage = &msg
			if msg.CreatedAt.After(sum.activity) {
				sum.activity = msg.CreatedAt
			}
		}
		out = append(out, sum)
	}

	slices.SortFunc(out, func(a, b MatchSummary) int {
		if c := b.activity.Compare(a.activity); c != 0 {
			return c
		}
		return cmp.Compare(b.MatchID, a.MatchID)
	})
	return out, nil
}

// participant loads the match and checks that userID belongs to it.
func (s *Service) participant(ctx context.Context, op string, matchID, userID uint64) (*db.Match, error) {
	m, err := s.matches.FindByID(ctx, matchID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound(op, strconv.FormatUint(matchID, 10), "match not found")
	}
	if err != nil {
		return nil, svcErr.Map(op, err)
	}
	if !m.HasUser(userID) {
		return nil, svcErr.Unauthorized(op, strconv.FormatUint(userID, 10), "user is not part of this match")
	}
	return m, nil
}
