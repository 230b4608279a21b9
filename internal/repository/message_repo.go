package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/oggyb/swipelingo/internal/db"
	svcErr "github.com/oggyb/swipelingo/internal/errors"

	"gorm.io/gorm"
)

// maxAppendAttempts bounds retries when concurrent senders race for the
// same sequence number.
const maxAppendAttempts = 8

// MessageRepository provides the append-only message log per match.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Append adds a message to the end of a match thread.
//
// Behavior:
//   - Seq is last seq + 1 for the match; (match_id, seq) is unique.
//   - CreatedAt is max(now, previous CreatedAt) so timestamps never go
//     backwards along seq, even when clocks of two handlers disagree.
//   - A concurrent append that wins the same seq causes a duplicate key;
//     the loser retries with a fresh read. Exhausting retries returns the
//     last error (a conflict the caller sees as transient).
func (r *MessageRepository) Append(
	ctx context.Context,
	matchID, senderID uint64,
	body string,
	now time.Time,
) (*db.Message, error) {
	var lastErr error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		msg, err := r.appendOnce(ctx, matchID, senderID, body, now)
		if err == nil {
			return msg, nil
		}
		if !svcErr.IsDuplicateKey(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("append to match %d: seq contention after %d attempts: %w", matchID, maxAppendAttempts, lastErr)
}

func (r *MessageRepository) appendOnce(
	ctx context.Context,
	matchID, senderID uint64,
	body string,
	now time.Time,
) (*db.Message, error) {
	msg := db.Message{
		MatchID:   matchID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: now.UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last db.Message
		err := tx.Where("match_id = ?", matchID).
			Order("seq DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return err
		}

		msg.Seq = last.Seq + 1
		if last.ID != 0 && last.CreatedAt.After(msg.CreatedAt) {
			msg.CreatedAt = last.CreatedAt
		}
		return tx.Create(&msg).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FetchThread returns one ascending page of a match thread and marks the
// counterpart's unread messages as read for viewer.
//
// Behavior:
//   - The thread's high-water seq is read first; marking and paging are both
//     restricted to seq <= high-water, so what is marked read is exactly what
//     existed when the viewer looked.
//   - Only rows with read_at IS NULL are touched, so read_at is set once and
//     never moves.
//   - An empty thread returns an empty slice.
//
// marked is the number of messages whose read state changed.
func (r *MessageRepository) FetchThread(
	ctx context.Context,
	matchID, viewerID uint64,
	limit, offset int,
	now time.Time,
) (msgs []db.Message, marked int64, err error) {
	msgs = []db.Message{}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var highWater uint64
		if err := tx.Model(&db.Message{}).
			Select("COALESCE(MAX(seq), 0)").
			Where("match_id = ?", matchID).
			Scan(&highWater).Error; err != nil {
			return err
		}
		if highWater == 0 {
			return nil
		}

		res := tx.Model(&db.Message{}).
			Where("match_id = ? AND seq <= ? AND sender_id <> ? AND read_at IS NULL", matchID, highWater, viewerID).
			Update("read_at", now.UTC())
		if res.Error != nil {
			return res.Error
		}
		marked = res.RowsAffected

		return tx.Where("match_id = ? AND seq <= ?", matchID, highWater).
			Order("seq ASC").
			Limit(limit).
			Offset(offset).
			Find(&msgs).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return msgs, marked, nil
}

// LastMessages returns the most recent message of each given match, keyed by
// match id. Matches without messages are absent from the map.
func (r *MessageRepository) LastMessages(ctx context.Context, matchIDs []uint64) (map[uint64]db.Message, error) {
	out := make(map[uint64]db.Message, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	latest := r.db.
		Model(&db.Message{}).
		Select("match_id, MAX(seq) AS max_seq").
		Where("match_id IN ?", matchIDs).
		Group("match_id")

	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Table("messages m").
		Select("m.*").
		Joins("JOIN (?) lm ON lm.match_id = m.match_id AND lm.max_seq = m.seq", latest).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.MatchID] = m
	}
	return out, nil
}

// UnreadCounts returns, per match, how many messages not sent by viewer still
// have a null read_at. Matches with nothing unread are absent.
func (r *MessageRepository) UnreadCounts(ctx context.Context, matchIDs []uint64, viewerID uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		MatchID uint64
		Unread  int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("match_id, COUNT(*) AS unread").
		Where("match_id IN ? AND sender_id <> ? AND read_at IS NULL", matchIDs, viewerID).
		Group("match_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.MatchID] = row.Unread
	}
	return out, nil
}
