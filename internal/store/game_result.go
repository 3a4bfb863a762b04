package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateResult is returned when a game result with the same
// (app_user_id, create_ts) key has already been ingested.
var ErrDuplicateResult = errors.New("store: duplicate game result")

// InsertGameResult durably records res. Idempotency is enforced by the
// (app_user_id, create_ts) unique index created in EnsureIndexes: a retry of
// the same callback with the same timestamp is rejected rather than double
// counted.
func (s *Store) InsertGameResult(ctx context.Context, res GameResult) error {
	_, err := s.gameResults.InsertOne(ctx, res)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateResult
	}
	if err != nil {
		return fmt.Errorf("store: insert game result: %w", err)
	}
	return nil
}

// userStats returns (and lazily creates) the stats collection handle. Kept
// separate from the fixed collection set in NewStore since not every
// deployment enables per-user aggregates.
func (s *Store) userStats() *mongo.Collection {
	return s.db.Collection("user_stats")
}

// ApplyResultToStats recomputes a user's per-game aggregate after a single
// result: play_cnt increments unconditionally, winning_play_cnt increments
// when win is true, and win_rate is recomputed from the two counters.
func (s *Store) ApplyResultToStats(ctx context.Context, userID, gameIndex string, win bool, now int64) error {
	winInc := 0
	if win {
		winInc = 1
	}

	var stats UserStats
	err := s.userStats().FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "game_index": gameIndex},
		bson.M{
			"$inc": bson.M{"play_cnt": 1, "winning_play_cnt": winInc},
			"$set": bson.M{"update_ts": now},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&stats)
	if err != nil {
		return fmt.Errorf("store: apply result to stats: %w", err)
	}

	winRate := 0.0
	if stats.PlayCnt > 0 {
		winRate = float64(stats.WinningCnt) / float64(stats.PlayCnt)
	}
	if _, err := s.userStats().UpdateOne(ctx,
		bson.M{"user_id": userID, "game_index": gameIndex},
		bson.M{"$set": bson.M{"win_rate": winRate}},
	); err != nil {
		return fmt.Errorf("store: update win rate: %w", err)
	}
	return nil
}
