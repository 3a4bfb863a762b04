// Package store is the durable Mongo-backed layer behind the room lifecycle
// engine: room documents, per-user per-axis state records, game results, and
// the handful of passive collections (shadow accounts, invite codes, app
// permissions, chat history) the gateway also owns.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store wraps a Mongo database handle and its collections.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	rooms          *mongo.Collection
	games          *mongo.Collection
	aiPlayers      *mongo.Collection
	presence       *mongo.Collection
	seats          *mongo.Collection
	ready          *mongo.Collection
	battle         *mongo.Collection
	gameResults    *mongo.Collection
	shadowAccounts *mongo.Collection
	inviteCodes    *mongo.Collection
	permissions    *mongo.Collection
	chatHistory    *mongo.Collection
}

// NewStore connects to Mongo and returns a Store bound to dbName (conventionally
// DEPLOY_ENV-prefixed, per SPEC_FULL's configuration table).
func NewStore(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	db := client.Database(dbName)

	s := &Store{
		client:         client,
		db:             db,
		rooms:          db.Collection("installed_rooms"),
		games:          db.Collection("installed_games"),
		aiPlayers:      db.Collection("installed_ai_players"),
		presence:       db.Collection("room_presence"),
		seats:          db.Collection("room_seat"),
		ready:          db.Collection("room_ready"),
		battle:         db.Collection("room_battle"),
		gameResults:    db.Collection("game_results"),
		shadowAccounts: db.Collection("shadow_accounts"),
		inviteCodes:    db.Collection("invite_codes"),
		permissions:    db.Collection("app_permissions"),
		chatHistory:    db.Collection("chat_history"),
	}

	return s, nil
}

// EnsureIndexes creates every index the room transitions, listing path, and
// result idempotency rely on. Safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.rooms.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "_id", Value: 1}}},
		{
			Keys: bson.D{
				{Key: "game_index", Value: 1},
				{Key: "be_hosting", Value: -1},
				{Key: "rank_weight", Value: -1},
				{Key: "in_game_queue_user_cnt", Value: 1},
				{Key: "online_user_cnt", Value: -1},
				{Key: "update_ts", Value: -1},
			},
		},
	}); err != nil {
		return fmt.Errorf("store: create room indexes: %w", err)
	}

	if _, err := s.presence.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "online", Value: 1},
				{Key: "update_ts", Value: -1},
			},
		},
	}); err != nil {
		return fmt.Errorf("store: create presence indexes: %w", err)
	}

	if _, err := s.seats.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "in_game_queue", Value: 1},
				{Key: "update_ts", Value: -1},
			},
		},
	}); err != nil {
		return fmt.Errorf("store: create seat indexes: %w", err)
	}

	if _, err := s.ready.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "in_game_queue_be_ready", Value: 1},
				{Key: "update_ts", Value: -1},
			},
		},
	}); err != nil {
		return fmt.Errorf("store: create ready indexes: %w", err)
	}

	if _, err := s.battle.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "in_game_battle", Value: 1},
				{Key: "update_ts", Value: -1},
			},
		},
	}); err != nil {
		return fmt.Errorf("store: create battle indexes: %w", err)
	}

	if _, err := s.gameResults.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "app_user_id", Value: 1},
			{Key: "create_ts", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("store: create game result idempotency index: %w", err)
	}

	if _, err := s.inviteCodes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("store: create invite code index: %w", err)
	}

	if _, err := s.aiPlayers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("store: create ai player index: %w", err)
	}

	return nil
}

// Close disconnects from Mongo.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies Mongo connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Txn runs fn inside a causally-consistent, primary-read-preference
// transaction. mongo-driver's Session.WithTransaction already retries
// TransientTransactionError and UnknownTransactionCommitResult internally,
// so unlike the originating implementation (which manually slept and retried
// on a session shared across concurrent callers) a fresh session per call
// means "transaction already in progress" cannot occur here.
func (s *Store) Txn(ctx context.Context, fn func(sc mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("store: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnOpts := options.Transaction().SetReadPreference(readpref.Primary())

	start := time.Now()
	res, err := sess.WithTransaction(ctx, fn, txnOpts)
	metrics.MongoOperationDuration.WithLabelValues("transaction").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MongoOperationsTotal.WithLabelValues("transaction", "error").Inc()
		return nil, err
	}
	metrics.MongoOperationsTotal.WithLabelValues("transaction", "ok").Inc()
	return res, nil
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
