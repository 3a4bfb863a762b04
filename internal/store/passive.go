package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrShadowNotFound is returned when a user has no shadow-account record.
var ErrShadowNotFound = errors.New("store: no shadow account")

// ResolveShadowAccount returns the account id lookups for userID should prefer,
// walking the shadow-account record if one exists (an account that was
// deleted and later recreated under the same public id).
func (s *Store) ResolveShadowAccount(ctx context.Context, userID string) (string, error) {
	var shadow ShadowAccount
	err := s.shadowAccounts.FindOne(ctx, bson.M{"user_id": userID}).Decode(&shadow)
	if err == mongo.ErrNoDocuments {
		return userID, nil
	}
	if err != nil {
		return "", fmt.Errorf("store: resolve shadow account: %w", err)
	}
	return shadow.ShadowOf, nil
}

// RedeemInviteCode atomically increments an invite code's use count if it has
// remaining uses and has not expired.
func (s *Store) RedeemInviteCode(ctx context.Context, code string, nowTs int64) (*InviteCode, error) {
	var inv InviteCode
	err := s.inviteCodes.FindOneAndUpdate(ctx,
		bson.M{
			"_id":       code,
			"expire_ts": bson.M{"$gt": nowTs},
			"$expr":     bson.M{"$lt": []string{"$use_count", "$max_uses"}},
		},
		bson.M{"$inc": bson.M{"use_count": 1}},
	).Decode(&inv)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("store: invite code invalid or exhausted")
	}
	if err != nil {
		return nil, fmt.Errorf("store: redeem invite code: %w", err)
	}
	return &inv, nil
}

// GetPermissions returns the feature grants for an account.
func (s *Store) GetPermissions(ctx context.Context, userID string) ([]string, error) {
	var perm AppPermission
	err := s.permissions.FindOne(ctx, bson.M{"user_id": userID}).Decode(&perm)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get permissions: %w", err)
	}
	return perm.Grants, nil
}

// AppendChatMessage persists a single room chat entry.
func (s *Store) AppendChatMessage(ctx context.Context, msg ChatMessage) error {
	_, err := s.chatHistory.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("store: append chat message: %w", err)
	}
	return nil
}

// ListChatHistory returns the most recent chat messages for a room, oldest first.
func (s *Store) ListChatHistory(ctx context.Context, roomID string, limit int64) ([]ChatMessage, error) {
	cur, err := s.chatHistory.Find(ctx, bson.M{"room_id": roomID})
	if err != nil {
		return nil, fmt.Errorf("store: list chat history: %w", err)
	}
	defer cur.Close(ctx)

	var msgs []ChatMessage
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("store: decode chat history: %w", err)
	}
	if int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	return msgs, nil
}
