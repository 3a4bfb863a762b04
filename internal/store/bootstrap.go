package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpsertInstalledGame writes a declarative game definition, replacing any
// prior definition under the same index.
func (s *Store) UpsertInstalledGame(ctx context.Context, g InstalledGame) error {
	if _, err := s.games.UpdateOne(ctx,
		bson.M{"_id": g.Index},
		bson.M{"$set": bson.M{
			"title":               g.Title,
			"cover":               g.Cover,
			"min_online_user_cnt": g.MinOnlineUserCnt,
			"max_online_user_cnt": g.MaxOnlineUserCnt,
		}},
		options.Update().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("store: upsert installed game: %w", err)
	}
	return nil
}

// UpsertInstalledAIPlayer writes a declarative AI persona.
func (s *Store) UpsertInstalledAIPlayer(ctx context.Context, p InstalledAIPlayer) error {
	if _, err := s.aiPlayers.UpdateOne(ctx,
		bson.M{"_id": p.ID},
		bson.M{"$set": bson.M{
			"room_id":            p.RoomID,
			"is_master":          p.IsMaster,
			"slave_number":       p.SlaveNumber,
			"nickname":           p.Nickname,
			"gender":             p.Gender,
			"avatar":             p.Avatar,
			"game_index":         p.GameIndex,
			"tags":               p.Tags,
			"state":              p.State,
			"be_hosting":         p.BeHosting,
			"installed":          p.Installed,
			"be_hosting_room_id": p.BeHostingRoomID,
		}},
		options.Update().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("store: upsert installed ai player: %w", err)
	}
	return nil
}

// UpsertRoomFromBootstrap writes an installed room's static definition plus
// the owner/assistants/ai_player_cnt derived from grouping its AI personas.
// The four denormalised counters are seeded with ai_player_cnt only on first
// insert ($setOnInsert): rerunning bootstrap against a room with live human
// occupants must never reset counts Sit/Stand/Ready/Battle have since moved.
func (s *Store) UpsertRoomFromBootstrap(ctx context.Context, def RoomBootstrapDef) error {
	if _, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": def.RoomID},
		bson.M{
			"$set": bson.M{
				"game_index":        def.GameIndex,
				"rule":              def.Rule,
				"title":             def.Title,
				"announcement":      def.Announcement,
				"cover":             def.Cover,
				"owner_id":          def.OwnerID,
				"owner_nickname":    def.OwnerNickname,
				"owner_gender":      def.OwnerGender,
				"owner_avatar":      def.OwnerAvatar,
				"assistants":        def.Assistants,
				"tags":              def.Tags,
				"carrying_capacity": def.CarryingCapacity,
				"queue_symbol":      def.QueueSymbol,
				"ai_player_cnt":     def.AIPlayerCnt,
				"rank_weight":       def.RankWeight,
				"be_hosting":        def.BeHosting,
			},
			"$setOnInsert": bson.M{
				"online_user_cnt":                def.AIPlayerCnt,
				"in_game_queue_user_cnt":          def.AIPlayerCnt,
				"in_game_queue_be_ready_user_cnt": def.AIPlayerCnt,
				"in_game_battle_user_cnt":         def.AIPlayerCnt,
				"update_ts":                       nowMs(),
			},
		},
		options.Update().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("store: upsert room from bootstrap: %w", err)
	}
	return nil
}
