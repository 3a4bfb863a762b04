package store

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sentinel errors returned by the room transition methods. These map onto the
// error kinds the HTTP layer translates into the uniform response envelope.
var (
	ErrRoomNotFound = errors.New("store: room not found")
	ErrInBattle     = errors.New("store: user is currently in battle")
)

// RoomMeta is the identity snapshot of a room carried onto every published
// room event: game_index, be_hosting, and the master AI's owner_* fields.
type RoomMeta struct {
	GameIndex     string
	BeHosting     bool
	OwnerID       string
	OwnerNickname string
	OwnerGender   string
	OwnerAvatar   string
}

func roomMeta(r Room) RoomMeta {
	return RoomMeta{
		GameIndex:     r.GameIndex,
		BeHosting:     r.BeHosting,
		OwnerID:       r.OwnerID,
		OwnerNickname: r.OwnerNickname,
		OwnerGender:   r.OwnerGender,
		OwnerAvatar:   r.OwnerAvatar,
	}
}

// SitResult is the outcome of a Sit transition.
type SitResult struct {
	Can               bool
	Filtered          bool
	Full              bool
	Occupied          bool
	Frozen            bool
	FrozenSecondsLeft int64
	Room              RoomMeta
}

// StandResult is the outcome of a Stand transition.
type StandResult struct {
	Can      bool
	Filtered bool
	Room     RoomMeta
}

// ReadyResult is the outcome of a Ready/Unready transition.
type ReadyResult struct {
	Can      bool
	Filtered bool
	AllReady bool
	Room     RoomMeta
}

// BattleResult is the outcome of a battle start/end transition.
type BattleResult struct {
	Can       bool
	Filtered  bool
	AllBattle bool
	Room      RoomMeta
}

// Sit seats userID at (x,y) in roomID's queue grid. Returns Filtered=true when
// the user was already seated at exactly (x,y) (a no-op), Full=true when the
// room's queue is at carrying capacity, Occupied=true when another user holds
// (x,y), and Frozen=true when the caller is still serving a forced-kick cooldown.
func (s *Store) Sit(ctx mongo.SessionContext, roomID, userID string, x, y int) (SitResult, error) {
	var room Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return SitResult{}, ErrRoomNotFound
		}
		return SitResult{}, fmt.Errorf("store: load room: %w", err)
	}

	var seat RoomSeat
	err := s.seats.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&seat)
	hasSeat := err == nil
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return SitResult{}, fmt.Errorf("store: load seat: %w", err)
	}

	now := nowMs()

	if hasSeat && seat.InGameQueue && seat.AtX == x && seat.AtY == y {
		return SitResult{Filtered: true, Room: roomMeta(room)}, nil
	}

	if hasSeat && seat.FrozenTime > now {
		return SitResult{Frozen: true, FrozenSecondsLeft: (seat.FrozenTime - now) / 1000, Room: roomMeta(room)}, nil
	}

	if room.InGameQueueUserCnt >= room.CarryingCapacity {
		return SitResult{Full: true, Room: roomMeta(room)}, nil
	}

	occupiedCount, err := s.seats.CountDocuments(ctx, bson.M{
		"room_id":               roomID,
		"user_id":               bson.M{"$ne": userID},
		"in_game_queue":         true,
		"at_game_queue_x_coord": x,
		"at_game_queue_y_coord": y,
	})
	if err != nil {
		return SitResult{}, fmt.Errorf("store: check seat occupancy: %w", err)
	}
	if occupiedCount > 0 {
		return SitResult{Occupied: true, Room: roomMeta(room)}, nil
	}

	wasSeated := hasSeat && seat.InGameQueue

	if _, err := s.seats.UpdateOne(ctx,
		bson.M{"room_id": roomID, "user_id": userID},
		bson.M{"$set": bson.M{
			"in_game_queue":         true,
			"at_game_queue_x_coord": x,
			"at_game_queue_y_coord": y,
			"frozen_time":           int64(0),
			"update_ts":             now,
		}},
		options.Update().SetUpsert(true),
	); err != nil {
		return SitResult{}, fmt.Errorf("store: upsert seat: %w", err)
	}

	if !wasSeated {
		if _, err := s.rooms.UpdateOne(ctx,
			bson.M{"_id": roomID},
			bson.M{"$inc": bson.M{"in_game_queue_user_cnt": 1}, "$set": bson.M{"update_ts": now}},
		); err != nil {
			return SitResult{}, fmt.Errorf("store: increment queue count: %w", err)
		}
	}

	return SitResult{Can: true, Room: roomMeta(room)}, nil
}

// Stand removes userID from roomID's queue grid. When forced is true (the
// background idle-kick path or an admin action), the seat is left with a
// frozen_time 300 seconds in the future; a voluntary stand clears it.
func (s *Store) Stand(ctx mongo.SessionContext, roomID, userID string, forced bool) (StandResult, error) {
	var room Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return StandResult{}, ErrRoomNotFound
		}
		return StandResult{}, fmt.Errorf("store: load room: %w", err)
	}

	var seat RoomSeat
	err := s.seats.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&seat)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && !seat.InGameQueue) {
		return StandResult{Filtered: true, Room: roomMeta(room)}, nil
	}
	if err != nil {
		return StandResult{}, fmt.Errorf("store: load seat: %w", err)
	}

	var battle RoomBattle
	err = s.battle.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&battle)
	if err == nil && battle.InGameBattle {
		return StandResult{}, ErrInBattle
	}

	now := nowMs()
	frozenTime := int64(0)
	if forced {
		frozenTime = now + 300*1000
	}

	if _, err := s.seats.UpdateOne(ctx,
		bson.M{"room_id": roomID, "user_id": userID},
		bson.M{"$set": bson.M{
			"in_game_queue":         false,
			"at_game_queue_x_coord": 0,
			"at_game_queue_y_coord": 0,
			"frozen_time":           frozenTime,
			"update_ts":             now,
		}},
	); err != nil {
		return StandResult{}, fmt.Errorf("store: update seat: %w", err)
	}

	wasReady := false
	var ready RoomReady
	if err := s.ready.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&ready); err == nil && ready.InGameQueueBeReady {
		wasReady = true
		if _, err := s.ready.UpdateOne(ctx,
			bson.M{"room_id": roomID, "user_id": userID},
			bson.M{"$set": bson.M{"in_game_queue_be_ready": false, "update_ts": now}},
		); err != nil {
			return StandResult{}, fmt.Errorf("store: clear ready on stand: %w", err)
		}
	}

	inc := bson.M{"in_game_queue_user_cnt": -1}
	if wasReady {
		inc["in_game_queue_be_ready_user_cnt"] = -1
	}
	if _, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$inc": inc, "$set": bson.M{"update_ts": now}},
	); err != nil {
		return StandResult{}, fmt.Errorf("store: decrement queue count: %w", err)
	}

	return StandResult{Can: true, Room: roomMeta(room)}, nil
}

// Ready sets userID's readiness flag in roomID. AllReady is computed against
// the room's pre-increment be_ready count, so it is true only on the single
// transition that completes the ready set.
func (s *Store) Ready(ctx mongo.SessionContext, roomID, userID string, want bool) (ReadyResult, error) {
	var room Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ReadyResult{}, ErrRoomNotFound
		}
		return ReadyResult{}, fmt.Errorf("store: load room: %w", err)
	}

	var seat RoomSeat
	if err := s.seats.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&seat); err != nil || !seat.InGameQueue {
		return ReadyResult{Filtered: true, Room: roomMeta(room)}, nil
	}

	if !want {
		var battle RoomBattle
		if err := s.battle.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&battle); err == nil && battle.InGameBattle {
			return ReadyResult{}, ErrInBattle
		}
	}

	var ready RoomReady
	switch err := s.ready.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&ready); {
	case err == nil:
		if ready.InGameQueueBeReady == want {
			return ReadyResult{Filtered: true, Room: roomMeta(room)}, nil
		}
	case errors.Is(err, mongo.ErrNoDocuments):
		if !want {
			return ReadyResult{Filtered: true, Room: roomMeta(room)}, nil
		}
	default:
		return ReadyResult{}, fmt.Errorf("store: load ready: %w", err)
	}

	allReady := false
	if want {
		allReady = room.CarryingCapacity-room.InGameQueueBeReadyUserCnt == 1
	}

	now := nowMs()
	if _, err := s.ready.UpdateOne(ctx,
		bson.M{"room_id": roomID, "user_id": userID},
		bson.M{"$set": bson.M{"in_game_queue_be_ready": want, "update_ts": now}},
		options.Update().SetUpsert(true),
	); err != nil {
		return ReadyResult{}, fmt.Errorf("store: upsert ready: %w", err)
	}

	delta := 1
	if !want {
		delta = -1
	}
	if _, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$inc": bson.M{"in_game_queue_be_ready_user_cnt": delta}, "$set": bson.M{"update_ts": now}},
	); err != nil {
		return ReadyResult{}, fmt.Errorf("store: update ready count: %w", err)
	}

	return ReadyResult{Can: true, AllReady: allReady, Room: roomMeta(room)}, nil
}

// Battle sets userID's in-battle flag for roomID. AllBattle mirrors Ready's
// pre-increment completion detection, for the battle-start transition.
func (s *Store) Battle(ctx mongo.SessionContext, roomID, userID string, want bool) (BattleResult, error) {
	var room Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return BattleResult{}, ErrRoomNotFound
		}
		return BattleResult{}, fmt.Errorf("store: load room: %w", err)
	}

	if want {
		var ready RoomReady
		if err := s.ready.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&ready); err != nil || !ready.InGameQueueBeReady {
			return BattleResult{Filtered: true, Room: roomMeta(room)}, nil
		}
	}

	var battle RoomBattle
	switch err := s.battle.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&battle); {
	case err == nil:
		if battle.InGameBattle == want {
			return BattleResult{Filtered: true, Room: roomMeta(room)}, nil
		}
	case errors.Is(err, mongo.ErrNoDocuments):
		if !want {
			return BattleResult{Filtered: true, Room: roomMeta(room)}, nil
		}
	default:
		return BattleResult{}, fmt.Errorf("store: load battle: %w", err)
	}

	allBattle := false
	if want {
		allBattle = room.CarryingCapacity-room.InGameBattleUserCnt == 1
	}

	now := nowMs()
	if _, err := s.battle.UpdateOne(ctx,
		bson.M{"room_id": roomID, "user_id": userID},
		bson.M{"$set": bson.M{"in_game_battle": want, "update_ts": now}},
		options.Update().SetUpsert(true),
	); err != nil {
		return BattleResult{}, fmt.Errorf("store: upsert battle: %w", err)
	}

	delta := 1
	if !want {
		delta = -1
	}
	if _, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$inc": bson.M{"in_game_battle_user_cnt": delta}, "$set": bson.M{"update_ts": now}},
	); err != nil {
		return BattleResult{}, fmt.Errorf("store: update battle count: %w", err)
	}

	return BattleResult{Can: true, AllBattle: allBattle, Room: roomMeta(room)}, nil
}

// Presence sets userID's online flag for roomID and returns the room's
// identity snapshot for event publishing. A transition to the same state is
// a no-op so repeated heartbeats don't skew online_user_cnt.
func (s *Store) Presence(ctx mongo.SessionContext, roomID, userID string, online bool) (RoomMeta, error) {
	var room Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return RoomMeta{}, ErrRoomNotFound
		}
		return RoomMeta{}, fmt.Errorf("store: load room: %w", err)
	}

	var existing RoomPresence
	switch err := s.presence.FindOne(ctx, bson.M{"room_id": roomID, "user_id": userID}).Decode(&existing); {
	case err == nil:
		if existing.Online == online {
			return roomMeta(room), nil
		}
	case errors.Is(err, mongo.ErrNoDocuments):
		if !online {
			return roomMeta(room), nil
		}
	default:
		return RoomMeta{}, fmt.Errorf("store: load presence: %w", err)
	}

	now := nowMs()
	_, err := s.presence.UpdateOne(ctx,
		bson.M{"room_id": roomID, "user_id": userID},
		bson.M{"$set": bson.M{"online": online, "update_ts": now}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return RoomMeta{}, fmt.Errorf("store: upsert presence: %w", err)
	}

	delta := 1
	if !online {
		delta = -1
	}
	if _, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID},
		bson.M{"$inc": bson.M{"online_user_cnt": delta}, "$set": bson.M{"update_ts": now}},
	); err != nil {
		return RoomMeta{}, fmt.Errorf("store: update online count: %w", err)
	}
	return roomMeta(room), nil
}
