package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// roomListSort is the fixed ranking used by both GetRoom's siblings and
// ListRooms: operator-pinned rooms first, then rank weight, then the least
// full rooms, then the most populated (by presence), then most recently active.
var roomListSort = bson.D{
	{Key: "be_hosting", Value: -1},
	{Key: "rank_weight", Value: -1},
	{Key: "in_game_queue_user_cnt", Value: 1},
	{Key: "online_user_cnt", Value: -1},
	{Key: "update_ts", Value: -1},
}

// SeatedUser is a seat-grid entry enriched with readiness, for slow-path listing.
type SeatedUser struct {
	UserID  string
	AtX     int
	AtY     int
	IsReady bool
}

// RoomDetail is a Room plus its hydrated seat grid and presence list, returned
// by the slow path.
type RoomDetail struct {
	Room
	Seats     []SeatedUser
	Presences []string
}

const maxHydratedPresences = 100

// GetRoom fetches a single room by id, optionally hydrating its seat grid and
// presence list on the slow path.
func (s *Store) GetRoom(ctx context.Context, roomID string, fast bool) (*RoomDetail, error) {
	var room Room
	if err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("store: get room: %w", err)
	}

	detail := &RoomDetail{Room: room}
	if fast {
		return detail, nil
	}

	if err := s.hydrate(ctx, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListRooms returns rooms for gameIndex ("all" = unfiltered), ranked by
// roomListSort, with pagination. The fast path skips per-room hydration.
func (s *Store) ListRooms(ctx context.Context, gameIndex string, offset, limit int64, fast bool) ([]RoomDetail, error) {
	filter := bson.M{}
	if gameIndex != "" && gameIndex != "all" {
		filter["game_index"] = gameIndex
	}

	opts := options.Find().SetSort(roomListSort).SetSkip(offset).SetLimit(limit)
	cur, err := s.rooms.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	defer cur.Close(ctx)

	var rooms []Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("store: decode room list: %w", err)
	}

	details := make([]RoomDetail, 0, len(rooms))
	for _, r := range rooms {
		d := RoomDetail{Room: r}
		if !fast {
			if err := s.hydrate(ctx, &d); err != nil {
				return nil, err
			}
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *Store) hydrate(ctx context.Context, d *RoomDetail) error {
	seatCur, err := s.seats.Find(ctx, bson.M{"room_id": d.ID, "in_game_queue": true})
	if err != nil {
		return fmt.Errorf("store: list seats: %w", err)
	}
	defer seatCur.Close(ctx)

	var seats []RoomSeat
	if err := seatCur.All(ctx, &seats); err != nil {
		return fmt.Errorf("store: decode seats: %w", err)
	}

	for _, seat := range seats {
		var ready RoomReady
		isReady := false
		if err := s.ready.FindOne(ctx, bson.M{"room_id": d.ID, "user_id": seat.UserID}).Decode(&ready); err == nil {
			isReady = ready.InGameQueueBeReady
		}
		d.Seats = append(d.Seats, SeatedUser{UserID: seat.UserID, AtX: seat.AtX, AtY: seat.AtY, IsReady: isReady})
	}

	presCur, err := s.presence.Find(ctx,
		bson.M{"room_id": d.ID, "online": true},
		options.Find().SetLimit(maxHydratedPresences).SetSort(bson.D{{Key: "update_ts", Value: 1}}),
	)
	if err != nil {
		return fmt.Errorf("store: list presence: %w", err)
	}
	defer presCur.Close(ctx)

	var presences []RoomPresence
	if err := presCur.All(ctx, &presences); err != nil {
		return fmt.Errorf("store: decode presence: %w", err)
	}
	for _, p := range presences {
		d.Presences = append(d.Presences, p.UserID)
	}

	return nil
}
