package room

import (
	"context"

	"github.com/amazingchow/game-companion-gateway/internal/store"
)

// Detail is a room's metadata plus its derived, AI-pre-filled, human-merged
// seat grid — the shape the HTTP layer's slow-path room responses serialize.
type Detail struct {
	store.RoomDetail
	Grid *Grid `json:"grid,omitempty"`
}

// GetRoom fetches a single room. On the slow path (fast=false) its seat grid
// is derived and merged with live occupants.
func (e *Engine) GetRoom(ctx context.Context, roomID string, fast bool) (*Detail, error) {
	d, err := e.store.GetRoom(ctx, roomID, fast)
	if err != nil {
		return nil, err
	}
	out := &Detail{RoomDetail: *d}
	if fast {
		return out, nil
	}
	grid, err := BuildGrid(d)
	if err != nil {
		return nil, err
	}
	out.Grid = grid
	return out, nil
}

// ListRooms returns rooms for gameIndex, ranked per the fixed listing order,
// with the same fast/slow grid-hydration distinction as GetRoom.
func (e *Engine) ListRooms(ctx context.Context, gameIndex string, offset, limit int64, fast bool) ([]Detail, error) {
	rooms, err := e.store.ListRooms(ctx, gameIndex, offset, limit, fast)
	if err != nil {
		return nil, err
	}

	out := make([]Detail, 0, len(rooms))
	for i := range rooms {
		d := Detail{RoomDetail: rooms[i]}
		if !fast {
			grid, err := BuildGrid(&rooms[i])
			if err != nil {
				return nil, err
			}
			d.Grid = grid
		}
		out = append(out, d)
	}
	return out, nil
}
