package room

import (
	"context"
	"fmt"
	"sort"

	"github.com/amazingchow/game-companion-gateway/internal/store"
)

// bootstrapStore is the subset of *store.Store Bootstrap depends on.
type bootstrapStore interface {
	UpsertInstalledGame(ctx context.Context, g store.InstalledGame) error
	UpsertInstalledAIPlayer(ctx context.Context, p store.InstalledAIPlayer) error
	UpsertRoomFromBootstrap(ctx context.Context, def store.RoomBootstrapDef) error
}

// Bootstrap upserts declarative game, AI-persona, and room definitions at
// startup. AI personas are grouped by the room they belong to (master first,
// then slaves ordered by slave_number) to populate that room's owner_*
// identity, assistants[], and ai_player_cnt baseline. An AI marked be_hosting
// with a be_hosting_room_id is grouped under that room instead of its own
// room_id.
func Bootstrap(
	ctx context.Context,
	s bootstrapStore,
	games []store.InstalledGame,
	aiPlayers []store.InstalledAIPlayer,
	rooms []store.RoomDefinition,
) error {
	for _, g := range games {
		if err := s.UpsertInstalledGame(ctx, g); err != nil {
			return fmt.Errorf("room: bootstrap game %s: %w", g.Index, err)
		}
	}

	byRoom := map[string][]store.InstalledAIPlayer{}
	for _, p := range aiPlayers {
		if err := s.UpsertInstalledAIPlayer(ctx, p); err != nil {
			return fmt.Errorf("room: bootstrap ai player %s: %w", p.ID, err)
		}
		roomID := p.RoomID
		if p.BeHosting && p.BeHostingRoomID != "" {
			roomID = p.BeHostingRoomID
		}
		byRoom[roomID] = append(byRoom[roomID], p)
	}

	for _, def := range rooms {
		members := byRoom[def.RoomID]
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].IsMaster != members[j].IsMaster {
				return members[i].IsMaster
			}
			return members[i].SlaveNumber < members[j].SlaveNumber
		})

		var master store.InstalledAIPlayer
		assistants := make([]string, 0, len(members))
		for _, m := range members {
			if m.IsMaster {
				master = m
			} else {
				assistants = append(assistants, m.ID)
			}
		}

		bootstrapDef := store.RoomBootstrapDef{
			RoomDefinition: def,
			BeHosting:      master.BeHosting,
			OwnerID:        master.ID,
			OwnerNickname:  master.Nickname,
			OwnerGender:    master.Gender,
			OwnerAvatar:    master.Avatar,
			Assistants:     assistants,
			AIPlayerCnt:    len(members),
		}
		if bootstrapDef.GameIndex == "" {
			bootstrapDef.GameIndex = master.GameIndex
		}

		if err := s.UpsertRoomFromBootstrap(ctx, bootstrapDef); err != nil {
			return fmt.Errorf("room: bootstrap room %s: %w", def.RoomID, err)
		}
	}

	return nil
}
