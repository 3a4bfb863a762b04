package room

import (
	"fmt"
	"strings"

	"github.com/amazingchow/game-companion-gateway/internal/store"
)

// specialHostedRoomID is a data-driven quirk carried over from the source
// configuration rather than expressed through game_index: this room's AI
// master and slave both occupy the queue's first column regardless of which
// game it hosts.
const specialHostedRoomID = "room_000509"

// Seat is one cell of a room's derived queue grid.
type Seat struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Occupant string `json:"occupant,omitempty"`
	IsAI     bool   `json:"is_ai,omitempty"`
	IsReady  bool   `json:"is_ready,omitempty"`
	IsBattle bool   `json:"is_in_battle,omitempty"`
}

// Grid is a room's fully merged seat layout: AI pre-fill plus live human
// occupants, ready for the HTTP layer to serialize.
type Grid struct {
	Rows  int      `json:"rows"`
	Cols  int      `json:"cols"`
	Seats [][]Seat `json:"seats"`
}

// ParseGrid derives (rows, cols) from a queue_symbol descriptor such as
// "X,X;X,X" (rows separated by ';', cells by ',').
func ParseGrid(queueSymbol string) (rows, cols int, err error) {
	rowParts := strings.Split(strings.TrimSpace(queueSymbol), ";")
	if len(rowParts) == 0 || rowParts[0] == "" {
		return 0, 0, fmt.Errorf("room: empty queue_symbol")
	}
	rows = len(rowParts)
	cols = len(strings.Split(rowParts[0], ","))
	if cols == 0 {
		return 0, 0, fmt.Errorf("room: malformed queue_symbol %q", queueSymbol)
	}
	return rows, cols, nil
}

// aiSeatStrategy returns the (x,y) positions the room's AI players occupy,
// ordered master first then ascending slave_number. Most games only ever
// field a lone master AI; a handful of game_index values field a second AI
// alongside it, and one specific hosted room pins both AIs regardless of
// which game it runs.
type aiSeatStrategy func(rows, cols, aiPlayerCnt int) [][2]int

var aiStrategiesByGameIndex = map[string]aiSeatStrategy{
	// two-seat games seat the slave beside the master when the grid has a
	// second column, otherwise stacked beneath it.
	"2": pairedAISeats,
}

func defaultAISeats(rows, cols, aiPlayerCnt int) [][2]int {
	positions := make([][2]int, 0, aiPlayerCnt)
	positions = append(positions, [2]int{0, 0})
	for i := 1; i < aiPlayerCnt && len(positions) < rows*cols; i++ {
		positions = append(positions, nextFreeCell(positions, rows, cols))
	}
	return positions
}

func pairedAISeats(rows, cols, aiPlayerCnt int) [][2]int {
	positions := [][2]int{{0, 0}}
	if aiPlayerCnt < 2 {
		return positions
	}
	if cols >= 2 {
		positions = append(positions, [2]int{1, 0})
	} else if rows >= 2 {
		positions = append(positions, [2]int{0, 1})
	} else {
		return positions
	}
	for i := 2; i < aiPlayerCnt && len(positions) < rows*cols; i++ {
		positions = append(positions, nextFreeCell(positions, rows, cols))
	}
	return positions
}

func nextFreeCell(taken [][2]int, rows, cols int) [2]int {
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			cell := [2]int{x, y}
			if !contains(taken, cell) {
				return cell
			}
		}
	}
	return [2]int{0, 0}
}

func contains(positions [][2]int, cell [2]int) bool {
	for _, p := range positions {
		if p == cell {
			return true
		}
	}
	return false
}

func aiSeatsFor(roomID, gameIndex string, rows, cols, aiPlayerCnt int) [][2]int {
	if roomID == specialHostedRoomID {
		positions := [][2]int{{0, 0}}
		for y := 1; y < rows && y < aiPlayerCnt; y++ {
			positions = append(positions, [2]int{0, y})
		}
		return positions
	}
	if strategy, ok := aiStrategiesByGameIndex[gameIndex]; ok {
		return strategy(rows, cols, aiPlayerCnt)
	}
	return defaultAISeats(rows, cols, aiPlayerCnt)
}

// BuildGrid derives a room's queue grid: AI pre-fill first, then live humans
// merged in at their stored (x,y).
func BuildGrid(detail *store.RoomDetail) (*Grid, error) {
	rows, cols, err := ParseGrid(detail.QueueSymbol)
	if err != nil {
		return nil, err
	}

	seats := make([][]Seat, rows)
	for y := range seats {
		seats[y] = make([]Seat, cols)
		for x := range seats[y] {
			seats[y][x] = Seat{X: x, Y: y}
		}
	}

	aiPositions := aiSeatsFor(detail.ID, detail.GameIndex, rows, cols, detail.AIPlayerCnt)
	for i, pos := range aiPositions {
		occupant := "ai:master"
		if i > 0 {
			occupant = fmt.Sprintf("ai:slave:%d", i)
		}
		seats[pos[1]][pos[0]] = Seat{X: pos[0], Y: pos[1], Occupant: occupant, IsAI: true}
	}

	for _, su := range detail.Seats {
		if su.AtY < 0 || su.AtY >= rows || su.AtX < 0 || su.AtX >= cols {
			continue
		}
		seats[su.AtY][su.AtX] = Seat{
			X:        su.AtX,
			Y:        su.AtY,
			Occupant: su.UserID,
			IsReady:  su.IsReady,
		}
	}

	return &Grid{Rows: rows, Cols: cols, Seats: seats}, nil
}
