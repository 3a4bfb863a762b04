// Package room implements the Room Lifecycle Engine: the transactional,
// distributed-lock-coordinated state machine tracking each room's
// presence/seat/ready/battle axes per user.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/bus"
	"github.com/amazingchow/game-companion-gateway/internal/lock"
	"github.com/amazingchow/game-companion-gateway/internal/logging"
	"github.com/amazingchow/game-companion-gateway/internal/metrics"
	"github.com/amazingchow/game-companion-gateway/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// lockTTL is the duration the engine holds room:{id}:queue_lock around every
// seat/ready/battle transition.
const lockTTL = 2 * time.Second

// Errors surfaced to the HTTP layer.
var (
	ErrQueueFull    = errors.New("room: queue is full")
	ErrSeatOccupied = errors.New("room: seat is occupied")
	ErrFrozen       = errors.New("room: caller is frozen out of the queue")
	ErrNotSeated    = errors.New("room: caller is not seated")
	ErrInBattle     = errors.New("room: caller is in battle")
	ErrNotReady     = errors.New("room: caller is not in the ready set")
	ErrLockBusy     = errors.New("room: could not acquire room lock")
)

// roomStore is the subset of store.Store the engine depends on, narrowed so
// tests can substitute an in-memory fake without a live Mongo deployment.
type roomStore interface {
	Txn(ctx context.Context, fn func(sc mongo.SessionContext) (interface{}, error)) (interface{}, error)
	Sit(sc mongo.SessionContext, roomID, userID string, x, y int) (store.SitResult, error)
	Stand(sc mongo.SessionContext, roomID, userID string, forced bool) (store.StandResult, error)
	Ready(sc mongo.SessionContext, roomID, userID string, want bool) (store.ReadyResult, error)
	Battle(sc mongo.SessionContext, roomID, userID string, want bool) (store.BattleResult, error)
	Presence(sc mongo.SessionContext, roomID, userID string, online bool) (store.RoomMeta, error)
	GetRoom(ctx context.Context, roomID string, fast bool) (*store.RoomDetail, error)
	ListRooms(ctx context.Context, gameIndex string, offset, limit int64, fast bool) ([]store.RoomDetail, error)
}

// eventPublisher is the subset of bus.Producer the engine depends on.
type eventPublisher interface {
	PublishRoomEvent(ctx context.Context, ev bus.RoomEvent)
}

// Engine is the Room Lifecycle Engine.
type Engine struct {
	store    roomStore
	locker   *lock.Redlock
	producer eventPublisher
}

// NewEngine builds an Engine.
func NewEngine(s roomStore, locker *lock.Redlock, producer eventPublisher) *Engine {
	return &Engine{store: s, locker: locker, producer: producer}
}

func lockKey(roomID string) string {
	return fmt.Sprintf("room:%s:queue_lock", roomID)
}

// withLock acquires the room's queue lock, runs fn, and releases it.
func (e *Engine) withLock(ctx context.Context, roomID string, fn func(ctx context.Context) error) error {
	l, err := e.locker.Acquire(ctx, lockKey(roomID), lockTTL)
	if err != nil {
		return ErrLockBusy
	}
	defer func() { _ = l.Release(ctx) }()
	return fn(ctx)
}

func (e *Engine) emit(ctx context.Context, roomID string, meta store.RoomMeta, uid, eventType string, counters map[string]int) {
	traceID, _ := ctx.Value(logging.TraceIDKey).(string)
	e.producer.PublishRoomEvent(ctx, bus.RoomEvent{
		EventType: eventType,
		EventBody: bus.RoomEventBody{
			RoomID:        roomID,
			GameIndex:     meta.GameIndex,
			BeHosting:     meta.BeHosting,
			UID:           uid,
			OwnerID:       meta.OwnerID,
			OwnerNickname: meta.OwnerNickname,
			OwnerGender:   meta.OwnerGender,
			OwnerAvatar:   meta.OwnerAvatar,
			Counters:      counters,
		},
		TraceID:     traceID,
		TimestampMs: time.Now().UnixMilli(),
	})
}

func observeTransition(kind string, start time.Time, outcome string) {
	metrics.RoomTransitions.WithLabelValues(kind, outcome).Inc()
	metrics.RoomTransitionDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Enter marks uid present in roomID.
func (e *Engine) Enter(ctx context.Context, roomID, uid string) error {
	start := time.Now()
	var meta store.RoomMeta
	return e.withLock(ctx, roomID, func(ctx context.Context) error {
		v, err := e.store.Txn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return e.store.Presence(sc, roomID, uid, true)
		})
		if err != nil {
			observeTransition("enter", start, "error")
			return err
		}
		meta, _ = v.(store.RoomMeta)
		observeTransition("enter", start, "ok")
		e.emit(ctx, roomID, meta, uid, "EnterRoom", nil)
		return nil
	})
}

// Leave marks uid absent from roomID.
func (e *Engine) Leave(ctx context.Context, roomID, uid string) error {
	start := time.Now()
	var meta store.RoomMeta
	return e.withLock(ctx, roomID, func(ctx context.Context) error {
		v, err := e.store.Txn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return e.store.Presence(sc, roomID, uid, false)
		})
		if err != nil {
			observeTransition("leave", start, "error")
			return err
		}
		meta, _ = v.(store.RoomMeta)
		observeTransition("leave", start, "ok")
		e.emit(ctx, roomID, meta, uid, "LeaveRoom", nil)
		return nil
	})
}

// Sit seats uid at (x,y) in roomID's queue grid.
func (e *Engine) Sit(ctx context.Context, roomID, uid string, x, y int) error {
	start := time.Now()
	var res store.SitResult
	err := e.withLock(ctx, roomID, func(ctx context.Context) error {
		v, err := e.store.Txn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			r, err := e.store.Sit(sc, roomID, uid, x, y)
			return r, err
		})
		if err != nil {
			return err
		}
		res = v.(store.SitResult)
		return nil
	})
	if err != nil {
		observeTransition("sit", start, "error")
		logTransitionFailure(ctx, roomID, uid, "sit", err)
		return translateLockErr(err)
	}

	switch {
	case res.Filtered:
		observeTransition("sit", start, "filtered")
		return nil
	case res.Full:
		observeTransition("sit", start, "queue_full")
		return ErrQueueFull
	case res.Occupied:
		observeTransition("sit", start, "seat_occupied")
		return ErrSeatOccupied
	case res.Frozen:
		observeTransition("sit", start, "frozen")
		return fmt.Errorf("%w: %d seconds remaining", ErrFrozen, res.FrozenSecondsLeft)
	}

	observeTransition("sit", start, "ok")
	e.emit(ctx, roomID, res.Room, uid, "EnterQueue", map[string]int{"x": x, "y": y})
	return nil
}

// Stand removes uid from roomID's queue grid. forced distinguishes a
// voluntary stand from a background/admin kick (which applies the
// 300-second freeze).
func (e *Engine) Stand(ctx context.Context, roomID, uid string, forced bool) error {
	start := time.Now()
	var res store.StandResult
	err := e.withLock(ctx, roomID, func(ctx context.Context) error {
		v, err := e.store.Txn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return e.store.Stand(sc, roomID, uid, forced)
		})
		if err != nil {
			return err
		}
		res = v.(store.StandResult)
		return nil
	})
	if err != nil {
		observeTransition("stand", start, "error")
		if errors.Is(err, store.ErrInBattle) {
			return ErrInBattle
		}
		return translateLockErr(err)
	}

	if res.Filtered {
		observeTransition("stand", start, "filtered")
		return nil
	}

	observeTransition("stand", start, "ok")
	e.emit(ctx, roomID, res.Room, uid, "LeaveQueue", nil)
	return nil
}

// Ready sets uid's readiness flag for roomID.
func (e *Engine) Ready(ctx context.Context, roomID, uid string, want bool) (allReady bool, err error) {
	kind := "unready"
	eventKind := "InQueueNotBeReady"
	if want {
		kind = "ready"
		eventKind = "InQueueBeReady"
	}

	start := time.Now()
	var res store.ReadyResult
	runErr := e.withLock(ctx, roomID, func(ctx context.Context) error {
		v, err := e.store.Txn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return e.store.Ready(sc, roomID, uid, want)
		})
		if err != nil {
			return err
		}
		res = v.(store.ReadyResult)
		return nil
	})
	if runErr != nil {
		observeTransition(kind, start, "error")
		if errors.Is(runErr, store.ErrInBattle) {
			return false, ErrInBattle
		}
		return false, translateLockErr(runErr)
	}

	if res.Filtered {
		observeTransition(kind, start, "filtered")
		return false, nil
	}

	observeTransition(kind, start, "ok")
	e.emit(ctx, roomID, res.Room, uid, eventKind, map[string]int{"queue_is_ready": boolToInt(res.AllReady)})
	return res.AllReady, nil
}

// StartBattle marks uid in-battle for roomID, provided uid is in the ready
// set. EndBattle clears the flag.
func (e *Engine) StartBattle(ctx context.Context, roomID, uid string) (allBattle bool, err error) {
	return e.battle(ctx, roomID, uid, true)
}

func (e *Engine) EndBattle(ctx context.Context, roomID, uid string) error {
	_, err := e.battle(ctx, roomID, uid, false)
	return err
}

func (e *Engine) battle(ctx context.Context, roomID, uid string, want bool) (bool, error) {
	kind := "end_battle"
	eventKind := "End3rdPartyGame"
	if want {
		kind = "start_battle"
		eventKind = "Start3rdPartyGame"
	}

	start := time.Now()
	var res store.BattleResult
	runErr := e.withLock(ctx, roomID, func(ctx context.Context) error {
		v, err := e.store.Txn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
			return e.store.Battle(sc, roomID, uid, want)
		})
		if err != nil {
			return err
		}
		res = v.(store.BattleResult)
		return nil
	})
	if runErr != nil {
		observeTransition(kind, start, "error")
		return false, translateLockErr(runErr)
	}

	if res.Filtered {
		observeTransition(kind, start, "filtered")
		if want {
			return false, ErrNotReady
		}
		return false, nil
	}

	observeTransition(kind, start, "ok")
	e.emit(ctx, roomID, res.Room, uid, eventKind, map[string]int{"queue_is_in_game_battle": boolToInt(res.AllBattle)})
	return res.AllBattle, nil
}

func translateLockErr(err error) error {
	if errors.Is(err, ErrLockBusy) {
		return ErrLockBusy
	}
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func logTransitionFailure(ctx context.Context, roomID, uid, kind string, err error) {
	logging.Warn(ctx, "room transition failed",
		zap.String("room_id", roomID), zap.String("uid", uid), zap.String("kind", kind), zap.Error(err))
}
