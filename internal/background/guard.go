package background

import (
	"context"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/logging"
	"go.uber.org/zap"
)

// roomEngine is the subset of *room.Engine the guard depends on, narrowed
// to avoid an import cycle (room does not need to know about background).
type roomEngine interface {
	Stand(ctx context.Context, roomID, uid string, forced bool) error
	EndBattle(ctx context.Context, roomID, uid string) error
}

// Guard arms and disarms the two forced timeouts the room lifecycle engine
// relies on: idle-queue kick and stuck-in-battle end.
type Guard struct {
	scheduler     *Scheduler
	engine        roomEngine
	queueIdleTTL  time.Duration
	battleTimeout time.Duration
}

// NewGuard builds a Guard. queueIdleTTL corresponds to
// SECS_OF_BEING_KICKED_OUT_FROM_THE_GAME_QUEUE and battleTimeout to
// SECS_OF_BEING_TURNED_OFF_IN_GAME_BATTLE.
func NewGuard(engine roomEngine, queueIdleTTL, battleTimeout time.Duration) *Guard {
	return &Guard{scheduler: NewScheduler(), engine: engine, queueIdleTTL: queueIdleTTL, battleTimeout: battleTimeout}
}

// ArmQueueIdleKick (re)schedules a forced stand for uid in roomID, superseding
// any previously armed kick for this user. Call on every seat/ready
// transition that should reset the idle clock.
func (g *Guard) ArmQueueIdleKick(roomID, uid string) {
	g.scheduler.Schedule(uid, TaskQueueIdleKick, g.queueIdleTTL, func() {
		ctx := context.Background()
		if err := g.engine.Stand(ctx, roomID, uid, true); err != nil {
			logging.Warn(ctx, "forced idle-kick stand failed",
				zap.String("room_id", roomID), zap.String("uid", uid), zap.Error(err))
		}
	})
}

// DisarmQueueIdleKick cancels a pending idle kick, e.g. once the user stands
// voluntarily or readies up.
func (g *Guard) DisarmQueueIdleKick(uid string) {
	g.scheduler.Cancel(uid, TaskQueueIdleKick)
}

// ArmBattleTimeout (re)schedules a forced end-battle for uid in roomID.
func (g *Guard) ArmBattleTimeout(roomID, uid string) {
	g.scheduler.Schedule(uid, TaskBattleTimeout, g.battleTimeout, func() {
		ctx := context.Background()
		if err := g.engine.EndBattle(ctx, roomID, uid); err != nil {
			logging.Warn(ctx, "forced battle timeout failed",
				zap.String("room_id", roomID), zap.String("uid", uid), zap.Error(err))
		}
	})
}

// DisarmBattleTimeout cancels a pending forced battle end, e.g. once the
// real game server reports a result first.
func (g *Guard) DisarmBattleTimeout(uid string) {
	g.scheduler.Cancel(uid, TaskBattleTimeout)
}

// Stop cancels every pending timeout, for graceful shutdown.
func (g *Guard) Stop() {
	g.scheduler.Stop()
}
