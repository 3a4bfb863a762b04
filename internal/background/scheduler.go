// Package background implements the gateway's cancellable delayed tasks: the
// idle-queue kick and the stuck-in-battle timeout, both of which must be
// superseded rather than stacked whenever the user's state changes again
// before they fire.
package background

import (
	"fmt"
	"sync"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/metrics"
)

// Task codes, used as the keying suffix for user_{uid}_background_{code}_delay_task.
const (
	TaskQueueIdleKick = 101
	TaskBattleTimeout = 102
)

// Scheduler runs named, cancellable delayed callbacks. Scheduling under a key
// already holding a pending timer cancels and replaces it.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler builds an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: map[string]*time.Timer{}}
}

func taskKey(uid string, code int) string {
	return fmt.Sprintf("user_%s_background_%d_delay_task", uid, code)
}

// Schedule arms fn to run after d under the given user/task code, replacing
// any previously armed task for that same key.
func (s *Scheduler) Schedule(uid string, code int, d time.Duration, fn func()) {
	key := taskKey(uid, code)
	label := fmt.Sprintf("%d", code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	metrics.BackgroundTasksScheduled.WithLabelValues(label).Inc()

	var self *time.Timer
	self = time.AfterFunc(d, func() {
		s.mu.Lock()
		// Only fire if this timer is still the one registered under key: a
		// Cancel or a later Schedule call may have already replaced it.
		current, ok := s.timers[key]
		fire := ok && current == self
		if fire {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		if !fire {
			return
		}
		metrics.BackgroundTasksFired.WithLabelValues(label).Inc()
		fn()
	})
	s.timers[key] = self
}

// Cancel disarms any pending task for uid/code.
func (s *Scheduler) Cancel(uid string, code int) {
	key := taskKey(uid, code)

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Stop cancels every pending task, for graceful shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
