package background

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleFiresAfterDelay(t *testing.T) {
	s := NewScheduler()
	var fired int32
	s.Schedule("u1", TaskQueueIdleKick, 20*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestRescheduleSupersedesPrior(t *testing.T) {
	s := NewScheduler()
	var firedWith int32

	s.Schedule("u1", TaskQueueIdleKick, 15*time.Millisecond, func() {
		atomic.StoreInt32(&firedWith, 1)
	})
	s.Schedule("u1", TaskQueueIdleKick, 40*time.Millisecond, func() {
		atomic.StoreInt32(&firedWith, 2)
	})

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&firedWith))
}

func TestCancelPreventsFiring(t *testing.T) {
	s := NewScheduler()
	var fired int32
	s.Schedule("u1", TaskBattleTimeout, 15*time.Millisecond, func() {
		atomic.AddInt32(&fired, 1)
	})
	s.Cancel("u1", TaskBattleTimeout)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestStopCancelsEverything(t *testing.T) {
	s := NewScheduler()
	var fired int32
	s.Schedule("u1", TaskQueueIdleKick, 15*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.Schedule("u2", TaskBattleTimeout, 15*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestIndependentKeysDoNotInterfere(t *testing.T) {
	s := NewScheduler()
	var fired int32
	s.Schedule("u1", TaskQueueIdleKick, 15*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	s.Schedule("u2", TaskQueueIdleKick, 15*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fired))
}
