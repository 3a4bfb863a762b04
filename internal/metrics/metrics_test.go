package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	t.Run("RedisOperationsTotal", func(t *testing.T) {
		RedisOperationsTotal.WithLabelValues("get", "success").Inc()
		val := testutil.ToFloat64(RedisOperationsTotal.WithLabelValues("get", "success"))
		if val < 1 {
			t.Errorf("expected RedisOperationsTotal to be at least 1, got %v", val)
		}
	})

	t.Run("RedisOperationDuration", func(t *testing.T) {
		RedisOperationDuration.WithLabelValues("get").Observe(0.1)
	})

	t.Run("RoomTransitions", func(t *testing.T) {
		RoomTransitions.WithLabelValues("sit", "ok").Inc()
		val := testutil.ToFloat64(RoomTransitions.WithLabelValues("sit", "ok"))
		if val < 1 {
			t.Errorf("expected RoomTransitions to be at least 1, got %v", val)
		}
	})

	t.Run("LockAcquireTotal", func(t *testing.T) {
		LockAcquireTotal.WithLabelValues("room:abc", "acquired").Inc()
		val := testutil.ToFloat64(LockAcquireTotal.WithLabelValues("room:abc", "acquired"))
		if val < 1 {
			t.Errorf("expected LockAcquireTotal to be at least 1, got %v", val)
		}
	})

	t.Run("EventBusPublishTotal", func(t *testing.T) {
		EventBusPublishTotal.WithLabelValues("room_event", "ok").Inc()
		val := testutil.ToFloat64(EventBusPublishTotal.WithLabelValues("room_event", "ok"))
		if val < 1 {
			t.Errorf("expected EventBusPublishTotal to be at least 1, got %v", val)
		}
	})

	t.Run("IncDecRoomActive", func(t *testing.T) {
		IncRoomActive()
		val := testutil.ToFloat64(ActiveRooms)
		DecRoomActive()
		if val < 1 {
			t.Errorf("expected ActiveRooms to be at least 1 after IncRoomActive, got %v", val)
		}
	})
}
