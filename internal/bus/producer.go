// Package bus publishes domain events (room lifecycle transitions and game
// results) to Kafka. Envelopes are JSON rather than protobuf: no protoc
// toolchain is available to generate message types from a .proto schema in
// this environment, so the wire format trades compactness for a
// self-describing payload the consumer side can decode with
// encoding/json alone.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/logging"
	"github.com/amazingchow/game-companion-gateway/internal/metrics"
	kafka "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const sendTimeout = 5 * time.Second

// RoomEventBody is the event-specific payload carried inside a RoomEvent
// envelope: room/owner identity plus event-specific integers in Counters
// (x/y for EnterQueue; queue_is_ready or queue_is_in_game_battle as 0/1 for
// the ready and battle events).
type RoomEventBody struct {
	RoomID        string         `json:"room_id"`
	GameIndex     string         `json:"game_index"`
	BeHosting     bool           `json:"be_hosting"`
	UID           string         `json:"uid,omitempty"`
	Nickname      string         `json:"nickname,omitempty"`
	Avatar        string         `json:"avatar,omitempty"`
	OwnerID       string         `json:"owner_id,omitempty"`
	OwnerNickname string         `json:"owner_nickname,omitempty"`
	OwnerGender   string         `json:"owner_gender,omitempty"`
	OwnerAvatar   string         `json:"owner_avatar,omitempty"`
	Counters      map[string]int `json:"counters,omitempty"`
}

// RoomEvent is published whenever a room's denormalized state changes:
// enter/leave, sit/stand, ready/unready, battle start/end. It is wrapped in
// the event_type/event_body/trace_id/timestamp_ms envelope so a downstream
// consumer can dedupe on trace_id.
type RoomEvent struct {
	EventType   string        `json:"event_type"`
	EventBody   RoomEventBody `json:"event_body"`
	TraceID     string        `json:"trace_id"`
	TimestampMs int64         `json:"timestamp_ms"`
}

// RoomID is a convenience accessor used to key the Kafka message.
func (e RoomEvent) RoomID() string {
	return e.EventBody.RoomID
}

// GameResult is published once a room's battle concludes and the ingestor
// has durably recorded the outcome. Field set mirrors the raw GameResult
// store record, so a downstream consumer and the durable store agree on
// shape; trace_id is what lets a consumer dedupe at-least-once delivery.
type GameResult struct {
	TraceID       string         `json:"trace_id"`
	StatusCode    int            `json:"status_code"`
	AppUserID     string         `json:"app_user_id"`
	AppAIPlayerID string         `json:"app_ai_player_id"`
	AppRoomID     string         `json:"app_room_id"`
	AppGameIndex  string         `json:"app_game_index"`
	GameRegion    string         `json:"game_region"`
	GameUID       string         `json:"game_uid"`
	GameBID       string         `json:"game_bid"`
	OrderID       string         `json:"order_id"`
	ResultType    string         `json:"result_type"`
	ResultGameIdx *int           `json:"result_game_idx,omitempty"`
	ResultWin     *bool          `json:"result_win,omitempty"`
	ResultScreens []string       `json:"result_screenshots,omitempty"`
	ReceiveTimeMs int64          `json:"receive_time_ms"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// messageWriter is the subset of *kafka.Writer the producer depends on, so
// tests can substitute a fake writer without a live broker.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON-encoded domain events to Kafka, wrapped in a circuit
// breaker so a degraded broker cannot stall the room lifecycle engine: failed
// publishes are logged and counted but never returned as a caller-facing error.
type Producer struct {
	roomEventWriter messageWriter
	resultWriter    messageWriter
	cb              *gobreaker.CircuitBreaker
}

// NewProducer creates a Producer targeting the given broker list and topics.
func NewProducer(brokers []string, resultTopic, roomEventTopic string) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: sendTimeout,
			Async:        false,
		}
	}

	st := gobreaker.Settings{
		Name:        "kafka",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("kafka").Set(stateVal)
		},
	}

	return &Producer{
		roomEventWriter: newWriter(roomEventTopic),
		resultWriter:    newWriter(resultTopic),
		cb:              gobreaker.NewCircuitBreaker(st),
	}
}

// PublishRoomEvent sends a RoomEvent, swallowing transport failures after
// logging and counting them (swallow-and-alarm: a dropped room event must
// never block the HTTP request that produced it).
func (p *Producer) PublishRoomEvent(ctx context.Context, ev RoomEvent) {
	p.publish(ctx, p.roomEventWriter, "room_event", ev.RoomID(), ev)
}

// PublishGameResult sends a GameResult event, swallowing transport failures.
// The message key is order_id, matching spec.md §6's "keyed by room_id or
// order_id" note for result events.
func (p *Producer) PublishGameResult(ctx context.Context, res GameResult) {
	p.publish(ctx, p.resultWriter, "game_result", res.OrderID, res)
}

func (p *Producer) publish(ctx context.Context, w messageWriter, topicLabel, key string, v any) {
	start := time.Now()
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error(ctx, "failed to marshal event bus payload", zap.Error(err), zap.String("topic", topicLabel))
		metrics.EventBusPublishTotal.WithLabelValues(topicLabel, "marshal_error").Inc()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, w.WriteMessages(sendCtx, kafka.Message{
			Key:   []byte(key),
			Value: data,
			Time:  time.Now(),
		})
	})

	metrics.EventBusPublishDuration.WithLabelValues(topicLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("kafka").Inc()
			metrics.EventBusPublishTotal.WithLabelValues(topicLabel, "circuit_open").Inc()
			logging.Warn(ctx, "kafka circuit breaker open, dropping event", zap.String("topic", topicLabel))
			return
		}
		metrics.EventBusPublishTotal.WithLabelValues(topicLabel, "error").Inc()
		logging.Error(ctx, "failed to publish event", zap.Error(err), zap.String("topic", topicLabel))
		return
	}

	metrics.EventBusPublishTotal.WithLabelValues(topicLabel, "ok").Inc()
}

// Healthy reports whether the circuit breaker guarding Kafka publishes is
// currently closed (or half-open); it is unhealthy only while tripped open.
func (p *Producer) Healthy() bool {
	return p.cb.State() != gobreaker.StateOpen
}

// Close flushes and closes the underlying Kafka writers.
func (p *Producer) Close() error {
	if err := p.roomEventWriter.Close(); err != nil {
		return fmt.Errorf("close room event writer: %w", err)
	}
	if err := p.resultWriter.Close(); err != nil {
		return fmt.Errorf("close result writer: %w", err)
	}
	return nil
}
