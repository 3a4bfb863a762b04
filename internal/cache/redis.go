// Package cache wraps the Redis cluster used for daily counters, AI persona
// caches and the SMS one-time-code token bucket.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/amazingchow/game-companion-gateway/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Service handles all interaction with the Redis cluster backing the cache layer.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client, for use by other packages (e.g. lock) that
// need raw access.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService creates a Redis connection wrapped with a circuit breaker.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     20,
		MinIdleConns: 4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
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
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// Ping checks Redis connectivity.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	if err != nil && err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
	}
	return err
}

// Close gracefully shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Get retrieves a string value, returning redis.Nil if the key is absent.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.Get(ctx, key).Result()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			return "", redis.Nil
		}
		return "", err
	}
	return res.(string), nil
}

// Set stores a string value with an optional TTL (0 = no expiry).
func (s *Service) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, val, ttl).Err()
	})
	if err != nil && err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
	}
	return err
}

// Del removes a key.
func (s *Service) Del(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, key).Err()
	})
	if err != nil && err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
	}
	return err
}

// IncrWithExpireAt increments a counter key and, in the same transaction, sets its
// expiry to expireAt on every call. Used for the SMS daily token bucket, which must reset at
// midnight rather than on a rolling TTL from first use.
func (s *Service) IncrWithExpireAt(ctx context.Context, key string, expireAt time.Time) (int64, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		pipe := s.client.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.ExpireAt(ctx, key, expireAt)
		_, err := pipe.Exec(ctx)
		if err != nil {
			return nil, err
		}
		return incr.Val(), nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
		}
		return 0, err
	}
	return res.(int64), nil
}
