package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"patientbooking/backend/internal/domain"
)

const (
	DefaultNextBookingTTL = 5 * time.Minute

	// noneMarker caches "patient has no active booking".
	noneMarker = "none"

	// versionTTL keeps a patient's version counter far longer than any read
	// between Version and Set, and is refreshed on every bump.
	versionTTL = 24 * time.Hour
)

var errVersionMoved = errors.New("redis: next booking version moved")

type NextBookingCache struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewNextBookingCache(client *redis.Client, ttl time.Duration) *NextBookingCache {
	if client == nil {
		panic("redis: client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultNextBookingTTL
	}
	return &NextBookingCache{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("patientbooking/backend/internal/store/redis"),
	}
}

func (c *NextBookingCache) Get(ctx context.Context, patientID int64) (*domain.BookingSummary, bool, error) {
	ctx, span := c.tracer.Start(ctx, "cache.next_booking.get")
	defer span.End()

	data, err := c.redis.Get(ctx, nextBookingKey(patientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("redis: failed to load next booking: %w", err)
	}
	if string(data) == noneMarker {
		return nil, true, nil
	}

	var summary domain.BookingSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("redis: failed to decode next booking: %w", err)
	}
	return &summary, true, nil
}

// Version returns the patient's invalidation counter, zero when none is stored.
func (c *NextBookingCache) Version(ctx context.Context, patientID int64) (int64, error) {
	ctx, span := c.tracer.Start(ctx, "cache.next_booking.version")
	defer span.End()

	v, err := c.redis.Get(ctx, nextBookingVersionKey(patientID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("redis: failed to load next booking version: %w", err)
	}
	return v, nil
}

// Set stores the answer unless the patient was invalidated after version was
// read. A skipped store is not an error.
func (c *NextBookingCache) Set(ctx context.Context, patientID int64, version int64, summary *domain.BookingSummary) error {
	ctx, span := c.tracer.Start(ctx, "cache.next_booking.set")
	defer span.End()

	data := []byte(noneMarker)
	if summary != nil {
		var err error
		data, err = json.Marshal(summary)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("redis: failed to encode next booking: %w", err)
		}
	}

	versionKey := nextBookingVersionKey(patientID)
	err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errVersionMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, nextBookingKey(patientID), data, c.ttl)
			return nil
		})
		return err
	}, versionKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errVersionMoved), errors.Is(err, redis.TxFailedErr):
		span.SetAttributes(attribute.Bool("cache.skipped", true))
		return nil
	default:
		span.RecordError(err)
		return fmt.Errorf("redis: failed to store next booking: %w", err)
	}
}

// Invalidate drops the cached answer and bumps the patient's version in one
// transaction.
func (c *NextBookingCache) Invalidate(ctx context.Context, patientID int64) error {
	ctx, span := c.tracer.Start(ctx, "cache.next_booking.invalidate")
	defer span.End()

	versionKey := nextBookingVersionKey(patientID)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		pipe.Del(ctx, nextBookingKey(patientID))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis: failed to invalidate next booking: %w", err)
	}
	return nil
}

func nextBookingKey(patientID int64) string {
	return fmt.Sprintf("booking:next:%d", patientID)
}

func nextBookingVersionKey(patientID int64) string {
	return fmt.Sprintf("booking:next:%d:version", patientID)
}
