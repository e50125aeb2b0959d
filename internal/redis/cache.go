package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/scheduling-service/internal/scheduling"
)

// SlotCache caches day-view slot listings under short TTLs. Every error path
// degrades to a miss; the repository stays authoritative.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{client: client, ttl: ttl}
}

func dayKey(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("slots:%s:%s", doctorID, date.Format("2006-01-02"))
}

func (c *SlotCache) GetDaySlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.TimeSlot, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	raw, err := c.client.Get(ctx, dayKey(doctorID, date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("slot cache get: %v", err)
		}
		return nil, false
	}
	var slots []scheduling.TimeSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		log.Printf("slot cache decode: %v", err)
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) SetDaySlots(ctx context.Context, doctorID uuid.UUID, date time.Time, slots []scheduling.TimeSlot) {
	if c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		log.Printf("slot cache encode: %v", err)
		return
	}
	if err := c.client.Set(ctx, dayKey(doctorID, date), raw, c.ttl).Err(); err != nil {
		log.Printf("slot cache set: %v", err)
	}
}

func (c *SlotCache) InvalidateDay(ctx context.Context, doctorID uuid.UUID, date time.Time) {
	if err := c.client.Del(ctx, dayKey(doctorID, date)).Err(); err != nil {
		log.Printf("slot cache invalidate: %v", err)
	}
}
