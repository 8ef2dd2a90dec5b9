package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"classtrack/internal/attendance"
)

// RosterCache caches a session's record list in Redis so repeated roster
// reads while a teacher works a sheet skip the join against students.
// Writes to a session invalidate its entry; the worker invalidates again
// after recomputing counts.
type RosterCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRosterCache creates a cache with the given entry TTL.
func NewRosterCache(client *redis.Client, ttl time.Duration) *RosterCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RosterCache{client: client, ttl: ttl}
}

func rosterKey(sessionID string) string {
	return "classtrack:roster:" + sessionID
}

// Get returns the cached roster, or (nil, false) on miss or error. Cache
// failures are never fatal to a read; the caller falls through to the DB.
func (c *RosterCache) Get(ctx context.Context, sessionID string) ([]attendance.Record, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, rosterKey(sessionID)).Bytes()
	if err != nil {
		return nil, false
	}
	var records []attendance.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false
	}
	return records, true
}

// Set stores the roster for the configured TTL.
func (c *RosterCache) Set(ctx context.Context, sessionID string, records []attendance.Record) error {
	if c == nil || c.client == nil {
		return errors.New("roster cache not configured")
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rosterKey(sessionID), data, c.ttl).Err()
}

// Invalidate drops the cached roster for a session.
func (c *RosterCache) Invalidate(ctx context.Context, sessionID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, rosterKey(sessionID)).Err()
}
