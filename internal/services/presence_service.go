package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"shopops/portal/internal/models"
)

const presenceKeyPrefix = "presence:"

// IPresenceService tracks which users have an open dashboard. It lives entirely
// in Redis and never touches report data.
type IPresenceService interface {
	Heartbeat(ctx context.Context, p models.Presence) error
	Online(ctx context.Context) ([]models.Presence, error)
}

type presenceService struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresenceService(rdb *redis.Client, ttl time.Duration) IPresenceService {
	return &presenceService{rdb: rdb, ttl: ttl}
}

func (s *presenceService) Heartbeat(ctx context.Context, p models.Presence) error {
	if p.UserID == "" {
		return invalid("userId", "is required")
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = time.Now().UTC()
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode presence: %w", err)
	}
	if err := s.rdb.Set(ctx, presenceKeyPrefix+p.UserID, encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to record heartbeat for %s: %w", p.UserID, err)
	}
	return nil
}

// Online lists users whose heartbeat has not expired, most recent first.
func (s *presenceService) Online(ctx context.Context) ([]models.Presence, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, presenceKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}

	online := []models.Presence{}
	if len(keys) == 0 {
		return online, nil
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var p models.Presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		online = append(online, p)
	}
	sort.Slice(online, func(i, j int) bool {
		return online[i].LastSeen.After(online[j].LastSeen)
	})
	return online, nil
}
