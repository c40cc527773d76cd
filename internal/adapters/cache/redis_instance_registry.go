package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

const (
	instanceKeyPrefix = "gateway:instance:"
	instanceSetKey    = "gateway:instances"
)

// RedisInstanceRegistry keeps one expiring hash per live instance plus a membership set.
type RedisInstanceRegistry struct {
	client *redis.Client
}

func NewRedisInstanceRegistry(client *redis.Client) *RedisInstanceRegistry {
	return &RedisInstanceRegistry{client: client}
}

func instanceKey(id uuid.UUID) string {
	return instanceKeyPrefix + id.String()
}

func (r *RedisInstanceRegistry) Register(ctx context.Context, instance domain.Instance, ttl time.Duration) error {
	key := instanceKey(instance.ID)
	readyAt := ""
	if instance.ReadyAt != nil {
		readyAt = strconv.FormatInt(instance.ReadyAt.Unix(), 10)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"service_id": instance.ServiceID,
			"profile":    instance.Profile,
			"state":      string(instance.State),
			"started_at": strconv.FormatInt(instance.StartedAt.Unix(), 10),
			"ready_at":   readyAt,
		})
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, instanceSetKey, instance.ID.String())
		return nil
	})
	return err
}

// Refresh extends the entry lifetime. A missing entry was never written or already expired.
func (r *RedisInstanceRegistry) Refresh(ctx context.Context, instanceID uuid.UUID, ttl time.Duration) error {
	ok, err := r.client.Expire(ctx, instanceKey(instanceID), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotRegistered
	}
	return nil
}

func (r *RedisInstanceRegistry) Deregister(ctx context.Context, instanceID uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, instanceKey(instanceID))
		pipe.SRem(ctx, instanceSetKey, instanceID.String())
		return nil
	})
	return err
}

// State reads the advertised state of an instance, mainly for operators and tests.
func (r *RedisInstanceRegistry) State(ctx context.Context, instanceID uuid.UUID) (domain.State, error) {
	raw, err := r.client.HGet(ctx, instanceKey(instanceID), "state").Result()
	if err != nil {
		return "", err
	}
	return domain.State(raw), nil
}
