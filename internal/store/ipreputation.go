package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// IpReputation implements the threat meter's NetworkReputation
// collaborator against a Redis set of blacklisted addresses,
// per spec.md §6.
type IpReputation struct {
	client *redis.Client
	setKey string
}

// NewIpReputation wraps an already-connected redis client. setKey is
// the Redis SET holding the external blacklist collection.
func NewIpReputation(client *redis.Client, setKey string) *IpReputation {
	return &IpReputation{client: client, setKey: setKey}
}

// IsBlacklisted reports whether ip is a member of the blacklist set.
// Redis errors are treated as "not blacklisted" rather than
// propagated — a reputation lookup failure should not itself block
// dispatch.
func (r *IpReputation) IsBlacklisted(ctx context.Context, ip string) bool {
	ok, err := r.client.SIsMember(ctx, r.setKey, ip).Result()
	if err != nil {
		return false
	}
	return ok
}

// Add seeds the blacklist set, used by the external feed ingestion
// job.
func (r *IpReputation) Add(ctx context.Context, ip string) error {
	if err := r.client.SAdd(ctx, r.setKey, ip).Err(); err != nil {
		return fmt.Errorf("IpReputation.Add: %w", err)
	}
	return nil
}
