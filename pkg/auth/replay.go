package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard remembers accepted report signatures so a captured request
// cannot be sent again while its timestamp is still inside the skew window.
type ReplayGuard interface {
	// Claim records the signature for keyID. It returns false when it was already claimed.
	Claim(ctx context.Context, keyID, signature string, ttl time.Duration) (bool, error)
	// Release forgets a claimed signature so the same report can be retried.
	Release(ctx context.Context, keyID, signature string) error
}

const replayKeyPrefix = "smartpark:ingest:sig:"

// memorySweepInterval bounds how often the in-process guard scans for expired claims.
const memorySweepInterval = time.Minute

type redisReplayGuard struct {
	client *redis.Client
}

// NewRedisReplayGuard shares claimed signatures across every engine instance.
func NewRedisReplayGuard(client *redis.Client) ReplayGuard {
	return &redisReplayGuard{client: client}
}

func (g *redisReplayGuard) Claim(ctx context.Context, keyID, signature string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+keyID+":"+signature, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim report signature: %w", err)
	}
	return ok, nil
}

func (g *redisReplayGuard) Release(ctx context.Context, keyID, signature string) error {
	if err := g.client.Del(ctx, replayKeyPrefix+keyID+":"+signature).Err(); err != nil {
		return fmt.Errorf("failed to release report signature: %w", err)
	}
	return nil
}

type memoryReplayGuard struct {
	mu        sync.Mutex
	claimed   map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryReplayGuard keeps claimed signatures in process. Used when Redis is not configured.
func NewMemoryReplayGuard() ReplayGuard {
	return &memoryReplayGuard{
		claimed: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (g *memoryReplayGuard) Claim(_ context.Context, keyID, signature string, ttl time.Duration) (bool, error) {
	now := g.now()
	key := keyID + ":" + signature

	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Sub(g.lastSweep) >= memorySweepInterval {
		g.sweep(now)
	}

	if expires, ok := g.claimed[key]; ok && now.Before(expires) {
		return false, nil
	}
	g.claimed[key] = now.Add(ttl)
	return true, nil
}

func (g *memoryReplayGuard) Release(_ context.Context, keyID, signature string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, keyID+":"+signature)
	return nil
}

// sweep drops expired claims. Callers hold g.mu.
func (g *memoryReplayGuard) sweep(now time.Time) {
	for k, expires := range g.claimed {
		if !now.Before(expires) {
			delete(g.claimed, k)
		}
	}
	g.lastSweep = now
}

var (
	_ ReplayGuard = (*redisReplayGuard)(nil)
	_ ReplayGuard = (*memoryReplayGuard)(nil)
)
