package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ChallengeLoader fetches challenge content from a backing store.
type ChallengeLoader interface {
	LoadChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error)
}

// ChallengeCache caches answer specifications with TTL to avoid hitting the
// store on every submission.
type ChallengeCache struct {
	loader ChallengeLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[int64]cachedChallenge
}

type cachedChallenge struct {
	challenge domain.Challenge
	expiresAt time.Time
}

func NewChallengeCache(loader ChallengeLoader, ttl time.Duration) *ChallengeCache {
	return &ChallengeCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[int64]cachedChallenge),
	}
}

func (c *ChallengeCache) GetChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[challengeID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.challenge, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(strconv.FormatInt(challengeID, 10), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[challengeID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.challenge, nil
		}
		c.mu.RUnlock()

		ch, err := c.loader.LoadChallenge(ctx, challengeID)
		if err != nil {
			return domain.Challenge{}, err
		}

		c.mu.Lock()
		c.cache[challengeID] = cachedChallenge{
			challenge: ch,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return ch, nil
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return result.(domain.Challenge), nil
}

func (c *ChallengeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations; the global source is locked,
	// so concurrent fills on different keys are safe
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
