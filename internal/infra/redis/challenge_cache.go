package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ChallengeLoader fetches challenge content from a backing store.
type ChallengeLoader interface {
	LoadChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error)
}

// ChallengeCache caches answer specifications in Redis (one JSON value per
// challenge) and falls back to a loader on cache miss. Misses are filled
// under singleflight so a burst of submissions loads each challenge once.
type ChallengeCache struct {
	client *redis.Client
	loader ChallengeLoader
	ttl    time.Duration
	sf     singleflight.Group
}

// cachedSpec is the stored shape; the answer fields are excluded from the
// challenge's public JSON tags, so they are mapped explicitly here.
type cachedSpec struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Difficulty  domain.Difficulty `json:"difficulty"`
	MustInclude string            `json:"mustInclude"`
	Answer      string            `json:"answer"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func NewChallengeCache(client *redis.Client, loader ChallengeLoader, ttl time.Duration) *ChallengeCache {
	return &ChallengeCache{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (c *ChallengeCache) GetChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error) {
	key := c.key(challengeID)

	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return decodeSpec(raw)
	}
	if !errors.Is(err, redis.Nil) {
		// Degrade to the loader rather than failing the submission.
		return c.loader.LoadChallenge(ctx, challengeID)
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(challengeID, 10), func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if raw, err := c.client.Get(ctx, key).Result(); err == nil {
			return decodeSpec(raw)
		}

		ch, err := c.loader.LoadChallenge(ctx, challengeID)
		if err != nil {
			return domain.Challenge{}, err
		}

		data, err := json.Marshal(specFromChallenge(ch))
		if err != nil {
			return domain.Challenge{}, fmt.Errorf("encode challenge spec: %w", err)
		}
		// best-effort fill
		_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		return ch, nil
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return result.(domain.Challenge), nil
}

func (c *ChallengeCache) key(challengeID int64) string {
	return "challenge:" + strconv.FormatInt(challengeID, 10) + ":spec"
}

func (c *ChallengeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// singleflight serializes fills per key only; the global locked source
	// keeps concurrent fills on different keys safe
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}

func decodeSpec(raw string) (domain.Challenge, error) {
	var spec cachedSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return domain.Challenge{}, fmt.Errorf("decode challenge spec: %w", err)
	}
	return domain.Challenge{
		ID:          spec.ID,
		Name:        spec.Name,
		Description: spec.Description,
		Difficulty:  spec.Difficulty,
		MustInclude: spec.MustInclude,
		Answer:      spec.Answer,
		CreatedAt:   spec.CreatedAt,
	}, nil
}

func specFromChallenge(ch domain.Challenge) cachedSpec {
	return cachedSpec{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Difficulty:  ch.Difficulty,
		MustInclude: ch.MustInclude,
		Answer:      ch.Answer,
		CreatedAt:   ch.CreatedAt,
	}
}
