package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
)

func TestChallengeCacheAvoidsRepeatLoads(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seeded := store.Seed(domain.Challenge{Name: "cached", Difficulty: domain.DifficultyEasy, Answer: "x"})

	loader := &countingLoader{inner: store}
	cache := NewChallengeCache(loader, time.Minute)

	if _, err := cache.GetChallenge(ctx, seeded[0].ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	if _, err := cache.GetChallenge(ctx, seeded[0].ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestChallengeCacheDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	loader := &countingLoader{inner: store}
	cache := NewChallengeCache(loader, time.Minute)

	if _, err := cache.GetChallenge(ctx, 1); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// A miss is not cached: once the challenge exists the cache serves it.
	seeded := store.Seed(domain.Challenge{Name: "late", Difficulty: domain.DifficultyEasy, Answer: "x"})
	if _, err := cache.GetChallenge(ctx, seeded[0].ID); err != nil {
		t.Fatalf("expected hit after seed, got %v", err)
	}
}

func TestChallengeCacheConcurrentFillsOnDistinctKeys(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	var seeds []domain.Challenge
	for i := 0; i < 16; i++ {
		seeds = append(seeds, domain.Challenge{Name: "ch", Difficulty: domain.DifficultyEasy, Answer: "x"})
	}
	seeded := store.Seed(seeds...)

	cache := NewChallengeCache(store, time.Minute)

	// Fills on different IDs run in parallel; the jitter source must tolerate
	// that (singleflight only serializes per key).
	var wg sync.WaitGroup
	for _, ch := range seeded {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			got, err := cache.GetChallenge(ctx, id)
			if err != nil {
				t.Errorf("get %d: %v", id, err)
				return
			}
			if got.ID != id {
				t.Errorf("got challenge %d, want %d", got.ID, id)
			}
		}(ch.ID)
	}
	wg.Wait()
}

type countingLoader struct {
	inner ChallengeLoader
	calls int
}

func (l *countingLoader) LoadChallenge(ctx context.Context, id int64) (domain.Challenge, error) {
	l.calls++
	return l.inner.LoadChallenge(ctx, id)
}
