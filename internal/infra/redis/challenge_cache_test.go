package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
	"github.com/ACM-VIT/codex-portal/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestChallengeCacheFillsRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	store := memory.NewStore()
	seeded := store.Seed(domain.Challenge{
		Name:        "warmup",
		Difficulty:  domain.DifficultyEasy,
		MustInclude: "FLAG{",
		Answer:      ".*}",
	})

	loader := &countingLoader{inner: store}
	cache := NewChallengeCache(client, loader, time.Minute)

	ch, err := cache.GetChallenge(context.Background(), seeded[0].ID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if ch.MustInclude != "FLAG{" || ch.Answer != ".*}" {
		t.Fatalf("answer spec lost through cache: %+v", ch)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second read hits redis, loader not incremented.
	ch, err = cache.GetChallenge(context.Background(), seeded[0].ID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if ch.Difficulty != domain.DifficultyEasy {
		t.Fatalf("difficulty lost through cache: %+v", ch)
	}
}

func TestChallengeCachePropagatesNotFound(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewChallengeCache(newClient(mr), &countingLoader{inner: memory.NewStore()}, time.Minute)
	_, err = cache.GetChallenge(context.Background(), 99)
	if !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChallengeCacheExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := memory.NewStore()
	seeded := store.Seed(domain.Challenge{Name: "ttl", Difficulty: domain.DifficultyHard, Answer: "secret"})
	loader := &countingLoader{inner: store}
	cache := NewChallengeCache(newClient(mr), loader, time.Minute)

	if _, err := cache.GetChallenge(context.Background(), seeded[0].ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.GetChallenge(context.Background(), seeded[0].ID); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after TTL, loader calls=%d", loader.calls)
	}
}

func TestChallengeCacheConcurrentFillsOnDistinctKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := memory.NewStore()
	var seeds []domain.Challenge
	for i := 0; i < 16; i++ {
		seeds = append(seeds, domain.Challenge{Name: "ch", Difficulty: domain.DifficultyEasy, Answer: "x"})
	}
	seeded := store.Seed(seeds...)

	cache := NewChallengeCache(newClient(mr), store, time.Minute)

	// Fills on different IDs run in parallel; the jitter source must tolerate
	// that (singleflight only serializes per key).
	var wg sync.WaitGroup
	for _, ch := range seeded {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			got, err := cache.GetChallenge(context.Background(), id)
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

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type countingLoader struct {
	inner ChallengeLoader
	calls int
}

func (l *countingLoader) LoadChallenge(ctx context.Context, id int64) (domain.Challenge, error) {
	l.calls++
	return l.inner.LoadChallenge(ctx, id)
}
