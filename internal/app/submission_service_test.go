package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/app"
	"github.com/ACM-VIT/codex-portal/internal/domain"
	"github.com/ACM-VIT/codex-portal/internal/infra/memory"
)

func TestSubmitCorrectAnswerAwardsOnce(t *testing.T) {
	ctx := context.Background()
	service, store, ids := newTestService(t)

	result, err := service.SubmitAnswer(ctx, "alice", ids["hard"], "secret")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.AlreadyCompleted {
		t.Fatalf("expected fresh correct verdict, got %+v", result)
	}
	if result.Awarded != 50 || result.TotalPoints != 50 {
		t.Fatalf("expected 50 points awarded, got %+v", result)
	}

	// Resubmitting stays correct but never re-awards.
	result, err = service.SubmitAnswer(ctx, "alice", ids["hard"], "secret")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if !result.Correct || !result.AlreadyCompleted {
		t.Fatalf("expected alreadyCompleted on resubmit, got %+v", result)
	}
	if result.Awarded != 0 || result.TotalPoints != 50 {
		t.Fatalf("expected total unchanged at 50, got %+v", result)
	}

	subs := store.Submissions()
	if len(subs) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(subs))
	}
	for _, rec := range subs {
		if !rec.Correct {
			t.Fatalf("expected both audit rows correct, got %+v", rec)
		}
	}
}

func TestSubmitIncorrectAnswer(t *testing.T) {
	ctx := context.Background()
	service, store, ids := newTestService(t)

	result, err := service.SubmitAnswer(ctx, "bob", ids["hard"], "nope")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Correct || result.Awarded != 0 {
		t.Fatalf("expected incorrect verdict, got %+v", result)
	}

	lb, err := service.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	for _, e := range lb.Entries {
		if e.UserName == "bob" && e.Points != 0 {
			t.Fatalf("expected bob at 0 points, got %+v", e)
		}
	}

	subs := store.Submissions()
	if len(subs) != 1 || subs[0].Correct {
		t.Fatalf("expected one incorrect audit row, got %+v", subs)
	}
}

func TestSubmitUnknownChallenge(t *testing.T) {
	ctx := context.Background()
	service, store, _ := newTestService(t)

	_, err := service.SubmitAnswer(ctx, "alice", 9999, "secret")
	if !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
	if len(store.Submissions()) != 0 {
		t.Fatal("faulted submission must not be logged")
	}
}

func TestSubmitConfigurationFaultIsNotIncorrect(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seeded := store.Seed(domain.Challenge{
		Name:       "broken",
		Difficulty: domain.DifficultyEasy,
		Answer:     "(unbalanced",
	})
	service := app.NewSubmissionService(
		memory.NewChallengeCache(store, time.Minute), store, store, nil)

	_, err := service.SubmitAnswer(ctx, "alice", seeded[0].ID, "anything")
	if !errors.Is(err, domain.ErrMalformedPattern) {
		t.Fatalf("expected ErrMalformedPattern, got %v", err)
	}
	if len(store.Submissions()) != 0 {
		t.Fatal("faulted submission must not be logged")
	}
}

func TestConcurrentDuplicateSubmissionsAwardOnce(t *testing.T) {
	ctx := context.Background()
	service, _, ids := newTestService(t)

	const workers = 16
	var wg sync.WaitGroup
	transitions := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.SubmitAnswer(ctx, "alice", ids["hard"], "secret")
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			transitions <- result.Awarded
		}()
	}
	wg.Wait()
	close(transitions)

	total := 0
	for awarded := range transitions {
		total += awarded
	}
	if total != 50 {
		t.Fatalf("expected exactly one 50-point award, got %d total", total)
	}

	lb, err := service.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].Points != 50 {
		t.Fatalf("expected alice at exactly 50, got %+v", lb.Entries)
	}
}

func TestLeaderboardOrderingAndTies(t *testing.T) {
	ctx := context.Background()
	service, _, ids := newTestService(t)

	if _, err := service.SubmitAnswer(ctx, "zoe", ids["easy"], "FLAG{x}"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "adam", ids["easy"], "FLAG{y}"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, "mallory", ids["hard"], "secret"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	lb, err := service.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %+v", lb.Entries)
	}
	if lb.Entries[0].UserName != "mallory" || lb.Entries[0].Points != 50 {
		t.Fatalf("expected mallory leading with 50, got %+v", lb.Entries[0])
	}
	// The 10-point tie breaks by name.
	if lb.Entries[1].UserName != "adam" || lb.Entries[2].UserName != "zoe" {
		t.Fatalf("expected adam before zoe on tie, got %+v", lb.Entries)
	}
}

func TestRegisterUserCreatesZeroEntry(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	if err := service.RegisterUser(ctx, "newcomer"); err != nil {
		t.Fatalf("register: %v", err)
	}
	lb, err := service.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserName != "newcomer" || lb.Entries[0].Points != 0 {
		t.Fatalf("expected newcomer at 0, got %+v", lb.Entries)
	}
}

// newTestService seeds easy (prefix+pattern), medium (pattern), and hard
// (pattern) challenges and returns their IDs by tier.
func newTestService(t *testing.T) (*app.SubmissionService, *memory.Store, map[string]int64) {
	t.Helper()
	store := memory.NewStore()
	seeded := store.Seed(
		domain.Challenge{
			Name:        "welcome",
			Difficulty:  domain.DifficultyEasy,
			MustInclude: "FLAG{",
			Answer:      ".*}",
		},
		domain.Challenge{
			Name:       "hexhunt",
			Difficulty: domain.DifficultyMedium,
			Answer:     "[a-f0-9]{8}",
		},
		domain.Challenge{
			Name:       "vault",
			Difficulty: domain.DifficultyHard,
			Answer:     "secret",
		},
	)
	ids := map[string]int64{
		"easy":   seeded[0].ID,
		"medium": seeded[1].ID,
		"hard":   seeded[2].ID,
	}
	service := app.NewSubmissionService(
		memory.NewChallengeCache(store, 5*time.Minute), store, store, nil)
	return service, store, ids
}
