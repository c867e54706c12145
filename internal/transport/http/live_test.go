package http

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
)

type fakeSource struct {
	polls int64
}

func (f *fakeSource) Leaderboard(ctx context.Context, limit int) (domain.Leaderboard, error) {
	n := atomic.AddInt64(&f.polls, 1)
	return domain.Leaderboard{
		Entries:   []domain.ScoreEntry{{UserName: "alice", Points: int(n) * 10}},
		UpdatedAt: time.Now(),
	}, nil
}

func TestBroadcasterDeliversSnapshots(t *testing.T) {
	source := &fakeSource{}
	b := NewBroadcaster(source, 10*time.Millisecond, 10)

	updates, cancel := b.Subscribe()
	defer cancel()

	// Initial snapshot arrives without waiting for the ticker.
	select {
	case lb := <-updates:
		if len(lb.Entries) != 1 || lb.Entries[0].UserName != "alice" {
			t.Fatalf("unexpected initial snapshot: %+v", lb)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}

	// Polled snapshots follow.
	select {
	case lb := <-updates:
		if len(lb.Entries) != 1 {
			t.Fatalf("unexpected polled snapshot: %+v", lb)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for polled snapshot")
	}
}

func TestBroadcasterStopsWhenEmpty(t *testing.T) {
	source := &fakeSource{}
	b := NewBroadcaster(source, 5*time.Millisecond, 10)

	updates, cancel := b.Subscribe()
	<-updates
	cancel()

	// The channel closes and the poll loop winds down.
	if _, ok := <-updates; ok {
		// Buffered snapshots may still drain; the channel must close eventually.
		for range updates {
		}
	}

	time.Sleep(20 * time.Millisecond)
	after := atomic.LoadInt64(&source.polls)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt64(&source.polls) != after {
		t.Fatal("poll loop kept running after last subscriber left")
	}
}

func TestBroadcasterSecondSubscriberRestartsTicker(t *testing.T) {
	source := &fakeSource{}
	b := NewBroadcaster(source, 5*time.Millisecond, 10)

	updates, cancel := b.Subscribe()
	<-updates
	cancel()
	for range updates {
	}

	updates2, cancel2 := b.Subscribe()
	defer cancel2()
	select {
	case <-updates2:
	case <-time.After(time.Second):
		t.Fatal("timed out after resubscribe")
	}
	select {
	case <-updates2:
	case <-time.After(time.Second):
		t.Fatal("ticker did not restart for new subscriber")
	}
}

func TestBroadcasterResendSkipsContendedSubscriber(t *testing.T) {
	source := &fakeSource{}
	b := NewBroadcaster(source, time.Hour, 10)

	ch := make(chan domain.Leaderboard, 8)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	lb := domain.Leaderboard{Entries: []domain.ScoreEntry{{UserName: "alice", Points: 10}}}
	for i := 0; i < cap(ch); i++ {
		ch <- lb
	}

	// A competing sender steals the slot freed by the stale-drop, so the
	// resend must give up rather than wait while holding the lock.
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case ch <- lb:
			case <-stop:
				return
			}
		}
	}()
	defer close(stop)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.broadcast(lb)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
}

func TestBroadcasterSlowSubscriberNeverBlocks(t *testing.T) {
	source := &fakeSource{}
	b := NewBroadcaster(source, time.Millisecond, 10)

	slow, cancelSlow := b.Subscribe()
	defer cancelSlow()
	fast, cancelFast := b.Subscribe()
	defer cancelFast()

	_ = slow // never read: its buffer fills and stale snapshots get dropped

	received := 0
	deadline := time.After(time.Second)
	for received < 20 {
		select {
		case <-fast:
			received++
		case <-deadline:
			t.Fatalf("fast subscriber starved after %d snapshots", received)
		}
	}
}
