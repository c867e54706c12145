package http

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
)

// LeaderboardSource provides scoreboard snapshots for the live feed.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) (domain.Leaderboard, error)
}

// Broadcaster polls the scoreboard on an interval and fans snapshots out to
// subscribers. The poll ticker starts with the first subscriber and stops
// when the last one cancels.
type Broadcaster struct {
	source   LeaderboardSource
	interval time.Duration
	limit    int

	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
	stop        chan struct{}
}

func NewBroadcaster(source LeaderboardSource, interval time.Duration, limit int) *Broadcaster {
	return &Broadcaster{
		source:      source,
		interval:    interval,
		limit:       limit,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe registers a listener and pushes an initial snapshot. The caller
// must invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	if b.stop == nil {
		b.stop = make(chan struct{})
		go b.run(b.stop)
	}
	b.mu.Unlock()

	if lb, err := b.snapshot(); err == nil {
		ch <- lb
	}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[ch]; !ok {
			return
		}
		delete(b.subscribers, ch)
		close(ch)
		if len(b.subscribers) == 0 && b.stop != nil {
			close(b.stop)
			b.stop = nil
		}
	}
	return ch, cancel
}

func (b *Broadcaster) run(stop chan struct{}) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lb, err := b.snapshot()
			if err != nil {
				log.Printf("leaderboard poll failed: %v", err)
				continue
			}
			b.broadcast(lb)
		case <-stop:
			return
		}
	}
}

func (b *Broadcaster) snapshot() (domain.Leaderboard, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.interval)
	defer cancel()
	return b.source.Leaderboard(ctx, b.limit)
}

func (b *Broadcaster) broadcast(lb domain.Leaderboard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale snapshot so a slow client never blocks the rest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- lb:
			default:
			}
		}
	}
}
