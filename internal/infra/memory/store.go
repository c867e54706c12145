package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/app"
	"github.com/ACM-VIT/codex-portal/internal/domain"
)

// Store is an in-memory implementation of the scoring store, the submission
// audit log, and the challenge admin store. It backs tests and the
// no-database demo mode.
type Store struct {
	mu          sync.Mutex
	nextID      int64
	challenges  map[int64]domain.Challenge
	completions map[string]map[int64]bool
	points      map[string]int
	submissions []domain.SubmissionRecord
	clock       func() time.Time
}

func NewStore() *Store {
	return &Store{
		nextID:      1,
		challenges:  make(map[int64]domain.Challenge),
		completions: make(map[string]map[int64]bool),
		points:      make(map[string]int),
		clock:       time.Now,
	}
}

// Seed inserts challenges directly, assigning IDs. Used by demo mode and tests.
func (s *Store) Seed(challenges ...domain.Challenge) []domain.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Challenge, 0, len(challenges))
	for _, ch := range challenges {
		ch.ID = s.nextID
		s.nextID++
		if ch.CreatedAt.IsZero() {
			ch.CreatedAt = s.clock()
		}
		s.challenges[ch.ID] = ch
		out = append(out, ch)
	}
	return out
}

// LoadChallenge satisfies the challenge cache's loader interface.
func (s *Store) LoadChallenge(_ context.Context, challengeID int64) (domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[challengeID]
	if !ok {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return ch, nil
}

func (s *Store) MarkComplete(_ context.Context, userName string, challengeID int64) (app.MarkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markCompleteLocked(userName, challengeID), nil
}

func (s *Store) markCompleteLocked(userName string, challengeID int64) app.MarkResult {
	byUser, ok := s.completions[userName]
	if !ok {
		byUser = make(map[int64]bool)
		s.completions[userName] = byUser
	}
	if byUser[challengeID] {
		return app.MarkResult{AlreadyCompleted: true}
	}
	byUser[challengeID] = true
	return app.MarkResult{Transitioned: true}
}

func (s *Store) AddPoints(_ context.Context, userName string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[userName] += delta
	return s.points[userName], nil
}

func (s *Store) EnsureEntry(_ context.Context, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.points[userName]; !ok {
		s.points[userName] = 0
	}
	return nil
}

// Award applies the completion transition and the point increment under one
// lock, mirroring the transactional boundary of the Postgres store.
func (s *Store) Award(_ context.Context, userName string, challengeID int64, points int) (app.AwardResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mark := s.markCompleteLocked(userName, challengeID)
	if !mark.Transitioned {
		return app.AwardResult{AlreadyCompleted: true, NewTotal: s.points[userName]}, nil
	}
	s.points[userName] += points
	return app.AwardResult{Transitioned: true, NewTotal: s.points[userName]}, nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]domain.ScoreEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.ScoreEntry, 0, len(s.points))
	for user, pts := range s.points {
		entries = append(entries, domain.ScoreEntry{UserName: user, Points: pts})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserName < entries[j].UserName
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) Append(_ context.Context, rec domain.SubmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, rec)
	return nil
}

// Submissions returns a copy of all audit rows in append order. Test helper.
func (s *Store) Submissions() []domain.SubmissionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SubmissionRecord, len(s.submissions))
	copy(out, s.submissions)
	return out
}

func (s *Store) CreateChallenge(_ context.Context, ch domain.Challenge) (domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch.ID = s.nextID
	s.nextID++
	ch.CreatedAt = s.clock()
	s.challenges[ch.ID] = ch
	return ch, nil
}

func (s *Store) DeleteChallenge(_ context.Context, challengeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.challenges[challengeID]; !ok {
		return fmt.Errorf("delete challenge %d: %w", challengeID, domain.ErrChallengeNotFound)
	}
	delete(s.challenges, challengeID)
	// Completion records cascade; submission audit rows survive.
	for _, byUser := range s.completions {
		delete(byUser, challengeID)
	}
	return nil
}

func (s *Store) ListChallenges(_ context.Context) ([]domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Challenge, 0, len(s.challenges))
	for _, ch := range s.challenges {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CompletedChallengeIDs(_ context.Context, userName string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, done := range s.completions[userName] {
		if done {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ListRecentSubmissions(_ context.Context, limit int) ([]domain.SubmissionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]domain.SubmissionView, 0, limit)
	for i := len(s.submissions) - 1; i >= 0; i-- {
		if limit > 0 && len(views) == limit {
			break
		}
		rec := s.submissions[i]
		name := "(deleted)"
		if ch, ok := s.challenges[rec.ChallengeID]; ok {
			name = ch.Name
		}
		views = append(views, domain.SubmissionView{
			ID:            rec.ID,
			UserName:      rec.UserName,
			ChallengeName: name,
			Correct:       rec.Correct,
			SubmittedAt:   rec.SubmittedAt,
		})
	}
	return views, nil
}
