package app

import (
	"context"
	"log"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
	"github.com/google/uuid"
)

// ChallengeRepository loads challenge content (from cache/backing store).
type ChallengeRepository interface {
	GetChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error)
}

// MarkResult reports the outcome of a completion-ledger write.
type MarkResult struct {
	AlreadyCompleted bool
	Transitioned     bool
}

// AwardResult reports the outcome of the combined ledger write and score
// increment for one submission.
type AwardResult struct {
	AlreadyCompleted bool
	Transitioned     bool
	NewTotal         int
}

// CompletionLedger records, per (user, challenge), whether the challenge has
// been completed. MarkComplete must be a single atomic conditional write:
// concurrent duplicate calls yield exactly one Transitioned=true.
type CompletionLedger interface {
	MarkComplete(ctx context.Context, userName string, challengeID int64) (MarkResult, error)
}

// ScoreBoard maintains per-user point totals. AddPoints must be an atomic
// increment, not a read-then-write.
type ScoreBoard interface {
	AddPoints(ctx context.Context, userName string, delta int) (int, error)
	EnsureEntry(ctx context.Context, userName string) error
	Leaderboard(ctx context.Context, limit int) ([]domain.ScoreEntry, error)
}

// ScoringStore couples the ledger write and the score increment in one
// transactional boundary, so a fault partway through leaves neither applied.
type ScoringStore interface {
	ScoreBoard
	CompletionLedger
	Award(ctx context.Context, userName string, challengeID int64, points int) (AwardResult, error)
}

// SubmissionLog is the append-only attempt audit trail. Appends are
// best-effort from the submitter's perspective.
type SubmissionLog interface {
	Append(ctx context.Context, rec domain.SubmissionRecord) error
}

// SubmitResult is the user-facing outcome of one submission.
type SubmitResult struct {
	Correct          bool
	AlreadyCompleted bool
	Awarded          int
	TotalPoints      int
}

// SubmissionService contains the answer-validation and scoring use cases.
type SubmissionService struct {
	challenges ChallengeRepository
	store      ScoringStore
	audit      SubmissionLog
	points     domain.PointsTable
	now        func() time.Time
}

func NewSubmissionService(challenges ChallengeRepository, store ScoringStore, audit SubmissionLog, points domain.PointsTable) *SubmissionService {
	if points == nil {
		points = domain.DefaultPointsTable()
	}
	return &SubmissionService{
		challenges: challenges,
		store:      store,
		audit:      audit,
		points:     points,
		now:        time.Now,
	}
}

// SubmitAnswer evaluates a raw answer and, on a correct verdict, applies the
// completion transition and point award at most once per (user, challenge).
// Every evaluated attempt is recorded in the audit log regardless of the
// ledger outcome; evaluation faults (unknown challenge, bad answer
// configuration) are returned without a log entry.
func (s *SubmissionService) SubmitAnswer(ctx context.Context, userName string, challengeID int64, rawAnswer string) (SubmitResult, error) {
	ch, err := s.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return SubmitResult{}, err
	}

	correct, err := domain.EvaluateAnswer(ch, rawAnswer)
	if err != nil {
		return SubmitResult{}, err
	}

	s.appendAudit(ctx, userName, ch.ID, correct)

	result := SubmitResult{Correct: correct}
	if !correct {
		return result, nil
	}

	award, err := s.store.Award(ctx, userName, ch.ID, s.points.Points(ch.Difficulty))
	if err != nil {
		return SubmitResult{}, err
	}
	result.AlreadyCompleted = award.AlreadyCompleted
	result.TotalPoints = award.NewTotal
	if award.Transitioned {
		result.Awarded = s.points.Points(ch.Difficulty)
	}
	return result, nil
}

// RegisterUser ensures the user has a zero-point scoreboard row. Called when
// an authenticated identity is first seen; safe to repeat.
func (s *SubmissionService) RegisterUser(ctx context.Context, userName string) error {
	return s.store.EnsureEntry(ctx, userName)
}

// Leaderboard returns up to limit entries ordered by points descending,
// ties broken by user name ascending.
func (s *SubmissionService) Leaderboard(ctx context.Context, limit int) (domain.Leaderboard, error) {
	entries, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.now()}, nil
}

func (s *SubmissionService) appendAudit(ctx context.Context, userName string, challengeID int64, correct bool) {
	rec := domain.SubmissionRecord{
		ID:          uuid.New(),
		UserName:    userName,
		ChallengeID: challengeID,
		Correct:     correct,
		SubmittedAt: s.now(),
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		// The audit trail must never fail the user-visible response.
		log.Printf("submission audit append failed for user %q challenge %d: %v", userName, challengeID, err)
	}
}
