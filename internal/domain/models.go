package domain

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty is the closed tier enumeration for challenges.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// PointsTable maps a difficulty tier to the points awarded on first solve.
type PointsTable map[Difficulty]int

// DefaultPointsTable is the scaled scoring policy.
func DefaultPointsTable() PointsTable {
	return PointsTable{
		DifficultyEasy:   10,
		DifficultyMedium: 30,
		DifficultyHard:   50,
	}
}

// Points returns the award for d, or 0 for an unknown tier.
func (t PointsTable) Points(d Difficulty) int {
	return t[d]
}

// Challenge is a single task with an answer specification.
// MustInclude is a literal prefix; Answer is a regular expression.
// Either may be empty; see EvaluateAnswer for how the shapes combine.
type Challenge struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	MustInclude string     `json:"-"`
	Answer      string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ChallengeSummary is the user-facing view of a challenge; answer fields
// never travel through it.
type ChallengeSummary struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	Completed   bool       `json:"completed"`
}

// ScoreEntry is one leaderboard row.
type ScoreEntry struct {
	UserName string `json:"userName"`
	Points   int    `json:"points"`
}

// Leaderboard captures an ordered scoreboard snapshot.
type Leaderboard struct {
	Entries   []ScoreEntry `json:"entries"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// SubmissionRecord is one append-only audit row for an attempt.
type SubmissionRecord struct {
	ID          uuid.UUID
	UserName    string
	ChallengeID int64
	Correct     bool
	SubmittedAt time.Time
}

// SubmissionView is a submission joined with its challenge name for the
// admin listing. ChallengeName falls back to a placeholder when the
// challenge has since been deleted; the audit row itself survives.
type SubmissionView struct {
	ID            uuid.UUID `json:"id"`
	UserName      string    `json:"userName"`
	ChallengeName string    `json:"challengeName"`
	Correct       bool      `json:"correct"`
	SubmittedAt   time.Time `json:"submittedAt"`
}
