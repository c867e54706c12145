package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ACM-VIT/codex-portal/internal/app"
	"github.com/ACM-VIT/codex-portal/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store is the Postgres-backed scoring store and submission audit log.
// Completion and scoreboard writes rely on conditional upserts so that
// concurrent duplicate submissions can never double-award points.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadChallenge satisfies the challenge cache's loader interface.
func (s *Store) LoadChallenge(ctx context.Context, challengeID int64) (domain.Challenge, error) {
	var (
		ch          domain.Challenge
		mustInclude *string
		answer      *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, difficulty, must_include, answer, created_at
		   FROM challenges WHERE id=$1`, challengeID).
		Scan(&ch.ID, &ch.Name, &ch.Description, &ch.Difficulty, &mustInclude, &answer, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Challenge{}, fmt.Errorf("load challenge %d: %w", challengeID, domain.ErrChallengeNotFound)
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("load challenge %d: %w", challengeID, err)
	}
	if mustInclude != nil {
		ch.MustInclude = *mustInclude
	}
	if answer != nil {
		ch.Answer = *answer
	}
	return ch, nil
}

func (s *Store) MarkComplete(ctx context.Context, userName string, challengeID int64) (app.MarkResult, error) {
	return markComplete(ctx, s.pool, userName, challengeID)
}

func (s *Store) AddPoints(ctx context.Context, userName string, delta int) (int, error) {
	return addPoints(ctx, s.pool, userName, delta)
}

// Award runs the completion transition and the point increment in one
// transaction: either both commit or neither does.
func (s *Store) Award(ctx context.Context, userName string, challengeID int64, points int) (app.AwardResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return app.AwardResult{}, fmt.Errorf("begin award: %w", err)
	}
	defer tx.Rollback(ctx)

	mark, err := markComplete(ctx, tx, userName, challengeID)
	if err != nil {
		return app.AwardResult{}, err
	}

	result := app.AwardResult{AlreadyCompleted: mark.AlreadyCompleted, Transitioned: mark.Transitioned}
	if mark.Transitioned {
		result.NewTotal, err = addPoints(ctx, tx, userName, points)
	} else {
		result.NewTotal, err = currentPoints(ctx, tx, userName)
	}
	if err != nil {
		return app.AwardResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return app.AwardResult{}, fmt.Errorf("commit award: %w", err)
	}
	return result, nil
}

func (s *Store) EnsureEntry(ctx context.Context, userName string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leaderboard (user_name, points) VALUES ($1, 0)
		 ON CONFLICT (user_name) DO NOTHING`, userName)
	if err != nil {
		return fmt.Errorf("ensure leaderboard entry: %w", err)
	}
	return nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]domain.ScoreEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_name, points FROM leaderboard
		  ORDER BY points DESC, user_name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ScoreEntry, 0, limit)
	for rows.Next() {
		var e domain.ScoreEntry
		if err := rows.Scan(&e.UserName, &e.Points); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	return entries, nil
}

func (s *Store) Append(ctx context.Context, rec domain.SubmissionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO submissions (id, user_name, challenge_id, correct, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.UserName, rec.ChallengeID, rec.Correct, rec.SubmittedAt)
	if err != nil {
		return fmt.Errorf("append submission: %w", err)
	}
	return nil
}

// pgxQuerier covers both *pgxpool.Pool and pgx.Tx so the upsert helpers run
// standalone or inside the award transaction.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func markComplete(ctx context.Context, q pgxQuerier, userName string, challengeID int64) (app.MarkResult, error) {
	tag, err := q.Exec(ctx,
		`INSERT INTO completions (user_name, challenge_id, completed)
		 VALUES ($1, $2, true)
		 ON CONFLICT (user_name, challenge_id) DO NOTHING`,
		userName, challengeID)
	if err != nil {
		return app.MarkResult{}, fmt.Errorf("mark complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return app.MarkResult{AlreadyCompleted: true}, nil
	}
	return app.MarkResult{Transitioned: true}, nil
}

func addPoints(ctx context.Context, q pgxQuerier, userName string, delta int) (int, error) {
	var total int
	err := q.QueryRow(ctx,
		`INSERT INTO leaderboard (user_name, points) VALUES ($1, $2)
		 ON CONFLICT (user_name)
		 DO UPDATE SET points = leaderboard.points + EXCLUDED.points
		 RETURNING points`,
		userName, delta).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add points: %w", err)
	}
	return total, nil
}

func currentPoints(ctx context.Context, q pgxQuerier, userName string) (int, error) {
	var total int
	err := q.QueryRow(ctx,
		`SELECT points FROM leaderboard WHERE user_name=$1`, userName).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current points: %w", err)
	}
	return total, nil
}
