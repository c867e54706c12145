package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type challengeRow struct {
	bun.BaseModel `bun:"table:challenges,alias:c"`

	ID          int64          `bun:"id,pk,autoincrement"`
	Name        string         `bun:"name,notnull"`
	Description string         `bun:"description,notnull"`
	Difficulty  string         `bun:"difficulty,notnull"`
	MustInclude sql.NullString `bun:"must_include"`
	Answer      sql.NullString `bun:"answer"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,default:now()"`
}

type completionRow struct {
	bun.BaseModel `bun:"table:completions,alias:uc"`

	UserName    string `bun:"user_name,pk"`
	ChallengeID int64  `bun:"challenge_id,pk"`
	Completed   bool   `bun:"completed,notnull"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	UserName    string    `bun:"user_name,notnull"`
	ChallengeID int64     `bun:"challenge_id,notnull"`
	Correct     bool      `bun:"correct,notnull"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`
}

// AdminStore implements the challenge admin operations over bun.
type AdminStore struct {
	db *bun.DB
}

func NewAdminStore(db *bun.DB) *AdminStore {
	return &AdminStore{db: db}
}

func (s *AdminStore) CreateChallenge(ctx context.Context, ch domain.Challenge) (domain.Challenge, error) {
	row := &challengeRow{
		Name:        ch.Name,
		Description: ch.Description,
		Difficulty:  string(ch.Difficulty),
		MustInclude: nullableString(ch.MustInclude),
		Answer:      nullableString(ch.Answer),
	}
	if _, err := s.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		return domain.Challenge{}, fmt.Errorf("create challenge: %w", err)
	}
	return rowToChallenge(row), nil
}

// DeleteChallenge removes the challenge; the schema cascades completion
// records while submission audit rows are deliberately left in place.
func (s *AdminStore) DeleteChallenge(ctx context.Context, challengeID int64) error {
	res, err := s.db.NewDelete().
		Model((*challengeRow)(nil)).
		Where("c.id = ?", challengeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete challenge %d: %w", challengeID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete challenge %d: %w", challengeID, err)
	}
	if rows == 0 {
		return fmt.Errorf("delete challenge %d: %w", challengeID, domain.ErrChallengeNotFound)
	}
	return nil
}

func (s *AdminStore) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	var rows []challengeRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	out := make([]domain.Challenge, 0, len(rows))
	for i := range rows {
		out = append(out, rowToChallenge(&rows[i]))
	}
	return out, nil
}

func (s *AdminStore) CompletedChallengeIDs(ctx context.Context, userName string) ([]int64, error) {
	var ids []int64
	err := s.db.NewSelect().
		Model((*completionRow)(nil)).
		Column("challenge_id").
		Where("uc.user_name = ?", userName).
		Where("uc.completed").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("completed challenges for %q: %w", userName, err)
	}
	return ids, nil
}

type submissionViewRow struct {
	ID            uuid.UUID      `bun:"id"`
	UserName      string         `bun:"user_name"`
	ChallengeName sql.NullString `bun:"challenge_name"`
	Correct       bool           `bun:"correct"`
	SubmittedAt   time.Time      `bun:"submitted_at"`
}

func (s *AdminStore) ListRecentSubmissions(ctx context.Context, limit int) ([]domain.SubmissionView, error) {
	var rows []submissionViewRow
	err := s.db.NewSelect().
		Model((*submissionRow)(nil)).
		ColumnExpr("s.id, s.user_name, s.correct, s.submitted_at").
		ColumnExpr("c.name AS challenge_name").
		Join("LEFT JOIN challenges AS c ON c.id = s.challenge_id").
		OrderExpr("s.submitted_at DESC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	views := make([]domain.SubmissionView, 0, len(rows))
	for _, r := range rows {
		name := "(deleted)"
		if r.ChallengeName.Valid {
			name = r.ChallengeName.String
		}
		views = append(views, domain.SubmissionView{
			ID:            r.ID,
			UserName:      r.UserName,
			ChallengeName: name,
			Correct:       r.Correct,
			SubmittedAt:   r.SubmittedAt,
		})
	}
	return views, nil
}

func rowToChallenge(row *challengeRow) domain.Challenge {
	ch := domain.Challenge{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Difficulty:  domain.Difficulty(row.Difficulty),
		CreatedAt:   row.CreatedAt,
	}
	if row.MustInclude.Valid {
		ch.MustInclude = row.MustInclude.String
	}
	if row.Answer.Valid {
		ch.Answer = row.Answer.String
	}
	return ch
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
