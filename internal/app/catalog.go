package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ACM-VIT/codex-portal/internal/domain"
)

// ErrInvalidChallenge is returned for admin input that fails validation.
var ErrInvalidChallenge = errors.New("invalid challenge")

// ChallengeAdminStore backs the staff panel and the user-facing catalog.
type ChallengeAdminStore interface {
	CreateChallenge(ctx context.Context, ch domain.Challenge) (domain.Challenge, error)
	// DeleteChallenge removes the challenge and its completion records;
	// submission audit rows are preserved.
	DeleteChallenge(ctx context.Context, challengeID int64) error
	ListChallenges(ctx context.Context) ([]domain.Challenge, error)
	CompletedChallengeIDs(ctx context.Context, userName string) ([]int64, error)
	ListRecentSubmissions(ctx context.Context, limit int) ([]domain.SubmissionView, error)
}

// CatalogService contains the challenge catalog and admin use cases.
type CatalogService struct {
	store ChallengeAdminStore
}

func NewCatalogService(store ChallengeAdminStore) *CatalogService {
	return &CatalogService{store: store}
}

// ListForUser returns user-facing summaries with per-user completion flags.
// With an empty userName all flags are false.
func (c *CatalogService) ListForUser(ctx context.Context, userName string) ([]domain.ChallengeSummary, error) {
	challenges, err := c.store.ListChallenges(ctx)
	if err != nil {
		return nil, err
	}

	completed := map[int64]bool{}
	if userName != "" {
		ids, err := c.store.CompletedChallengeIDs(ctx, userName)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			completed[id] = true
		}
	}

	summaries := make([]domain.ChallengeSummary, 0, len(challenges))
	for _, ch := range challenges {
		summaries = append(summaries, domain.ChallengeSummary{
			ID:          ch.ID,
			Name:        ch.Name,
			Description: ch.Description,
			Difficulty:  ch.Difficulty,
			Completed:   completed[ch.ID],
		})
	}
	return summaries, nil
}

// Create validates and stores a new challenge.
func (c *CatalogService) Create(ctx context.Context, ch domain.Challenge) (domain.Challenge, error) {
	if strings.TrimSpace(ch.Name) == "" {
		return domain.Challenge{}, fmt.Errorf("%w: name is required", ErrInvalidChallenge)
	}
	if !ch.Difficulty.Valid() {
		return domain.Challenge{}, fmt.Errorf("%w: difficulty must be easy, medium, or hard", ErrInvalidChallenge)
	}
	if strings.TrimSpace(ch.MustInclude) == "" && ch.Answer == "" {
		return domain.Challenge{}, fmt.Errorf("%w: a prefix or an answer pattern is required", ErrInvalidChallenge)
	}
	return c.store.CreateChallenge(ctx, ch)
}

// Delete removes a challenge and cascades only its completion records.
func (c *CatalogService) Delete(ctx context.Context, challengeID int64) error {
	return c.store.DeleteChallenge(ctx, challengeID)
}

// RecentSubmissions lists the newest attempts for the admin panel.
func (c *CatalogService) RecentSubmissions(ctx context.Context, limit int) ([]domain.SubmissionView, error) {
	return c.store.ListRecentSubmissions(ctx, limit)
}
