package habit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/habitbank/habitbank-api/internal/domain/timebank"
)

// Repository is the persistence boundary for habits and completions.
type Repository interface {
	Create(ctx context.Context, h *Habit) error
	GetByID(ctx context.Context, userID, habitID uuid.UUID) (*Habit, error)
	ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]Habit, error)
	Update(ctx context.Context, h *Habit) error
	Archive(ctx context.Context, userID, habitID uuid.UUID) error
	CreateCompletion(ctx context.Context, c *Completion) error
	DeleteCompletion(ctx context.Context, userID, habitID uuid.UUID, completedOn string) error
	CountCompletionsOn(ctx context.Context, userID uuid.UUID, completedOn string) (int, error)
	ListCompletions(ctx context.Context, userID, habitID uuid.UUID, since time.Time) ([]Completion, error)
}

// LedgerService is the slice of the timebank service that habit completion drives.
type LedgerService interface {
	Earn(ctx context.Context, userID uuid.UUID, amount int, source timebank.Source, sourceID string, meta map[string]string) (bool, error)
	UpdateStreak(ctx context.Context, userID uuid.UUID, completedToday bool) (current, longest int, err error)
}

type Service struct {
	repo   Repository
	ledger LedgerService
	clock  timebank.Clock
}

func NewService(repo Repository, ledger LedgerService, clock timebank.Clock) *Service {
	return &Service{repo: repo, ledger: ledger, clock: clock}
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, name string, rewardMinutes int) (*Habit, error) {
	now := s.clock.Now()
	h := &Habit{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          name,
		RewardMinutes: rewardMinutes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID.String()).Str("habit_id", h.ID.String()).Msg("habit created")
	return h, nil
}

func (s *Service) Get(ctx context.Context, userID, habitID uuid.UUID) (*Habit, error) {
	return s.repo.GetByID(ctx, userID, habitID)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]Habit, error) {
	return s.repo.ListByUser(ctx, userID, includeArchived)
}

func (s *Service) Update(ctx context.Context, userID, habitID uuid.UUID, name string, rewardMinutes int) (*Habit, error) {
	h, err := s.repo.GetByID(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		h.Name = name
	}
	if rewardMinutes > 0 {
		h.RewardMinutes = rewardMinutes
	}
	h.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) Archive(ctx context.Context, userID, habitID uuid.UUID) error {
	return s.repo.Archive(ctx, userID, habitID)
}

// CompleteResult reports the outcome of completing a habit.
type CompleteResult struct {
	Completion    *Completion `json:"completion"`
	EarnedApplied bool        `json:"earned_applied"`
	CurrentStreak int         `json:"current_streak"`
	LongestStreak int         `json:"longest_streak"`
}

// Complete records today's completion, credits the habit's reward to the
// TimeBank ledger and advances the streak. Completing an already-completed
// habit returns ErrAlreadyCompleted without a second earn.
func (s *Service) Complete(ctx context.Context, userID, habitID uuid.UUID) (*CompleteResult, error) {
	h, err := s.repo.GetByID(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	if h.ArchivedAt != nil {
		return nil, ErrArchived
	}

	c := &Completion{
		ID:          uuid.New(),
		HabitID:     h.ID,
		UserID:      userID,
		CompletedOn: s.clock.Today(),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.CreateCompletion(ctx, c); err != nil {
		return nil, err
	}

	applied, err := s.ledger.Earn(ctx, userID, h.RewardMinutes, timebank.SourceHabit, h.ID.String(), map[string]string{
		"habit_name": h.Name,
	})
	if err != nil {
		// Roll the completion back so the day stays retryable.
		if delErr := s.repo.DeleteCompletion(ctx, userID, h.ID, c.CompletedOn); delErr != nil {
			log.Error().Err(delErr).Str("habit_id", h.ID.String()).Msg("failed to roll back completion after ledger error")
		}
		return nil, err
	}

	current, longest, err := s.ledger.UpdateStreak(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("habit_id", h.ID.String()).
		Int("reward_minutes", h.RewardMinutes).
		Bool("earned_applied", applied).
		Msg("habit completed")

	return &CompleteResult{
		Completion:    c,
		EarnedApplied: applied,
		CurrentStreak: current,
		LongestStreak: longest,
	}, nil
}

// Completions returns the habit's completion history, limited to a trailing
// window of days (default 30).
func (s *Service) Completions(ctx context.Context, userID, habitID uuid.UUID, days int) ([]Completion, error) {
	if _, err := s.repo.GetByID(ctx, userID, habitID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}
	since := s.clock.Now().AddDate(0, 0, -days)
	return s.repo.ListCompletions(ctx, userID, habitID, since)
}

// Uncomplete removes today's completion. Earned minutes are kept; only the
// streak is re-evaluated, and it resets when no other habit was completed today.
func (s *Service) Uncomplete(ctx context.Context, userID, habitID uuid.UUID) error {
	today := s.clock.Today()
	if err := s.repo.DeleteCompletion(ctx, userID, habitID, today); err != nil {
		return err
	}

	remaining, err := s.repo.CountCompletionsOn(ctx, userID, today)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if _, _, err := s.ledger.UpdateStreak(ctx, userID, false); err != nil {
			return err
		}
	}

	log.Info().Str("user_id", userID.String()).Str("habit_id", habitID.String()).Msg("habit completion removed")
	return nil
}
