package timebank

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event names pushed to connected clients after mutations.
const (
	EventBalanceUpdated     = "balance_updated"
	EventStreakUpdated      = "streak_updated"
	EventTransactionCreated = "transaction_created"
)

// Summary is the consumer-facing view of one user's ledger.
type Summary struct {
	Balance                int    `json:"balance"`
	LifetimeEarned         int    `json:"lifetime_earned"`
	LifetimeSpent          int    `json:"lifetime_spent"`
	DailyEarned            int    `json:"daily_earned"`
	DailySpent             int    `json:"daily_spent"`
	LastResetDate          string `json:"last_reset_date"`
	CurrentStreak          int    `json:"current_streak"`
	LongestStreak          int    `json:"longest_streak"`
	RemainingDailyCapacity int    `json:"remaining_daily_capacity"`
}

// Service owns one Ledger per user and fans ledger updates out to connected
// clients. Ledgers are created lazily from the store on first use.
type Service struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID]*Ledger

	policy    Policy
	clock     Clock
	store     Store
	archiver  Archiver
	publisher Publisher
}

func NewService(policy Policy, clock Clock, store Store, archiver Archiver, publisher Publisher) *Service {
	return &Service{
		ledgers:   make(map[uuid.UUID]*Ledger),
		policy:    policy,
		clock:     clock,
		store:     store,
		archiver:  archiver,
		publisher: publisher,
	}
}

func (s *Service) ledger(ctx context.Context, userID uuid.UUID) (*Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.ledgers[userID]; ok {
		return l, nil
	}
	l, err := NewLedger(ctx, userID, s.policy, s.clock, s.store, s.archiver)
	if err != nil {
		return nil, err
	}
	s.ledgers[userID] = l
	return l, nil
}

// Earn credits minutes to the user's ledger, subject to the daily earning cap.
func (s *Service) Earn(ctx context.Context, userID uuid.UUID, amount int, source Source, sourceID string, meta map[string]string) (bool, error) {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return false, err
	}
	applied, err := l.Earn(ctx, amount, source, sourceID, meta)
	if err != nil {
		return false, err
	}
	if applied {
		log.Info().Str("user_id", userID.String()).Int("amount", amount).Str("source", string(source)).Msg("timebank earn applied")
		s.publishBalance(ctx, userID, l)
	}
	return applied, nil
}

// Spend debits minutes from the user's ledger.
func (s *Service) Spend(ctx context.Context, userID uuid.UUID, amount int, source Source, sourceID string, meta map[string]string) (bool, error) {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return false, err
	}
	applied, err := l.Spend(ctx, amount, source, sourceID, meta)
	if err != nil {
		return false, err
	}
	if applied {
		log.Info().Str("user_id", userID.String()).Int("amount", amount).Str("source", string(source)).Msg("timebank spend applied")
		s.publishBalance(ctx, userID, l)
	}
	return applied, nil
}

// ApplyBonus credits minutes bypassing the daily earning cap.
func (s *Service) ApplyBonus(ctx context.Context, userID uuid.UUID, amount int, source Source, meta map[string]string) error {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return err
	}
	if err := l.ApplyBonus(ctx, amount, source, meta); err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Int("amount", amount).Msg("timebank bonus applied")
	s.publishBalance(ctx, userID, l)
	return nil
}

// ApplyPenalty debits minutes bypassing the daily caps; the balance may go
// negative down to the policy minimum.
func (s *Service) ApplyPenalty(ctx context.Context, userID uuid.UUID, amount int, source Source, meta map[string]string) error {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return err
	}
	if err := l.ApplyPenalty(ctx, amount, source, meta); err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Int("amount", amount).Msg("timebank penalty applied")
	s.publishBalance(ctx, userID, l)
	return nil
}

// UpdateStreak records today's completion status and returns the streak counters.
func (s *Service) UpdateStreak(ctx context.Context, userID uuid.UUID, completedToday bool) (current, longest int, err error) {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	current, longest = l.UpdateStreak(ctx, completedToday)
	s.publishStreak(ctx, userID, current, longest)
	return current, longest, nil
}

// ResetStreak unconditionally zeroes the user's current streak.
func (s *Service) ResetStreak(ctx context.Context, userID uuid.UUID) (current, longest int, err error) {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	current, longest = l.ResetStreak(ctx)
	s.publishStreak(ctx, userID, current, longest)
	return current, longest, nil
}

// Summary returns the full consumer-facing ledger view, rolling the daily
// counters over first if the date has advanced.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	capacity := l.RemainingDailyCapacity(ctx)
	snap := l.Snapshot()
	return &Summary{
		Balance:                snap.Balance,
		LifetimeEarned:         snap.LifetimeEarned,
		LifetimeSpent:          snap.LifetimeSpent,
		DailyEarned:            snap.DailyEarned,
		DailySpent:             snap.DailySpent,
		LastResetDate:          snap.LastResetDate,
		CurrentStreak:          snap.CurrentStreak,
		LongestStreak:          snap.LongestStreak,
		RemainingDailyCapacity: capacity,
	}, nil
}

// Balance returns the user's current spendable minutes.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return 0, err
	}
	return l.Balance(), nil
}

// RemainingDailyCapacity returns how many minutes the user can still earn today.
func (s *Service) RemainingDailyCapacity(ctx context.Context, userID uuid.UUID) (int, error) {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return 0, err
	}
	return l.RemainingDailyCapacity(ctx), nil
}

// Transactions returns up to limit most-recent transactions for the user.
func (s *Service) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]Transaction, error) {
	l, err := s.ledger(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.Transactions(limit), nil
}

func (s *Service) publishBalance(ctx context.Context, userID uuid.UUID, l *Ledger) {
	if s.publisher == nil {
		return
	}
	snap := l.Snapshot()
	s.publisher.Publish(ctx, userID, EventBalanceUpdated, map[string]int{
		"balance":      snap.Balance,
		"daily_earned": snap.DailyEarned,
		"daily_spent":  snap.DailySpent,
	})
	if len(snap.Transactions) > 0 {
		s.publisher.Publish(ctx, userID, EventTransactionCreated, snap.Transactions[0])
	}
}

func (s *Service) publishStreak(ctx context.Context, userID uuid.UUID, current, longest int) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, userID, EventStreakUpdated, map[string]int{
		"current_streak": current,
		"longest_streak": longest,
	})
}
