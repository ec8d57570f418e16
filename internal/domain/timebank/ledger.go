package timebank

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Ledger is one user's time-currency accounting state machine.
//
// A single mutex serializes every operation, including reads that trigger the
// daily rollover, so no caller can observe a partially-updated state. The
// snapshot is written to the store after every mutation; a failed save is
// logged and retried implicitly on the next mutation, never corrupting the
// in-memory state.
type Ledger struct {
	mu       sync.Mutex
	userID   uuid.UUID
	state    *LedgerState
	policy   Policy
	clock    Clock
	store    Store
	archiver Archiver
}

// NewLedger rehydrates a ledger from the store, starting from the initial
// snapshot when none exists. A corrupt snapshot falls back to the initial
// snapshot instead of failing.
func NewLedger(ctx context.Context, userID uuid.UUID, policy Policy, clock Clock, store Store, archiver Archiver) (*Ledger, error) {
	state, err := store.Load(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrCorruptState) {
			return nil, err
		}
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Corrupt ledger snapshot, starting from initial state")
		state = nil
	}
	if state == nil {
		state = newInitialState(clock.Today(), policy)
	}

	return &Ledger{
		userID:   userID,
		state:    state,
		policy:   policy,
		clock:    clock,
		store:    store,
		archiver: archiver,
	}, nil
}

// Earn credits minutes for a completed activity. Earning is capped, not
// rejected, when it would partially exceed the daily limit; it returns false
// only when the daily cap is already exhausted.
func (l *Ledger) Earn(ctx context.Context, amount int, source Source, sourceID string, meta map[string]string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverIfNeeded()

	remaining := l.policy.DailyEarningCap - l.state.DailyEarned
	if remaining <= 0 {
		return false, nil
	}
	credited := amount
	if credited > remaining {
		credited = remaining
	}

	l.state.Balance = l.policy.clamp(l.state.Balance + credited)
	l.state.LifetimeEarned += credited
	l.state.DailyEarned += credited

	l.append(ctx, TransactionEarn, credited, source, sourceID, meta)
	l.persist(ctx)
	return true, nil
}

// Spend debits minutes. There is no partial spend against the balance: an
// amount exceeding the balance returns false with no state change. When a
// daily spending cap is configured the spend is capped to the remaining
// headroom, mirroring the earn side.
func (l *Ledger) Spend(ctx context.Context, amount int, source Source, sourceID string, meta map[string]string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverIfNeeded()

	if l.state.Balance < amount {
		return false, nil
	}
	debited := amount
	if cap := l.policy.DailySpendingCap; cap > 0 {
		remaining := cap - l.state.DailySpent
		if remaining <= 0 {
			return false, nil
		}
		if debited > remaining {
			debited = remaining
		}
	}

	l.state.Balance -= debited
	l.state.LifetimeSpent += debited
	l.state.DailySpent += debited

	l.append(ctx, TransactionSpend, -debited, source, sourceID, meta)
	l.persist(ctx)
	return true, nil
}

// ApplyBonus credits minutes outside the daily earning cap. The balance is
// still clamped to the policy maximum; only the effective delta is recorded.
func (l *Ledger) ApplyBonus(ctx context.Context, amount int, source Source, meta map[string]string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if source == "" {
		source = SourceBonus
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverIfNeeded()

	before := l.state.Balance
	l.state.Balance = l.policy.clamp(before + amount)
	credited := l.state.Balance - before
	l.state.LifetimeEarned += credited

	l.append(ctx, TransactionBonus, credited, source, "", meta)
	l.persist(ctx)
	return nil
}

// ApplyPenalty debits minutes outside the daily caps. Unlike Spend it may
// drive the balance negative, clamped at the policy minimum.
func (l *Ledger) ApplyPenalty(ctx context.Context, amount int, source Source, meta map[string]string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if source == "" {
		source = SourceEmergency
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverIfNeeded()

	before := l.state.Balance
	l.state.Balance = l.policy.clamp(before - amount)
	debited := before - l.state.Balance
	l.state.LifetimeSpent += debited

	l.append(ctx, TransactionPenalty, -debited, source, "", meta)
	l.persist(ctx)
	return nil
}

// UpdateStreak records whether the user has at least one qualifying completion
// today. Repeated calls with completedToday=true within the same day are
// idempotent; a same-day uncomplete cancels today's nascent streak.
//
// The streak tracks its own last-evaluated date rather than reusing the daily
// counter rollover: any earlier operation (an earn, a capacity read) may have
// already rolled the counters over, and the day's first streak evaluation must
// still count as new-day.
func (l *Ledger) UpdateStreak(ctx context.Context, completedToday bool) (current, longest int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverIfNeeded()

	s := l.state
	today := l.clock.Today()
	if s.LastStreakDate != today {
		if completedToday {
			s.CurrentStreak++
		} else {
			s.CurrentStreak = 0
		}
		s.LastStreakDate = today
	} else {
		if completedToday && s.CurrentStreak == 0 {
			s.CurrentStreak = 1
		}
		if !completedToday && s.CurrentStreak > 0 {
			s.CurrentStreak = 0
		}
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}

	l.persist(ctx)
	return s.CurrentStreak, s.LongestStreak
}

// ResetStreak unconditionally zeroes the current streak.
func (l *Ledger) ResetStreak(ctx context.Context) (current, longest int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverIfNeeded()

	l.state.CurrentStreak = 0
	l.persist(ctx)
	return l.state.CurrentStreak, l.state.LongestStreak
}

// RemainingDailyCapacity returns how many minutes can still be earned today,
// rolling the daily counters over first if the date has advanced.
func (l *Ledger) RemainingDailyCapacity(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rolloverIfNeeded() {
		l.persist(ctx)
	}

	remaining := l.policy.DailyEarningCap - l.state.DailyEarned
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Balance returns the current spendable minutes.
func (l *Ledger) Balance() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Balance
}

func (l *Ledger) LifetimeEarned() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.LifetimeEarned
}

func (l *Ledger) LifetimeSpent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.LifetimeSpent
}

// Streaks returns the current and longest consecutive-day counters.
func (l *Ledger) Streaks() (current, longest int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.CurrentStreak, l.state.LongestStreak
}

// Transactions returns up to limit most-recent transactions, most-recent-first.
// It never mutates state.
func (l *Ledger) Transactions(limit int) []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > l.policy.MaxTransactions {
		limit = l.policy.MaxTransactions
	}
	if limit > len(l.state.Transactions) {
		limit = len(l.state.Transactions)
	}
	out := make([]Transaction, limit)
	for i := range out {
		out[i] = l.state.Transactions[i].clone()
	}
	return out
}

// Snapshot returns a deep copy of the full ledger state.
func (l *Ledger) Snapshot() LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.state.Clone()
}

// rolloverIfNeeded resets the daily counters when the local calendar date has
// advanced since the last reset. Callers must hold the mutex; the rollover is
// atomic with the operation that triggered it, and cap headroom is always
// computed from the post-reset counters.
func (l *Ledger) rolloverIfNeeded() bool {
	today := l.clock.Today()
	if l.state.LastResetDate == today {
		return false
	}
	l.state.DailyEarned = 0
	l.state.DailySpent = 0
	l.state.LastResetDate = today
	return true
}

func (l *Ledger) append(ctx context.Context, txType TransactionType, amount int, source Source, sourceID string, meta map[string]string) {
	// clone detaches the caller's metadata map from the stored log entry.
	tx := Transaction{
		ID:           uuid.NewString(),
		Type:         txType,
		Amount:       amount,
		BalanceAfter: l.state.Balance,
		SourceType:   source,
		SourceID:     sourceID,
		Metadata:     meta,
		Timestamp:    l.clock.Now().UnixMilli(),
	}.clone()

	l.state.Transactions = append([]Transaction{tx}, l.state.Transactions...)
	if len(l.state.Transactions) > l.policy.MaxTransactions {
		l.state.Transactions = l.state.Transactions[:l.policy.MaxTransactions]
	}

	if l.archiver != nil {
		if err := l.archiver.Append(ctx, l.userID, tx); err != nil {
			log.Warn().Err(err).Str("user_id", l.userID.String()).Str("tx_id", tx.ID).Msg("Transaction archive append failed")
		}
	}
}

func (l *Ledger) persist(ctx context.Context) {
	if err := l.store.Save(ctx, l.userID, l.state); err != nil {
		log.Warn().Err(err).Str("user_id", l.userID.String()).Msg("Ledger snapshot save failed, keeping state in memory")
	}
}
