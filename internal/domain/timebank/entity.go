package timebank

// TransactionType defines supported ledger transaction types.
type TransactionType string

const (
	TransactionEarn    TransactionType = "earn"
	TransactionSpend   TransactionType = "spend"
	TransactionBonus   TransactionType = "bonus"
	TransactionPenalty TransactionType = "penalty"
)

// Source identifies the entity that originated a transaction.
type Source string

const (
	SourceHabit     Source = "habit"
	SourceAppUnlock Source = "app_unlock"
	SourceEmergency Source = "emergency"
	SourceBonus     Source = "bonus"
	SourceStreak    Source = "streak"
)

// Transaction is an immutable ledger row.
//
// Amount is a signed delta in minutes: positive for earn/bonus, negative for
// spend/penalty. BalanceAfter is the balance immediately after the transaction
// was applied; replaying all transactions oldest-first from the initial
// balance, clamping to the policy bounds at each step, reproduces every
// stored BalanceAfter.
type Transaction struct {
	ID           string            `json:"id"`
	Type         TransactionType   `json:"type"`
	Amount       int               `json:"amount"`
	BalanceAfter int               `json:"balanceAfter"`
	SourceType   Source            `json:"sourceType"`
	SourceID     string            `json:"sourceId,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    int64             `json:"timestamp"` // epoch milliseconds
}

// LedgerState is the full persisted snapshot of one user's ledger.
// Transactions are ordered most-recent-first and bounded by Policy.MaxTransactions.
type LedgerState struct {
	Balance        int           `json:"balance"`
	LifetimeEarned int           `json:"lifetimeEarned"`
	LifetimeSpent  int           `json:"lifetimeSpent"`
	DailyEarned    int           `json:"dailyEarned"`
	DailySpent     int           `json:"dailySpent"`
	LastResetDate  string        `json:"lastResetDate"` // YYYY-MM-DD in the ledger's timezone
	CurrentStreak  int           `json:"currentStreak"`
	LongestStreak  int           `json:"longestStreak"`
	LastStreakDate string        `json:"lastStreakDate,omitempty"` // YYYY-MM-DD of the last streak evaluation
	Transactions   []Transaction `json:"transactions"`
}

// clone returns a copy whose Metadata map is detached from the original.
func (t Transaction) clone() Transaction {
	if t.Metadata != nil {
		meta := make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			meta[k] = v
		}
		t.Metadata = meta
	}
	return t
}

// Clone returns a deep copy of the state.
func (s *LedgerState) Clone() *LedgerState {
	c := *s
	c.Transactions = make([]Transaction, len(s.Transactions))
	for i, tx := range s.Transactions {
		c.Transactions[i] = tx.clone()
	}
	return &c
}

// Policy holds the ledger's configurable limits, all in minutes.
type Policy struct {
	DailyEarningCap  int
	DailySpendingCap int // 0 disables the spending cap
	MinBalance       int
	MaxBalance       int
	InitialBalance   int
	MaxTransactions  int
}

// DefaultPolicy returns the stock mobile-app policy.
func DefaultPolicy() Policy {
	return Policy{
		DailyEarningCap:  180,
		DailySpendingCap: 0,
		MinBalance:       -60,
		MaxBalance:       480,
		InitialBalance:   45,
		MaxTransactions:  50,
	}
}

func newInitialState(today string, p Policy) *LedgerState {
	return &LedgerState{
		Balance:       p.InitialBalance,
		LastResetDate: today,
	}
}

func (p Policy) clamp(balance int) int {
	if balance > p.MaxBalance {
		return p.MaxBalance
	}
	if balance < p.MinBalance {
		return p.MinBalance
	}
	return balance
}
