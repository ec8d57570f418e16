package habit

import (
	"time"

	"github.com/google/uuid"
)

// Habit is a recurring practice that earns time-currency when completed.
type Habit struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	Name          string     `db:"name" json:"name"`
	RewardMinutes int        `db:"reward_minutes" json:"reward_minutes"`
	ArchivedAt    *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Completion records that a habit was completed on a given local calendar day.
// At most one completion per habit per day.
type Completion struct {
	ID          uuid.UUID `db:"id" json:"id"`
	HabitID     uuid.UUID `db:"habit_id" json:"habit_id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	CompletedOn string    `db:"completed_on" json:"completed_on"` // YYYY-MM-DD
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
