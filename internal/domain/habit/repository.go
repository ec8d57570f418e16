package habit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, h *Habit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO habits (id, user_id, name, reward_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, h.ID, h.UserID, h.Name, h.RewardMinutes, h.CreatedAt, h.UpdatedAt)
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, habitID uuid.UUID) (*Habit, error) {
	var h Habit
	err := r.db.GetContext(ctx, &h, `
		SELECT id, user_id, name, reward_minutes, archived_at, created_at, updated_at
		FROM habits
		WHERE id = $1 AND user_id = $2
	`, habitID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]Habit, error) {
	query := `
		SELECT id, user_id, name, reward_minutes, archived_at, created_at, updated_at
		FROM habits
		WHERE user_id = $1
	`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY created_at`

	habits := []Habit{}
	if err := r.db.SelectContext(ctx, &habits, query, userID); err != nil {
		return nil, err
	}
	return habits, nil
}

func (r *PostgresRepository) Update(ctx context.Context, h *Habit) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE habits
		SET name = $1, reward_minutes = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5
	`, h.Name, h.RewardMinutes, h.UpdatedAt, h.ID, h.UserID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Archive(ctx context.Context, userID, habitID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE habits
		SET archived_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND archived_at IS NULL
	`, habitID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateCompletion(ctx context.Context, c *Completion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO habit_completions (id, habit_id, user_id, completed_on, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.HabitID, c.UserID, c.CompletedOn, c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyCompleted
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) DeleteCompletion(ctx context.Context, userID, habitID uuid.UUID, completedOn string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM habit_completions
		WHERE habit_id = $1 AND user_id = $2 AND completed_on = $3
	`, habitID, userID, completedOn)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotCompleted
	}
	return nil
}

func (r *PostgresRepository) CountCompletionsOn(ctx context.Context, userID uuid.UUID, completedOn string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM habit_completions
		WHERE user_id = $1 AND completed_on = $2
	`, userID, completedOn)
	return count, err
}

func (r *PostgresRepository) ListCompletions(ctx context.Context, userID, habitID uuid.UUID, since time.Time) ([]Completion, error) {
	completions := []Completion{}
	err := r.db.SelectContext(ctx, &completions, `
		SELECT id, habit_id, user_id, completed_on, created_at
		FROM habit_completions
		WHERE habit_id = $1 AND user_id = $2 AND created_at >= $3
		ORDER BY completed_on DESC
	`, habitID, userID, since)
	if err != nil {
		return nil, err
	}
	return completions, nil
}
