package habit

import "errors"

var (
	ErrNotFound         = errors.New("habit not found")
	ErrArchived         = errors.New("habit is archived")
	ErrAlreadyCompleted = errors.New("habit already completed today")
	ErrNotCompleted     = errors.New("habit not completed today")
)
