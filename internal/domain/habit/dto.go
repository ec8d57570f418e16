package habit

type createHabitRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=100"`
	RewardMinutes int    `json:"reward_minutes" validate:"required,gt=0,lte=120"`
}

type updateHabitRequest struct {
	Name          string `json:"name" validate:"omitempty,min=1,max=100"`
	RewardMinutes int    `json:"reward_minutes" validate:"omitempty,gt=0,lte=120"`
}
