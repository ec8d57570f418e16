package timebank

type mutationRequest struct {
	Amount     int               `json:"amount" validate:"required,gt=0"`
	SourceType string            `json:"source_type" validate:"omitempty,source_type"`
	SourceID   string            `json:"source_id"`
	Metadata   map[string]string `json:"metadata"`
}

type adjustmentRequest struct {
	Amount   int               `json:"amount" validate:"required,gt=0"`
	Metadata map[string]string `json:"metadata"`
}

type streakRequest struct {
	CompletedToday *bool `json:"completed_today" validate:"required"`
}

type mutationResponse struct {
	Applied bool `json:"applied"`
	Summary
}

type streakResponse struct {
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}
