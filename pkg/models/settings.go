package models

// DefaultDailyGoal is used until the user picks a goal
const DefaultDailyGoal = 10

// UserSettings holds the single learner's preferences
type UserSettings struct {
	Username  string `json:"username" validate:"required"`
	Grade     Grade  `json:"grade" validate:"required"`
	DailyGoal int    `json:"dailyGoal" validate:"min=1,max=100"`
}

// Theme is the display preference kept for the chat frontend
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)
