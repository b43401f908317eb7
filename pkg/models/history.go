package models

// DateLayout is the calendar-date format used by history entries
const DateLayout = "2006-01-02"

// LearningHistoryEntry counts words learned on a calendar date
type LearningHistoryEntry struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// QuizHistoryEntry records a completed quiz attempt
type QuizHistoryEntry struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
	Total int    `json:"total"`
}
