package models

import "time"

// WordStat tracks a user's progress with a specific word
type WordStat struct {
	IsMastered         bool       `json:"isMastered"`
	LastReviewed       *time.Time `json:"lastReviewed"`
	QuizIncorrectCount int        `json:"quizIncorrectCount"`
}

// DefaultWordStat is the stat of a word that has never been touched
func DefaultWordStat() WordStat {
	return WordStat{}
}

// ReviewedOn reports whether the word was last reviewed on the same calendar
// day as now, in now's location.
func (s WordStat) ReviewedOn(now time.Time) bool {
	if s.LastReviewed == nil {
		return false
	}
	return SameDate(s.LastReviewed.In(now.Location()), now)
}

// SameDate compares the date portion of two timestamps
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
