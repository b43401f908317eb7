package selection

import (
	"math/rand"
	"testing"
	"time"

	"github.com/example/wordmate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func lookup(stats map[string]models.WordStat) StatLookup {
	return func(id string) models.WordStat {
		if s, ok := stats[id]; ok {
			return s
		}
		return models.DefaultWordStat()
	}
}

func ids(words []models.Word) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.ID
	}
	return out
}

func TestSelect_ScenarioExcludesOtherGrade(t *testing.T) {
	pool := []models.Word{
		{ID: "A", Term: "alpha", Grade: models.Grade1},
		{ID: "B", Term: "beta", Grade: models.Grade1},
		{ID: "C", Term: "gamma", Grade: models.Grade2},
	}
	stats := lookup(map[string]models.WordStat{
		"A": {QuizIncorrectCount: 3, LastReviewed: ago(48 * time.Hour)},
		"B": {QuizIncorrectCount: 1},
		"C": {QuizIncorrectCount: 5},
	})

	for seed := int64(0); seed < 20; seed++ {
		got := Select(pool, stats, Request{
			Grade: models.Grade1,
			Count: 2,
			Mode:  Daily,
			Now:   now,
			Rand:  rand.New(rand.NewSource(seed)),
		})
		assert.ElementsMatch(t, []string{"A", "B"}, ids(got))
	}
}

func TestSelect_DailyNeverReturnsWordsReviewedToday(t *testing.T) {
	var pool []models.Word
	stats := map[string]models.WordStat{}
	for i, g := range []models.Grade{models.Grade1, models.Grade2, models.Grade3} {
		for j := 0; j < 6; j++ {
			id := string(rune('a'+i)) + string(rune('0'+j))
			pool = append(pool, models.Word{ID: id, Grade: g})
			switch j % 3 {
			case 0:
				stats[id] = models.WordStat{LastReviewed: ago(time.Hour)}
			case 1:
				stats[id] = models.WordStat{LastReviewed: ago(30 * time.Hour)}
			}
		}
	}

	for _, g := range models.Grades {
		got := Select(pool, lookup(stats), Request{Grade: g, Count: 100, Mode: Daily, Now: now})
		require.Len(t, got, 4)
		for _, w := range got {
			assert.Equal(t, g, w.Grade)
			assert.False(t, stats[w.ID].ReviewedOn(now), "word %s was reviewed today", w.ID)
		}
	}
}

func TestSelect_ReviewOnlyPreviouslyStudied(t *testing.T) {
	pool := []models.Word{
		{ID: "never", Grade: models.Grade2},
		{ID: "today", Grade: models.Grade2},
		{ID: "yesterday", Grade: models.Grade2},
		{ID: "lastweek", Grade: models.Grade2},
		{ID: "mastered", Grade: models.Grade2},
	}
	stats := lookup(map[string]models.WordStat{
		"today":     {LastReviewed: ago(2 * time.Hour)},
		"yesterday": {LastReviewed: ago(24 * time.Hour)},
		"lastweek":  {LastReviewed: ago(7 * 24 * time.Hour)},
		"mastered":  {IsMastered: true, LastReviewed: ago(72 * time.Hour)},
	})

	got := Select(pool, stats, Request{Grade: models.Grade2, Count: 10, Mode: Review, Now: now})
	assert.ElementsMatch(t, []string{"yesterday", "lastweek"}, ids(got))
}

func TestSelect_TruncatesAndHandlesEmpty(t *testing.T) {
	pool := []models.Word{
		{ID: "1", Grade: models.Grade3},
		{ID: "2", Grade: models.Grade3},
		{ID: "3", Grade: models.Grade3},
	}
	stats := lookup(nil)

	got := Select(pool, stats, Request{Grade: models.Grade3, Count: 2, Mode: Daily, Now: now})
	assert.Len(t, got, 2)

	assert.Empty(t, Select(pool, stats, Request{Grade: models.Grade1, Count: 5, Mode: Daily, Now: now}))
	assert.Empty(t, Select(pool, stats, Request{Grade: models.Grade3, Count: 5, Mode: Review, Now: now}))
	assert.Empty(t, Select(pool, stats, Request{Grade: models.Grade3, Count: 0, Mode: Daily, Now: now}))
}

func TestOrder_Priority(t *testing.T) {
	words := []models.Word{
		{ID: "builtin-old"},
		{ID: "custom-never", IsCustom: true},
		{ID: "builtin-never"},
		{ID: "hard"},
		{ID: "builtin-older"},
	}
	stats := lookup(map[string]models.WordStat{
		"builtin-old":   {LastReviewed: ago(48 * time.Hour)},
		"hard":          {QuizIncorrectCount: 4, LastReviewed: ago(time.Hour)},
		"builtin-older": {LastReviewed: ago(96 * time.Hour)},
	})

	Order(words, stats)
	assert.Equal(t, []string{"hard", "custom-never", "builtin-never", "builtin-older", "builtin-old"}, ids(words))
}

func TestEligible_DateComparisonUsesLocalDay(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	localNow := time.Date(2026, 5, 21, 10, 0, 0, 0, seoul)
	// 23:30 UTC on the 20th is 08:30 KST on the 21st
	reviewed := time.Date(2026, 5, 20, 23, 30, 0, 0, time.UTC)
	stat := models.WordStat{LastReviewed: &reviewed}
	word := models.Word{ID: "x", Grade: models.Grade1}

	assert.False(t, Eligible(word, stat, models.Grade1, Daily, localNow))
	assert.False(t, Eligible(word, stat, models.Grade1, Review, localNow))
}
