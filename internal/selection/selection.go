package selection

import (
	"math/rand"
	"sort"
	"time"

	"github.com/example/wordmate/pkg/models"
)

// Mode picks which words qualify for a session
type Mode int

const (
	// Daily selects words for the daily goal session
	Daily Mode = iota
	// Review selects previously studied words for a quick review
	Review
)

func (m Mode) String() string {
	if m == Review {
		return "review"
	}
	return "daily"
}

// StatLookup returns the stat of a word, the default stat if it has none
type StatLookup func(id string) models.WordStat

// Request describes one selection
type Request struct {
	Grade models.Grade
	Count int
	Mode  Mode
	Now   time.Time
	// Rand is used for the final shuffle; nil means a time-seeded source.
	Rand *rand.Rand
}

// Eligible reports whether a word may appear in a session of the given mode
func Eligible(word models.Word, stat models.WordStat, grade models.Grade, mode Mode, now time.Time) bool {
	if word.Grade != grade || stat.IsMastered {
		return false
	}
	switch mode {
	case Review:
		return stat.LastReviewed != nil && !stat.ReviewedOn(now)
	default:
		return !stat.ReviewedOn(now)
	}
}

// Select filters the pool, orders the candidates, shuffles them and returns
// at most req.Count words. An empty result means nothing qualifies.
func Select(pool []models.Word, stats StatLookup, req Request) []models.Word {
	if req.Count <= 0 {
		return nil
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	var eligible []models.Word
	for _, w := range pool {
		if Eligible(w, stats(w.ID), req.Grade, req.Mode, now) {
			eligible = append(eligible, w)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	Order(eligible, stats)

	// The shuffle runs over the whole ordered set before truncation, so the
	// ordering only fixes the shuffle input.
	rnd := req.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rnd.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})

	if len(eligible) > req.Count {
		eligible = eligible[:req.Count]
	}
	return eligible
}

// Order sorts words hardest first: more wrong quiz answers, then the oldest
// review (never reviewed counts as oldest), then custom before built-in.
func Order(words []models.Word, stats StatLookup) {
	sort.SliceStable(words, func(i, j int) bool {
		a, b := stats(words[i].ID), stats(words[j].ID)
		if a.QuizIncorrectCount != b.QuizIncorrectCount {
			return a.QuizIncorrectCount > b.QuizIncorrectCount
		}
		if c := compareReviewed(a.LastReviewed, b.LastReviewed); c != 0 {
			return c < 0
		}
		return words[i].IsCustom && !words[j].IsCustom
	})
}

// compareReviewed orders never-reviewed before any timestamp, then oldest first
func compareReviewed(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	}
	return 0
}
