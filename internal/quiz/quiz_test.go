package quiz

import (
	"context"
	"math/rand"
	"testing"

	"github.com/example/wordmate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	answers  map[string][]bool
	attempts []models.QuizHistoryEntry
}

func (f *fakeRecorder) RecordQuizAnswer(_ context.Context, id string, correct bool) error {
	if f.answers == nil {
		f.answers = make(map[string][]bool)
	}
	f.answers[id] = append(f.answers[id], correct)
	return nil
}

func (f *fakeRecorder) RecordQuizAttempt(_ context.Context, score, total int) models.QuizHistoryEntry {
	entry := models.QuizHistoryEntry{Date: "2026-03-10T09:30:00Z", Score: score, Total: total}
	f.attempts = append(f.attempts, entry)
	return entry
}

func testPool() []models.Word {
	return []models.Word{
		{ID: "a", Term: "apple", Meaning: "사과", ExampleSentence: "I ate an apple.", Grade: models.Grade1},
		{ID: "b", Term: "book", Meaning: "책", ExampleSentence: "This book is fun.", Grade: models.Grade1},
		{ID: "c", Term: "cat", Meaning: "고양이", ExampleSentence: "The cat sleeps.", Grade: models.Grade1},
		{ID: "d", Term: "desk", Meaning: "책상", ExampleSentence: "Sit at the desk.", Grade: models.Grade1},
		{ID: "e", Term: "energy", Meaning: "에너지", ExampleSentence: "Save energy.", Grade: models.Grade2},
		{ID: "f", Term: "forest", Meaning: "숲", ExampleSentence: "Walk in the forest.", Grade: models.Grade2},
	}
}

func noStats(string) models.WordStat { return models.DefaultWordStat() }

func TestNew_QuestionsFromGrade(t *testing.T) {
	pool := testPool()
	q, err := New(pool, noStats, Request{Grade: models.Grade1, Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)
	assert.Equal(t, 4, q.Total())

	for _, question := range q.Questions {
		assert.Equal(t, models.Grade1, question.Word.Grade)
		assert.Equal(t, MultipleChoice, question.Type)
		require.Len(t, question.Options, 4)
		assert.Equal(t, question.Word.Meaning, question.Options[question.CorrectIndex])
		// grade 1 has exactly three other words, so no other grade is needed
		assert.NotContains(t, question.Options, "에너지")
		assert.NotContains(t, question.Options, "숲")
	}
}

func TestNew_FallsBackToOtherGrades(t *testing.T) {
	q, err := New(testPool(), noStats, Request{Grade: models.Grade2, Count: 1, Rand: rand.New(rand.NewSource(3))})
	require.NoError(t, err)
	require.Equal(t, 1, q.Total())
	question := q.Questions[0]
	assert.Len(t, question.Options, 4)
	assert.Equal(t, question.Word.Meaning, question.Options[question.CorrectIndex])
}

func TestNew_SkipsMasteredAndEmpty(t *testing.T) {
	stats := func(id string) models.WordStat {
		return models.WordStat{IsMastered: id == "e" || id == "f"}
	}
	_, err := New(testPool(), stats, Request{Grade: models.Grade2})
	assert.ErrorIs(t, err, ErrNoWords)

	_, err = New(testPool(), noStats, Request{Grade: models.Grade3})
	assert.ErrorIs(t, err, ErrNoWords)
}

func TestContextQuestionBlanksTerm(t *testing.T) {
	q, err := New(testPool(), noStats, Request{Grade: models.Grade2, Type: ContextTest, Rand: rand.New(rand.NewSource(7))})
	require.NoError(t, err)
	for _, question := range q.Questions {
		assert.Equal(t, ContextTest, question.Type)
		assert.Contains(t, question.Prompt, "_______")
		assert.NotContains(t, question.Prompt, question.Word.Term)
		assert.Equal(t, question.Word.Term, question.Options[question.CorrectIndex])
	}
}

func TestAnswerAndFinish(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	q, err := New(testPool(), noStats, Request{Grade: models.Grade1, Count: 3, Rand: rand.New(rand.NewSource(5))})
	require.NoError(t, err)

	first, idx, ok := q.Current()
	require.True(t, ok)
	correct, err := q.Answer(ctx, rec, idx, first.CorrectIndex)
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, 1, q.Score())

	_, err = q.Answer(ctx, rec, idx, 0)
	assert.ErrorIs(t, err, ErrStaleAnswer)

	second, idx, _ := q.Current()
	correct, err = q.Answer(ctx, rec, idx, (second.CorrectIndex+1)%len(second.Options))
	require.NoError(t, err)
	assert.False(t, correct)
	assert.Equal(t, 1, q.Score())
	assert.Equal(t, []bool{false}, rec.answers[second.Word.ID])

	third, idx, _ := q.Current()
	_, err = q.Answer(ctx, rec, idx, third.CorrectIndex)
	require.NoError(t, err)

	assert.True(t, q.Done())
	assert.Equal(t, 2, q.Score())
	_, err = q.Answer(ctx, rec, 3, 0)
	assert.ErrorIs(t, err, ErrFinished)

	entry := q.Finish(ctx, rec)
	assert.Equal(t, 2, entry.Score)
	assert.Equal(t, 3, entry.Total)
	require.Len(t, q.Wrong(), 1)
	assert.Equal(t, second.Word.ID, q.Wrong()[0].ID)
}

func TestBlankOut(t *testing.T) {
	assert.Equal(t, "I ate two _______ today.", blankOut("I ate two Apples today.", "apple"))
	assert.Equal(t, "No match here _______", blankOut("No match here", "apple"))
}
