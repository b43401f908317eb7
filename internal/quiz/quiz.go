// Package quiz builds multiple-choice quizzes from the word pool and scores
// them.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/example/wordmate/internal/selection"
	"github.com/example/wordmate/pkg/models"
)

// DefaultQuestionCount is the length of a quiz when none is requested
const DefaultQuestionCount = 10

const optionCount = 4

// QuestionType selects what a question asks for
type QuestionType string

const (
	// MultipleChoice shows the term and asks for its meaning
	MultipleChoice QuestionType = "multiple_choice"
	// ContextTest shows the example sentence with a blank and asks for the term
	ContextTest QuestionType = "context"
)

var (
	// ErrNoWords means the grade has no quizzable words
	ErrNoWords = errors.New("no words available for a quiz")
	// ErrFinished means every question has been answered
	ErrFinished = errors.New("quiz already finished")
	// ErrStaleAnswer means the answer targets a question that is not current
	ErrStaleAnswer = errors.New("answer is for a different question")
)

// Question is one quiz item
type Question struct {
	Word         models.Word
	Type         QuestionType
	Prompt       string
	Options      []string
	CorrectIndex int
}

// Recorder persists quiz outcomes; *vocab.Vocabulary in production
type Recorder interface {
	RecordQuizAnswer(ctx context.Context, id string, correct bool) error
	RecordQuizAttempt(ctx context.Context, score, total int) models.QuizHistoryEntry
}

// Quiz is an in-progress attempt. It is not safe for concurrent use.
type Quiz struct {
	Questions []Question
	current   int
	score     int
	wrong     []models.Word
}

// Request describes the quiz to build
type Request struct {
	Grade models.Grade
	Count int
	Type  QuestionType
	Rand  *rand.Rand
}

// New builds a quiz from non-mastered words of the requested grade.
// Distractors come from the same grade first and then from the whole pool.
func New(pool []models.Word, stats selection.StatLookup, req Request) (*Quiz, error) {
	rnd := req.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if req.Count <= 0 {
		req.Count = DefaultQuestionCount
	}
	if req.Type == "" {
		req.Type = MultipleChoice
	}

	var candidates []models.Word
	for _, w := range pool {
		if w.Grade == req.Grade && !stats(w.ID).IsMastered {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: grade %s", ErrNoWords, req.Grade)
	}

	rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > req.Count {
		candidates = candidates[:req.Count]
	}

	questions := make([]Question, 0, len(candidates))
	for _, word := range candidates {
		questions = append(questions, buildQuestion(word, pool, req.Type, rnd))
	}
	return &Quiz{Questions: questions}, nil
}

func buildQuestion(word models.Word, pool []models.Word, qtype QuestionType, rnd *rand.Rand) Question {
	answer := func(w models.Word) string { return w.Meaning }
	prompt := word.Term
	if qtype == ContextTest && word.ExampleSentence != "" {
		answer = func(w models.Word) string { return w.Term }
		prompt = blankOut(word.ExampleSentence, word.Term)
	} else {
		qtype = MultipleChoice
	}

	options := []string{answer(word)}
	used := map[string]bool{strings.ToLower(answer(word)): true}
	sameGrade, otherGrade := distractorPools(word, pool, rnd)
	for _, group := range [][]models.Word{sameGrade, otherGrade} {
		for _, w := range group {
			if len(options) == optionCount {
				break
			}
			key := strings.ToLower(answer(w))
			if key == "" || used[key] {
				continue
			}
			used[key] = true
			options = append(options, answer(w))
		}
	}

	correct := 0
	rnd.Shuffle(len(options), func(i, j int) {
		switch correct {
		case i:
			correct = j
		case j:
			correct = i
		}
		options[i], options[j] = options[j], options[i]
	})

	return Question{Word: word, Type: qtype, Prompt: prompt, Options: options, CorrectIndex: correct}
}

func distractorPools(word models.Word, pool []models.Word, rnd *rand.Rand) (same, other []models.Word) {
	for _, w := range pool {
		if w.ID == word.ID {
			continue
		}
		if w.Grade == word.Grade {
			same = append(same, w)
		} else {
			other = append(other, w)
		}
	}
	rnd.Shuffle(len(same), func(i, j int) { same[i], same[j] = same[j], same[i] })
	rnd.Shuffle(len(other), func(i, j int) { other[i], other[j] = other[j], other[i] })
	return same, other
}

// blankOut replaces the first whole-word occurrence of term, ignoring case
func blankOut(sentence, term string) string {
	const blank = "_______"
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\w*`)
	if err != nil {
		return sentence + " " + blank
	}
	loc := re.FindStringIndex(sentence)
	if loc == nil {
		return sentence + " " + blank
	}
	return sentence[:loc[0]] + blank + sentence[loc[1]:]
}

// Current returns the question awaiting an answer
func (q *Quiz) Current() (Question, int, bool) {
	if q.Done() {
		return Question{}, q.current, false
	}
	return q.Questions[q.current], q.current, true
}

// Done reports whether every question has been answered
func (q *Quiz) Done() bool {
	return q.current >= len(q.Questions)
}

// Score returns the number of correct answers so far
func (q *Quiz) Score() int {
	return q.score
}

// Total returns the number of questions
func (q *Quiz) Total() int {
	return len(q.Questions)
}

// Wrong returns the words answered incorrectly so far
func (q *Quiz) Wrong() []models.Word {
	return append([]models.Word(nil), q.wrong...)
}

// Answer scores choice for question index. A wrong answer bumps the word's
// incorrect counter through rec.
func (q *Quiz) Answer(ctx context.Context, rec Recorder, index, choice int) (bool, error) {
	if q.Done() {
		return false, ErrFinished
	}
	if index != q.current {
		return false, ErrStaleAnswer
	}
	question := q.Questions[q.current]
	correct := choice == question.CorrectIndex
	q.current++
	if correct {
		q.score++
	} else {
		q.wrong = append(q.wrong, question.Word)
	}
	if err := rec.RecordQuizAnswer(ctx, question.Word.ID, correct); err != nil {
		return correct, fmt.Errorf("failed to record answer: %w", err)
	}
	return correct, nil
}

// Finish appends the attempt to the quiz history
func (q *Quiz) Finish(ctx context.Context, rec Recorder) models.QuizHistoryEntry {
	return rec.RecordQuizAttempt(ctx, q.score, q.Total())
}
