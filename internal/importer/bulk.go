package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/wordmate/internal/ai"
	"github.com/example/wordmate/internal/logger"
	"github.com/example/wordmate/internal/vocab"
	"github.com/example/wordmate/pkg/models"
)

// DefaultCallDelay spaces out AI lookups during a bulk add
const DefaultCallDelay = 6 * time.Second

// DetailSource looks up word details; *ai.Service in production
type DetailSource interface {
	WordDetails(ctx context.Context, term string) (ai.WordDetails, error)
}

// WordSink stores new custom words; *vocab.Vocabulary in production
type WordSink interface {
	AddCustomWord(ctx context.Context, w models.Word) (models.Word, error)
}

// Progress is called after each term is processed
type Progress func(done, total int, term string, err error)

// Result summarizes a bulk add
type Result struct {
	Added   []models.Word
	Skipped []string
	Failed  []string
	// Stopped is set when the run ended before every term was tried
	Stopped bool
	Reason  error
}

// Remaining returns how many terms were never tried
func (r Result) Remaining(total int) int {
	return total - len(r.Added) - len(r.Skipped) - len(r.Failed)
}

// BulkAdder adds candidate terms one AI call at a time
type BulkAdder struct {
	source DetailSource
	sink   WordSink
	log    *logger.Logger
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewBulkAdder creates a BulkAdder; a non-positive delay uses DefaultCallDelay
func NewBulkAdder(source DetailSource, sink WordSink, log *logger.Logger, delay time.Duration) *BulkAdder {
	if log == nil {
		log = logger.NewNop()
	}
	if delay <= 0 {
		delay = DefaultCallDelay
	}
	return &BulkAdder{source: source, sink: sink, log: log, delay: delay, sleep: ai.SleepWithContext}
}

// Run looks up and stores each term in order. It stops early when the AI
// quota is cooling down, when AI is disabled, or when ctx is cancelled.
func (b *BulkAdder) Run(ctx context.Context, terms []string, grade models.Grade, progress Progress) Result {
	var result Result
	for i, term := range terms {
		if i > 0 {
			if err := b.sleep(ctx, b.delay); err != nil {
				result.Stopped, result.Reason = true, err
				break
			}
		}

		err := b.addOne(ctx, term, grade, &result)
		if progress != nil {
			progress(i+1, len(terms), term, err)
		}
		if err != nil && stops(err) {
			result.Stopped, result.Reason = true, err
			b.log.Warn("Bulk add stopped", "term", term, "done", i, "total", len(terms), "error", err)
			break
		}
	}

	b.log.Info("Bulk add finished",
		"added", len(result.Added),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
		"stopped", result.Stopped)
	return result
}

func (b *BulkAdder) addOne(ctx context.Context, term string, grade models.Grade, result *Result) error {
	details, err := b.source.WordDetails(ctx, term)
	if err != nil {
		if !stops(err) {
			result.Failed = append(result.Failed, term)
		}
		return err
	}

	word, err := b.sink.AddCustomWord(ctx, details.ToWord(term, grade))
	switch {
	case errors.Is(err, vocab.ErrDuplicateTerm):
		result.Skipped = append(result.Skipped, term)
		return nil
	case err != nil:
		result.Failed = append(result.Failed, term)
		return fmt.Errorf("store %q: %w", term, err)
	}
	result.Added = append(result.Added, word)
	return nil
}

func stops(err error) bool {
	return ai.Skipped(err) ||
		errors.Is(err, ai.ErrAIDisabled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
