package scheduler

import (
	"fmt"
	"time"

	"github.com/example/wordmate/internal/logger"
	"github.com/example/wordmate/internal/notify"
	"github.com/go-co-op/gocron"
)

// DefaultReminderAt is the local time the daily goal check runs
const DefaultReminderAt = "19:00"

// Progress reports the learner's goal and today's learned count
type Progress interface {
	LearnedToday() int
	DailyGoal() (int, bool)
}

// Scheduler runs the daily goal reminder
type Scheduler struct {
	scheduler *gocron.Scheduler
	progress  Progress
	notifier  notify.Notifier
	log       *logger.Logger
	at        string
}

// New creates a scheduler that checks progress every day at the given
// "HH:MM" time in loc
func New(progress Progress, notifier notify.Notifier, log *logger.Logger, at string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if at == "" {
		at = DefaultReminderAt
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		progress:  progress,
		notifier:  notifier,
		log:       log,
		at:        at,
	}
}

// Start schedules the reminder and returns without blocking
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At(s.at).Do(s.CheckAndRemind); err != nil {
		return fmt.Errorf("failed to schedule reminder at %s: %w", s.at, err)
	}
	s.scheduler.StartAsync()
	s.log.Info("Daily reminder scheduled", "at", s.at)
	return nil
}

// Stop terminates all scheduled jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// CheckAndRemind sends a reminder when today's learned count is below the
// daily goal. It reports whether a reminder went out.
func (s *Scheduler) CheckAndRemind() bool {
	goal, ok := s.progress.DailyGoal()
	if !ok {
		s.log.Debug("Reminder skipped, learner has not finished setup")
		return false
	}
	learned := s.progress.LearnedToday()
	if learned >= goal {
		s.log.Debug("Reminder skipped, goal reached", "learned", learned, "goal", goal)
		return false
	}

	s.notifier.Notify(notify.Notice{
		Level:   notify.Info,
		Message: fmt.Sprintf("오늘 목표까지 %d개 남았어요! (%d/%d) /learn 으로 학습을 이어가 보세요.", goal-learned, learned, goal),
	})
	s.log.Info("Reminder sent", "learned", learned, "goal", goal)
	return true
}
