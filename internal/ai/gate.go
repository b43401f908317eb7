package ai

import (
	"sync"
	"time"

	"github.com/example/wordmate/internal/logger"
	"github.com/example/wordmate/internal/notify"
)

// DefaultCooldown is how long AI calls stay off after quota exhaustion
const DefaultCooldown = 15 * time.Minute

const (
	msgCooldownStarted = "AI 사용량 한도에 도달했습니다. 15분 후에 다시 시도해 주세요."
	msgCooldownEnded   = "AI 기능을 다시 사용할 수 있습니다. 다시 시도해 보세요."
)

// Timer is the part of *time.Timer the gate needs
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d; time.AfterFunc in production
type AfterFunc func(d time.Duration, f func()) Timer

// Gate is the process-wide quota switch shared by every AI call site.
// It is either available or cooling down; a cooldown ends by itself after
// the configured window.
type Gate struct {
	mu        sync.Mutex
	cooling   bool
	until     time.Time
	timer     Timer
	gen       uint64
	cooldown  time.Duration
	notifier  notify.Notifier
	log       *logger.Logger
	afterFunc AfterFunc
	now       func() time.Time
}

// GateOption customizes a Gate
type GateOption func(*Gate)

// WithAfterFunc replaces time.AfterFunc (useful for tests)
func WithAfterFunc(fn AfterFunc) GateOption {
	return func(g *Gate) {
		if fn != nil {
			g.afterFunc = fn
		}
	}
}

// WithGateClock replaces time.Now
func WithGateClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate creates an available gate
func NewGate(cooldown time.Duration, notifier notify.Notifier, log *logger.Logger, opts ...GateOption) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if log == nil {
		log = logger.NewNop()
	}
	g := &Gate{
		cooldown: cooldown,
		notifier: notifier,
		log:      log,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsAvailable reports whether AI calls may go out
func (g *Gate) IsAvailable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.cooling
}

// CoolingDownUntil returns when the current cooldown ends, zero if available
func (g *Gate) CoolingDownUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cooling {
		return time.Time{}
	}
	return g.until
}

// RecordExhaustion starts a cooldown. It returns false when one is already
// running; the running timer is left alone.
func (g *Gate) RecordExhaustion() bool {
	g.mu.Lock()
	if g.cooling {
		g.mu.Unlock()
		return false
	}
	g.cooling = true
	g.gen++
	gen := g.gen
	g.until = g.now().Add(g.cooldown)
	g.timer = g.afterFunc(g.cooldown, func() { g.expire(gen) })
	g.mu.Unlock()

	g.log.Warn("AI quota exhausted, cooling down", "cooldown", g.cooldown.String())
	g.notifier.Notify(notify.Notice{Level: notify.Warning, Message: msgCooldownStarted})
	return true
}

// Reset makes the gate available again without a notice
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.cooling = false
	g.until = time.Time{}
	g.gen++
}

func (g *Gate) expire(gen uint64) {
	g.mu.Lock()
	if !g.cooling || gen != g.gen {
		g.mu.Unlock()
		return
	}
	g.cooling = false
	g.until = time.Time{}
	g.timer = nil
	g.mu.Unlock()

	g.log.Info("AI quota cooldown finished")
	g.notifier.Notify(notify.Notice{Level: notify.Info, Message: msgCooldownEnded})
}
