package ai

import (
	"sync"
	"testing"
	"time"

	"github.com/example/wordmate/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	t := s.timers[i]
	s.mu.Unlock()
	t.f()
}

func newTestGate(rec *notify.Recorder) (*Gate, *fakeScheduler) {
	sched := &fakeScheduler{}
	return NewGate(DefaultCooldown, rec, nil, WithAfterFunc(sched.AfterFunc)), sched
}

func TestGate_ExhaustionIsIdempotentPerWindow(t *testing.T) {
	rec := &notify.Recorder{}
	gate, sched := newTestGate(rec)
	require.True(t, gate.IsAvailable())

	assert.True(t, gate.RecordExhaustion())
	assert.False(t, gate.RecordExhaustion())
	assert.False(t, gate.RecordExhaustion())

	assert.False(t, gate.IsAvailable())
	require.Len(t, sched.timers, 1)
	assert.Equal(t, 15*time.Minute, sched.timers[0].d)
	assert.Equal(t, 1, rec.Count(msgCooldownStarted))
	assert.Equal(t, 0, rec.Count(msgCooldownEnded))

	sched.fire(0)
	assert.True(t, gate.IsAvailable())
	assert.Equal(t, 1, rec.Count(msgCooldownStarted))
	assert.Equal(t, 1, rec.Count(msgCooldownEnded))
}

func TestGate_ConcurrentDetectionsStartOneCooldown(t *testing.T) {
	rec := &notify.Recorder{}
	gate, sched := newTestGate(rec)

	var wg sync.WaitGroup
	started := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- gate.RecordExhaustion()
		}()
	}
	wg.Wait()
	close(started)

	transitions := 0
	for s := range started {
		if s {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)
	assert.Len(t, sched.timers, 1)
	assert.Equal(t, 1, rec.Count(msgCooldownStarted))
}

func TestGate_NewWindowAfterExpiry(t *testing.T) {
	rec := &notify.Recorder{}
	gate, sched := newTestGate(rec)

	gate.RecordExhaustion()
	sched.fire(0)
	assert.True(t, gate.RecordExhaustion())
	assert.Len(t, sched.timers, 2)
	assert.Equal(t, 2, rec.Count(msgCooldownStarted))
}

func TestGate_ResetStopsTimerSilently(t *testing.T) {
	rec := &notify.Recorder{}
	gate, sched := newTestGate(rec)

	gate.RecordExhaustion()
	gate.Reset()
	assert.True(t, gate.IsAvailable())
	assert.True(t, sched.timers[0].stopped)
	assert.True(t, gate.CoolingDownUntil().IsZero())

	// a stale timer firing after Reset must not flip anything or notify
	sched.fire(0)
	assert.Equal(t, 0, rec.Count(msgCooldownEnded))
}

func TestGate_CoolingDownUntil(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sched := &fakeScheduler{}
	gate := NewGate(10*time.Minute, nil, nil, WithAfterFunc(sched.AfterFunc), WithGateClock(func() time.Time { return start }))

	gate.RecordExhaustion()
	assert.Equal(t, start.Add(10*time.Minute), gate.CoolingDownUntil())
}

func TestGate_RealTimerExpires(t *testing.T) {
	rec := &notify.Recorder{}
	gate := NewGate(20*time.Millisecond, rec, nil)

	gate.RecordExhaustion()
	assert.False(t, gate.IsAvailable())
	assert.Eventually(t, gate.IsAvailable, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return rec.Count(msgCooldownEnded) == 1 }, 2*time.Second, 5*time.Millisecond)
}
