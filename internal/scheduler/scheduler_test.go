package scheduler

import (
	"testing"
	"time"

	"github.com/example/wordmate/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProgress struct {
	learned int
	goal    int
	setUp   bool
}

func (s stubProgress) LearnedToday() int      { return s.learned }
func (s stubProgress) DailyGoal() (int, bool) { return s.goal, s.setUp }

func TestCheckAndRemind(t *testing.T) {
	tests := []struct {
		name     string
		progress stubProgress
		want     bool
	}{
		{"below goal", stubProgress{learned: 3, goal: 10, setUp: true}, true},
		{"nothing learned", stubProgress{learned: 0, goal: 5, setUp: true}, true},
		{"goal reached", stubProgress{learned: 10, goal: 10, setUp: true}, false},
		{"over goal", stubProgress{learned: 12, goal: 10, setUp: true}, false},
		{"not set up", stubProgress{learned: 0, goal: 0, setUp: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &notify.Recorder{}
			s := New(tt.progress, rec, nil, "", time.UTC)
			assert.Equal(t, tt.want, s.CheckAndRemind())
			if tt.want {
				require.Len(t, rec.Notices(), 1)
				assert.Contains(t, rec.Notices()[0].Message, "/learn")
			} else {
				assert.Empty(t, rec.Notices())
			}
		})
	}
}

func TestStartRejectsBadTime(t *testing.T) {
	s := New(stubProgress{}, notify.Discard, nil, "25:99", time.UTC)
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := New(stubProgress{}, notify.Discard, nil, "07:30", time.UTC)
	require.NoError(t, s.Start())
	s.Stop()
}
