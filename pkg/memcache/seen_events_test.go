package mem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenEvents(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewSeenEvents()
	s.now = func() time.Time { return now }

	assert.False(t, s.Seen("evt_1"))
	s.MarkSeen("evt_1", time.Minute)
	assert.True(t, s.Seen("evt_1"))

	now = now.Add(2 * time.Minute)
	assert.False(t, s.Seen("evt_1"))

	s.MarkSeen("evt_2", time.Second)
	s.MarkSeen("evt_3", time.Hour)
	now = now.Add(time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.True(t, s.Seen("evt_3"))
}

func TestSeenEvents_RefreshBetweenReadAndExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewSeenEvents()
	s.now = func() time.Time { return now }
	s.MarkSeen("evt_1", -time.Second)

	// the first clock read inside Seen happens after the read lock is
	// released; refresh the id there
	refreshed := false
	s.now = func() time.Time {
		if !refreshed {
			refreshed = true
			s.MarkSeen("evt_1", time.Hour)
		}
		return now
	}

	assert.True(t, s.Seen("evt_1"))
	assert.True(t, refreshed)
	assert.True(t, s.Seen("evt_1"))
	assert.Zero(t, s.Sweep())
}
