package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendGeneratesEventID(t *testing.T) {
	l := New(10)
	e := l.Append(Event{EventType: "alert", Message: "front door"})
	assert.NotEmpty(t, e.EventID)
	assert.Regexp(t, `^evt_[0-9a-f]{10}$`, e.EventID)
}

func TestAppendPreservesGivenEventID(t *testing.T) {
	l := New(10)
	e := l.Append(Event{EventID: "evt_deadbeef01", EventType: "alert"})
	assert.Equal(t, "evt_deadbeef01", e.EventID)
}

func TestRecentReturnsOldestFirstAndEvictsOverCap(t *testing.T) {
	l := New(2)
	l.Append(Event{EventType: "a", Message: "1"})
	l.Append(Event{EventType: "a", Message: "2"})
	l.Append(Event{EventType: "a", Message: "3"})

	all := l.Recent(0)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].Message)
	assert.Equal(t, "3", all[1].Message)
}

func TestRecentWithLimitReturnsOnlyLastN(t *testing.T) {
	l := New(10)
	for i := 0; i < 5; i++ {
		l.Append(Event{EventType: "a"})
	}
	assert.Len(t, l.Recent(2), 2)
}

func TestRecentOnEmptyLogReturnsEmptySlice(t *testing.T) {
	l := New(10)
	assert.Empty(t, l.Recent(0))
}
