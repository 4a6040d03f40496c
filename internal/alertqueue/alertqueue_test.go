package alertqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/technosupport/physical-mcp/internal/rules"
)

func makeAlert(id string, ruleIDs ...string) rules.PendingAlert {
	active := make([]rules.ActiveRuleInfo, 0, len(ruleIDs))
	for _, rid := range ruleIDs {
		active = append(active, rules.ActiveRuleInfo{ID: rid})
	}
	return rules.PendingAlert{ID: id, ActiveRules: active}
}

func TestPushAndPopAll(t *testing.T) {
	q := New(0, 0)
	q.Push(makeAlert("a1"))
	q.Push(makeAlert("a2"))

	assert.True(t, q.HasPending())
	assert.Equal(t, 2, q.Size())

	out := q.PopAll()
	assert.Len(t, out, 2)
	assert.False(t, q.HasPending())
	assert.Equal(t, 0, q.Size())
}

func TestPushEvictsOldestOnOverflow(t *testing.T) {
	q := New(2, 0)
	q.Push(makeAlert("a1"))
	q.Push(makeAlert("a2"))
	q.Push(makeAlert("a3"))

	out := q.PopAll()
	assert.Len(t, out, 2)
	assert.Equal(t, "a2", out[0].ID)
	assert.Equal(t, "a3", out[1].ID)
}

func TestExpiredAlertsArePruned(t *testing.T) {
	q := New(0, 0)
	expired := makeAlert("old")
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	q.mu.Lock()
	q.items = append(q.items, expired)
	q.mu.Unlock()

	q.Push(makeAlert("new"))

	out := q.PopAll()
	assert.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ID)
}

func TestFlushRuleRemovesMatchingAlerts(t *testing.T) {
	q := New(0, 0)
	q.Push(makeAlert("a1", "r1"))
	q.Push(makeAlert("a2", "r2"))
	q.Push(makeAlert("a3", "r1", "r3"))

	removed := q.FlushRule("r1")
	assert.Equal(t, 2, removed)

	out := q.PopAll()
	assert.Len(t, out, 1)
	assert.Equal(t, "a2", out[0].ID)
}
