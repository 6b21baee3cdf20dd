package surface

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdullathedruid/termdeck/internal/host/hosttest"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

func newTestManager(fake *hosttest.Fake, onLive func(workspace.ID, workspace.Target)) *Manager {
	return NewManager(context.Background(), ManagerOptions{
		Backend: fake,
		Measurer: func(workspace.Slot) Measurer {
			return MeasureFunc(func() (int, int, error) { return 80, 20, nil })
		},
		NewWidget:      func(int, int) Widget { return &fakeWidget{} },
		OnLive:         onLive,
		BatchInterval:  time.Millisecond,
		ResizeDebounce: time.Millisecond,
		FitPoll:        time.Millisecond,
	})
}

func TestManagerApply(t *testing.T) {
	fake := hosttest.New()
	orch := workspace.ForSelection(workspace.Orchestrator())
	sess := workspace.ForSelection(workspace.Session("a"))
	for _, id := range append(orch.All(), sess.All()...) {
		fake.AddTerminal(id, "")
	}

	var mu sync.Mutex
	live := map[workspace.ID]workspace.Target{}
	m := newTestManager(fake, func(id workspace.ID, target workspace.Target) {
		mu.Lock()
		defer mu.Unlock()
		live[id] = target
	})
	defer m.UnmountAll()

	m.Apply(orch, workspace.Orchestrator().Target())
	assert.Equal(t, orch, m.Displayed())
	top := m.Get(workspace.SlotTop)
	require.NotNil(t, top)

	// Re-applying the same ids keeps the mounts.
	m.Apply(orch, workspace.Orchestrator().Target())
	assert.Same(t, top, m.Get(workspace.SlotTop))

	m.Apply(sess, workspace.Session("a").Target())
	assert.Equal(t, sess, m.Displayed())
	assert.NotSame(t, top, m.Get(workspace.SlotTop))
	require.Eventually(t, func() bool { return fake.Subscribers(orch.Top) == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, fake.Subscribers(sess.Top))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return live[sess.Top] == workspace.Session("a").Target()
	}, time.Second, time.Millisecond)
}

func TestManagerFocus(t *testing.T) {
	m := newTestManager(hosttest.New(), nil)

	assert.Equal(t, workspace.SlotTop, m.FocusedSlot())
	m.Next()
	assert.Equal(t, workspace.SlotBottom, m.FocusedSlot())
	m.Next()
	m.Next()
	assert.Equal(t, workspace.SlotTop, m.FocusedSlot())
	m.Prev()
	assert.Equal(t, workspace.SlotRight, m.FocusedSlot())
	m.Focus(workspace.SlotBottom)
	assert.Equal(t, workspace.SlotBottom, m.FocusedSlot())
	assert.Nil(t, m.Focused())
}
