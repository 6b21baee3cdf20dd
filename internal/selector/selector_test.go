package selector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdullathedruid/termdeck/internal/autostart"
	"github.com/abdullathedruid/termdeck/internal/host/hosttest"
	"github.com/abdullathedruid/termdeck/internal/registry"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

type recorder struct {
	mu         sync.Mutex
	displayed  []workspace.Terminals
	indicators []workspace.Selection
}

func (r *recorder) display(terms workspace.Terminals, _ workspace.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displayed = append(r.displayed, terms)
}

func (r *recorder) indicator(sel workspace.Selection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indicators = append(r.indicators, sel)
}

func (r *recorder) lastDisplayed() workspace.Terminals {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.displayed) == 0 {
		return workspace.Terminals{}
	}
	return r.displayed[len(r.displayed)-1]
}

func newSelector(t *testing.T) (*Selector, *hosttest.Fake, *recorder) {
	t.Helper()
	fake := hosttest.New()
	reg := registry.New()
	starter := autostart.New(fake, reg, autostart.Options{
		Policy: autostart.Policy{Delay: time.Millisecond, MaxAttempts: 3},
	})
	rec := &recorder{}
	s := New(fake, reg, starter, Options{OnDisplay: rec.display, OnIndicator: rec.indicator})
	return s, fake, rec
}

func TestInitPreparesOrchestrator(t *testing.T) {
	s, fake, rec := newSelector(t)
	fake.Cwd = "/repo"

	require.NoError(t, s.Init(context.Background()))

	orch := workspace.ForSelection(workspace.Orchestrator())
	sel, terms := s.Current()
	assert.True(t, sel.IsOrchestrator())
	assert.Equal(t, orch, terms)
	for _, id := range orch.All() {
		assert.Equal(t, 1, fake.CreateCalls(id))
		assert.Equal(t, "/repo", fake.TerminalCwd(id))
	}
	assert.Equal(t, []workspace.Target{workspace.Orchestrator().Target()}, fake.Starts())
	assert.Equal(t, orch, rec.lastDisplayed())
}

func TestSelectSession(t *testing.T) {
	s, fake, rec := newSelector(t)
	require.NoError(t, s.Init(context.Background()))

	sel := workspace.Session("feature-x").WithColor("magenta")
	terms, err := s.Select(context.Background(), sel)
	require.NoError(t, err)

	want := workspace.Terminals{
		Top:    "session-feature-x-top",
		Bottom: "session-feature-x-bottom",
		Right:  "session-feature-x-right",
	}
	assert.Equal(t, want, terms)
	for _, id := range want.All() {
		assert.Equal(t, 1, fake.CreateCalls(id))
	}
	assert.Equal(t, want, rec.lastDisplayed())
	assert.Equal(t, []workspace.Target{
		workspace.Orchestrator().Target(),
		workspace.Session("feature-x").Target(),
	}, fake.Starts())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.indicators, 2)
	assert.Equal(t, "magenta", rec.indicators[1].Color)
}

func TestSelectStaleIsDiscarded(t *testing.T) {
	s, fake, rec := newSelector(t)
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))

	release := fake.GateCreate("session-a-top")
	errA := make(chan error, 1)
	go func() {
		_, err := s.Select(ctx, workspace.Session("a"))
		errA <- err
	}()
	require.Eventually(t, func() bool { return fake.CreateCalls("session-a-top") == 1 }, time.Second, time.Millisecond)

	termsB, err := s.Select(ctx, workspace.Session("b"))
	require.NoError(t, err)

	release()
	assert.ErrorIs(t, <-errA, ErrStale)

	_, current := s.Current()
	assert.Equal(t, termsB, current)
	assert.Equal(t, termsB, rec.lastDisplayed())
	for _, target := range fake.Starts() {
		assert.NotEqual(t, workspace.Session("a").Target(), target)
	}
	// The stale selection's terminals still exist for later.
	assert.True(t, fake.Exists("session-a-top"))
}

func TestSelectConcurrentCreatesOnce(t *testing.T) {
	s, fake, _ := newSelector(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Select(ctx, workspace.Session("x"))
		}()
	}
	wg.Wait()

	for _, id := range workspace.ForSelection(workspace.Session("x")).All() {
		assert.Equal(t, 1, fake.CreateCalls(id), id)
	}
	assert.Len(t, fake.Starts(), 1)
}

func TestSelectCreateFailureKeepsWorkspace(t *testing.T) {
	s, fake, _ := newSelector(t)
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))

	fake.FailCreate("session-broken-right", errors.New("tmux new-session: exit status 1"))
	_, err := s.Select(ctx, workspace.Session("broken"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStale)

	sel, terms := s.Current()
	assert.True(t, sel.IsOrchestrator())
	assert.Equal(t, workspace.ForSelection(workspace.Orchestrator()), terms)
}

func TestSelectUsesCwdOverride(t *testing.T) {
	s, fake, _ := newSelector(t)
	fake.Cwd = "/repo"
	require.NoError(t, s.Init(context.Background()))

	_, err := s.Select(context.Background(), workspace.Session("wt").WithCwd("/repo/.worktrees/wt"))
	require.NoError(t, err)
	assert.Equal(t, "/repo/.worktrees/wt", fake.TerminalCwd("session-wt-bottom"))
}

func TestSelectInvalid(t *testing.T) {
	s, _, _ := newSelector(t)
	before := s.Seq()
	_, err := s.Select(context.Background(), workspace.Session("bad:name"))
	assert.ErrorIs(t, err, workspace.ErrInvalidName)
	assert.Equal(t, before, s.Seq(), "invalid selections do not supersede")
}

func TestRunAppliesLatest(t *testing.T) {
	s, fake, _ := newSelector(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := fake.GateCreate("session-one-top")
	in := make(chan workspace.Selection)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, in)
		close(done)
	}()

	in <- workspace.Session("one")
	in <- workspace.Session("two")
	require.Eventually(t, func() bool {
		_, terms := s.Current()
		return terms.Top == "session-two-top"
	}, time.Second, time.Millisecond)

	release()
	close(in)
	<-done

	_, terms := s.Current()
	assert.Equal(t, workspace.ID("session-two-top"), terms.Top)
}
