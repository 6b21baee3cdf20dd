// Package hosttest provides an in-memory host.Backend for tests.
package hosttest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/abdullathedruid/termdeck/internal/host"
	"github.com/abdullathedruid/termdeck/internal/workspace"
)

// Resize is one recorded ResizeTerminal call.
type Resize struct {
	ID         workspace.ID
	Cols, Rows int
}

// Fake is a scriptable host.Backend. The zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	terminals map[workspace.ID]string // id -> cwd
	buffers   map[workspace.ID]string
	subs      map[workspace.ID]map[int]host.OutputHandler
	nextSub   int

	// hiddenProbes makes TerminalExists report false for the first N probes of an id.
	hiddenProbes map[workspace.ID]int
	createGates  map[workspace.ID]chan struct{}
	createErr    map[workspace.ID]error
	snapshotErr  map[workspace.ID]error
	snapshotGate map[workspace.ID]chan struct{}

	startErr    error
	resizeFails int
	Cwd         string

	existsCalls   map[workspace.ID]int
	createCalls   map[workspace.ID]int
	snapshotCalls map[workspace.ID]int
	starts        []workspace.Target
	writes        map[workspace.ID][]string
	resizes       []Resize
}

var _ host.Backend = (*Fake)(nil)

// New returns an empty fake with no terminals.
func New() *Fake {
	return &Fake{
		terminals:     map[workspace.ID]string{},
		buffers:       map[workspace.ID]string{},
		subs:          map[workspace.ID]map[int]host.OutputHandler{},
		hiddenProbes:  map[workspace.ID]int{},
		createGates:   map[workspace.ID]chan struct{}{},
		createErr:     map[workspace.ID]error{},
		snapshotErr:   map[workspace.ID]error{},
		snapshotGate:  map[workspace.ID]chan struct{}{},
		existsCalls:   map[workspace.ID]int{},
		createCalls:   map[workspace.ID]int{},
		snapshotCalls: map[workspace.ID]int{},
		writes:        map[workspace.ID][]string{},
		Cwd:           "/work",
	}
}

// AddTerminal registers an existing terminal without counting a create call.
func (f *Fake) AddTerminal(id workspace.ID, buffer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminals[id] = ""
	f.buffers[id] = buffer
}

// RemoveTerminal forgets id as if its process exited.
func (f *Fake) RemoveTerminal(id workspace.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.terminals, id)
}

// HideFor makes the next n existence probes for id report false.
func (f *Fake) HideFor(id workspace.ID, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hiddenProbes[id] = n
}

// GateCreate blocks CreateTerminal for id until the returned func is called.
func (f *Fake) GateCreate(id workspace.ID) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.createGates[id] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// FailCreate makes CreateTerminal for id return err.
func (f *Fake) FailCreate(id workspace.ID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr[id] = err
}

// GateSnapshot blocks GetTerminalBuffer for id until the returned func is called.
func (f *Fake) GateSnapshot(id workspace.ID) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.snapshotGate[id] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// FailSnapshot makes GetTerminalBuffer for id return err.
func (f *Fake) FailSnapshot(id workspace.ID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotErr[id] = err
}

// FailResizes makes the next n resize calls fail without being recorded.
func (f *Fake) FailResizes(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizeFails = n
}

// SetStartErr sets the error returned by StartAgent.
func (f *Fake) SetStartErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

// Emit delivers chunk to every subscriber of id, in subscription order.
func (f *Fake) Emit(id workspace.ID, chunk string) {
	f.mu.Lock()
	keys := make([]int, 0, len(f.subs[id]))
	for k := range f.subs[id] {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	handlers := make([]host.OutputHandler, 0, len(keys))
	for _, k := range keys {
		handlers = append(handlers, f.subs[id][k])
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(chunk)
	}
}

// Subscribers returns the number of live output subscriptions for id.
func (f *Fake) Subscribers(id workspace.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[id])
}

// CreateCalls returns how many times CreateTerminal ran for id.
func (f *Fake) CreateCalls(id workspace.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls[id]
}

// ExistsCalls returns how many times TerminalExists ran for id.
func (f *Fake) ExistsCalls(id workspace.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existsCalls[id]
}

// SnapshotCalls returns how many times GetTerminalBuffer ran for id.
func (f *Fake) SnapshotCalls(id workspace.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotCalls[id]
}

// Starts returns every StartAgent target in call order.
func (f *Fake) Starts() []workspace.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]workspace.Target(nil), f.starts...)
}

// Writes returns the data written to id in call order.
func (f *Fake) Writes(id workspace.ID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes[id]...)
}

// Resizes returns every ResizeTerminal call in order.
func (f *Fake) Resizes() []Resize {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Resize(nil), f.resizes...)
}

// TerminalCwd returns the directory id was created in.
func (f *Fake) TerminalCwd(id workspace.ID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminals[id]
}

// Exists reports whether id has been created, without counting a probe.
func (f *Fake) Exists(id workspace.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.terminals[id]
	return ok
}

func (f *Fake) TerminalExists(ctx context.Context, id workspace.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls[id]++
	if n := f.hiddenProbes[id]; n > 0 {
		f.hiddenProbes[id] = n - 1
		return false, nil
	}
	_, ok := f.terminals[id]
	return ok, nil
}

func (f *Fake) CreateTerminal(ctx context.Context, id workspace.ID, cwd string) error {
	f.mu.Lock()
	f.createCalls[id]++
	gate := f.createGates[id]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[id]; err != nil {
		return err
	}
	f.terminals[id] = cwd
	return nil
}

func (f *Fake) WriteTerminal(_ context.Context, id workspace.ID, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.terminals[id]; !ok {
		return fmt.Errorf("write %s: %w", id, host.ErrUnknownTerminal)
	}
	f.writes[id] = append(f.writes[id], data)
	return nil
}

func (f *Fake) ResizeTerminal(_ context.Context, id workspace.ID, cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resizeFails > 0 {
		f.resizeFails--
		return fmt.Errorf("resize %s: %w", id, host.ErrUnknownTerminal)
	}
	f.resizes = append(f.resizes, Resize{ID: id, Cols: cols, Rows: rows})
	return nil
}

func (f *Fake) GetTerminalBuffer(ctx context.Context, id workspace.ID) (string, error) {
	f.mu.Lock()
	f.snapshotCalls[id]++
	gate := f.snapshotGate[id]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.snapshotErr[id]; err != nil {
		return "", err
	}
	return f.buffers[id], nil
}

func (f *Fake) StartAgent(_ context.Context, target workspace.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, target)
	return f.startErr
}

func (f *Fake) SubscribeOutput(id workspace.ID, handler host.OutputHandler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[id] == nil {
		f.subs[id] = map[int]host.OutputHandler{}
	}
	key := f.nextSub
	f.nextSub++
	f.subs[id][key] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[id], key)
		})
	}, nil
}

func (f *Fake) GetCurrentWorkingDirectory(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Cwd, nil
}
