// Package registry holds the process-wide terminal bookkeeping shared by the
// workspace selector and the auto-start controller.
//
// A Registry is created once at application start and injected; it is never
// torn down while the application runs. Every "have we already done X for
// terminal Y" decision goes through it rather than through per-surface state,
// since several surface mounts can reference the same terminal over time.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/abdullathedruid/termdeck/internal/workspace"
)

var (
	// ErrAlreadyStarted is returned by BeginStart when an agent start was already issued.
	ErrAlreadyStarted = errors.New("agent already started")
	// ErrStartInFlight is returned by BeginStart when another start attempt is running.
	ErrStartInFlight = errors.New("agent start in flight")
)

// ExistsFunc reports whether the backing terminal exists.
type ExistsFunc func(ctx context.Context) (bool, error)

// CreateFunc creates the backing terminal.
type CreateFunc func(ctx context.Context) error

// Registry tracks created terminals and agent start state per terminal id.
type Registry struct {
	mu       sync.Mutex
	created  map[workspace.ID]struct{} // only grows
	started  map[workspace.ID]struct{}
	starting map[workspace.ID]struct{}

	creating singleflight.Group
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		created:  make(map[workspace.ID]struct{}),
		started:  make(map[workspace.ID]struct{}),
		starting: make(map[workspace.ID]struct{}),
	}
}

// IsCreated reports whether id is known to exist.
func (r *Registry) IsCreated(id workspace.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.created[id]
	return ok
}

// MarkCreated records that id exists.
func (r *Registry) MarkCreated(id workspace.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created[id] = struct{}{}
}

// Created returns all known ids, sorted.
func (r *Registry) Created() []workspace.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]workspace.ID, 0, len(r.created))
	for id := range r.created {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Ensure makes sure the terminal for id exists. Concurrent callers for the
// same id share one check-and-create; late callers wait for its result.
// It reports whether this call (or the call it joined) created the terminal.
//
// Joined callers share the context of the caller that started the work.
func (r *Registry) Ensure(ctx context.Context, id workspace.ID, exists ExistsFunc, create CreateFunc) (bool, error) {
	if r.IsCreated(id) {
		return false, nil
	}

	v, err, _ := r.creating.Do(string(id), func() (any, error) {
		if r.IsCreated(id) {
			return false, nil
		}
		ok, err := exists(ctx)
		if err != nil {
			return false, fmt.Errorf("check terminal %s: %w", id, err)
		}
		if !ok {
			if err := create(ctx); err != nil {
				return false, fmt.Errorf("create terminal %s: %w", id, err)
			}
		}
		r.MarkCreated(id)
		return !ok, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// BeginStart claims the right to start the agent for id. The caller must
// call EndStart when its attempt finishes, whatever the outcome.
func (r *Registry) BeginStart(id workspace.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.started[id]; ok {
		return ErrAlreadyStarted
	}
	if _, ok := r.starting[id]; ok {
		return ErrStartInFlight
	}
	r.starting[id] = struct{}{}
	return nil
}

// EndStart releases the claim taken by BeginStart.
func (r *Registry) EndStart(id workspace.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.starting, id)
}

// MarkStarted records that a start call is being issued for id.
// It is set before the call so a second trigger cannot race in.
func (r *Registry) MarkStarted(id workspace.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[id] = struct{}{}
}

// RollbackStarted clears the started mark after a failed start, permitting a retry.
func (r *Registry) RollbackStarted(id workspace.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.started, id)
}

// IsStarted reports whether a start was issued for id and has not failed.
func (r *Registry) IsStarted(id workspace.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.started[id]
	return ok
}

// IsStarting reports whether a start attempt for id is in flight.
func (r *Registry) IsStarting(id workspace.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.starting[id]
	return ok
}
