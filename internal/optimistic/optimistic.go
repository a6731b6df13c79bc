// Package optimistic implements the apply-then-reconcile pattern shared by
// likes, comments, cart changes, and post edits: the local view state changes
// immediately, the authoritative request follows, and the local delta is
// either confirmed (possibly overwritten by canonical server fields) or
// rolled back exactly.
package optimistic

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindLike       Kind = "like"
	KindComment    Kind = "comment"
	KindCartAdd    Kind = "cartAdd"
	KindCartRemove Kind = "cartRemove"
	KindPostUpdate Kind = "postUpdate"
	KindPostDelete Kind = "postDelete"
	KindChatSend   Kind = "chatSend"
)

// PendingMutation exists only between the optimistic apply and the server's
// reconciliation; it is removed on success and on rollback alike.
type PendingMutation struct {
	ID        string
	Kind      Kind
	AppliedAt time.Time
}

// Entity guards one unit of view state. Capture and apply run under its
// lock, so a mutation's prior-state snapshot always reflects the latest
// state, including other mutations' in-flight optimistic deltas.
type Entity[S any] struct {
	mu      sync.Mutex
	value   S
	pending []PendingMutation
	now     func() time.Time
}

func NewEntity[S any](initial S) *Entity[S] {
	return &Entity[S]{value: initial, now: time.Now}
}

func (e *Entity[S]) Get() S {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Set replaces the state wholesale, for authoritative reloads.
func (e *Entity[S]) Set(v S) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = v
}

// Update applies fn to the current state under the entity lock, outside of
// any mutation life cycle.
func (e *Entity[S]) Update(fn func(S) S) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = fn(e.value)
}

func (e *Entity[S]) Pending() []PendingMutation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PendingMutation, len(e.pending))
	copy(out, e.pending)
	return out
}

func (e *Entity[S]) removePending(id string) {
	for i, p := range e.pending {
		if p.ID == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// Mutation describes one optimistic state change of kind Kind on an entity
// of state S, with a kind-owned prior-state projection P.
//
// Capture must read only the fields the kind owns, and Restore must write
// only those fields back: that keeps rollbacks scoped per kind, so two
// different kinds in flight on the same entity can never clobber each
// other's deltas.
type Mutation[S, P any] struct {
	Kind    Kind
	Capture func(S) P
	Apply   func(S) S
	Call    func(ctx context.Context) (func(S) S, error)
	Restore func(S, P) S
}

// Run executes the mutation: capture prior state and apply the delta
// atomically, issue the authoritative call, then either merge the canonical
// result (a nil merge keeps the optimistic value as final) or restore the
// captured projection exactly. The call's error is returned unchanged so the
// caller can surface a per-kind failure signal.
func Run[S, P any](ctx context.Context, e *Entity[S], m Mutation[S, P]) error {
	e.mu.Lock()
	prior := m.Capture(e.value)
	e.value = m.Apply(e.value)
	record := PendingMutation{ID: uuid.NewString(), Kind: m.Kind, AppliedAt: e.now()}
	e.pending = append(e.pending, record)
	e.mu.Unlock()

	merge, err := m.Call(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.removePending(record.ID)
	if err != nil {
		e.value = m.Restore(e.value, prior)
		return err
	}
	if merge != nil {
		e.value = merge(e.value)
	}
	return nil
}
