// Package notifier broadcasts sets of deleted document ids to the views that
// cache documents, so the component performing a delete does not need to know
// who holds copies.
package notifier

import (
	"sort"
	"sync"
)

// IDSet is a set of document identifiers. Listeners receive the publisher's
// set and must treat it as read-only.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int {
	return len(s)
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Listener func(deleted IDSet)

type subscription struct {
	fn     Listener
	active bool
}

// Notifier is a synchronous publish/subscribe channel for deletions. The zero
// value is not usable; call New.
type Notifier struct {
	mu     sync.Mutex
	subs   []*subscription
	closed bool
}

func New() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn and returns a function that removes it. The returned
// function may be called any number of times, including from inside fn.
func (n *Notifier) Subscribe(fn Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	sub := &subscription{fn: fn, active: !n.closed}
	if sub.active {
		n.subs = append(n.subs, sub)
	}
	return func() { n.remove(sub) }
}

func (n *Notifier) remove(sub *subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !sub.active {
		return
	}
	sub.active = false
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			break
		}
	}
}

// Publish calls every registered listener once, in registration order, with
// the same set. Listeners removed during dispatch are skipped. An empty set
// is not delivered.
func (n *Notifier) Publish(deleted IDSet) {
	if deleted.Len() == 0 {
		return
	}

	n.mu.Lock()
	snapshot := make([]*subscription, len(n.subs))
	copy(snapshot, n.subs)
	n.mu.Unlock()

	for _, sub := range snapshot {
		if !n.isActive(sub) {
			continue
		}
		sub.fn(deleted)
	}
}

func (n *Notifier) isActive(sub *subscription) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return sub.active
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Close removes every listener. Later subscriptions are accepted but never
// called.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, s := range n.subs {
		s.active = false
	}
	n.subs = nil
	n.closed = true
}
