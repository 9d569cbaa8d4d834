// Package status holds the process-wide "API online" indicator shared between
// the diagnosis workflow (writer) and the navbar (reader).
package status

import "sync"

// Flag is an observable boolean. The zero value is ready to use and reports
// an unknown state until the first Publish.
type Flag struct {
	mu     sync.RWMutex
	online bool
	known  bool
	nextID int
	subs   map[int]func(bool)
}

// Publish records the latest reachability result and notifies subscribers.
// Last write wins.
func (f *Flag) Publish(online bool) {
	f.mu.Lock()
	f.online = online
	f.known = true
	subs := make([]func(bool), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Online returns the last published value. known is false until something has
// been published, in which case online is false.
func (f *Flag) Online() (online bool, known bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.online, f.known
}

// Subscribe registers fn to be called on every Publish. The returned function
// removes the subscription and is safe to call more than once.
func (f *Flag) Subscribe(fn func(bool)) (cancel func()) {
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]func(bool))
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Subscribers reports the number of active subscriptions.
func (f *Flag) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
