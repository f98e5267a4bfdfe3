// Package dedup suppresses reprocessing of webhook deliveries the platform
// retries. The window lives in process memory only and is empty after a
// restart.
package dedup

import "sync"

const DefaultCapacity = 1000

// Window is a bounded set of recently accepted message ids. When full, the
// oldest inserted id is evicted first.
type Window struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity+1),
		order:    make([]string, 0, capacity+1),
	}
}

// Accept records id and reports true, or reports false when id is already
// in the window.
func (w *Window) Accept(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)

	if len(w.order) > w.capacity {
		oldest := w.order[0]
		w.order[0] = ""
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	return true
}

// Forget removes id so a later delivery of the same message is accepted
// again. Unknown ids are ignored.
func (w *Window) Forget(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; !ok {
		return
	}
	delete(w.seen, id)
	for i, v := range w.order {
		if v == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}
