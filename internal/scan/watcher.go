package scan

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"adscrub/internal/dom"
)

// Watcher debounces DOM insertion events. Enqueued elements accumulate into
// a deduplicated batch; a fixed delay after the last enqueue, the batch is
// handed to the dispatch function on its own goroutine. The observer path
// stays non-blocking: dispatch runs off the timer goroutine and the watcher
// keeps collecting while a dispatch is in flight.
type Watcher struct {
	delay    time.Duration
	dispatch func(batch []dom.Element)
	log      *zap.Logger

	mu      sync.Mutex
	pending map[dom.Element]struct{}
	order   []dom.Element
	timer   *time.Timer
	closed  bool
}

// NewWatcher builds a watcher; dispatch receives each debounced batch.
func NewWatcher(delay time.Duration, dispatch func([]dom.Element), log *zap.Logger) *Watcher {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Watcher{
		delay:    delay,
		dispatch: dispatch,
		log:      log,
		pending:  make(map[dom.Element]struct{}),
	}
}

// Enqueue adds inserted elements to the working set and (re)arms the
// debounce timer.
func (w *Watcher) Enqueue(els ...dom.Element) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for _, el := range els {
		if el == nil {
			continue
		}
		if _, dup := w.pending[el]; dup {
			continue
		}
		w.pending[el] = struct{}{}
		w.order = append(w.order, el)
	}
	if len(w.order) == 0 {
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.delay, w.flush)
	} else {
		w.timer.Reset(w.delay)
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.order
	w.order = nil
	w.pending = make(map[dom.Element]struct{})
	w.timer = nil
	closed := w.closed
	w.mu.Unlock()

	if closed || len(batch) == 0 {
		return
	}
	w.log.Debug("dispatching inserted elements", zap.Int("count", len(batch)))
	w.dispatch(batch)
}

// Close detaches the watcher. Pending elements are dropped; there is no
// finer-grained cancellation.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.order = nil
	w.pending = make(map[dom.Element]struct{})
}
