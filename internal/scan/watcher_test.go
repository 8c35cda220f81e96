package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adscrub/internal/dom"
)

func watcherFixture(t *testing.T) []dom.Element {
	t.Helper()
	doc := mustParse(t, `<html><body>
		<div id="a">x</div><div id="b">y</div><div id="c">z</div>
	</body></html>`)
	els := doc.Select("div")
	require.Len(t, els, 3)
	return els
}

func collectBatches() (chan []dom.Element, func([]dom.Element)) {
	ch := make(chan []dom.Element, 8)
	return ch, func(batch []dom.Element) { ch <- batch }
}

func waitBatch(t *testing.T, ch chan []dom.Element) []dom.Element {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no batch dispatched")
		return nil
	}
}

func TestWatcherBatchesBurst(t *testing.T) {
	els := watcherFixture(t)
	ch, dispatch := collectBatches()
	w := NewWatcher(20*time.Millisecond, dispatch, zap.NewNop())
	defer w.Close()

	w.Enqueue(els[0])
	w.Enqueue(els[1], els[2])

	batch := waitBatch(t, ch)
	assert.Len(t, batch, 3)

	select {
	case <-ch:
		t.Fatal("burst must dispatch exactly once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherDeduplicatesPending(t *testing.T) {
	els := watcherFixture(t)
	ch, dispatch := collectBatches()
	w := NewWatcher(20*time.Millisecond, dispatch, zap.NewNop())
	defer w.Close()

	w.Enqueue(els[0], els[0], nil)
	w.Enqueue(els[0])

	batch := waitBatch(t, ch)
	assert.Len(t, batch, 1)
	assert.Equal(t, els[0], batch[0])
}

func TestWatcherResetsOnNewInsertions(t *testing.T) {
	els := watcherFixture(t)
	ch, dispatch := collectBatches()
	w := NewWatcher(60*time.Millisecond, dispatch, zap.NewNop())
	defer w.Close()

	// Keep feeding inside the debounce window; the timer keeps resetting and
	// everything lands in one batch.
	w.Enqueue(els[0])
	time.Sleep(30 * time.Millisecond)
	w.Enqueue(els[1])
	time.Sleep(30 * time.Millisecond)
	w.Enqueue(els[2])

	batch := waitBatch(t, ch)
	assert.Len(t, batch, 3)
}

func TestWatcherDispatchesFreshBatchAfterFlush(t *testing.T) {
	els := watcherFixture(t)
	ch, dispatch := collectBatches()
	w := NewWatcher(20*time.Millisecond, dispatch, zap.NewNop())
	defer w.Close()

	w.Enqueue(els[0])
	first := waitBatch(t, ch)
	assert.Len(t, first, 1)

	// The same element may legitimately be observed again after a flush.
	w.Enqueue(els[0], els[1])
	second := waitBatch(t, ch)
	assert.Len(t, second, 2)
}

func TestWatcherCloseDropsPending(t *testing.T) {
	els := watcherFixture(t)
	ch, dispatch := collectBatches()
	w := NewWatcher(20*time.Millisecond, dispatch, zap.NewNop())

	w.Enqueue(els[0])
	w.Close()
	w.Enqueue(els[1])

	select {
	case <-ch:
		t.Fatal("closed watcher must not dispatch")
	case <-time.After(100 * time.Millisecond):
	}
}
