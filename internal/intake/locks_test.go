package intake

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := newKeyedMutex()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(1)
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected at most one holder, saw %d", maxSeen)
	}
	if k.size() != 0 {
		t.Errorf("expected entries to be released, got %d", k.size())
	}
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
}

func TestAlbumTrackerGenerations(t *testing.T) {
	tr := newAlbumTracker()
	fired := make(chan uint64, 4)

	tr.schedule(1, "a", time.Hour, func(gen uint64) { fired <- gen })
	tr.schedule(1, "a", time.Hour, func(gen uint64) { fired <- gen })

	if !tr.inFlight(1) {
		t.Fatal("expected album in flight")
	}
	if tr.finish(1, 1) {
		t.Error("replaced generation must be stale")
	}
	if !tr.finish(1, 2) {
		t.Error("current generation should finish")
	}
	if tr.inFlight(1) {
		t.Error("finished album should be cleared")
	}

	tr.schedule(2, "b", 10*time.Millisecond, func(gen uint64) { fired <- gen })
	tr.cancel(2)
	time.Sleep(30 * time.Millisecond)

	select {
	case gen := <-fired:
		t.Errorf("cancelled timer fired with generation %d", gen)
	default:
	}
}
