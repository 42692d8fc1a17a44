package relay

import "time"

// timerSet holds the named periodic timers owned by exactly one session or
// one room. A timer runs for its owner's whole lifetime and is cancelled
// only through this set, so ownership never depends on collector timing.
type timerSet struct {
	timers map[string]*timerHandle
}

type timerHandle struct {
	stop chan struct{}
}

func newTimerSet() *timerSet {
	return &timerSet{timers: make(map[string]*timerHandle)}
}

// start registers a periodic timer under key; a key that is already running
// is left untouched, which gives the at-most-one guarantee per (owner, key).
// fn is posted through post on every tick so it runs on the relay loop.
func (ts *timerSet) start(key string, every time.Duration, post func(func()), fn func()) bool {
	if _, running := ts.timers[key]; running {
		return false
	}
	h := &timerHandle{stop: make(chan struct{})}
	ts.timers[key] = h

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				post(fn)
			}
		}
	}()
	return true
}

// drain cancels every timer in the set. Called exactly once per owner, at
// session teardown or room delete.
func (ts *timerSet) drain() {
	for key, h := range ts.timers {
		close(h.stop)
		delete(ts.timers, key)
	}
}

func (ts *timerSet) size() int {
	return len(ts.timers)
}
