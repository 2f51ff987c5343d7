package matching

import (
	"sync"
	"time"
)

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// scriptedRand replays a fixed sequence and counts how often it was asked.
type scriptedRand struct {
	values []int
	calls  int
}

func (r *scriptedRand) IntN(n int) int {
	if len(r.values) == 0 {
		r.calls++
		return 0
	}
	v := r.values[r.calls%len(r.values)]
	r.calls++
	return v % n
}

func mustEnqueue(store *QueueStore, userID string, role Role, difficulty Difficulty, video bool) QueueEntry {
	entry, err := store.Enqueue(userID, role, difficulty, video)
	if err != nil {
		panic(err)
	}
	return entry
}
