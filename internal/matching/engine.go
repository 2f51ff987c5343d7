package matching

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Engine selects disjoint compatible pairs from a queue snapshot. Scans are
// serialized by the engine lock; queue mutations are not.
type Engine struct {
	mu     sync.Mutex
	rnd    RandomSource
	logger *zap.Logger
}

// NewEngine creates an engine. A nil source is replaced by a PCG generator
// seeded from the clock; the source is only used under the engine lock.
func NewEngine(rnd RandomSource, logger *zap.Logger) *Engine {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rnd: rnd, logger: logger}
}

// FindPairs snapshots the store and scans it in one critical section.
func (e *Engine) FindPairs(store *QueueStore) []MatchPair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scan(store.Snapshot())
}

// FindCompatiblePairs scans the given entries in FIFO order and greedily
// pairs each unmatched entry with the first later compatible one.
func (e *Engine) FindCompatiblePairs(entries []QueueEntry) []MatchPair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scan(slices.Clone(entries))
}

func (e *Engine) scan(entries []QueueEntry) []MatchPair {
	slices.SortStableFunc(entries, func(a, b QueueEntry) int {
		if c := a.EnteredAt.Compare(b.EnteredAt); c != 0 {
			return c
		}
		return slices.Compare(a.QueueID[:], b.QueueID[:])
	})

	var pairs []MatchPair
	matched := make(map[string]struct{}, len(entries))

	for i := range entries {
		if _, done := matched[entries[i].UserID]; done {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if _, done := matched[entries[j].UserID]; done {
				continue
			}
			pair, ok := e.tryPair(entries[i], entries[j])
			if !ok {
				continue
			}
			pairs = append(pairs, pair)
			matched[entries[i].UserID] = struct{}{}
			matched[entries[j].UserID] = struct{}{}
			break
		}
	}

	if len(pairs) > 0 {
		e.logger.Debug("Pairing scan complete",
			zap.Int("queued", len(entries)),
			zap.Int("pairs", len(pairs)))
	}
	return pairs
}

func (e *Engine) tryPair(a, b QueueEntry) (MatchPair, bool) {
	if a.UserID == b.UserID {
		return MatchPair{}, false
	}

	var pair MatchPair
	switch ResolveRoles(a.Role, b.Role, e.rnd) {
	case FirstInterviewee:
		pair.Interviewee, pair.Interviewer = a, b
	case SecondInterviewee:
		pair.Interviewee, pair.Interviewer = b, a
	default:
		return MatchPair{}, false
	}

	common := a.Difficulty & b.Difficulty
	if common == 0 {
		return MatchPair{}, false
	}

	if a.EnableVideo != b.EnableVideo {
		return MatchPair{}, false
	}

	pair.CommonDifficulty = commonDifficulty(common)
	return pair, true
}
