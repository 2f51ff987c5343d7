package matching

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_InterviewerAndIntervieweePair(t *testing.T) {
	store := NewQueueStore(newStepClock().Now)
	x := mustEnqueue(store, "x", RoleInterviewee, DifficultyEasy, true)
	y := mustEnqueue(store, "y", RoleInterviewer, DifficultyEasy, true)

	pairs := NewEngine(&scriptedRand{}, nil).FindPairs(store)
	require.Len(t, pairs, 1)
	assert.Equal(t, x, pairs[0].Interviewee)
	assert.Equal(t, y, pairs[0].Interviewer)
	assert.Equal(t, DifficultyEasy, pairs[0].CommonDifficulty)

	// pairing does not mutate the queue
	assert.Equal(t, 2, store.Count())
}

func TestEngine_DisjointDifficultiesDoNotPair(t *testing.T) {
	store := NewQueueStore(newStepClock().Now)
	mustEnqueue(store, "x", RoleInterviewee, DifficultyHard, false)
	mustEnqueue(store, "y", RoleInterviewer, DifficultyEasy, false)

	assert.Empty(t, NewEngine(&scriptedRand{}, nil).FindPairs(store))
}

func TestEngine_VideoPreferenceMustMatch(t *testing.T) {
	store := NewQueueStore(newStepClock().Now)
	mustEnqueue(store, "x", RoleInterviewee, DifficultyEasy, true)
	mustEnqueue(store, "y", RoleInterviewer, DifficultyEasy, false)

	assert.Empty(t, NewEngine(&scriptedRand{}, nil).FindPairs(store))
}

func TestEngine_FlexiblePairIsDeterministicWithSeededSource(t *testing.T) {
	store := NewQueueStore(newStepClock().Now)
	mustEnqueue(store, "x", RoleBoth, DifficultyMedium, false)
	mustEnqueue(store, "y", RoleBoth, DifficultyMedium, false)

	run := func() MatchPair {
		engine := NewEngine(rand.New(rand.NewPCG(42, 7)), nil)
		pairs := engine.FindPairs(store)
		require.Len(t, pairs, 1)
		return pairs[0]
	}
	first := run()
	for i := 0; i < 5; i++ {
		again := run()
		assert.Equal(t, first.Interviewee.UserID, again.Interviewee.UserID)
		assert.Equal(t, first.Interviewer.UserID, again.Interviewer.UserID)
	}
	assert.Equal(t, DifficultyMedium, first.CommonDifficulty)
	assert.ElementsMatch(t, []string{"x", "y"}, []string{first.Interviewee.UserID, first.Interviewer.UserID})

	// both branches are reachable through the source
	p0 := NewEngine(&scriptedRand{values: []int{0}}, nil).FindPairs(store)
	p1 := NewEngine(&scriptedRand{values: []int{1}}, nil).FindPairs(store)
	require.Len(t, p0, 1)
	require.Len(t, p1, 1)
	assert.Equal(t, "x", p0[0].Interviewee.UserID)
	assert.Equal(t, "y", p1[0].Interviewee.UserID)
}

func TestEngine_FIFOOrderWins(t *testing.T) {
	store := NewQueueStore(newStepClock().Now)
	mustEnqueue(store, "early-interviewer", RoleInterviewer, DifficultyEasy, false)
	mustEnqueue(store, "late-interviewer", RoleInterviewer, DifficultyEasy, false)
	mustEnqueue(store, "interviewee", RoleInterviewee, DifficultyEasy, false)

	pairs := NewEngine(&scriptedRand{}, nil).FindPairs(store)
	require.Len(t, pairs, 1)
	assert.Equal(t, "interviewee", pairs[0].Interviewee.UserID)
	assert.Equal(t, "early-interviewer", pairs[0].Interviewer.UserID)
}

func TestEngine_SkipsIncompatibleAndKeepsScanning(t *testing.T) {
	store := NewQueueStore(newStepClock().Now)
	mustEnqueue(store, "a", RoleInterviewee, DifficultyEasy, false)
	mustEnqueue(store, "b", RoleInterviewee, DifficultyEasy, false)
	mustEnqueue(store, "c", RoleInterviewer, DifficultyHard, false)
	mustEnqueue(store, "d", RoleInterviewer, DifficultyEasy, false)
	mustEnqueue(store, "e", RoleInterviewer, DifficultyEasy, false)

	pairs := NewEngine(&scriptedRand{}, nil).FindPairs(store)
	require.Len(t, pairs, 2)
	assert.Equal(t, "a", pairs[0].Interviewee.UserID)
	assert.Equal(t, "d", pairs[0].Interviewer.UserID)
	assert.Equal(t, "b", pairs[1].Interviewee.UserID)
	assert.Equal(t, "e", pairs[1].Interviewer.UserID)
}

func TestEngine_PicksPreferredCommonDifficulty(t *testing.T) {
	store := NewQueueStore(newStepClock().Now)
	mustEnqueue(store, "x", RoleInterviewee, DifficultyBoth, false)
	mustEnqueue(store, "y", RoleInterviewer, DifficultyEasy|DifficultyMedium, false)

	pairs := NewEngine(&scriptedRand{}, nil).FindPairs(store)
	require.Len(t, pairs, 1)
	assert.Equal(t, DifficultyMedium, pairs[0].CommonDifficulty)
}

func TestEngine_NoUserInTwoPairs(t *testing.T) {
	store := NewQueueStore(newStepClock().Now)
	roles := []Role{RoleInterviewee, RoleInterviewer, RoleBoth}
	for i := 0; i < 60; i++ {
		mustEnqueue(store, fmt.Sprintf("user-%02d", i), roles[i%3], DifficultyBoth, i%4 == 0)
	}

	pairs := NewEngine(rand.New(rand.NewPCG(1, 2)), nil).FindPairs(store)
	require.NotEmpty(t, pairs)

	seen := make(map[string]int)
	for _, p := range pairs {
		seen[p.Interviewee.UserID]++
		seen[p.Interviewer.UserID]++
		assert.NotEqual(t, p.Interviewee.UserID, p.Interviewer.UserID)
		assert.True(t, p.Interviewee.Role.CanBeInterviewee())
		assert.True(t, p.Interviewer.Role.CanInterview())
		assert.Equal(t, p.Interviewee.EnableVideo, p.Interviewer.EnableVideo)
		assert.True(t, p.Interviewee.Difficulty.Has(p.CommonDifficulty))
		assert.True(t, p.Interviewer.Difficulty.Has(p.CommonDifficulty))
	}
	for user, n := range seen {
		assert.Equal(t, 1, n, "user %s appears in %d pairs", user, n)
	}
}

func TestEngine_FindCompatiblePairsDoesNotReorderInput(t *testing.T) {
	clock := newStepClock()
	entries := []QueueEntry{
		{UserID: "late", Role: RoleInterviewer, Difficulty: DifficultyEasy, EnteredAt: clock.Now().Add(time.Hour)},
		{UserID: "early", Role: RoleInterviewee, Difficulty: DifficultyEasy, EnteredAt: clock.Now()},
	}

	pairs := NewEngine(&scriptedRand{}, nil).FindCompatiblePairs(entries)
	require.Len(t, pairs, 1)
	assert.Equal(t, "early", pairs[0].Interviewee.UserID)
	assert.Equal(t, "late", entries[0].UserID)
}

func TestEngine_EmptyQueue(t *testing.T) {
	assert.Empty(t, NewEngine(nil, nil).FindPairs(NewQueueStore(nil)))
}
