package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aidin1998/codemeet/pkg/errors"
)

func TestMemoryStore_ScopeIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	committed := newReadyMatch(t, "alice", "bob", false)
	discarded := newReadyMatch(t, "carol", "dave", false)

	s1, err := store.Begin(ctx)
	require.NoError(t, err)
	s2, err := store.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, s1.Matches().Insert(ctx, committed))
	require.NoError(t, s2.Matches().Insert(ctx, discarded))
	assert.Equal(t, 0, store.Count(), "nothing is visible before commit")

	require.NoError(t, s1.Commit(ctx))
	require.NoError(t, s2.Rollback(ctx))

	assert.Equal(t, 1, store.Count())
	_, err = store.FindByID(ctx, committed.ID)
	require.NoError(t, err)
	_, err = store.FindByID(ctx, discarded.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestMemoryStore_DuplicateCommitConflicts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	m := newReadyMatch(t, "alice", "bob", false)

	for i, want := range []bool{true, false} {
		scope, err := store.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, scope.Matches().Insert(ctx, m))
		err = scope.Commit(ctx)
		if want {
			require.NoError(t, err, "commit %d", i)
		} else {
			assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "commit %d", i)
		}
	}
	assert.Equal(t, 1, store.Count())
}

func TestMemoryStore_ListByParticipantNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := newReadyMatch(t, "alice", "bob", false)
	second := newReadyMatch(t, "bob", "carol", false)
	third := newReadyMatch(t, "dave", "bob", false)

	scope, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.Matches().Insert(ctx, first))
	require.NoError(t, scope.Matches().Insert(ctx, second))
	require.NoError(t, scope.Matches().Insert(ctx, third))
	require.NoError(t, scope.Commit(ctx))

	history, err := store.ListByParticipant(ctx, "bob", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, third.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)

	none, err := store.ListByParticipant(ctx, "zoe", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
