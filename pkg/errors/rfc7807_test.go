package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("join queue: %w", ErrConflict.Explain("user %s is already queued", "u1"))

	assert.True(t, Is(err, ErrConflict))
	assert.False(t, Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "user u1 is already queued")
}

func TestWrapKeepsCause(t *testing.T) {
	cause := ErrInvalidStateTransition.Explain("match is not pending")
	err := ErrPersistenceFailure.Wrap(cause)

	assert.True(t, Is(err, ErrPersistenceFailure))
	assert.True(t, Is(err, ErrInvalidStateTransition))
	// the shared sentinel must not be mutated
	assert.Nil(t, ErrPersistenceFailure.Unwrap())
}

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrConflict.Explain("already queued"), http.StatusConflict},
		{ErrNotFound.Explain("not queued"), http.StatusNotFound},
		{ErrInsufficientOpportunities.Explain("no tokens"), http.StatusUnprocessableEntity},
		{ErrInvalidArgument.Explain("bad role"), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		pd := FromError(c.err, "/api/v1/match/queue")
		assert.Equal(t, c.status, pd.Status, c.err.Error())
		assert.Equal(t, "/api/v1/match/queue", pd.Instance)
	}

	pd := FromError(fmt.Errorf("db password=secret"), "/")
	assert.Equal(t, "internal error", pd.Detail)
}

func TestProblemDetailsMarshalExtra(t *testing.T) {
	pd := NewConflictError("already queued", "/q").WithExtra("queue_id", "abc")
	raw, err := json.Marshal(pd)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "abc", out["queue_id"])
	assert.Equal(t, float64(http.StatusConflict), out["status"])
	assert.Equal(t, TitleConflict, out["title"])
}
