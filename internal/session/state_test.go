package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
)

func TestState_IsAuthenticatedRequiresBoth(t *testing.T) {
	user := apiclient.User{ID: "1", Name: "Alex", Email: "alex@example.com"}

	tests := []struct {
		name     string
		token    string
		identity *apiclient.User
		expected bool
	}{
		{"neither", "", nil, false},
		{"token only", "tok", nil, false},
		{"identity only", "", &user, false},
		{"both", "tok", &user, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState(NewMemoryStore())
			if tt.token != "" {
				state.SetToken(tt.token)
			}
			if tt.identity != nil {
				state.SetIdentity(tt.identity)
			}
			assert.Equal(t, tt.expected, state.IsAuthenticated())
			assert.Equal(t, tt.expected, state.Snapshot().IsAuthenticated())
		})
	}
}

func TestState_SetTokenPersistsInLockstep(t *testing.T) {
	store := NewMemoryStore()
	state := NewState(store)

	state.SetToken("tok")

	stored, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "tok", stored)
}

func TestState_ClearPurgesStore(t *testing.T) {
	store := NewMemoryStore()
	state := NewState(store)
	state.SetToken("tok")
	state.SetIdentity(&apiclient.User{ID: "1", Name: "Alex"})
	state.SetLoading(true)
	state.SetError("boom")

	state.Clear()

	snap := state.Snapshot()
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.Identity)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.LastError)

	_, tokenPresent := store.Token()
	_, identityPresent := store.Identity()
	assert.False(t, tokenPresent)
	assert.False(t, identityPresent)
}

func TestState_GenerationAdvancesOnNewSession(t *testing.T) {
	state := NewState(NewMemoryStore())
	start := state.Generation()

	state.SetToken("first")
	afterLogin := state.Generation()
	assert.Greater(t, afterLogin, start)

	state.Clear()
	afterClear := state.Generation()
	assert.Greater(t, afterClear, afterLogin)

	// loading and error changes do not supersede the session
	state.SetLoading(true)
	state.SetError("x")
	assert.Equal(t, afterClear, state.Generation())
}

func TestState_SubscribersSeeEveryMutation(t *testing.T) {
	state := NewState(NewMemoryStore())

	var seen []Snapshot
	cancel := state.Subscribe(func(snap Snapshot) {
		seen = append(seen, snap)
	})

	state.SetToken("tok")
	state.SetIdentity(&apiclient.User{ID: "1", Name: "Alex"})
	state.SetLoading(true)

	require.Len(t, seen, 3)
	assert.Equal(t, "tok", seen[0].Token)
	assert.False(t, seen[0].IsAuthenticated())
	assert.True(t, seen[1].IsAuthenticated())
	assert.True(t, seen[2].Loading)

	cancel()
	state.Clear()
	assert.Len(t, seen, 3)
}

func TestState_DisplayName(t *testing.T) {
	state := NewState(NewMemoryStore())
	assert.Empty(t, state.DisplayName())

	state.SetToken("tok")
	state.SetIdentity(&apiclient.User{ID: "1", Name: "Alex Reviewer"})
	assert.Equal(t, "Alex Reviewer", state.DisplayName())
}
