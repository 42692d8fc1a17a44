package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterDispatchesTypedPayload(t *testing.T) {
	rt := NewRouter()
	var gotArg string
	var gotReq map[string]any
	Register(rt, "rooms", "update", "", func(_ *Session, arg string, req map[string]any) {
		gotArg = arg
		gotReq = req
	})

	rt.dispatch(nil, parseEvent("rooms.update#alpha"), json.RawMessage(`{"score":1}`))

	assert.Equal(t, "alpha", gotArg)
	require.NotNil(t, gotReq)
	assert.EqualValues(t, 1, gotReq["score"])
}

func TestRouterDropsUndecodablePayload(t *testing.T) {
	rt := NewRouter()
	called := false
	Register(rt, "rooms", "update", "", func(_ *Session, _ string, _ map[string]any) {
		called = true
	})

	rt.dispatch(nil, parseEvent("rooms.update#alpha"), json.RawMessage(`"not an object"`))

	assert.False(t, called)
}

func TestRouterIgnoresUnknownRoute(t *testing.T) {
	rt := NewRouter()
	assert.NotPanics(t, func() {
		rt.dispatch(nil, parseEvent("nope.nothing#x"), nil)
	})
}

func TestRouterQualifierSelectsDistinctHandler(t *testing.T) {
	rt := NewRouter()
	var hits []string
	Register(rt, "games", "update", "", func(_ *Session, _ string, _ map[string]any) {
		hits = append(hits, "state")
	})
	Register(rt, "games", "update", "meta", func(_ *Session, _ string, _ map[string]any) {
		hits = append(hits, "meta")
	})

	rt.dispatch(nil, parseEvent("games.update#g"), json.RawMessage(`{"a":1}`))
	rt.dispatch(nil, parseEvent("games.update.meta#g"), json.RawMessage(`{"a":1}`))

	assert.Equal(t, []string{"state", "meta"}, hits)
}

func TestRouterRejectsDuplicateRoute(t *testing.T) {
	rt := NewRouter()
	Register(rt, "rooms", "join", "", func(_ *Session, _ string, _ struct{}) {})
	assert.Panics(t, func() {
		Register(rt, "rooms", "join", "", func(_ *Session, _ string, _ struct{}) {})
	})
}
