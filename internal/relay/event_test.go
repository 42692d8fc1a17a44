package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	cases := []struct {
		name string
		want Event
	}{
		{"sub", Event{Namespace: "sub"}},
		{"sub#presence", Event{Namespace: "sub", Arg: "presence"}},
		{"presence.list", Event{Namespace: "presence", Verb: "list"}},
		{"presence.update#meta", Event{Namespace: "presence", Verb: "update", Arg: "meta"}},
		{"rooms.create#alpha", Event{Namespace: "rooms", Verb: "create", Arg: "alpha"}},
		{"games.update#pong", Event{Namespace: "games", Verb: "update", Arg: "pong"}},
		{"games.update.meta#pong", Event{Namespace: "games", Verb: "update", Qualifier: "meta", Arg: "pong"}},
		{"rooms.join#", Event{Namespace: "rooms", Verb: "join", Arg: ""}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseEvent(tc.name), "event %q", tc.name)
	}
}

func TestParseEventQualifierDoesNotCollideWithPlainVerb(t *testing.T) {
	plain := parseEvent("games.update#g")
	meta := parseEvent("games.update.meta#g")
	assert.NotEqual(t, plain.Qualifier, meta.Qualifier)
	assert.Equal(t, plain.Arg, meta.Arg)
}

func TestDecodeFrame(t *testing.T) {
	event, payload, ok := decodeFrame([]byte(`["rooms.update#a",{"score":1}]`))
	require.True(t, ok)
	assert.Equal(t, "rooms.update#a", event)
	assert.JSONEq(t, `{"score":1}`, string(payload))

	event, payload, ok = decodeFrame([]byte(`["presence.list"]`))
	require.True(t, ok)
	assert.Equal(t, "presence.list", event)
	assert.Nil(t, payload)
}

func TestDecodeFrameRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{
		"not json",
		"{}",
		"[]",
		"[42]",
		`[""]`,
		`[null,"x"]`,
	} {
		_, _, ok := decodeFrame([]byte(raw))
		assert.False(t, ok, "input %q", raw)
	}
}

func TestEncodeFrame(t *testing.T) {
	assert.JSONEq(t, `["games/leave#g"]`, string(encodeFrame("games/leave#g", nil)))
	assert.JSONEq(t, `["rooms/update#a",{"score":1}]`,
		string(encodeFrame("rooms/update#a", map[string]any{"score": 1})))
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	frame := encodeFrame("presence/list", []map[string]any{{"id": "a"}})
	event, payload, ok := decodeFrame(frame)
	require.True(t, ok)
	assert.Equal(t, "presence/list", event)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(payload, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0]["id"])
}
