package relay

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Event is one parsed inbound event name of the form
//
//	namespace.verb[.qualifier]#argument
//
// The qualifier and the #argument suffix are both optional and are parsed
// independently, so "games.update.meta#pong" and "games.update#pong" resolve
// to distinct routes instead of colliding on a shared prefix.
type Event struct {
	Namespace string
	Verb      string
	Qualifier string
	Arg       string
}

func parseEvent(name string) Event {
	var ev Event
	if i := strings.IndexByte(name, '#'); i >= 0 {
		ev.Arg = name[i+1:]
		name = name[:i]
	}
	parts := strings.SplitN(name, ".", 3)
	ev.Namespace = parts[0]
	if len(parts) > 1 {
		ev.Verb = parts[1]
	}
	if len(parts) > 2 {
		ev.Qualifier = parts[2]
	}
	return ev
}

// decodeFrame unpacks the wire unit, a JSON array [eventName, payload?].
// Anything that does not decode is dropped by the caller; no error frame is
// ever sent back.
func decodeFrame(data []byte) (event string, payload json.RawMessage, ok bool) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil || len(tuple) == 0 {
		return "", nil, false
	}
	if err := json.Unmarshal(tuple[0], &event); err != nil || event == "" {
		return "", nil, false
	}
	if len(tuple) > 1 {
		payload = tuple[1]
	}
	return event, payload, true
}

// encodeFrame builds an outbound frame. A nil payload produces the
// single-element form [eventName].
func encodeFrame(event string, payload any) []byte {
	tuple := []any{event}
	if payload != nil {
		tuple = append(tuple, payload)
	}
	data, err := json.Marshal(tuple)
	if err != nil {
		zap.L().Warn("relay.encode_failed", zap.String("event", event), zap.Error(err))
		return nil
	}
	return data
}
