package relay

import (
	"encoding/json"

	"go.uber.org/zap"
)

type routeKey struct {
	ns        string
	verb      string
	qualifier string
}

// internal (untyped) handler signature.
type rawHandler func(s *Session, arg string, payload json.RawMessage)

// Router maps a parsed (namespace, verb, qualifier) triple to a handler.
// The explicit triple key removes the ordering dependency a prefix match
// would have between e.g. "games.update" and "games.update.meta".
type Router struct {
	handlers map[routeKey]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[routeKey]rawHandler)} }

// Register binds a route to a strongly-typed handler. The payload is decoded
// into Req before the handler runs; frames whose payload does not decode are
// dropped at this boundary.
func Register[Req any](
	r *Router,
	ns, verb, qualifier string,
	h func(s *Session, arg string, req Req),
) {
	if ns == "" {
		panic("relay router: empty namespace")
	}
	key := routeKey{ns: ns, verb: verb, qualifier: qualifier}
	if _, dup := r.handlers[key]; dup {
		panic("relay router: duplicate route " + ns + "." + verb + "." + qualifier)
	}

	r.handlers[key] = func(s *Session, arg string, payload json.RawMessage) {
		var req Req
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				zap.L().Debug("relay.payload_dropped",
					zap.String("route", ns+"."+verb), zap.Error(err))
				return
			}
		}
		h(s, arg, req)
	}
}

// dispatch is called by the relay loop for every routed frame. Unknown
// routes are ignored.
func (r *Router) dispatch(s *Session, ev Event, payload json.RawMessage) {
	h, ok := r.handlers[routeKey{ns: ev.Namespace, verb: ev.Verb, qualifier: ev.Qualifier}]
	if !ok {
		return
	}
	h(s, ev.Arg, payload)
}
