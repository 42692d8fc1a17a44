package relay

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relaygo/internal/config"
)

// Relay is the session/subscription/room engine. A single loop goroutine
// (Run) owns every registry; readers, timers and the heartbeat sweep post
// closures into the command channel, so no two handlers ever run
// concurrently and the registries need no locking.
type Relay struct {
	cfg    *config.Config
	router *Router

	commands chan func()
	stopped  chan struct{}

	sessions map[*Session]struct{}
	ids      map[string]*Session
	users    map[string]*User
	rooms    map[string]*Room
	games    map[string]*Room
	topics   map[Topic]map[*Session]struct{}

	guestSeq int
}

// ConnectParams are the handshake query parameters that survive the
// gatekeeper.
type ConnectParams struct {
	ID       string
	Username string
	Color    string
}

func New(cfg *config.Config) *Relay {
	r := &Relay{
		cfg:      cfg,
		router:   NewRouter(),
		commands: make(chan func(), 1024),
		stopped:  make(chan struct{}),
		sessions: make(map[*Session]struct{}),
		ids:      make(map[string]*Session),
		users:    make(map[string]*User),
		rooms:    make(map[string]*Room),
		games:    make(map[string]*Room),
		topics: map[Topic]map[*Session]struct{}{
			TopicPresence: {},
			TopicRooms:    {},
			TopicGames:    {},
		},
	}
	r.registerHandlers()
	return r
}

// Run processes commands until ctx is cancelled. It must be called exactly
// once.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.stopped)

	heartbeat := time.NewTicker(r.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-r.commands:
			r.invoke(cmd)
		case <-heartbeat.C:
			r.invoke(r.sweep)
		}
	}
}

// do posts one unit of work to the loop. After shutdown the work is
// discarded.
func (r *Relay) do(cmd func()) {
	select {
	case r.commands <- cmd:
	case <-r.stopped:
	}
}

// invoke runs one command under a recover boundary: a fault while handling
// one session's message must not affect any other session or the process.
func (r *Relay) invoke(cmd func()) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("relay.handler_panic", zap.Any("panic", rec))
		}
	}()
	cmd()
}

// ---------------------------------------------------------------------------
//  Session lifecycle
// ---------------------------------------------------------------------------

// Connect registers a new session for an authenticated connection and
// returns it. Returns nil once the relay has stopped.
func (r *Relay) Connect(p ConnectParams, conn sender) *Session {
	ready := make(chan *Session, 1)
	r.do(func() { ready <- r.register(p, conn) })
	select {
	case s := <-ready:
		return s
	case <-r.stopped:
		return nil
	}
}

// Disconnect schedules teardown for a closed connection. Safe to call more
// than once; the socket-close path and the heartbeat path share it.
func (r *Relay) Disconnect(s *Session) {
	r.do(func() { r.teardown(s) })
}

// Inbound hands one raw frame from a reader goroutine to the loop.
func (r *Relay) Inbound(s *Session, data []byte) {
	r.do(func() { r.dispatch(s, data) })
}

// Pong marks the session live for the next heartbeat sweep.
func (r *Relay) Pong(s *Session) {
	r.do(func() { s.alive = true })
}

func (r *Relay) register(p ConnectParams, conn sender) *Session {
	id := p.ID
	if id == "" || r.ids[id] != nil {
		id = uuid.NewString()
	}

	user := r.users[id]
	if user == nil {
		user = newUser()
		r.users[id] = user
	}

	s := newSession(id, conn, user)
	username := p.Username
	if username == "" {
		r.guestSeq++
		username = fmt.Sprintf("Guest%d", r.guestSeq)
	}
	color := p.Color
	if color == "" {
		color = randomColor()
	}
	s.State["username"] = username
	s.State["color"] = color
	s.Meta["cursor"] = nil

	user.Sessions[s] = struct{}{}
	r.sessions[s] = struct{}{}
	r.ids[id] = s

	s.push("presence/update", s.presenceState())
	r.broadcastPresenceList()

	zap.L().Info("relay.session_open", zap.String("id", id))
	return s
}

// teardown is the single exit path for a session: it cancels every timer
// the session owns, removes it from every topic and every room, releases
// its id and announces the new presence list.
func (r *Relay) teardown(s *Session) {
	if s.closed {
		return
	}
	s.closed = true

	s.timers.drain()

	for topic := range s.subs {
		delete(r.topics[topic], s)
	}

	for _, reg := range []map[string]*Room{r.rooms, r.games} {
		for _, room := range reg {
			if _, member := room.Members[s]; !member {
				continue
			}
			delete(room.Members, s)
			if !room.hasUserSession(s.user) {
				delete(s.user.Rooms, room)
			}
		}
	}

	delete(s.user.Sessions, s)
	delete(r.ids, s.ID)
	delete(r.sessions, s)
	s.conn.terminate()

	r.broadcastPresenceList()
	zap.L().Info("relay.session_closed", zap.String("id", s.ID))
}

// sweep reclaims half-open connections: a session that did not answer the
// previous ping is terminated, everyone else is marked awaiting and pinged.
func (r *Relay) sweep() {
	for s := range r.sessions {
		if !s.alive {
			zap.L().Info("relay.heartbeat_timeout", zap.String("id", s.ID))
			s.conn.terminate()
			r.teardown(s)
			continue
		}
		s.alive = false
		s.conn.ping()
	}
}

// ---------------------------------------------------------------------------
//  Dispatch
// ---------------------------------------------------------------------------

func (r *Relay) dispatch(s *Session, data []byte) {
	if s.closed {
		return
	}
	event, payload, ok := decodeFrame(data)
	if !ok {
		return
	}

	// Two reserved names bypass namespace routing and forward the frame
	// as received.
	if event == "relay" || event == "broadcast" {
		for other := range r.sessions {
			if event == "broadcast" && other == s {
				continue
			}
			other.conn.send(data)
		}
		return
	}

	r.router.dispatch(s, parseEvent(event), payload)
}

// ---------------------------------------------------------------------------
//  Snapshots & fan-out
// ---------------------------------------------------------------------------

func (r *Relay) presenceList() []map[string]any {
	list := make([]map[string]any, 0, len(r.sessions))
	for s := range r.sessions {
		list = append(list, s.presenceState())
	}
	sortByID(list)
	return list
}

func (r *Relay) presenceMetaList() []map[string]any {
	list := make([]map[string]any, 0, len(r.sessions))
	for s := range r.sessions {
		list = append(list, s.presenceMeta())
	}
	sortByID(list)
	return list
}

func (r *Relay) directory(reg map[string]*Room) []map[string]any {
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]map[string]any, 0, len(reg))
	for _, name := range names {
		list = append(list, reg[name].directoryRow())
	}
	return list
}

func (r *Relay) broadcastPresenceList() {
	list := r.presenceList()
	for s := range r.topics[TopicPresence] {
		s.push("presence/list", list)
	}
}

func (r *Relay) broadcastTopic(topic Topic, event string, payload any) {
	for s := range r.topics[topic] {
		s.push(event, payload)
	}
}

func sortByID(list []map[string]any) {
	sort.Slice(list, func(i, j int) bool {
		return list[i]["id"].(string) < list[j]["id"].(string)
	})
}

func randomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0x1000000))
}
