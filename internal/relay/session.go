package relay

import "encoding/json"

// Topic is one of the named global subscriptions.
type Topic string

const (
	TopicPresence Topic = "presence"
	TopicRooms    Topic = "rooms"
	TopicGames    Topic = "games"
)

// Session is one live connection's server-side state. All fields except the
// connection itself are owned by the relay loop and must only be touched
// from it.
type Session struct {
	ID string

	// State holds the public presence attributes (username, color, ...).
	State map[string]any
	// Meta holds private/transient attributes (cursor position, ...).
	Meta map[string]any

	conn   sender
	user   *User
	alive  bool
	closed bool

	subs   map[Topic]struct{}
	timers *timerSet
}

// User is the logical owner of one or more sessions (normally one). Users
// are created lazily on the first session for an id and never destroyed;
// stale entries are accepted garbage since ids are random and rarely reused.
type User struct {
	Sessions map[*Session]struct{}
	Rooms    map[*Room]struct{}
}

func newUser() *User {
	return &User{
		Sessions: make(map[*Session]struct{}),
		Rooms:    make(map[*Room]struct{}),
	}
}

func newSession(id string, conn sender, user *User) *Session {
	return &Session{
		ID:     id,
		State:  make(map[string]any),
		Meta:   make(map[string]any),
		conn:   conn,
		user:   user,
		alive:  true,
		subs:   make(map[Topic]struct{}),
		timers: newTimerSet(),
	}
}

// presenceState flattens the session into the wire shape {id, ...state}.
func (s *Session) presenceState() map[string]any {
	entry := map[string]any{"id": s.ID}
	for k, v := range s.State {
		entry[k] = v
	}
	return entry
}

func (s *Session) presenceMeta() map[string]any {
	entry := map[string]any{"id": s.ID}
	for k, v := range s.Meta {
		entry[k] = v
	}
	return entry
}

// push encodes and queues one outbound frame, fire-and-forget.
func (s *Session) push(event string, payload any) {
	if rm, isRaw := payload.(json.RawMessage); isRaw && len(rm) == 0 {
		payload = nil
	}
	frame := encodeFrame(event, payload)
	if frame == nil {
		return
	}
	s.conn.send(frame)
}
