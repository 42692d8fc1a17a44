package relay

import "encoding/json"

// registerHandlers wires the full dispatch taxonomy. Ops that need a #name
// argument silently ignore frames without one; named failure replies go to
// the requesting session only.
func (r *Relay) registerHandlers() {
	Register(r.router, "sub", "", "", r.handleSub)

	Register(r.router, "presence", "list", "",
		func(s *Session, _ string, _ struct{}) { s.push("presence/list", r.presenceList()) })
	Register(r.router, "presence", "update", "", r.handlePresenceUpdate)

	Register(r.router, "rooms", "list", "",
		func(s *Session, _ string, _ struct{}) { s.push("rooms/list", r.directory(r.rooms)) })
	Register(r.router, "rooms", "create", "", r.handleRoomCreate)
	Register(r.router, "rooms", "get", "", r.handleRoomGet)
	Register(r.router, "rooms", "join", "", r.handleRoomJoin)
	Register(r.router, "rooms", "update", "", r.handleRoomUpdate)
	Register(r.router, "rooms", "leave", "", r.handleRoomLeave)
	Register(r.router, "rooms", "kick", "",
		func(s *Session, name string, target string) { r.kick(r.rooms, TopicRooms, "rooms", s, name, target) })
	Register(r.router, "rooms", "delete", "",
		func(s *Session, name string, _ struct{}) { r.deleteRoom(r.rooms, TopicRooms, "rooms", name) })
	Register(r.router, "rooms", "relay", "",
		func(s *Session, name string, payload json.RawMessage) { r.roomRelay(s, name, "relay", payload, false) })
	Register(r.router, "rooms", "broadcast", "",
		func(s *Session, name string, payload json.RawMessage) { r.roomRelay(s, name, "broadcast", payload, true) })

	Register(r.router, "games", "list", "",
		func(s *Session, _ string, _ struct{}) { s.push("games/list", r.directory(r.games)) })
	Register(r.router, "games", "create", "", r.handleGameCreate)
	Register(r.router, "games", "get", "", r.handleGameGet)
	Register(r.router, "games", "join", "", r.handleGameJoin)
	Register(r.router, "games", "update", "",
		func(s *Session, name string, update map[string]any) { r.gameUpdate(s, name, update, false) })
	Register(r.router, "games", "update", "meta",
		func(s *Session, name string, update map[string]any) { r.gameUpdate(s, name, update, true) })
	Register(r.router, "games", "leave", "", r.handleGameLeave)
	Register(r.router, "games", "kick", "",
		func(s *Session, name string, target string) { r.kick(r.games, TopicGames, "games", s, name, target) })
	Register(r.router, "games", "delete", "",
		func(s *Session, name string, _ struct{}) { r.deleteRoom(r.games, TopicGames, "games", name) })
}

// ---------------------------------------------------------------------------
//  Subscriptions
// ---------------------------------------------------------------------------

func (r *Relay) handleSub(s *Session, arg string, _ struct{}) {
	topic := Topic(arg)
	subs, known := r.topics[topic]
	if !known {
		return
	}
	subs[s] = struct{}{}
	s.subs[topic] = struct{}{}

	// At most one push timer per (session, topic); re-subscribing is a
	// no-op for the timer.
	s.timers.start("sub:"+arg, r.cfg.SubPushInterval, r.do, func() {
		if !s.closed {
			r.sendTopicSnapshot(s, topic)
		}
	})

	r.sendTopicSnapshot(s, topic)
}

func (r *Relay) sendTopicSnapshot(s *Session, topic Topic) {
	switch topic {
	case TopicPresence:
		s.push("presence/list", r.presenceList())
	case TopicRooms:
		s.push("rooms/list", r.directory(r.rooms))
	case TopicGames:
		s.push("games/list", r.directory(r.games))
	}
}

// ---------------------------------------------------------------------------
//  Presence
// ---------------------------------------------------------------------------

// handlePresenceUpdate merges the payload into the sender's state or, for
// presence.update#meta, into its meta map. State updates echo the full list
// to every presence subscriber including the sender; meta updates reach
// everyone but the sender. The asymmetry is deliberate: state is
// authoritative and self-confirming, meta stays client-local until needed.
func (r *Relay) handlePresenceUpdate(s *Session, arg string, update map[string]any) {
	if len(update) == 0 {
		return
	}

	if arg == "meta" {
		for k, v := range update {
			s.Meta[k] = v
		}
		list := r.presenceMetaList()
		for sub := range r.topics[TopicPresence] {
			if sub != s {
				sub.push("presence/list#meta", list)
			}
		}
		return
	}

	for k, v := range update {
		s.State[k] = v
	}
	r.broadcastPresenceList()
}

// ---------------------------------------------------------------------------
//  Lobby rooms
// ---------------------------------------------------------------------------

func (r *Relay) handleRoomCreate(s *Session, name string, seed map[string]any) {
	if name == "" {
		return
	}
	if _, exists := r.rooms[name]; exists {
		s.push("room/exists", name)
		return
	}

	room := newRoom(name, seed, r.cfg.RoomUpdateRate)
	room.Members[s] = struct{}{}
	r.rooms[name] = room
	s.user.Rooms[room] = struct{}{}

	room.timers.start("state", room.Config.UpdateRate, r.do, func() { r.pushRoomState(room) })

	for m := range room.Members {
		m.push("rooms/create#"+name, nil)
	}
	r.broadcastTopic(TopicRooms, "rooms/list", r.directory(r.rooms))
}

func (r *Relay) handleRoomGet(s *Session, name string, _ struct{}) {
	if name == "" {
		return
	}
	room, found := r.rooms[name]
	if !found {
		s.push("room/notFound", name)
		return
	}
	s.push("rooms/state#"+name, room.fullState())
}

func (r *Relay) handleRoomJoin(s *Session, name string, _ struct{}) {
	if name == "" {
		return
	}
	room, found := r.rooms[name]
	if !found {
		s.push("room/notFound", name)
		return
	}
	if room.hasMember(s.ID) {
		return
	}

	room.Members[s] = struct{}{}
	s.user.Rooms[room] = struct{}{}

	s.push("rooms/state#"+name, room.fullState())
	for m := range room.Members {
		if m != s {
			m.push("rooms/join#"+name, s.presenceState())
		}
	}
	r.broadcastTopic(TopicRooms, "rooms/list", r.directory(r.rooms))
}

func (r *Relay) handleRoomUpdate(s *Session, name string, update map[string]any) {
	if name == "" {
		return
	}
	room, found := r.rooms[name]
	if !found {
		s.push("room/notFound", name)
		return
	}
	if len(update) == 0 {
		return
	}

	for k, v := range update {
		room.State[k] = v
	}
	// Members get the delta only; the periodic timer carries full state.
	for m := range room.Members {
		m.push("rooms/update#"+name, update)
	}
}

func (r *Relay) handleRoomLeave(s *Session, name string, _ struct{}) {
	if name == "" {
		return
	}
	room, found := r.rooms[name]
	if !found {
		s.push("room/notFound", name)
		return
	}

	delete(room.Members, s)
	if !room.hasUserSession(s.user) {
		delete(s.user.Rooms, room)
	}
	r.broadcastTopic(TopicRooms, "rooms/list", r.directory(r.rooms))
}

func (r *Relay) roomRelay(s *Session, name, verb string, payload json.RawMessage, excludeSender bool) {
	if name == "" {
		return
	}
	room, found := r.rooms[name]
	if !found {
		s.push("room/notFound", name)
		return
	}
	for m := range room.Members {
		if excludeSender && m == s {
			continue
		}
		m.push("rooms/"+verb+"#"+name, payload)
	}
}

// pushRoomState is the lobby state tick. Skipped entirely while the shared
// state is empty, and inert once the room has been deleted (a tick may
// already be queued behind the delete).
func (r *Relay) pushRoomState(room *Room) {
	if r.rooms[room.Name] != room || len(room.State) == 0 {
		return
	}
	snap := room.fullState()
	for m := range room.Members {
		m.push("rooms/state#"+room.Name, snap)
	}
}

// ---------------------------------------------------------------------------
//  Game rooms
// ---------------------------------------------------------------------------

func (r *Relay) handleGameCreate(s *Session, name string, seed map[string]any) {
	if name == "" {
		return
	}
	if _, exists := r.games[name]; exists {
		s.push("room/exists", name)
		return
	}

	room := newGameRoom(name, seed, r.cfg.GameTickRate, r.cfg.GameClientsRefreshRate)
	room.Members[s] = struct{}{}
	r.games[name] = room
	s.user.Rooms[room] = struct{}{}

	// Two independent timers: per-tick game state changes far more often
	// than membership, so the clients snapshot runs on its own slower rate.
	room.timers.start("state", room.Config.TickRate, r.do, func() { r.pushGameState(room) })
	room.timers.start("clients", room.Config.ClientsRefreshRate, r.do, func() { r.pushGameClients(room) })

	r.broadcastTopic(TopicGames, "games/list", r.directory(r.games))
}

func (r *Relay) handleGameGet(s *Session, name string, _ struct{}) {
	if name == "" {
		return
	}
	room, found := r.games[name]
	if !found {
		s.push("room/notFound", name)
		return
	}
	s.push("games/state#"+name, room.fullState())
}

func (r *Relay) handleGameJoin(s *Session, name string, _ struct{}) {
	if name == "" {
		return
	}
	room, found := r.games[name]
	if !found {
		s.push("games/notFound", name)
		return
	}
	if room.hasMember(s.ID) {
		return
	}

	room.Members[s] = struct{}{}
	s.user.Rooms[room] = struct{}{}

	s.push("games/state#"+name, room.fullState())
	r.broadcastTopic(TopicGames, "games/list", r.directory(r.games))
}

func (r *Relay) gameUpdate(s *Session, name string, update map[string]any, meta bool) {
	if name == "" {
		return
	}
	room, found := r.games[name]
	if !found {
		s.push("games/notFound", name)
		return
	}
	if len(update) == 0 {
		return
	}

	target := room.State
	if meta {
		target = room.Meta
	}
	for k, v := range update {
		target[k] = v
	}
	// No broadcast: the next state tick carries it.
}

func (r *Relay) handleGameLeave(s *Session, name string, _ struct{}) {
	if name == "" {
		return
	}
	room, found := r.games[name]
	if !found {
		s.push("games/notFound", name)
		return
	}

	delete(room.Members, s)
	if !room.hasUserSession(s.user) {
		delete(s.user.Rooms, room)
	}

	s.push("games/leave#"+name, nil)
	r.broadcastTopic(TopicGames, "games/list", r.directory(r.games))
}

func (r *Relay) pushGameState(room *Room) {
	if r.games[room.Name] != room || len(room.State) == 0 {
		return
	}
	snap := room.fullState()
	for m := range room.Members {
		m.push("games/state#"+room.Name, snap)
	}
}

func (r *Relay) pushGameClients(room *Room) {
	if r.games[room.Name] != room {
		return
	}
	clients := room.clientStates()
	for m := range room.Members {
		m.push("games/clients#"+room.Name, clients)
	}
}

// ---------------------------------------------------------------------------
//  Shared ops
// ---------------------------------------------------------------------------

// kick removes the target session from the room and from the target user's
// room set. Only the target is notified; remaining members find out through
// the directory and clients snapshots.
func (r *Relay) kick(reg map[string]*Room, topic Topic, ns string, s *Session, name, target string) {
	if name == "" {
		return
	}
	room, found := reg[name]
	if !found {
		s.push("clients/notFound", name)
		return
	}
	victim := room.memberByID(target)
	if victim == nil {
		s.push("clients/notFound", name)
		return
	}

	delete(room.Members, victim)
	if !room.hasUserSession(victim.user) {
		delete(victim.user.Rooms, room)
	}

	victim.push(ns+"/leave#"+name, nil)
	r.broadcastTopic(topic, ns+"/list", r.directory(reg))
}

// deleteRoom removes the room from its registry, cancels and clears every
// timer it owns, and notifies former members. An unknown name is a no-op.
func (r *Relay) deleteRoom(reg map[string]*Room, topic Topic, ns, name string) {
	if name == "" {
		return
	}
	room, found := reg[name]
	if !found {
		return
	}

	delete(reg, name)
	room.timers.drain()

	for m := range room.Members {
		m.push(ns+"/delete#"+name, nil)
		delete(m.user.Rooms, room)
	}
	r.broadcastTopic(topic, ns+"/list", r.directory(reg))
}
