package relay

import (
	"sort"
	"time"
)

// RoomConfig carries the broadcast rates of a room. Lobby rooms only use
// UpdateRate; game rooms use the two tick rates.
type RoomConfig struct {
	UpdateRate         time.Duration
	TickRate           time.Duration
	ClientsRefreshRate time.Duration
}

// Room is a named shared state container. Lobby rooms sync on events plus a
// slow state timer; game rooms additionally carry a meta side channel and
// sync on a fast state tick and a separate, slower clients tick.
type Room struct {
	Name    string
	Members map[*Session]struct{}
	State   map[string]any
	Meta    map[string]any
	Config  RoomConfig
	Game    bool

	timers *timerSet
}

func newRoom(name string, seed map[string]any, updateRate time.Duration) *Room {
	state := make(map[string]any, len(seed))
	for k, v := range seed {
		state[k] = v
	}
	return &Room{
		Name:    name,
		Members: make(map[*Session]struct{}),
		State:   state,
		Config:  RoomConfig{UpdateRate: updateRate},
		timers:  newTimerSet(),
	}
}

func newGameRoom(name string, seed map[string]any, tickRate, clientsRefreshRate time.Duration) *Room {
	room := newRoom(name, seed, 0)
	room.Game = true
	room.Meta = make(map[string]any)
	room.Config = RoomConfig{TickRate: tickRate, ClientsRefreshRate: clientsRefreshRate}
	return room
}

// hasMember reports membership by session id, so a second session of the
// same id joining twice stays a no-op.
func (r *Room) hasMember(id string) bool {
	for m := range r.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (r *Room) memberByID(id string) *Session {
	for m := range r.Members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *Room) hasUserSession(u *User) bool {
	for m := range r.Members {
		if m.user == u {
			return true
		}
	}
	return false
}

func (r *Room) memberIDs() []string {
	ids := make([]string, 0, len(r.Members))
	for m := range r.Members {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}

func (r *Room) clientStates() []map[string]any {
	states := make([]map[string]any, 0, len(r.Members))
	for m := range r.Members {
		states = append(states, m.presenceState())
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i]["id"].(string) < states[j]["id"].(string)
	})
	return states
}

// fullState is the snapshot sent on get/join and on state ticks.
func (r *Room) fullState() map[string]any {
	snap := map[string]any{
		"name":    r.Name,
		"clients": r.clientStates(),
		"state":   r.State,
	}
	if r.Game {
		snap["meta"] = r.Meta
	}
	return snap
}

// directoryRow is one entry of a rooms/list or games/list snapshot.
func (r *Room) directoryRow() map[string]any {
	return map[string]any{"name": r.Name, "clients": r.memberIDs()}
}
