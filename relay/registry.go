package relay

// Participant is one member of a room, identified by its relay-assigned
// connection ID. Username is display-only and not unique.
type Participant struct {
	ID       string
	Username string
}

// Departure reports a participant removed from a room.
type Departure struct {
	Participant Participant
	Room        string
}

// Registry maps room names to their current participants in join order.
// It is only ever touched from the relay's event loop and therefore needs
// no locking. Empty rooms are deleted so stale names cost nothing.
type Registry struct {
	rooms  map[string][]Participant
	byConn map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string][]Participant),
		byConn: make(map[string]string),
	}
}

// Join registers p in room and returns the participants that were already
// present, in join order, excluding p itself. A second Join from the same
// connection ID moves the participant; the removal from its previous room
// is reported so the caller can notify that room.
func (r *Registry) Join(room string, p Participant) (existing []Participant, moved *Departure) {
	if prev, ok := r.byConn[p.ID]; ok {
		if prev == room {
			// Re-join of the same room keeps the original join position.
			return r.others(room, p.ID), nil
		}
		if left, oldRoom, ok := r.remove(p.ID); ok {
			moved = &Departure{Participant: left, Room: oldRoom}
		}
	}
	existing = append(existing, r.rooms[room]...)
	r.rooms[room] = append(r.rooms[room], p)
	r.byConn[p.ID] = room
	return existing, moved
}

// Leave removes the participant bound to connID. Unknown IDs are a no-op
// reported through ok=false.
func (r *Registry) Leave(connID string) (p Participant, room string, ok bool) {
	return r.remove(connID)
}

func (r *Registry) remove(connID string) (Participant, string, bool) {
	room, ok := r.byConn[connID]
	if !ok {
		return Participant{}, "", false
	}
	delete(r.byConn, connID)
	members := r.rooms[room]
	for i, p := range members {
		if p.ID == connID {
			r.rooms[room] = append(members[:i], members[i+1:]...)
			if len(r.rooms[room]) == 0 {
				delete(r.rooms, room)
			}
			return p, room, true
		}
	}
	return Participant{}, "", false
}

// roomOf returns the room connID is currently registered in.
func (r *Registry) roomOf(connID string) (string, bool) {
	room, ok := r.byConn[connID]
	return room, ok
}

// members returns the room's participants in join order.
func (r *Registry) members(room string) []Participant {
	return r.rooms[room]
}

// others returns the room's participants excluding connID, in join order.
func (r *Registry) others(room string, connID string) []Participant {
	var out []Participant
	for _, p := range r.rooms[room] {
		if p.ID != connID {
			out = append(out, p)
		}
	}
	return out
}
