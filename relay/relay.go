package relay

import (
	"encoding/json"

	"github.com/ayushdevani01/real-time-video-chat-app/types"
	log "github.com/sirupsen/logrus"
)

type inbound struct {
	client *client
	env    *types.Envelope
}

// Relay routes signaling events between connected clients. A single
// goroutine drains the register/unregister/inbound channels, so every
// handler runs to completion before the next and the Registry is mutated
// without locks.
type Relay struct {
	registry   *Registry
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	inbound    chan inbound
	done       chan struct{}
}

func New() *Relay {
	return &Relay{
		registry:   NewRegistry(),
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan inbound, 64),
		done:       make(chan struct{}),
	}
}

// Run processes relay events until Stop is called.
func (r *Relay) Run() {
	for {
		select {
		case c := <-r.register:
			r.clients[c.id] = c
			log.Debugf("[relay]: Client connected: %v", c.id)

		case c := <-r.unregister:
			if _, ok := r.clients[c.id]; !ok {
				continue
			}
			delete(r.clients, c.id)
			close(c.send)
			if p, room, ok := r.registry.Leave(c.id); ok {
				log.Infof("[relay]: %v (%v) left room %v", p.Username, p.ID, room)
				r.broadcast(room, p.ID, types.UserLeftEvent, p.ID)
			} else {
				log.Debugf("[relay]: Client disconnected before joining a room: %v", c.id)
			}

		case in := <-r.inbound:
			r.route(in.client, in.env)

		case <-r.done:
			for _, c := range r.clients {
				close(c.send)
			}
			return
		}
	}
}

// Stop terminates the event loop.
func (r *Relay) Stop() {
	close(r.done)
}

func (r *Relay) route(c *client, env *types.Envelope) {
	switch env.Event {
	case types.JoinRoomEvent:
		r.handleJoin(c, env.Data)
	case types.ChatEvent:
		r.handleChat(c, env.Data)
	case types.OfferEvent, types.AnswerEvent, types.CandidateEvent:
		r.forward(c, env.Event, env.Data)
	default:
		log.Warnf("[relay]: Unknown event %q from %v", env.Event, c.id)
	}
}

func (r *Relay) handleJoin(c *client, data json.RawMessage) {
	var payload types.JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Errorf("[relay]: Malformed joinRoom from %v: %v", c.id, err)
		return
	}

	self := Participant{ID: c.id, Username: payload.Username}
	existing, moved := r.registry.Join(payload.Room, self)
	if moved != nil {
		// The connection switched rooms; its old room sees a departure.
		log.Infof("[relay]: %v moved from room %v to %v", c.id, moved.Room, payload.Room)
		r.broadcast(moved.Room, c.id, types.UserLeftEvent, c.id)
	}
	log.Infof("[relay]: %v (%v) joined room %v", payload.Username, c.id, payload.Room)

	users := make([]types.UserInfo, 0, len(existing))
	for _, p := range existing {
		users = append(users, types.UserInfo{ID: p.ID, Username: p.Username})
	}
	r.emit(c, types.ExistingUsersEvent, users)

	r.broadcast(payload.Room, c.id, types.UserJoinedEvent, types.UserInfo{ID: c.id, Username: payload.Username})
}

func (r *Relay) handleChat(c *client, data json.RawMessage) {
	var payload types.ChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Errorf("[relay]: Malformed chat message from %v: %v", c.id, err)
		return
	}
	// The sender's registered room is authoritative; the payload's room
	// field is ignored so a client cannot chat into a room it never joined.
	room, ok := r.registry.roomOf(c.id)
	if !ok {
		log.Warnf("[relay]: Chat from %v, which is in no room", c.id)
		return
	}
	r.broadcast(room, c.id, types.ChatReceiveEvent, types.ChatDelivery{
		Message:  payload.Message,
		Username: payload.Username,
		ID:       c.id,
	})
}

// forward delivers a directed signaling payload to the connection named by
// its "to" field, stripping "to" and stamping "from". The payload is not
// otherwise inspected; a stale or forged destination is delivered nowhere.
func (r *Relay) forward(c *client, event types.Event, data json.RawMessage) {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		log.Errorf("[relay]: Malformed %v payload from %v: %v", event, c.id, err)
		return
	}
	dest, _ := fields["to"].(string)
	target, ok := r.clients[dest]
	if !ok {
		log.Debugf("[relay]: Dropping %v from %v: destination %q not connected", event, c.id, dest)
		return
	}
	delete(fields, "to")
	fields["from"] = c.id
	r.emit(target, event, fields)
}

func (r *Relay) emit(c *client, event types.Event, payload interface{}) {
	env, err := types.NewEnvelope(event, payload)
	if err != nil {
		log.Errorf("[relay]: Failed to encode %v event: %v", event, err)
		return
	}
	c.enqueue(env)
}

// broadcast emits an event to every member of room except exclude.
func (r *Relay) broadcast(room string, exclude string, event types.Event, payload interface{}) {
	env, err := types.NewEnvelope(event, payload)
	if err != nil {
		log.Errorf("[relay]: Failed to encode %v event: %v", event, err)
		return
	}
	for _, p := range r.registry.members(room) {
		if p.ID == exclude {
			continue
		}
		if c, ok := r.clients[p.ID]; ok {
			c.enqueue(env)
		}
	}
}
