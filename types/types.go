package types

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

// Event names exchanged between clients and the signaling relay.
type Event string

const (
	// Ready is sent by the relay immediately after a websocket connects and
	// carries the relay-assigned connection identifier.
	Ready Event = "ready"

	JoinRoomEvent      Event = "joinRoom"
	ExistingUsersEvent Event = "existing-users"
	UserJoinedEvent    Event = "user-joined"
	UserLeftEvent      Event = "user-left"

	ChatEvent        Event = "message"
	ChatReceiveEvent Event = "receiveMessage"

	OfferEvent     Event = "webrtc-offer"
	AnswerEvent    Event = "webrtc-answer"
	CandidateEvent Event = "webrtc-ice-candidates"
)

// Envelope is the frame carried over the websocket. Data holds the
// event-specific payload and is decoded by the receiver based on Event.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope for the given event.
func NewEnvelope(event Event, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Data: data}, nil
}

// ReadyPayload carries the connection identifier assigned to the client.
type ReadyPayload struct {
	ID string `json:"id"`
}

type JoinRoomPayload struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// UserInfo identifies one participant. ExistingUsersEvent carries an
// ordered []UserInfo; UserJoinedEvent carries a single UserInfo.
// UserLeftEvent carries the bare connection identifier string instead.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type ChatPayload struct {
	Room     string `json:"room"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

type ChatDelivery struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	ID       string `json:"id"`
}

type OfferPayload struct {
	Offer    webrtc.SessionDescription `json:"offer"`
	To       string                    `json:"to,omitempty"`
	From     string                    `json:"from,omitempty"`
	Username string                    `json:"username"`
}

type AnswerPayload struct {
	Answer webrtc.SessionDescription `json:"answer"`
	To     string                    `json:"to,omitempty"`
	From   string                    `json:"from,omitempty"`
}

type CandidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	To        string                  `json:"to,omitempty"`
	From      string                  `json:"from,omitempty"`
}
