package videochat

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayushdevani01/real-time-video-chat-app/types"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// EventHandler receives the signaling events the relay delivers to this
// client. All methods are invoked from the connection's read loop.
type EventHandler interface {
	OnExistingUsers(users []types.UserInfo)
	OnUserJoined(user types.UserInfo)
	OnUserLeft(id string)
	OnChat(msg types.ChatDelivery)
	OnOffer(from string, username string, offer webrtc.SessionDescription)
	OnAnswer(from string, answer webrtc.SessionDescription)
	OnCandidate(from string, candidate webrtc.ICECandidateInit)
}

// ServerConn is the signaling channel between this client and the relay.
// The relay assigns the connection its identifier, delivered through the
// ready event before anything else.
type ServerConn struct {
	*websocket.Conn
	sync.Mutex
	id      string
	stopped uint32
	wg      sync.WaitGroup
}

// Dial connects to the relay and waits for the ready signal.
func Dial(urlStr string) (*ServerConn, error) {
	c, _, err := websocket.DefaultDialer.Dial(urlStr, nil)
	if err != nil {
		return nil, err
	}

	var env types.Envelope
	if err := c.ReadJSON(&env); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to receive ready signal: %w", err)
	}
	if env.Event != types.Ready {
		c.Close()
		return nil, fmt.Errorf("expected ready signal, got %q", env.Event)
	}
	var ready types.ReadyPayload
	if err := json.Unmarshal(env.Data, &ready); err != nil || ready.ID == "" {
		c.Close()
		return nil, fmt.Errorf("malformed ready signal")
	}
	log.Debugf("[%v]: Connected to relay at %v", ready.ID, urlStr)
	return &ServerConn{Conn: c, id: ready.ID}, nil
}

// ID returns the relay-assigned connection identifier.
func (s *ServerConn) ID() string {
	return s.id
}

func (s *ServerConn) send(event types.Event, payload interface{}) error {
	env, err := types.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	return s.WriteJSON(env)
}

func (s *ServerConn) JoinRoom(room, username string) error {
	return s.send(types.JoinRoomEvent, types.JoinRoomPayload{Room: room, Username: username})
}

func (s *ServerConn) SendChat(room, message, username string) error {
	return s.send(types.ChatEvent, types.ChatPayload{Room: room, Message: message, Username: username})
}

func (s *ServerConn) SendOffer(to string, username string, offer *webrtc.SessionDescription) error {
	err := s.send(types.OfferEvent, types.OfferPayload{Offer: *offer, To: to, Username: username})
	if err == nil {
		log.Debugf("[%v]: Sent offer to peer '%v'", s.id, to)
	}
	return err
}

func (s *ServerConn) SendAnswer(to string, answer *webrtc.SessionDescription) error {
	err := s.send(types.AnswerEvent, types.AnswerPayload{Answer: *answer, To: to})
	if err == nil {
		log.Debugf("[%v]: Sent answer to peer '%v'", s.id, to)
	}
	return err
}

func (s *ServerConn) SendCandidate(to string, candidate *webrtc.ICECandidate) error {
	err := s.send(types.CandidateEvent, types.CandidatePayload{Candidate: candidate.ToJSON(), To: to})
	if err == nil {
		log.Debugf("[%v]: Sent ICE candidate to peer '%v'", s.id, to)
	}
	return err
}

// ReadLoop reads relay events and dispatches them to h until the
// connection closes or Close is called.
func (s *ServerConn) ReadLoop(h EventHandler) {
	s.wg.Add(1)
	defer s.wg.Done()

	for atomic.LoadUint32(&s.stopped) == 0 {
		var env types.Envelope
		if err := s.ReadJSON(&env); err != nil {
			if atomic.LoadUint32(&s.stopped) == 0 && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Errorf("[%v]: Encountered error when reading message from relay: %v", s.id, err)
			}
			break
		}
		s.dispatch(h, &env)
	}
}

func (s *ServerConn) dispatch(h EventHandler, env *types.Envelope) {
	switch env.Event {
	case types.ExistingUsersEvent:
		var users []types.UserInfo
		if err := json.Unmarshal(env.Data, &users); err != nil {
			log.Errorf("[%v]: Malformed existing-users payload: %v", s.id, err)
			return
		}
		h.OnExistingUsers(users)
	case types.UserJoinedEvent:
		var user types.UserInfo
		if err := json.Unmarshal(env.Data, &user); err != nil {
			log.Errorf("[%v]: Malformed user-joined payload: %v", s.id, err)
			return
		}
		h.OnUserJoined(user)
	case types.UserLeftEvent:
		var id string
		if err := json.Unmarshal(env.Data, &id); err != nil {
			log.Errorf("[%v]: Malformed user-left payload: %v", s.id, err)
			return
		}
		h.OnUserLeft(id)
	case types.ChatReceiveEvent:
		var msg types.ChatDelivery
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			log.Errorf("[%v]: Malformed receiveMessage payload: %v", s.id, err)
			return
		}
		h.OnChat(msg)
	case types.OfferEvent:
		var payload types.OfferPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Errorf("[%v]: Malformed offer payload: %v", s.id, err)
			return
		}
		h.OnOffer(payload.From, payload.Username, payload.Offer)
	case types.AnswerEvent:
		var payload types.AnswerPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Errorf("[%v]: Malformed answer payload: %v", s.id, err)
			return
		}
		h.OnAnswer(payload.From, payload.Answer)
	case types.CandidateEvent:
		var payload types.CandidatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Errorf("[%v]: Malformed candidate payload: %v", s.id, err)
			return
		}
		h.OnCandidate(payload.From, payload.Candidate)
	default:
		log.Warnf("[%v]: Unknown event %q from relay", s.id, env.Event)
	}
}

// Close sends a close frame and stops the read loop.
func (s *ServerConn) Close() error {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return nil
	}
	err := s.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.Conn.Close()
	s.wg.Wait()
	return err
}
