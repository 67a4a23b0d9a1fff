package videochat

import (
	"sync"

	"github.com/ayushdevani01/real-time-video-chat-app/types"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// Notifications surfaced to the UI layer through Session.Events.
type (
	ParticipantJoined struct{ User types.UserInfo }
	ParticipantLeft   struct{ ID string }
	ChatReceived      struct{ Message ChatMessage }
	RemoteTrackAdded  struct {
		User  types.UserInfo
		Track *webrtc.TrackRemote
	}
	LinkStateChanged struct {
		User  types.UserInfo
		State LinkState
	}
)

// ChatMessage is one entry of the room transcript.
type ChatMessage struct {
	ID       string
	Username string
	Message  string
}

// ParticipantMedia is the remote media one participant currently yields.
type ParticipantMedia struct {
	User   types.UserInfo
	Tracks []*webrtc.TrackRemote
}

const eventBufferSize = 64

// Session is one participant's view of a room: it owns the signaling
// connection, the authoritative remote-ID to peer-link mapping, the chat
// transcript and the notification stream. Newcomers call everyone already
// present; everyone already present answers.
type Session struct {
	sync.Mutex
	conn     *ServerConn
	room     string
	username string
	media    MediaSource
	api      *webrtc.API
	config   webrtc.Configuration

	links      map[string]*PeerLink
	transcript []ChatMessage
	events     chan interface{}
	closed     bool
}

// NewSession dials the relay and prepares a session for the given room.
// media may be nil when capture failed or was skipped; peer links then
// carry no outbound tracks. Join must be called to enter the room.
func NewSession(serverURL, room, username string, media MediaSource, config webrtc.Configuration) (*Session, error) {
	if media == nil {
		media = NoMedia()
	}
	conn, err := Dial(serverURL)
	if err != nil {
		return nil, err
	}

	settings := webrtc.SettingEngine{}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))

	s := &Session{
		conn:     conn,
		room:     room,
		username: username,
		media:    media,
		api:      api,
		config:   config,
		links:    make(map[string]*PeerLink),
		events:   make(chan interface{}, eventBufferSize),
	}
	go conn.ReadLoop(s)
	return s, nil
}

// ID returns the relay-assigned connection identifier.
func (s *Session) ID() string {
	return s.conn.ID()
}

func (s *Session) Username() string {
	return s.username
}

// LocalMedia returns the media source attached to every peer link.
func (s *Session) LocalMedia() MediaSource {
	return s.media
}

// Events is the membership-change/chat/track notification stream. Slow
// consumers lose notifications rather than stalling the session.
func (s *Session) Events() <-chan interface{} {
	return s.events
}

// Join enters the room. The relay answers with the existing participants,
// each of which this session will call.
func (s *Session) Join() error {
	return s.conn.JoinRoom(s.room, s.username)
}

// SendChat relays a chat line to the rest of the room and records it in
// the local transcript.
func (s *Session) SendChat(message string) error {
	if err := s.conn.SendChat(s.room, message, s.username); err != nil {
		return err
	}
	s.Lock()
	s.transcript = append(s.transcript, ChatMessage{ID: s.ID(), Username: s.username, Message: message})
	s.Unlock()
	return nil
}

// Transcript returns a copy of the chat transcript in arrival order.
func (s *Session) Transcript() []ChatMessage {
	s.Lock()
	defer s.Unlock()
	out := make([]ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Link returns the peer link for a remote identifier, if one exists.
func (s *Session) Link(id string) (*PeerLink, bool) {
	s.Lock()
	defer s.Unlock()
	link, ok := s.links[id]
	return link, ok
}

// Links returns the current remote-ID to peer-link mapping.
func (s *Session) Links() map[string]*PeerLink {
	s.Lock()
	defer s.Unlock()
	out := make(map[string]*PeerLink, len(s.links))
	for id, link := range s.links {
		out[id] = link
	}
	return out
}

// RemoteMedia maps each participant that has signaled media to its remote
// tracks.
func (s *Session) RemoteMedia() map[string]ParticipantMedia {
	out := make(map[string]ParticipantMedia)
	for id, link := range s.Links() {
		tracks := link.RemoteTracks()
		if len(tracks) == 0 {
			continue
		}
		out[id] = ParticipantMedia{User: link.Remote(), Tracks: tracks}
	}
	return out
}

// Close ends the session: every peer link is torn down and the signaling
// connection closed.
func (s *Session) Close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return nil
	}
	s.closed = true
	links := make([]*PeerLink, 0, len(s.links))
	for _, link := range s.links {
		links = append(links, link)
	}
	s.links = make(map[string]*PeerLink)
	s.Unlock()

	for _, link := range links {
		link.Close()
	}
	return s.conn.Close()
}

// ensureLink returns the peer link for user, creating one if absent. The
// second return reports whether the link already existed.
func (s *Session) ensureLink(user types.UserInfo) (*PeerLink, bool) {
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return nil, false
	}
	if link, ok := s.links[user.ID]; ok {
		return link, true
	}
	link := newPeerLink(s.ID(), user, s.conn, s.media, s.api, s.config)
	link.onTrack = func(l *PeerLink, track *webrtc.TrackRemote) {
		s.emit(RemoteTrackAdded{User: l.Remote(), Track: track})
	}
	link.onState = func(l *PeerLink, state LinkState) {
		s.emit(LinkStateChanged{User: l.Remote(), State: state})
		if state == LinkClosed {
			// Transport failure or teardown: evict so stale remote media is
			// not surfaced.
			s.removeLink(l.Remote().ID)
		}
	}
	s.links[user.ID] = link
	return link, false
}

func (s *Session) removeLink(id string) {
	s.Lock()
	delete(s.links, id)
	s.Unlock()
}

func (s *Session) emit(event interface{}) {
	select {
	case s.events <- event:
	default:
		log.Debugf("[%v]: Event buffer full, dropping %T", s.ID(), event)
	}
}

// OnExistingUsers implements EventHandler. Each participant already in the
// room gets called; negotiations progress independently.
func (s *Session) OnExistingUsers(users []types.UserInfo) {
	log.Debugf("[%v]: %v existing participant(s) in room '%v'", s.ID(), len(users), s.room)
	for _, user := range users {
		link, existed := s.ensureLink(user)
		if link == nil || existed {
			continue
		}
		go func(link *PeerLink) {
			if err := link.Call(s.username); err != nil {
				log.Errorf("[%v]: Failed to call peer '%v': %v", s.ID(), link.Remote().ID, err)
			}
		}(link)
	}
}

// OnUserJoined implements EventHandler. The newcomer is responsible for
// calling us, so only a membership notification is surfaced.
func (s *Session) OnUserJoined(user types.UserInfo) {
	log.Infof("[%v]: %v (%v) joined room '%v'", s.ID(), user.Username, user.ID, s.room)
	s.emit(ParticipantJoined{User: user})
}

// OnUserLeft implements EventHandler.
func (s *Session) OnUserLeft(id string) {
	s.Lock()
	link := s.links[id]
	delete(s.links, id)
	s.Unlock()
	if link != nil {
		link.Close()
	}
	log.Infof("[%v]: Participant %v left room '%v'", s.ID(), id, s.room)
	s.emit(ParticipantLeft{ID: id})
}

// OnChat implements EventHandler.
func (s *Session) OnChat(msg types.ChatDelivery) {
	entry := ChatMessage{ID: msg.ID, Username: msg.Username, Message: msg.Message}
	s.Lock()
	s.transcript = append(s.transcript, entry)
	s.Unlock()
	s.emit(ChatReceived{Message: entry})
}

// OnOffer implements EventHandler. The first offer from an unknown remote
// creates its link; a duplicate offer on an initialized link is refused by
// the link itself.
func (s *Session) OnOffer(from string, username string, offer webrtc.SessionDescription) {
	link, _ := s.ensureLink(types.UserInfo{ID: from, Username: username})
	if link == nil {
		return
	}
	go func() {
		if err := link.HandleOffer(offer); err != nil {
			log.Warnf("[%v]: Ignoring offer from peer '%v': %v", s.ID(), from, err)
		}
	}()
}

// OnAnswer implements EventHandler. Answers for unknown remotes are
// dropped silently.
func (s *Session) OnAnswer(from string, answer webrtc.SessionDescription) {
	link, ok := s.Link(from)
	if !ok {
		log.Warnf("[%v]: Dropping answer from unknown peer '%v'", s.ID(), from)
		return
	}
	if err := link.HandleAnswer(answer); err != nil {
		log.Warnf("[%v]: Ignoring answer from peer '%v': %v", s.ID(), from, err)
	}
}

// OnCandidate implements EventHandler. Candidates for unknown remotes are
// dropped silently.
func (s *Session) OnCandidate(from string, candidate webrtc.ICECandidateInit) {
	link, ok := s.Link(from)
	if !ok {
		log.Debugf("[%v]: Dropping ICE candidate from unknown peer '%v'", s.ID(), from)
		return
	}
	if err := link.AddCandidate(candidate); err != nil {
		log.Errorf("[%v]: Failed to add ICE candidate from peer '%v': %v", s.ID(), from, err)
	}
}
