package videochat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ayushdevani01/real-time-video-chat-app/types"
	"github.com/pion/webrtc/v3"
	log "github.com/sirupsen/logrus"
)

// LinkState labels a peer link's position in the negotiation.
type LinkState string

const (
	LinkUninitialized LinkState = "uninitialized"
	LinkOfferSent     LinkState = "offer-sent"
	LinkAnswerSent    LinkState = "answer-sent"
	LinkConnected     LinkState = "connected"
	LinkClosed        LinkState = "closed"
)

var (
	// ErrLinkInitialized is returned when a call or offer would construct a
	// second peer connection for the same remote.
	ErrLinkInitialized = errors.New("peer link already initialized")

	// ErrUnexpectedAnswer is returned for an answer arriving on a link that
	// has not sent an offer.
	ErrUnexpectedAnswer = errors.New("answer without a pending offer")
)

// SignalSender is the injected capability a peer link uses to reach its
// remote through the relay.
type SignalSender interface {
	SendOffer(to string, username string, offer *webrtc.SessionDescription) error
	SendAnswer(to string, answer *webrtc.SessionDescription) error
	SendCandidate(to string, candidate *webrtc.ICECandidate) error
}

// PeerLink negotiates and owns one peer connection to a single remote
// participant. It is created when the remote first becomes known and is
// closed when the remote leaves or the local session ends.
type PeerLink struct {
	sync.Mutex
	localID string
	remote  types.UserInfo
	sender  SignalSender
	media   MediaSource
	api     *webrtc.API
	config  webrtc.Configuration

	pc       *webrtc.PeerConnection
	state    LinkState
	descSent bool

	// Local candidates gathered before our description went out, and
	// remote candidates received before the remote description was set.
	pendingLocal  []*webrtc.ICECandidate
	pendingRemote []webrtc.ICECandidateInit

	remoteTracks []*webrtc.TrackRemote

	onTrack func(*PeerLink, *webrtc.TrackRemote)
	onState func(*PeerLink, LinkState)
}

func newPeerLink(localID string, remote types.UserInfo, sender SignalSender, media MediaSource, api *webrtc.API, config webrtc.Configuration) *PeerLink {
	return &PeerLink{
		localID: localID,
		remote:  remote,
		sender:  sender,
		media:   media,
		api:     api,
		config:  config,
		state:   LinkUninitialized,
	}
}

func (l *PeerLink) State() LinkState {
	l.Lock()
	defer l.Unlock()
	return l.state
}

func (l *PeerLink) Remote() types.UserInfo {
	return l.remote
}

// RemoteTracks returns the remote media accumulated so far.
func (l *PeerLink) RemoteTracks() []*webrtc.TrackRemote {
	l.Lock()
	defer l.Unlock()
	out := make([]*webrtc.TrackRemote, len(l.remoteTracks))
	copy(out, l.remoteTracks)
	return out
}

// init constructs the underlying peer connection, wires its callbacks and
// attaches local media. Caller holds the lock and has verified the link is
// uninitialized.
func (l *PeerLink) init() (*webrtc.PeerConnection, error) {
	pc, err := l.api.NewPeerConnection(l.config)
	if err != nil {
		return nil, err
	}

	have := make(map[webrtc.RTPCodecType]bool)
	for _, track := range l.media.Tracks() {
		if _, err := pc.AddTrack(track); err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to attach local track: %w", err)
		}
		have[track.Kind()] = true
	}
	// Media sections must exist for every kind we want to receive, even
	// when we have nothing to send in that kind.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if have[kind] {
			continue
		}
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return nil, err
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		l.Lock()
		if l.state == LinkClosed {
			l.Unlock()
			return
		}
		if !l.descSent {
			l.pendingLocal = append(l.pendingLocal, c)
			l.Unlock()
			return
		}
		l.Unlock()
		if err := l.sender.SendCandidate(l.remote.ID, c); err != nil {
			log.Errorf("[%v]: Failed to send ICE candidate to peer '%v': %v", l.localID, l.remote.ID, err)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debugf("[%v]: Remote %v track from peer '%v'", l.localID, track.Kind(), l.remote.ID)
		l.Lock()
		if l.state == LinkClosed {
			l.Unlock()
			return
		}
		l.remoteTracks = append(l.remoteTracks, track)
		cb := l.onTrack
		l.Unlock()
		if cb != nil {
			cb(l, track)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debugf("[%v]: Connection state for link to peer '%v' has changed: %s", l.localID, l.remote.ID, s)
		switch s {
		case webrtc.PeerConnectionStateConnected:
			l.promoteConnected()
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			l.Close()
		}
	})

	l.pc = pc
	return pc, nil
}

// Call drives the outbound branch: construct the peer connection, send an
// offer and move to offer-sent. A link that is already initialized refuses
// a second call.
func (l *PeerLink) Call(username string) error {
	l.Lock()
	if l.state != LinkUninitialized || l.pc != nil {
		l.Unlock()
		return fmt.Errorf("%w: link to peer '%v' is %v", ErrLinkInitialized, l.remote.ID, l.state)
	}
	pc, err := l.init()
	if err != nil {
		l.Unlock()
		return err
	}
	l.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer for peer '%v': %w", l.remote.ID, err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description for peer '%v': %w", l.remote.ID, err)
	}
	<-gatherComplete

	if !l.transition(LinkUninitialized, LinkOfferSent) {
		// Torn down while gathering.
		return nil
	}
	if err := l.sender.SendOffer(l.remote.ID, username, pc.LocalDescription()); err != nil {
		return fmt.Errorf("failed to send offer to peer '%v': %w", l.remote.ID, err)
	}
	l.flushLocalCandidates()
	return nil
}

// HandleOffer drives the inbound branch: construct the peer connection,
// apply the remote offer and send back an answer. A duplicate offer for an
// initialized link constructs nothing.
func (l *PeerLink) HandleOffer(offer webrtc.SessionDescription) error {
	l.Lock()
	if l.state != LinkUninitialized || l.pc != nil {
		l.Unlock()
		return fmt.Errorf("%w: link to peer '%v' is %v", ErrLinkInitialized, l.remote.ID, l.state)
	}
	pc, err := l.init()
	if err != nil {
		l.Unlock()
		return err
	}
	l.Unlock()

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("failed to set remote description with offer from peer '%v': %w", l.remote.ID, err)
	}
	l.flushRemoteCandidates()

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer for peer '%v': %w", l.remote.ID, err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description for peer '%v': %w", l.remote.ID, err)
	}
	<-gatherComplete

	if !l.transition(LinkUninitialized, LinkAnswerSent) {
		return nil
	}
	if err := l.sender.SendAnswer(l.remote.ID, pc.LocalDescription()); err != nil {
		return fmt.Errorf("failed to send answer to peer '%v': %w", l.remote.ID, err)
	}
	l.flushLocalCandidates()
	return nil
}

// HandleAnswer applies the remote answer. Answers on links that have not
// sent an offer are refused.
func (l *PeerLink) HandleAnswer(answer webrtc.SessionDescription) error {
	l.Lock()
	if l.state != LinkOfferSent {
		l.Unlock()
		return fmt.Errorf("%w: link to peer '%v' is %v", ErrUnexpectedAnswer, l.remote.ID, l.state)
	}
	pc := l.pc
	l.Unlock()

	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description with answer from peer '%v': %w", l.remote.ID, err)
	}
	l.flushRemoteCandidates()
	l.promoteConnected()
	return nil
}

// AddCandidate feeds a remote ICE candidate to the peer connection,
// buffering it when the remote description is not set yet.
func (l *PeerLink) AddCandidate(c webrtc.ICECandidateInit) error {
	l.Lock()
	if l.state == LinkClosed {
		l.Unlock()
		return nil
	}
	pc := l.pc
	if pc == nil || pc.RemoteDescription() == nil {
		l.pendingRemote = append(l.pendingRemote, c)
		l.Unlock()
		log.Debugf("[%v]: Buffered early ICE candidate from peer '%v'", l.localID, l.remote.ID)
		return nil
	}
	l.Unlock()
	return pc.AddICECandidate(c)
}

// Close tears the link down. It is idempotent and terminal: the peer
// connection is released, media references dropped and further signaling
// for this link ignored.
func (l *PeerLink) Close() error {
	l.Lock()
	if l.state == LinkClosed {
		l.Unlock()
		return nil
	}
	l.state = LinkClosed
	pc := l.pc
	l.remoteTracks = nil
	l.pendingLocal = nil
	l.pendingRemote = nil
	cb := l.onState
	l.Unlock()

	log.Debugf("[%v]: Closed link to peer '%v'", l.localID, l.remote.ID)
	if cb != nil {
		cb(l, LinkClosed)
	}
	if pc != nil {
		return pc.Close()
	}
	return nil
}

// transition moves from one state to another, marking the local
// description as sent. Returns false if the link is no longer in from.
func (l *PeerLink) transition(from, to LinkState) bool {
	l.Lock()
	if l.state != from {
		l.Unlock()
		return false
	}
	l.state = to
	l.descSent = true
	cb := l.onState
	l.Unlock()
	if cb != nil {
		cb(l, to)
	}
	return true
}

// promoteConnected marks a mid-negotiation link connected. Fires from the
// answer application on the offerer and from the transport's connected
// signal on either side, whichever happens first.
func (l *PeerLink) promoteConnected() {
	l.Lock()
	if l.state != LinkOfferSent && l.state != LinkAnswerSent {
		l.Unlock()
		return
	}
	l.state = LinkConnected
	cb := l.onState
	l.Unlock()
	log.Debugf("[%v]: Link to peer '%v' connected", l.localID, l.remote.ID)
	if cb != nil {
		cb(l, LinkConnected)
	}
}

func (l *PeerLink) flushLocalCandidates() {
	l.Lock()
	pending := l.pendingLocal
	l.pendingLocal = nil
	l.Unlock()
	for _, c := range pending {
		if err := l.sender.SendCandidate(l.remote.ID, c); err != nil {
			log.Errorf("[%v]: Failed to send ICE candidate to peer '%v': %v", l.localID, l.remote.ID, err)
			return
		}
	}
}

func (l *PeerLink) flushRemoteCandidates() {
	l.Lock()
	pending := l.pendingRemote
	l.pendingRemote = nil
	pc := l.pc
	l.Unlock()
	for _, c := range pending {
		if err := pc.AddICECandidate(c); err != nil {
			log.Errorf("[%v]: Failed to add buffered ICE candidate from peer '%v': %v", l.localID, l.remote.ID, err)
		}
	}
}
