package videochat

import "github.com/pion/webrtc/v3"

// MediaSource supplies the local tracks attached to every peer link.
// Capture is the caller's concern; a session only needs something that
// yields tracks. A source returning no tracks is valid: links still form,
// they just carry no outbound media.
type MediaSource interface {
	Tracks() []webrtc.TrackLocal
}

// StaticMediaSource serves a fixed set of tracks.
type StaticMediaSource struct {
	tracks []webrtc.TrackLocal
}

func NewStaticMediaSource(tracks ...webrtc.TrackLocal) *StaticMediaSource {
	return &StaticMediaSource{tracks: tracks}
}

func (s *StaticMediaSource) Tracks() []webrtc.TrackLocal {
	return s.tracks
}

// NoMedia is the source used when media acquisition failed or was never
// attempted.
func NoMedia() MediaSource {
	return &StaticMediaSource{}
}
