package test_utils

import (
	"context"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	log "github.com/sirupsen/logrus"
)

// NewTestVideoTrack returns a VP8 sample track usable as local media in
// tests.
func NewTestVideoTrack(id string) (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", id)
}

// PumpSamples writes dummy samples to track every 20ms until ctx is done,
// so the remote side's track callback has RTP to fire on. The payload is
// not a decodable frame; only packet arrival matters.
func PumpSamples(ctx context.Context, track *webrtc.TrackLocalStaticSample) {
	payload := make([]byte, 128)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := track.WriteSample(media.Sample{Data: payload, Duration: 20 * time.Millisecond}); err != nil {
				log.Debugf("Sample write terminated: %v", err)
				return
			}
		}
	}
}
