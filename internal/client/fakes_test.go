package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/AhmedLyanov/VizorLite/internal/core"
)

// fakeSender records every envelope handed to the signaler.
type fakeSender struct {
	mu   sync.Mutex
	sent []core.Envelope
	err  error
}

func (s *fakeSender) Send(env core.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, env)
	return nil
}

func (s *fakeSender) envelopes() []core.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Envelope, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *fakeSender) byKind(kind string) []core.Envelope {
	var out []core.Envelope
	for _, env := range s.envelopes() {
		if env.Kind == kind {
			out = append(out, env)
		}
	}
	return out
}

// fakeSession is a scriptable PeerSession.
type fakeSession struct {
	mu         sync.Mutex
	remoteID   string
	role       Role
	state      State
	answers    []json.RawMessage
	candidates []json.RawMessage
	video      []*LocalTrack
	closed     int

	answerErr  error
	replaceErr error
}

func (s *fakeSession) RemoteID() string { return s.remoteID }
func (s *fakeSession) Role() Role       { return s.role }

func (s *fakeSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) HandleAnswer(sdp json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answerErr != nil {
		return s.answerErr
	}
	s.answers = append(s.answers, sdp)
	return nil
}

func (s *fakeSession) HandleCandidate(candidate json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, candidate)
	return nil
}

func (s *fakeSession) ReplaceOutgoingVideo(t *LocalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.video = append(s.video, t)
	return nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
	s.closed++
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeDevice hands out real static RTP tracks without any source behind
// them, standing in for getUserMedia/getDisplayMedia.
type fakeDevice struct {
	captureErr error
	audioOnly  bool // fail any request that asks for video
	displayErr error

	mu       sync.Mutex
	captures []Constraints
	displays int
}

func newTestTrack(t *testing.T, kind TrackKind) *LocalTrack {
	t.Helper()
	mime, clock := webrtc.MimeTypeOpus, uint32(48000)
	if kind == TrackKindVideo {
		mime, clock = webrtc.MimeTypeVP8, 90000
	}
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mime, ClockRate: clock},
		string(kind), "test",
	)
	require.NoError(t, err)
	return NewLocalTrack(kind, track, nil)
}

func (d *fakeDevice) Capture(_ context.Context, c Constraints) (*TrackSet, error) {
	d.mu.Lock()
	d.captures = append(d.captures, c)
	d.mu.Unlock()
	if d.captureErr != nil {
		return nil, d.captureErr
	}
	if d.audioOnly && c.Video {
		return nil, ErrCaptureUnavailable
	}
	set := &TrackSet{}
	if c.Audio {
		set.Audio = newDeviceTrack(TrackKindAudio)
	}
	if c.Video {
		set.Video = newDeviceTrack(TrackKindVideo)
	}
	return set, nil
}

func (d *fakeDevice) CaptureDisplay(context.Context) (*LocalTrack, error) {
	d.mu.Lock()
	d.displays++
	d.mu.Unlock()
	if d.displayErr != nil {
		return nil, d.displayErr
	}
	return newDeviceTrack(TrackKindVideo), nil
}

func newDeviceTrack(kind TrackKind) *LocalTrack {
	mime, clock := webrtc.MimeTypeOpus, uint32(48000)
	if kind == TrackKindVideo {
		mime, clock = webrtc.MimeTypeVP8, 90000
	}
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mime, ClockRate: clock},
		string(kind), "test",
	)
	if err != nil {
		panic(err)
	}
	return NewLocalTrack(kind, track, nil)
}
