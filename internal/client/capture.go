package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

const (
	trackStateLive int32 = iota
	trackStateMuted
	trackStateStopped
)

var (
	ErrCaptureUnavailable = errors.New("media capture unavailable")

	// Screen-share failures are classified by cause so the UI can report
	// them distinctly.
	ErrScreenPermissionDenied = errors.New("screen share permission denied")
	ErrScreenNoSource         = errors.New("no screen source available")
	ErrScreenCancelled        = errors.New("screen share cancelled")
)

// LocalTrack is one locally captured media track. Enabled state is a track
// property observed by every session it is published into; flipping it
// never touches negotiation.
type LocalTrack struct {
	kind  TrackKind
	track *webrtc.TrackLocalStaticRTP
	state int32
	stop  func()
}

func NewLocalTrack(kind TrackKind, track *webrtc.TrackLocalStaticRTP, stop func()) *LocalTrack {
	return &LocalTrack{kind: kind, track: track, stop: stop}
}

func (t *LocalTrack) Kind() TrackKind                    { return t.kind }
func (t *LocalTrack) Track() *webrtc.TrackLocalStaticRTP { return t.track }

func (t *LocalTrack) Enabled() bool {
	return atomic.LoadInt32(&t.state) == trackStateLive
}

func (t *LocalTrack) SetEnabled(on bool) {
	if atomic.LoadInt32(&t.state) == trackStateStopped {
		return
	}
	if on {
		atomic.StoreInt32(&t.state, trackStateLive)
	} else {
		atomic.StoreInt32(&t.state, trackStateMuted)
	}
}

// Release stops the underlying source. Terminal.
func (t *LocalTrack) Release() {
	if atomic.SwapInt32(&t.state, trackStateStopped) == trackStateStopped {
		return
	}
	if t.stop != nil {
		t.stop()
	}
}

// TrackSet is what a capture attempt yields. Either track may be nil when
// the constraints excluded it.
type TrackSet struct {
	Audio *LocalTrack
	Video *LocalTrack
}

func (s *TrackSet) Release() {
	if s.Audio != nil {
		s.Audio.Release()
	}
	if s.Video != nil {
		s.Video.Release()
	}
}

type Constraints struct {
	Audio bool
	Video bool
}

func AudioOnly() Constraints { return Constraints{Audio: true} }

// CaptureDevice is the seam to the media-capture collaborator.
type CaptureDevice interface {
	Capture(ctx context.Context, c Constraints) (*TrackSet, error)
	CaptureDisplay(ctx context.Context) (*LocalTrack, error)
}

// RTPCaptureConfig names the local UDP addresses RTP sources push to,
// e.g. an ffmpeg/gstreamer pipeline per track.
type RTPCaptureConfig struct {
	AudioAddr  string
	VideoAddr  string
	ScreenAddr string
}

// RTPCapture exposes RTP-over-UDP feeds as local tracks. It is the
// headless stand-in for a browser's getUserMedia/getDisplayMedia.
type RTPCapture struct {
	cfg RTPCaptureConfig
}

func NewRTPCapture(cfg RTPCaptureConfig) *RTPCapture {
	return &RTPCapture{cfg: cfg}
}

func (d *RTPCapture) Capture(ctx context.Context, c Constraints) (*TrackSet, error) {
	set := &TrackSet{}
	if c.Audio {
		t, err := d.listenTrack(TrackKindAudio, d.cfg.AudioAddr, webrtc.MimeTypeOpus, 48000)
		if err != nil {
			return nil, err
		}
		set.Audio = t
	}
	if c.Video {
		t, err := d.listenTrack(TrackKindVideo, d.cfg.VideoAddr, webrtc.MimeTypeVP8, 90000)
		if err != nil {
			set.Release()
			return nil, err
		}
		set.Video = t
	}
	return set, nil
}

func (d *RTPCapture) CaptureDisplay(ctx context.Context) (*LocalTrack, error) {
	if d.cfg.ScreenAddr == "" {
		return nil, ErrScreenNoSource
	}
	return d.listenTrack(TrackKindVideo, d.cfg.ScreenAddr, webrtc.MimeTypeVP8, 90000)
}

func (d *RTPCapture) listenTrack(kind TrackKind, addr, mimeType string, clockRate uint32) (*LocalTrack, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: no %s source address", ErrCaptureUnavailable, kind)
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %v", ErrCaptureUnavailable, addr, err)
	}
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mimeType, ClockRate: clockRate},
		string(kind), "vizorlite",
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("new local track: %w", err)
	}
	lt := NewLocalTrack(kind, track, func() { _ = conn.Close() })
	go pumpRTP(conn, lt)
	return lt, nil
}

// pumpRTP forwards packets from the UDP source into the local track.
// Muted packets are consumed and dropped so the source never backs up.
func pumpRTP(conn net.PacketConn, t *LocalTrack) {
	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if !t.Enabled() {
			continue
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if err := t.track.WriteRTP(&pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			log.Error().Err(err).Str("module", "client.capture").Str("kind", string(t.kind)).Msg("write RTP error, stopping pump")
			return
		}
	}
}
