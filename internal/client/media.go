package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/core"
)

// MediaController owns the local capture tracks and applies enable
// toggling and source substitution across every live peer session.
type MediaController struct {
	device   CaptureDevice
	sessions func() []PeerSession
	announce func(kind string) error

	mu     sync.Mutex
	audio  *LocalTrack
	camera *LocalTrack
	screen *LocalTrack
}

func newMediaController(device CaptureDevice, sessions func() []PeerSession, announce func(kind string) error) *MediaController {
	return &MediaController{device: device, sessions: sessions, announce: announce}
}

// Capture obtains the local track set. When the full constraint set fails
// it degrades to audio-only before surfacing an error.
func (m *MediaController) Capture(ctx context.Context, c Constraints) error {
	set, err := m.device.Capture(ctx, c)
	if err != nil && c.Video {
		log.Warn().Err(err).Str("module", "client.media").Msg("capture failed, degrading to audio only")
		set, err = m.device.Capture(ctx, AudioOnly())
	}
	if err != nil {
		return fmt.Errorf("media capture: %w", err)
	}
	m.mu.Lock()
	m.audio = set.Audio
	m.camera = set.Video
	m.mu.Unlock()
	return nil
}

// PublishTracks is the set attached to a newly created peer session:
// audio plus whichever video source is currently active.
func (m *MediaController) PublishTracks() []*LocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*LocalTrack, 0, 2)
	if m.audio != nil {
		out = append(out, m.audio)
	}
	video := m.camera
	if m.screen != nil {
		video = m.screen
	}
	if video != nil {
		out = append(out, video)
	}
	return out
}

// ToggleEnabled flips the enabled flag of the local audio or camera track
// and reports the new state. A flag flip only; no session is closed and
// nothing renegotiates.
func (m *MediaController) ToggleEnabled(kind TrackKind) bool {
	m.mu.Lock()
	var t *LocalTrack
	switch kind {
	case TrackKindAudio:
		t = m.audio
	case TrackKindVideo:
		t = m.camera
	}
	m.mu.Unlock()
	if t == nil {
		return false
	}
	next := !t.Enabled()
	t.SetEnabled(next)
	log.Info().Str("module", "client.media").Str("kind", string(kind)).Bool("enabled", next).Msg("track toggled")
	return next
}

func (m *MediaController) Sharing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen != nil
}

// StartScreenShare captures a display track and substitutes it as the
// outgoing video source in every live session. Substitution failures are
// per-session: one failing session is skipped, the rest still switch.
func (m *MediaController) StartScreenShare(ctx context.Context) error {
	m.mu.Lock()
	if m.screen != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	track, err := m.device.CaptureDisplay(ctx)
	if err != nil {
		return fmt.Errorf("screen share: %w", err)
	}

	m.mu.Lock()
	if m.screen != nil {
		// Lost the race to a concurrent start; the other capture won.
		m.mu.Unlock()
		track.Release()
		return nil
	}
	m.screen = track
	m.mu.Unlock()

	m.substitute(track)
	if err := m.announce(core.KindScreenShareStarted); err != nil {
		log.Debug().Err(err).Str("module", "client.media").Msg("screen-share-started announce dropped")
	}
	log.Info().Str("module", "client.media").Msg("screen share started")
	return nil
}

// StopScreenShare reverses the substitution back to the camera track and
// releases the screen track.
func (m *MediaController) StopScreenShare() {
	m.mu.Lock()
	screen := m.screen
	camera := m.camera
	m.screen = nil
	m.mu.Unlock()

	if screen == nil {
		return
	}
	if camera != nil {
		m.substitute(camera)
	}
	screen.Release()
	if err := m.announce(core.KindScreenShareStopped); err != nil {
		log.Debug().Err(err).Str("module", "client.media").Msg("screen-share-stopped announce dropped")
	}
	log.Info().Str("module", "client.media").Msg("screen share stopped")
}

func (m *MediaController) substitute(t *LocalTrack) {
	for _, s := range m.sessions() {
		if s.State() == StateClosed {
			continue
		}
		if err := s.ReplaceOutgoingVideo(t); err != nil {
			log.Warn().Err(err).Str("module", "client.media").Str("remote", s.RemoteID()).Msg("video substitution skipped")
		}
	}
}

// Release stops every local track. Called on room departure.
func (m *MediaController) Release() {
	m.mu.Lock()
	tracks := []*LocalTrack{m.audio, m.camera, m.screen}
	m.audio, m.camera, m.screen = nil, nil, nil
	m.mu.Unlock()
	for _, t := range tracks {
		if t != nil {
			t.Release()
		}
	}
}

// ScreenShareFailure maps a StartScreenShare error to the user-visible
// message for its cause class.
func ScreenShareFailure(err error) string {
	switch {
	case errors.Is(err, ErrScreenPermissionDenied):
		return "Screen sharing permission was denied. Please allow screen sharing to continue."
	case errors.Is(err, ErrScreenNoSource):
		return "No screen, window, or tab available to share."
	case errors.Is(err, ErrScreenCancelled):
		return "Screen sharing was cancelled."
	default:
		return fmt.Sprintf("Screen sharing error: %v", err)
	}
}
