// Headless room participant: joins a room through the relay and publishes
// RTP-fed tracks. Useful for exercising the relay without a browser.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/AhmedLyanov/VizorLite/internal/client"
	"github.com/AhmedLyanov/VizorLite/internal/domain"
)

func main() {
	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	var (
		serverURL  = fs.StringP("server", "s", "ws://localhost:8080/api/ws/signal", "relay signaling URL")
		roomID     = fs.StringP("room", "r", "", "room code to join")
		audioAddr  = fs.String("audio-addr", "127.0.0.1:5004", "UDP address the audio RTP source pushes to")
		videoAddr  = fs.String("video-addr", "", "UDP address the video RTP source pushes to (optional)")
		screenAddr = fs.String("screen-addr", "", "UDP address the screen RTP source pushes to (optional)")
		logLevel   = fs.StringP("log-level", "l", "info", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse log level")
	}
	zerolog.SetGlobalLevel(lvl)

	if *roomID == "" {
		log.Fatal().Msg("--room is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sig := client.NewSignaler(*serverURL)
	if err := sig.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("relay connection failed")
	}
	defer sig.Close()

	device := client.NewRTPCapture(client.RTPCaptureConfig{
		AudioAddr:  *audioAddr,
		VideoAddr:  *videoAddr,
		ScreenAddr: *screenAddr,
	})

	orch := client.NewOrchestrator(sig, device, []string{
		"stun:stun.l.google.com:19302",
		"stun:global.stun.twilio.com:3478",
	}, client.Events{
		OnRemoteTrack: func(remoteID string, track *webrtc.TrackRemote) {
			log.Info().Str("remote", remoteID).Str("kind", track.Kind().String()).Msg("remote track")
		},
		OnMemberJoined: func(remoteID string) {
			log.Info().Str("remote", remoteID).Msg("member joined")
		},
		OnMemberLeft: func(remoteID string) {
			log.Info().Str("remote", remoteID).Msg("member left")
		},
		OnScreenShare: func(remoteID string, active bool) {
			log.Info().Str("remote", remoteID).Bool("active", active).Msg("screen share")
		},
	})

	if err := orch.Media().Capture(ctx, client.Constraints{
		Audio: true,
		Video: *videoAddr != "",
	}); err != nil {
		log.Fatal().Err(err).Msg("capture failed")
	}

	if err := orch.JoinRoom(domain.RoomID(*roomID)); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	log.Info().Str("room", *roomID).Msg("joined room")

	orch.Run(ctx, sig.Incoming())

	orch.Leave()
	log.Info().Msg("client exited")
}
