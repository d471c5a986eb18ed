package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/core"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	ErrSignalerClosed = errors.New("signaler closed")
	ErrSignalBacklog  = errors.New("signal queue full")
)

// Signaler manages the websocket connection to the relay. Envelopes go
// out through a buffered queue; inbound ones surface on Incoming for the
// orchestrator to consume.
type Signaler struct {
	serverURL string
	conn      *websocket.Conn
	incoming  chan core.Envelope
	outgoing  chan core.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func NewSignaler(serverURL string) *Signaler {
	return &Signaler{
		serverURL: serverURL,
		incoming:  make(chan core.Envelope, 32),
		outgoing:  make(chan core.Envelope, 32),
		done:      make(chan struct{}),
	}
}

func (s *Signaler) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	s.conn = conn

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go s.readPump()
	go s.writePump()
	return nil
}

// Send queues an envelope for delivery. Non-blocking once the queue is
// full; signaling frames are small and a full queue means the relay
// connection is already dead.
func (s *Signaler) Send(env core.Envelope) error {
	select {
	case <-s.done:
		return ErrSignalerClosed
	default:
	}
	select {
	case s.outgoing <- env:
		return nil
	default:
		return ErrSignalBacklog
	}
}

// Incoming is closed when the connection dies.
func (s *Signaler) Incoming() <-chan core.Envelope {
	return s.incoming
}

func (s *Signaler) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Signaler) readPump() {
	defer func() {
		_ = s.conn.Close()
		close(s.incoming)
	}()
	for {
		var env core.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			log.Debug().Err(err).Str("module", "client.signal").Msg("read error")
			return
		}
		select {
		case s.incoming <- env:
		case <-s.done:
			// Nobody is consuming anymore; do not wedge the pump.
			return
		}
	}
}

func (s *Signaler) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case env := <-s.outgoing:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
