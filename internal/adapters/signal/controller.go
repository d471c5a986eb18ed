// Package signal exposes the relay over a persistent websocket per client.
package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/AhmedLyanov/VizorLite/internal/app"
	"github.com/AhmedLyanov/VizorLite/internal/config"
	"github.com/AhmedLyanov/VizorLite/internal/core"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Relay    *app.Relay
	Registry *app.Registry

	readLimit  int64
	pingPeriod time.Duration
	writeWait  time.Duration
	sendBuffer int
}

func NewController(relay *app.Relay, registry *app.Registry, cfg *config.Config) *Controller {
	return &Controller{
		Relay:      relay,
		Registry:   registry,
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
		writeWait:  cfg.WriteWait,
		sendBuffer: cfg.SendBuffer,
	}
}

// HandleSignal upgrades the request, assigns the connection its identity
// and runs the read/write pumps until the transport dies.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	id := core.ConnID(uuid.NewString())
	conn := newWSConn(ws, ctl.sendBuffer)
	ws.SetReadLimit(ctl.readLimit)

	ctl.Registry.Bind(id, conn)
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("new signaling connection")

	// Handshake: tell the client which memberId it is on the wire.
	welcome, err := core.Envelope{Kind: core.KindWelcome, MemberID: string(id)}.Encode()
	if err == nil {
		_ = conn.TrySend(welcome)
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		ctl.readPump(ctx, id, conn)
		cancel()
	}()
}
