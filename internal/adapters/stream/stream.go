// Package stream accepts the WebSocket upgrade at the server root and relays
// inbound binary audio frames to the datagram sink.
package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/micbridge/internal/app"
	"github.com/avdeev/micbridge/internal/core"
	"github.com/avdeev/micbridge/internal/domain"
)

// StreamConn is an indirection over *websocket.Conn to ease testing.
type StreamConn interface {
	ReadMessage() (int, []byte, error)
	SetReadLimit(int64)
	SetReadDeadline(t time.Time) error
	Close() error
}

type Controller struct {
	Store   *app.SessionStore
	Streams *app.StreamRegistry
	Sink    core.FrameSink

	ReadLimit   int64
	IdleTimeout time.Duration
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleStream re-checks the session before completing the upgrade. The
// client's network identity can change between page load and this point, so
// the page load's decision is not trusted here. Refusal happens at the
// handshake: the transport is closed without ever completing the upgrade,
// and no relay resources exist for a refused peer.
func (ctl *Controller) HandleStream(ctx context.Context, c *gin.Context) {
	remote := c.RemoteIP()

	token, err := c.Cookie(domain.CookieName)
	if err != nil || token == "" {
		ctl.refuse(c, remote, "no session token")
		return
	}
	sess, ok := ctl.Store.Lookup(domain.SessionToken(token))
	if !ok || !sess.Authorized {
		ctl.refuse(c, remote, "session absent or unauthorized")
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrader has already written the error response.
		log.Error().Err(err).Str("module", "stream").Str("remote", remote).Msg("upgrade failed")
		return
	}

	id := core.StreamID(uuid.NewString())
	ctx, cancel := context.WithCancel(ctx)
	ctl.Streams.Bind(id, remote, cancel)
	log.Info().Str("module", "stream").Str("stream", string(id)).Str("remote", remote).Msg("stream open")

	// Closing the conn is what unblocks a pending ReadMessage.
	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()
	go ctl.readPump(ctx, cancel, id, ws)
}

func (ctl *Controller) refuse(c *gin.Context, remote, reason string) {
	log.Warn().Str("module", "stream").Str("remote", remote).Str("reason", reason).Msg("upgrade refused")
	c.Header("Connection", "close")
	c.AbortWithStatus(http.StatusUnauthorized)
}
