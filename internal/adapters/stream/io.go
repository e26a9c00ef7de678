package stream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/micbridge/internal/core"
)

// readPump forwards frames until the peer closes, the transport errors, or
// the idle deadline passes. Each binary message becomes exactly one outbound
// datagram, in arrival order; the frame is never retained past the Send.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, id core.StreamID, conn StreamConn) {
	defer func() {
		cancel()
		_ = conn.Close()
		ctl.Streams.Unbind(id)
		log.Info().Str("module", "stream").Str("stream", string(id)).Msg("stream closed")
	}()

	if ctl.ReadLimit > 0 {
		conn.SetReadLimit(ctl.ReadLimit)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ctl.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(ctl.IdleTimeout)); err != nil {
				return
			}
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "stream").Str("stream", string(id)).Msg("read ended")
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if err := ctl.Sink.Send(core.Frame(data)); err != nil {
			// Drop over delay: stale audio is worthless, never retry.
			log.Warn().Err(err).Str("module", "stream").Str("stream", string(id)).Msg("sink send failed, frame dropped")
			continue
		}
		ctl.Streams.CountFrame(id)
	}
}
