// Package udp implements the shared outbound datagram socket toward the
// embedded receiver.
package udp

import (
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/avdeev/micbridge/internal/core"
)

// Sink is the process-wide connected UDP socket. Every relay connection
// shares it; concurrent sends ride on the kernel socket, no extra locking.
// Payloads go out as-is, one frame per datagram, no added header.
type Sink struct {
	conn   *net.UDPConn
	target string
}

func Dial(host string, port int) (*Sink, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("resolve receiver address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial receiver: %w", err)
	}
	log.Info().Str("module", "adapters.udp").Str("target", addr.String()).Msg("sink ready")
	return &Sink{conn: conn, target: addr.String()}, nil
}

// Send forwards one frame. Fire-and-forget: the transport gives no delivery
// guarantee and retrying stale audio has no value.
func (s *Sink) Send(f core.Frame) error {
	_, err := s.conn.Write(f)
	return err
}

func (s *Sink) Target() string { return s.target }

func (s *Sink) Close() error { return s.conn.Close() }

var _ core.FrameSink = (*Sink)(nil)
