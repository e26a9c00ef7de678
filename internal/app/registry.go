package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avdeev/micbridge/internal/core"
)

type streamEntry struct {
	Remote    string
	StartedAt time.Time
	Frames    atomic.Uint64
	Cancel    context.CancelFunc
}

// StreamRegistry tracks live relay connections for the admin surface and
// for shutdown. A stream exists here only between a successful upgrade and
// channel closure; nothing persists across connections.
type StreamRegistry struct {
	mu      sync.RWMutex
	streams map[core.StreamID]*streamEntry
}

func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: make(map[core.StreamID]*streamEntry)}
}

func (r *StreamRegistry) Bind(id core.StreamID, remote string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.streams[id] = &streamEntry{
		Remote:    remote,
		StartedAt: time.Now(),
		Cancel:    cancel,
	}
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("stream", string(id)).Str("remote", remote).Msg("bound stream")
}

func (r *StreamRegistry) Unbind(id core.StreamID) {
	r.mu.Lock()
	delete(r.streams, id)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("stream", string(id)).Msg("unbound stream")
}

// CountFrame bumps the forwarded-frame counter for one stream.
func (r *StreamRegistry) CountFrame(id core.StreamID) {
	r.mu.RLock()
	e, ok := r.streams[id]
	r.mu.RUnlock()
	if ok {
		e.Frames.Add(1)
	}
}

func (r *StreamRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

func (r *StreamRegistry) List() []core.StreamDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.StreamDTO, 0, len(r.streams))
	for id, e := range r.streams {
		out = append(out, core.StreamDTO{
			ID:        id,
			Remote:    e.Remote,
			StartedAt: e.StartedAt.Unix(),
			Frames:    e.Frames.Load(),
		})
	}
	return out
}

// CancelAll tears down every live stream; used on shutdown.
func (r *StreamRegistry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, e := range r.streams {
		if e.Cancel != nil {
			e.Cancel()
		}
		log.Info().Str("module", "app.registry").Str("stream", string(id)).Msg("canceled stream")
	}
}
