package core

// Frame is a raw binary payload (one encoded audio chunk). The relay never
// parses it; ownership passes to the sink for the duration of one Send.
type Frame []byte

// FrameSink is the outbound side of the relay. Send is fire-and-forget:
// a failed send is the caller's to log and drop, never to retry.
// Owned by main; Close releases the underlying socket.
type FrameSink interface {
	Send(Frame) error
	Target() string
	Close() error
}

// StreamID identifies one live relay connection.
type StreamID string

// StreamDTO is a read-only view of a live stream for APIs (no transport fields).
type StreamDTO struct {
	ID        StreamID `json:"id"`
	Remote    string   `json:"remote"`
	StartedAt int64    `json:"started_at"`
	Frames    uint64   `json:"frames"`
}
