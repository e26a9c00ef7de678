package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/avdeev/micbridge/internal/app"
	"github.com/avdeev/micbridge/internal/core"
	"github.com/avdeev/micbridge/internal/domain"
)

type fakeSink struct {
	mu     sync.Mutex
	frames []core.Frame
	err    error
}

func (s *fakeSink) Send(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := make(core.Frame, len(f))
	copy(cp, f)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *fakeSink) Target() string { return "fake:0" }
func (s *fakeSink) Close() error   { return nil }

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSink) all() []core.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *fakeSink) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func newTestServer(t *testing.T, sink core.FrameSink, ttl time.Duration) (*httptest.Server, *app.SessionStore, *app.StreamRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := app.NewSessionStore(ttl)
	streams := app.NewStreamRegistry()
	ctl := &Controller{
		Store:       store,
		Streams:     streams,
		Sink:        sink,
		ReadLimit:   1 << 20,
		IdleTimeout: 5 * time.Second,
	}

	r := gin.New()
	ctx := context.Background()
	r.GET("/api/ws/stream", func(c *gin.Context) {
		ctl.HandleStream(ctx, c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, streams
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/stream"
}

func dialWithToken(url, token string) (*websocket.Conn, *http.Response, error) {
	h := http.Header{}
	if token != "" {
		h.Set("Cookie", domain.CookieName+"="+token)
	}
	return websocket.DefaultDialer.Dial(url, h)
}

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestUpgradeRefusedWithoutToken(t *testing.T) {
	sink := &fakeSink{}
	srv, _, streams := newTestServer(t, sink, time.Hour)

	conn, resp, err := dialWithToken(wsURL(srv), "")
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake failure")
	}
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("err = %v, want bad handshake", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if sink.count() != 0 {
		t.Errorf("refused upgrade produced %d datagrams", sink.count())
	}
	if streams.Len() != 0 {
		t.Errorf("refused upgrade left %d live streams", streams.Len())
	}
}

func TestUpgradeRefusedUnknownToken(t *testing.T) {
	sink := &fakeSink{}
	srv, _, _ := newTestServer(t, sink, time.Hour)

	_, resp, err := dialWithToken(wsURL(srv), "never-issued")
	if err == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, status = %v, want refused 401", err, resp)
	}
	if sink.count() != 0 {
		t.Errorf("refused upgrade produced %d datagrams", sink.count())
	}
}

func TestUpgradeRefusedExpiredToken(t *testing.T) {
	sink := &fakeSink{}
	srv, store, _ := newTestServer(t, sink, time.Millisecond)

	sess := store.Issue()
	time.Sleep(10 * time.Millisecond)

	_, resp, err := dialWithToken(wsURL(srv), string(sess.Token))
	if err == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, status = %v, want refused 401", err, resp)
	}
	if sink.count() != 0 {
		t.Errorf("refused upgrade produced %d datagrams", sink.count())
	}
}

func TestRelayForwardsFramesInOrder(t *testing.T) {
	sink := &fakeSink{}
	srv, store, streams := newTestServer(t, sink, time.Hour)

	sess := store.Issue()
	conn, _, err := dialWithToken(wsURL(srv), string(sess.Token))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	waitFor(t, 2*time.Second, "stream registration", func() bool { return streams.Len() == 1 })

	const n = 20
	for i := 0; i < n; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xAA, byte(i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	waitFor(t, 2*time.Second, "frames at sink", func() bool { return sink.count() == n })
	for i, f := range sink.all() {
		if len(f) != 2 || f[0] != 0xAA || f[1] != byte(i) {
			t.Fatalf("frame %d = %v, out of order or corrupted", i, f)
		}
	}

	conn.Close()
	waitFor(t, 2*time.Second, "stream teardown", func() bool { return streams.Len() == 0 })
}

func TestConcurrentStreamsKeepPerStreamOrder(t *testing.T) {
	sink := &fakeSink{}
	srv, store, _ := newTestServer(t, sink, time.Hour)

	const conns = 4
	const perConn = 30

	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		sess := store.Issue()
		conn, _, err := dialWithToken(wsURL(srv), string(sess.Token))
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		defer conn.Close()

		wg.Add(1)
		go func(c *websocket.Conn, tag byte) {
			defer wg.Done()
			for seq := 0; seq < perConn; seq++ {
				if err := c.WriteMessage(websocket.BinaryMessage, []byte{tag, byte(seq)}); err != nil {
					t.Errorf("write tag %d seq %d: %v", tag, seq, err)
					return
				}
			}
		}(conn, byte(i))
	}
	wg.Wait()

	waitFor(t, 5*time.Second, "all frames at sink", func() bool { return sink.count() == conns*perConn })

	lastSeq := map[byte]int{}
	for _, f := range sink.all() {
		if len(f) != 2 {
			t.Fatalf("unexpected frame %v", f)
		}
		tag, seq := f[0], int(f[1])
		if prev, seen := lastSeq[tag]; seen && seq != prev+1 {
			t.Fatalf("stream %d: seq %d after %d", tag, seq, prev)
		}
		lastSeq[tag] = seq
	}
	for tag, last := range lastSeq {
		if last != perConn-1 {
			t.Errorf("stream %d ended at seq %d, want %d", tag, last, perConn-1)
		}
	}
}

func TestClosingOneStreamLeavesOthersDelivering(t *testing.T) {
	sink := &fakeSink{}
	srv, store, streams := newTestServer(t, sink, time.Hour)

	sessA := store.Issue()
	connA, _, err := dialWithToken(wsURL(srv), string(sessA.Token))
	if err != nil {
		t.Fatalf("dial a: %v", err)
	}
	sessB := store.Issue()
	connB, _, err := dialWithToken(wsURL(srv), string(sessB.Token))
	if err != nil {
		t.Fatalf("dial b: %v", err)
	}
	defer connB.Close()

	waitFor(t, 2*time.Second, "both streams live", func() bool { return streams.Len() == 2 })

	connA.Close()
	waitFor(t, 2*time.Second, "stream a gone", func() bool { return streams.Len() == 1 })

	for i := 0; i < 5; i++ {
		if err := connB.WriteMessage(websocket.BinaryMessage, []byte{0xBB, byte(i)}); err != nil {
			t.Fatalf("write after peer close: %v", err)
		}
	}
	waitFor(t, 2*time.Second, "frames from b", func() bool { return sink.count() == 5 })
}

func TestSinkFailureDoesNotKillStream(t *testing.T) {
	sink := &fakeSink{}
	srv, store, _ := newTestServer(t, sink, time.Hour)

	sess := store.Issue()
	conn, _, err := dialWithToken(wsURL(srv), string(sess.Token))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sink.setErr(errors.New("transient"))
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Dropped, not fatal: once the sink recovers, later frames flow.
	sink.setErr(nil)
	waitFor(t, 2*time.Second, "sink recovery", func() bool {
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x02})
		return sink.count() > 0
	})
}

func TestTextMessagesAreIgnored(t *testing.T) {
	sink := &fakeSink{}
	srv, store, _ := newTestServer(t, sink, time.Hour)

	sess := store.Issue()
	conn, _, err := dialWithToken(wsURL(srv), string(sess.Token))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x7F}); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	waitFor(t, 2*time.Second, "binary frame", func() bool { return sink.count() == 1 })
	if f := sink.all()[0]; len(f) != 1 || f[0] != 0x7F {
		t.Fatalf("forwarded frame = %v, want the binary one only", f)
	}
}
