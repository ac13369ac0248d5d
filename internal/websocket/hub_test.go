package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pangandash/pkg/contracts/domain"
)

type stubConn struct {
	mu     sync.Mutex
	closed bool
}

func (s *stubConn) WriteMessage(int, []byte) error { return nil }
func (s *stubConn) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("not readable")
}
func (s *stubConn) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
func (s *stubConn) SetReadDeadline(time.Time) error { return nil }
func (s *stubConn) SetWriteDeadline(time.Time) error { return nil }
func (s *stubConn) SetReadLimit(int64) {}
func (s *stubConn) SetPongHandler(func(string) error) {}
func (s *stubConn) RemoteAddr() string { return "127.0.0.1:9999" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(testLogger(), nil)
	h.Start()
	t.Cleanup(h.Stop)
	return h
}

func registerClient(t *testing.T, h *Hub, opts ClientOptions) *Client {
	t.Helper()
	before := h.SessionClientCount(opts.SessionID)
	c := NewClient(h, &stubConn{}, opts, testLogger())
	h.Register(c)
	require.Eventually(t, func() bool { return h.SessionClientCount(opts.SessionID) == before+1 }, time.Second, 5*time.Millisecond)
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestHubGreetsAndSendsInitialSummary(t *testing.T) {
	h := startHub(t)
	summary := domain.Summary{SessionID: "s1", Cards: []domain.MetricCard{{Key: "total_households", Value: domain.NoDataLabel}}}

	c := registerClient(t, h, ClientOptions{SessionID: "s1", Initial: summary})

	greeting := receive(t, c)
	assert.Equal(t, TypeConnection, greeting.Type)
	assert.Equal(t, "s1", greeting.SessionID)

	initial := receive(t, c)
	assert.Equal(t, TypeSummary, initial.Type)
	assert.Equal(t, 1, h.ClientCount())
}

func TestHubPublishIsScopedToSession(t *testing.T) {
	h := startHub(t)
	a := registerClient(t, h, ClientOptions{SessionID: "a"})
	b := registerClient(t, h, ClientOptions{SessionID: "b"})
	receive(t, a)
	receive(t, b)

	h.PublishSummary(context.Background(), domain.Summary{SessionID: "a"})

	msg := receive(t, a)
	assert.Equal(t, TypeSummary, msg.Type)
	assert.Equal(t, "a", msg.SessionID)

	select {
	case raw := <-b.send:
		t.Fatalf("session b received %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublishTableLoaded(t *testing.T) {
	h := startHub(t)
	c := registerClient(t, h, ClientOptions{SessionID: "s"})
	receive(t, c)

	h.PublishTableLoaded(context.Background(), "s", TableLoaded{Kind: domain.KindHousehold, Source: "rt.csv", Rows: 3})

	msg := receive(t, c)
	assert.Equal(t, TypeTableLoaded, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "rumah-tangga", data["kind"])
	assert.EqualValues(t, 3, data["rows"])
}

func TestHubCloseSession(t *testing.T) {
	h := startHub(t)
	c := registerClient(t, h, ClientOptions{SessionID: "gone"})
	other := registerClient(t, h, ClientOptions{SessionID: "stay"})
	receive(t, c)

	h.CloseSession("gone")

	assert.Equal(t, TypeSessionClosed, receive(t, c).Type)
	require.Eventually(t, func() bool { return h.SessionClientCount("gone") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-c.send
	assert.False(t, open)
	assert.Equal(t, 1, h.SessionClientCount("stay"))
	_ = other
}

func TestHubUnregisterTwiceIsSafe(t *testing.T) {
	h := startHub(t)
	c := registerClient(t, h, ClientOptions{SessionID: "s"})

	h.Unregister(c)
	h.Unregister(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	h := startHub(t)
	_ = registerClient(t, h, ClientOptions{SessionID: "slow"})

	for i := 0; i < sendBuffer+5; i++ {
		h.Publish(context.Background(), "slow", TypeSummary, i)
	}

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, h.GetHubMetrics()["dropped_clients"])
}

func TestHubStopIsIdempotent(t *testing.T) {
	h := NewHub(testLogger(), nil)
	h.Start()
	c := NewClient(h, &stubConn{}, ClientOptions{SessionID: "s"}, testLogger())
	h.Register(c)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
	assert.Equal(t, 0, h.ClientCount())

	// publishing after stop must not block
	done := make(chan struct{})
	go func() {
		h.Publish(context.Background(), "s", TypeSummary, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after Stop")
	}
}

func TestServeWSEndToEnd(t *testing.T) {
	h := startHub(t)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ServeWS(h, conn, ClientOptions{SessionID: r.URL.Query().Get("session"), PingPeriod: time.Second, PongWait: 2 * time.Second}, testLogger())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var greeting Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, TypeConnection, greeting.Type)
	assert.Equal(t, "live", greeting.SessionID)

	h.PublishSummary(context.Background(), domain.Summary{SessionID: "live"})
	var update Message
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, TypeSummary, update.Type)

	conn.Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
