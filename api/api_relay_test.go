package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tj/assert"
)

func newRelayServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/:channel", NewRelayAPI().Join)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialRelay(t *testing.T, srv *httptest.Server, channel string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + channel
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRelayForwardsBothWays(t *testing.T) {
	srv := newRelayServer(t)
	a := dialRelay(t, srv, "channel-1")
	b := dialRelay(t, srv, "channel-1")

	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"from":"a"}`)); err != nil {
		t.Fatal(err)
	}
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := b.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, `{"from":"a"}`, string(data))

	if err := b.WriteMessage(websocket.TextMessage, []byte(`{"from":"b"}`)); err != nil {
		t.Fatal(err)
	}
	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = a.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, `{"from":"b"}`, string(data))
}

func TestRelayQueuesFramesBeforePartnerJoins(t *testing.T) {
	srv := newRelayServer(t)
	a := dialRelay(t, srv, "channel-1")

	if err := a.WriteMessage(websocket.TextMessage, []byte("early-1")); err != nil {
		t.Fatal(err)
	}
	if err := a.WriteMessage(websocket.TextMessage, []byte("early-2")); err != nil {
		t.Fatal(err)
	}
	// give the relay a moment to read the frames into the pending queue
	time.Sleep(100 * time.Millisecond)

	b := dialRelay(t, srv, "channel-1")
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := b.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "early-1", string(data))
	_, data, err = b.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "early-2", string(data))
}

func TestRelayChannelsAreIsolated(t *testing.T) {
	srv := newRelayServer(t)
	a := dialRelay(t, srv, "channel-1")
	_ = dialRelay(t, srv, "channel-1")
	other := dialRelay(t, srv, "channel-2")

	if err := a.WriteMessage(websocket.TextMessage, []byte("scoped")); err != nil {
		t.Fatal(err)
	}
	other.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestRelayRejectsThirdPeer(t *testing.T) {
	srv := newRelayServer(t)
	_ = dialRelay(t, srv, "channel-1")
	_ = dialRelay(t, srv, "channel-1")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/channel-1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	}
}
