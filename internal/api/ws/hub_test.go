package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phylony/mar-library/pkg/dto"
)

func startHubServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt dto.WSEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestHubBroadcast(t *testing.T) {
	hub, srv := startHubServer(t)
	conn := dialWS(t, srv, "")

	// Give the hub loop time to register the client.
	time.Sleep(50 * time.Millisecond)

	hub.BroadcastEvent(&dto.WSEvent{Type: "surface_update", SurfaceID: 3, Status: "tracking", Matches: 12})

	evt := readEvent(t, conn)
	assert.Equal(t, "surface_update", evt.Type)
	assert.Equal(t, 3, evt.SurfaceID)
	assert.Equal(t, "tracking", evt.Status)
	assert.Equal(t, 12, evt.Matches)
}

func TestHubSurfaceFilter(t *testing.T) {
	hub, srv := startHubServer(t)
	conn := dialWS(t, srv, "?surface=1")

	time.Sleep(50 * time.Millisecond)

	// An update for a different surface is filtered out; the matching
	// one arrives.
	hub.BroadcastEvent(&dto.WSEvent{Type: "surface_update", SurfaceID: 0, Status: "tracking"})
	hub.BroadcastEvent(&dto.WSEvent{Type: "surface_update", SurfaceID: 1, Status: "lost"})

	evt := readEvent(t, conn)
	assert.Equal(t, 1, evt.SurfaceID)
	assert.Equal(t, "lost", evt.Status)
}

func TestHubMultipleClients(t *testing.T) {
	hub, srv := startHubServer(t)
	c1 := dialWS(t, srv, "")
	c2 := dialWS(t, srv, "")

	time.Sleep(50 * time.Millisecond)

	hub.BroadcastEvent(&dto.WSEvent{Type: "surface_created", SurfaceID: 5, Status: "created"})

	for _, conn := range []*websocket.Conn{c1, c2} {
		evt := readEvent(t, conn)
		assert.Equal(t, "surface_created", evt.Type)
		assert.Equal(t, 5, evt.SurfaceID)
	}
}

func TestHubDropsSlowClientOnce(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// A client that never drains its send buffer.
	client := &Client{send: make(chan []byte, 1), surface: -1}
	hub.register <- client
	time.Sleep(20 * time.Millisecond)

	// First event fills the buffer; the second overflows it and makes
	// the hub drop the client, closing its channel.
	hub.BroadcastEvent(&dto.WSEvent{Type: "surface_update", SurfaceID: 0})
	hub.BroadcastEvent(&dto.WSEvent{Type: "surface_update", SurfaceID: 1})
	time.Sleep(50 * time.Millisecond)

	// An unregister arriving after the drop must not close the channel
	// a second time.
	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)

	_, ok := <-client.send
	assert.True(t, ok, "buffered event still readable")
	_, ok = <-client.send
	assert.False(t, ok, "channel closed exactly once")
}

func TestHandleWSRejectsPlainHTTP(t *testing.T) {
	_, srv := startHubServer(t)
	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
