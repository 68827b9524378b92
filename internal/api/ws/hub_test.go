package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facegate/pkg/dto"
)

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub()
	go h.Run(ctx)
	return h
}

func dialHub(t *testing.T, h *Hub, query string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/ws", h.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt dto.WSEvent
	require.NoError(t, json.Unmarshal(msg, &evt))
	return evt
}

func TestHub_BroadcastEvent(t *testing.T) {
	h := startHub(t)

	conn := dialHub(t, h, "")
	require.Eventually(t, func() bool { return h.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.BroadcastEvent(&dto.WSEvent{Type: "enrolled", Data: dto.FaceEventResponse{ExternalID: "ext"}})

	evt := readEvent(t, conn)
	assert.Equal(t, "enrolled", evt.Type)
	assert.Equal(t, "ext", evt.Data.ExternalID)
}

func TestHub_FiltersByType(t *testing.T) {
	h := startHub(t)

	conn := dialHub(t, h, "?type=enrolled,cleared")
	require.Eventually(t, func() bool { return h.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.BroadcastEvent(&dto.WSEvent{Type: "checked"})
	h.BroadcastEvent(&dto.WSEvent{Type: "enrolled", Data: dto.FaceEventResponse{ExternalID: "second"}})
	h.BroadcastEvent(&dto.WSEvent{Type: "cleared"})

	evt := readEvent(t, conn)
	assert.Equal(t, "enrolled", evt.Type)
	assert.Equal(t, "second", evt.Data.ExternalID)
	assert.Equal(t, "cleared", readEvent(t, conn).Type)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	go h.Run(ctx)

	conn := dialHub(t, h, "")
	require.Eventually(t, func() bool { return h.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, h.clientCount())
}

func TestParseTypes(t *testing.T) {
	assert.Empty(t, parseTypes(""))
	assert.Len(t, parseTypes("enrolled, cleared,,"), 2)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h := startHub(t)

	conn := dialHub(t, h, "")
	require.Eventually(t, func() bool { return h.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.clientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
