package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/pkg/logger"
)

func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, userID, models.RoleCustomer)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHubDeliversToUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(logger.NewNop())
	go hub.Run(ctx)

	conn := dialHub(t, hub, "u1")
	require.Eventually(t, func() bool { return hub.GetConnectedClients() == 1 }, time.Second, 10*time.Millisecond)

	hub.SendToUser("someone-else", "booking_update", "ignored")
	hub.SendToUser("u1", "booking_update", map[string]string{"status": "DRIVER_ASSIGNED"})

	msg := readMessage(t, conn)
	assert.Equal(t, "booking_update", msg.Type)
	assert.Equal(t, map[string]interface{}{"status": "DRIVER_ASSIGNED"}, msg.Data)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	assert.Equal(t, "pong", readMessage(t, conn).Type)
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.NewNop())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	conn := dialHub(t, hub, "u1")
	require.Eventually(t, func() bool { return hub.GetConnectedClients() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-stopped
	assert.Zero(t, hub.GetConnectedClients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "got %v", err)

	// Sends after shutdown are dropped without blocking.
	hub.SendToUser("u1", "booking_update", nil)
}

func TestRedisNaming(t *testing.T) {
	assert.Equal(t, "driver:location:p-1", driverLocationKey("p-1"))
	assert.Equal(t, "booking:location:b-1", bookingLocationChannel("b-1"))

	assert.Equal(t, "booking.created", BookingEvent{Event: eventBookingCreated, Status: models.StatusPending}.RoutingKey())
	assert.Equal(t, "booking.in_progress", BookingEvent{Event: eventStatusChanged, Status: models.StatusInProgress}.RoutingKey())
}
