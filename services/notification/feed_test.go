package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialFeed(t *testing.T, f *Feed) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(f.HandleWebSocket))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFeedMessage(t *testing.T, conn *websocket.Conn) FeedMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg FeedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestFeed_BroadcastsPublishedRecords(t *testing.T) {
	f := NewFeed()
	defer f.Shutdown()

	conn := dialFeed(t, f)
	require.Eventually(t, func() bool { return f.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	f.Publish(&models.NotificationRecord{ID: 7, Symbol: "AAPL", Status: models.StatusSent})

	msg := readFeedMessage(t, conn)
	assert.Equal(t, "notification", msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, uint(7), msg.Data.ID)
	assert.Equal(t, models.StatusSent, msg.Data.Status)
}

func TestFeed_SymbolSubscription(t *testing.T) {
	f := NewFeed()
	defer f.Shutdown()

	conn := dialFeed(t, f)
	require.Eventually(t, func() bool { return f.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "symbols": []string{"msft"}}))
	require.Eventually(t, func() bool {
		f.mu.RLock()
		defer f.mu.RUnlock()
		for client := range f.clients {
			return client.wants("MSFT") && !client.wants("AAPL")
		}
		return false
	}, time.Second, 10*time.Millisecond)

	f.Publish(&models.NotificationRecord{ID: 1, Symbol: "AAPL"})
	f.Publish(&models.NotificationRecord{ID: 2, Symbol: "MSFT"})

	msg := readFeedMessage(t, conn)
	assert.Equal(t, uint(2), msg.Data.ID)
}

func TestFeed_ShutdownDisconnectsClients(t *testing.T) {
	f := NewFeed()
	conn := dialFeed(t, f)
	require.Eventually(t, func() bool { return f.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	f.Shutdown()
	assert.Equal(t, 0, f.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Publishing after shutdown must not block
	f.Publish(&models.NotificationRecord{ID: 3})
}
