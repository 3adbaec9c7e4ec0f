package notification

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/gorilla/websocket"
)

const (
	MaxFeedClients        = 100 // Maximum concurrent alert feed clients
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
)

// FeedMessage is the envelope written to alert feed clients
type FeedMessage struct {
	Type string                     `json:"type"`
	Data *models.NotificationRecord `json:"data"`
	Time string                     `json:"time"`
}

type feedClient struct {
	conn    *websocket.Conn
	send    chan []byte
	symbols map[string]bool // empty means every symbol
	mu      sync.RWMutex
}

func (c *feedClient) wants(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols) == 0 || c.symbols[symbol]
}

// Feed streams finalized notification records to websocket clients
type Feed struct {
	clients    map[*feedClient]bool
	broadcast  chan *models.NotificationRecord
	register   chan *feedClient
	unregister chan *feedClient
	shutdown   chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewFeed creates a feed and starts its hub loop
func NewFeed() *Feed {
	f := &Feed{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan *models.NotificationRecord, 256),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go f.run()
	return f
}

// Publish queues a record for broadcast. It never blocks; when the queue is
// full the record is dropped from the feed (it is already persisted).
func (f *Feed) Publish(record *models.NotificationRecord) {
	select {
	case f.broadcast <- record:
	case <-f.shutdown:
	default:
		log.Printf("Alert feed queue full, dropping notification %d", record.ID)
	}
}

// ClientCount returns the number of connected clients
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Shutdown disconnects every client and stops the hub
func (f *Feed) Shutdown() {
	f.closeOnce.Do(func() {
		close(f.shutdown)

		f.mu.Lock()
		for client := range f.clients {
			close(client.send)
			delete(f.clients, client)
		}
		f.mu.Unlock()
		log.Println("Alert feed shut down")
	})
}

func (f *Feed) run() {
	for {
		select {
		case <-f.shutdown:
			return

		case client := <-f.register:
			f.mu.Lock()
			if len(f.clients) >= MaxFeedClients {
				f.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("Alert feed client rejected: max clients reached (%d)", MaxFeedClients)
				continue
			}
			f.clients[client] = true
			clientCount := len(f.clients)
			f.mu.Unlock()
			log.Printf("Alert feed client connected. Total clients: %d", clientCount)

		case client := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[client]; ok {
				delete(f.clients, client)
				close(client.send)
			}
			clientCount := len(f.clients)
			f.mu.Unlock()
			log.Printf("Alert feed client disconnected. Total clients: %d", clientCount)

		case record := <-f.broadcast:
			data, err := json.Marshal(FeedMessage{
				Type: "notification",
				Data: record,
				Time: time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				log.Printf("Error marshaling feed message: %v", err)
				continue
			}

			f.mu.Lock()
			for client := range f.clients {
				if !client.wants(record.Symbol) {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Slow client, drop it
					delete(f.clients, client)
					close(client.send)
				}
			}
			f.mu.Unlock()
		}
	}
}

// HandleWebSocket upgrades the request and attaches the connection to the feed
func (f *Feed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if f.ClientCount() >= MaxFeedClients {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &feedClient{
		conn:    conn,
		send:    make(chan []byte, 64),
		symbols: make(map[string]bool),
	}

	select {
	case f.register <- client:
	case <-f.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(f)
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles {"action":"subscribe"|"unsubscribe","symbols":[...]} commands
func (c *feedClient) readPump(f *Feed) {
	defer func() {
		select {
		case f.unregister <- c:
		case <-f.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		var cmd struct {
			Action  string   `json:"action"`
			Symbols []string `json:"symbols"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		c.mu.Lock()
		for _, symbol := range cmd.Symbols {
			symbol = strings.ToUpper(strings.TrimSpace(symbol))
			switch cmd.Action {
			case "subscribe":
				c.symbols[symbol] = true
			case "unsubscribe":
				delete(c.symbols, symbol)
			}
		}
		c.mu.Unlock()
	}
}
