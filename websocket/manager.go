package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"social/logging"
	"social/metrics"
	"social/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// TokenParser resolves a bearer token to a user id.
type TokenParser interface {
	Parse(token string) (int64, error)
}

type delivery struct {
	recipients []int64
	frame      []byte
}

// Manager fans realtime events out to the connections of their recipients.
// A user may hold several connections; each gets its own copy.
type Manager struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	conn    *websocket.Conn
	userID  int64
	send    chan []byte
	manager *Manager
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run owns the client table until ctx is done, then closes every connection.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for _, set := range m.clients {
				for client := range set {
					close(client.send)
				}
			}
			m.clients = make(map[int64]map[*Client]struct{})
			m.mu.Unlock()
			metrics.WSConnections.Set(0)
			return

		case client := <-m.register:
			m.mu.Lock()
			set, ok := m.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				m.clients[client.userID] = set
			}
			set[client] = struct{}{}
			m.mu.Unlock()
			metrics.WSConnections.Inc()
			logging.Debug().Int64("user_id", client.userID).Msg("websocket client registered")

		case client := <-m.unregister:
			m.drop(client)

		case d := <-m.deliver:
			var slow []*Client
			m.mu.RLock()
			for _, id := range d.recipients {
				for client := range m.clients[id] {
					select {
					case client.send <- d.frame:
					default:
						slow = append(slow, client)
					}
				}
			}
			m.mu.RUnlock()
			for _, client := range slow {
				logging.Warn().Int64("user_id", client.userID).Msg("websocket client too slow, disconnecting")
				m.drop(client)
			}
		}
	}
}

func (m *Manager) drop(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(m.clients, client.userID)
	}
	close(client.send)
	metrics.WSConnections.Dec()
	logging.Debug().Int64("user_id", client.userID).Msg("websocket client unregistered")
}

// Notify queues ev for every connection of recipients. It never blocks; when
// the queue is full the event is dropped.
func (m *Manager) Notify(recipients []int64, ev models.Event) {
	if len(recipients) == 0 {
		return
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		logging.Error().Err(err).Str("type", ev.Type).Msg("failed to encode websocket event")
		return
	}
	select {
	case m.deliver <- delivery{recipients: recipients, frame: frame}:
	default:
		logging.Warn().Str("type", ev.Type).Int("recipients", len(recipients)).Msg("websocket queue full, event dropped")
	}
}

// Connected reports how many connections userID holds.
func (m *Manager) Connected(userID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID])
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades authenticated requests. The token comes from the token
// query parameter since browsers cannot set headers on a websocket dial.
func Handler(manager *Manager, tokens TokenParser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.Ctx(r.Context())

		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}
		userID, err := tokens.Parse(token)
		if err != nil {
			log.Debug().Err(err).Msg("websocket connection rejected")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, sendBuffer),
			manager: manager,
		}

		welcome, _ := json.Marshal(models.Event{
			Type: "connected",
			Payload: map[string]any{
				"user_id": userID,
				"time":    time.Now().Unix(),
			},
		})
		client.send <- welcome

		select {
		case manager.register <- client:
		case <-manager.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

type inbound struct {
	Type string `json:"type"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Int64("user_id", c.userID).Msg("websocket read error")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		// Clients only ever send application-level pings.
		if msg.Type == "ping" {
			c.manager.Notify([]int64{c.userID}, models.Event{Type: "pong", Payload: map[string]any{"time": time.Now().Unix()}})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
