package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wonny/riskdash/internal/session"
	"github.com/wonny/riskdash/pkg/logger"
)

// =============================================================================
// WebSocket Hub - 세션별 리스크 상태 push
// =============================================================================

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// 클라이언트별 송신 버퍼
	sendBuffer = 32
)

// SubscriberRecorder 구독자 수 관측 (선택)
type SubscriberRecorder interface {
	SetSubscribers(n int)
}

// Message WebSocket 메시지
type Message struct {
	Type    string      `json:"type"` // snapshot, pong, error
	Session string      `json:"session,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// clientMessage 클라이언트 → 서버
type clientMessage struct {
	Type string `json:"type"` // ping, refresh
}

type sessionMessage struct {
	session string
	data    []byte
}

// Hub maintains connected clients grouped by session
// ⭐ SSOT: 클라이언트 맵은 Run 고루틴만 수정
type Hub struct {
	clients    map[*Client]bool
	bySession  map[string]map[*Client]bool
	broadcast  chan sessionMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	registry *session.Registry
	recorder SubscriberRecorder
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	session string

	mu     sync.Mutex
	closed bool
}

// NewHub creates a new WebSocket hub bound to a session registry
func NewHub(registry *session.Registry, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		bySession:  make(map[string]map[*Client]bool),
		broadcast:  make(chan sessionMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		registry:   registry,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// WithRecorder 구독자 수 관측 설정
func (h *Hub) WithRecorder(r SubscriberRecorder) *Hub {
	h.recorder = r
	return h
}

// Run starts the hub loop and forwards registry updates until ctx is done
func (h *Hub) Run(ctx context.Context) {
	unsubscribe := h.registry.Subscribe(h.Publish)
	defer unsubscribe()
	defer close(h.done)

	h.log.Info("Starting WebSocket hub")

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			h.log.Info("WebSocket hub shutting down")
			return

		case client := <-h.register:
			h.clients[client] = true
			if h.bySession[client.session] == nil {
				h.bySession[client.session] = make(map[*Client]bool)
			}
			h.bySession[client.session][client] = true
			h.observe()
			h.log.WithFields(map[string]interface{}{
				"client":  client.id,
				"session": client.session,
			}).Debug("WebSocket client registered")

		case client := <-h.unregister:
			if h.clients[client] {
				h.remove(client)
				h.log.WithField("client", client.id).Debug("WebSocket client unregistered")
			}

		case msg := <-h.broadcast:
			for client := range h.bySession[msg.session] {
				select {
				case client.send <- msg.data:
				default:
					// 느린 클라이언트는 끊음
					h.remove(client)
				}
			}
		}
	}
}

// Publish 세션 상태 변경을 구독 클라이언트에게 전달 (비차단)
func (h *Hub) Publish(update session.Update) {
	data, err := json.Marshal(Message{Type: "snapshot", Session: update.SessionID, Data: update.Snapshot})
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal snapshot message")
		return
	}

	select {
	case h.broadcast <- sessionMessage{session: update.SessionID, data: data}:
	default:
		h.log.WithField("session", update.SessionID).Warn("WebSocket broadcast queue full, update dropped")
	}
}

// remove 클라이언트 제거 (Run 고루틴 전용)
func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	if subs, ok := h.bySession[client.session]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.bySession, client.session)
		}
	}
	client.closeSend()
	h.observe()
}

func (h *Hub) observe() {
	if h.recorder != nil {
		h.recorder.SetSubscribers(len(h.clients))
	}
}

// HandleWebSocket upgrades the connection and subscribes it to ?session=
// GET /ws/risk?session=<id>
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if err := session.ValidateID(sessionID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		id:      uuid.New().String(),
		session: sessionID,
	}

	// 현재 상태가 있으면 먼저 전송
	client.sendSnapshot(r.Context())

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		c.handleMessage(data)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 메시지마다 한 프레임 (JSON 병합 없음)
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendMessage(Message{Type: "error", Error: "invalid message format"})
		return
	}

	switch msg.Type {
	case "ping":
		c.sendMessage(Message{Type: "pong"})
	case "refresh":
		c.sendSnapshot(context.Background())
	default:
		c.sendMessage(Message{Type: "error", Error: "unknown message type"})
	}
}

func (c *Client) sendSnapshot(ctx context.Context) {
	snap, found := c.hub.registry.Lookup(ctx, c.session)
	if !found {
		return
	}
	c.sendMessage(Message{Type: "snapshot", Session: c.session, Data: snap})
}

// sendMessage 송신 큐에 적재, 가득 차면 버림 (채널 close는 hub만)
func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.WithError(err).Error("Failed to marshal message")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.hub.log.WithField("client", c.id).Warn("WebSocket send buffer full, message dropped")
	}
}

// closeSend 송신 채널 종료 (hub 전용, 한 번만)
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
