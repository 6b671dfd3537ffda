package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cashier-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS layer in front of the upgrade.
		return true
	},
}

// PushMessage is the envelope every WebSocket subscriber receives.
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Data      interface{} `json:"data"`
}

// PendingUpdateData notifies subscribers of a pending-set change.
type PendingUpdateData struct {
	Action         string `json:"action"` // 'requested' | 'confirmed' | 'reversed'
	TxID           string `json:"tx_id"`
	Account        string `json:"account"`
	Amount         string `json:"amount"`
	PendingCount   int    `json:"pending_count"`
	ProcessedCount uint64 `json:"processed_count"`
}

type pushConnection struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// PendingPushService broadcasts pending-set changes to connected operator
// dashboards.
type PendingPushService struct {
	mu          sync.RWMutex
	connections map[string]*pushConnection
	logger      *logrus.Logger
}

// NewPendingPushService creates an empty push service.
func NewPendingPushService(logger *logrus.Logger) *PendingPushService {
	return &PendingPushService{
		connections: make(map[string]*pushConnection),
		logger:      logger,
	}
}

// HandleWebSocket upgrades the request and registers the subscriber.
func (s *PendingPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := &pushConnection{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.mu.Lock()
	s.connections[c.id] = c
	metrics.WebSocketConnections.Set(float64(len(s.connections)))
	s.mu.Unlock()

	s.logger.WithField("connection_id", c.id).Debug("WebSocket subscriber connected")

	go s.writePump(c)
	go s.readPump(c)
}

func (s *PendingPushService) writePump(c *pushConnection) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *PendingPushService) readPump(c *pushConnection) {
	defer s.unregister(c)
	c.conn.SetReadLimit(1024)
	for {
		// Subscribers only listen; reads just detect the close.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *PendingPushService) unregister(c *pushConnection) {
	s.mu.Lock()
	if _, ok := s.connections[c.id]; ok {
		delete(s.connections, c.id)
		close(c.send)
	}
	metrics.WebSocketConnections.Set(float64(len(s.connections)))
	s.mu.Unlock()
	s.logger.WithField("connection_id", c.id).Debug("WebSocket subscriber disconnected")
}

// BroadcastPendingUpdate pushes a pending-set change to every subscriber.
// Slow subscribers are dropped rather than blocking the operation path.
func (s *PendingPushService) BroadcastPendingUpdate(data PendingUpdateData) {
	msg := PushMessage{
		Type:      "pending_cash_out_update",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MessageID: uuid.New().String(),
		Data:      data,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal push message")
		return
	}

	s.mu.RLock()
	var stale []*pushConnection
	for _, c := range s.connections {
		select {
		case c.send <- payload:
		default:
			stale = append(stale, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range stale {
		s.logger.WithField("connection_id", c.id).Warn("Dropping slow WebSocket subscriber")
		s.unregister(c)
	}
}

// ConnectionCount returns the number of connected subscribers.
func (s *PendingPushService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}
