// Package server is the websocket gateway: it owns client connections and
// feeds their messages, one at a time, to the room registry.
package server

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tecu23/chess-relay/internal/color"
	"github.com/tecu23/chess-relay/pkg/events"
	"github.com/tecu23/chess-relay/pkg/game"
	"github.com/tecu23/chess-relay/pkg/messages"
)

// InboundHubMessage are the messages that the hub receives
type InboundHubMessage struct {
	Conn    *Connection             // who sent it
	Message messages.InboundMessage // decoded envelope

	// closed marks the connection's last entry; nothing follows it.
	closed bool
}

// Hub keeps track of all active connections and is responsible for
// registering and unregistering them. Frames and close notices share the
// inbound queue and are handled on the Run goroutine only, so a connection's
// close is never seen before the frames it sent earlier.
type Hub struct {
	mu          sync.RWMutex         // Mutex to protect direct access to the connections map.
	connections map[*Connection]bool // Registered connections

	register chan *Connection       // Incoming registration
	inbound  chan InboundHubMessage // Frames and close notices, in receipt order

	done     chan struct{}
	shutdown sync.Once

	registry  *game.Registry
	publisher *events.Publisher
	logger    *zap.Logger
}

// NewHub creates a new hub
func NewHub(registry *game.Registry, publisher *events.Publisher, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		inbound:     make(chan InboundHubMessage, 256),
		done:        make(chan struct{}),
		registry:    registry,
		publisher:   publisher,
		logger:      logger,
	}
}

// Run is the main execution of the hub
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.registerConnection(conn)

		case msg := <-h.inbound:
			if msg.closed {
				h.unregisterConnection(msg.Conn)
				continue
			}
			h.handleInbound(msg)

		case <-h.done:
			return
		}
	}
}

// Accept wraps an upgraded socket, registers it and starts its pumps
func (h *Hub) Accept(ws *websocket.Conn) *Connection {
	conn := NewConnection(ws, h, h.publisher, h.logger)
	h.Register(conn)

	go conn.WritePump()
	go conn.ReadPump()

	return conn
}

func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.close()
	}
}

// Unregister queues conn's removal behind the frames it already dispatched
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.inbound <- InboundHubMessage{Conn: conn, closed: true}:
	case <-h.done:
	}
}

// Dispatch queues a message for the Run loop. It returns false once the hub
// has shut down.
func (h *Hub) Dispatch(conn *Connection, msg messages.InboundMessage) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.inbound <- InboundHubMessage{Conn: conn, Message: msg}:
		return true
	case <-h.done:
		return false
	}
}

// Len returns the number of registered connections
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Shutdown stops the Run loop and closes every connection
func (h *Hub) Shutdown() {
	h.shutdown.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for conn := range h.connections {
			conn.close()
			delete(h.connections, conn)
		}

		h.logger.Info("hub shut down")
	})
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	h.connections[conn] = true
	total := len(h.connections)
	h.mu.Unlock()

	h.logger.Info("New connection registered",
		zap.String("connection_id", conn.ID()),
		zap.Int("connections", total),
	)
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	_, ok := h.connections[conn]
	if ok {
		delete(h.connections, conn)
		conn.close()
	}
	total := len(h.connections)
	h.mu.Unlock()

	if !ok {
		return
	}

	// Any connection loss ends the rooms it sat in.
	h.registry.Disconnect(conn)

	h.logger.Info("Connection unregistered",
		zap.String("connection_id", conn.ID()),
		zap.Int("connections", total),
	)
}

// handleInbound routes a decoded message to the registry or to the room's
// session. Rejections are logged and otherwise invisible to the client.
func (h *Hub) handleInbound(msg InboundHubMessage) {
	in := msg.Message
	logger := h.logger.With(
		zap.String("connection_id", msg.Conn.ID()),
		zap.String("type", in.Type),
		zap.String("room_id", in.RoomID),
	)

	if in.Type == messages.TypeJoin {
		if _, err := h.registry.Join(in.RoomID, msg.Conn); err != nil {
			logger.Debug("join ignored", zap.Error(err))
		}
		return
	}

	session, ok := h.registry.Route(in.RoomID)
	if !ok {
		logger.Debug("unknown room, message dropped")
		return
	}

	var err error
	switch in.Type {
	case messages.TypeMove:
		err = session.Move(msg.Conn, in.Move())

	case messages.TypeEnPassant:
		var side color.Color
		side, err = in.PointColor()
		if err == nil {
			err = session.EnPassant(msg.Conn, side, in.Point)
		}

	case messages.TypeDraw:
		err = session.DeclareDraw(msg.Conn, in.Reason)

	case messages.TypeEnd:
		err = session.DeclareEnd(msg.Conn, color.Color(in.Winner), in.Reason)

	case messages.TypeChat:
		err = session.Chat(msg.Conn, color.Color(in.Color), in.Message)

	default:
		logger.Debug("Unknown message type")
		return
	}

	if err != nil {
		logger.Debug("message dropped", zap.Error(err))
	}
}
