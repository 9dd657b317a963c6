package notification

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/logging"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	streamBuffer   = 16
	maxConnPerUser = 4
)

// Stream pushes freshly created notifications to connected websocket
// clients. Each user may hold a few concurrent connections (multiple
// tabs or devices); a slow client is dropped rather than allowed to
// back-pressure the consumer.
type Stream struct {
	mu       sync.RWMutex
	conns    map[string][]*streamConn
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

type streamConn struct {
	ws       *websocket.Conn
	send     chan Notification
	done     chan struct{}
	stopOnce sync.Once
}

func (c *streamConn) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// NewStream returns an empty stream hub.
func NewStream(logger *logging.Logger) *Stream {
	return &Stream{
		conns: make(map[string][]*streamConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Broadcast delivers n to every live connection of its user. Delivery
// is best effort; a full send buffer closes the connection.
func (s *Stream) Broadcast(n Notification) {
	s.mu.RLock()
	conns := s.conns[n.UserID]
	s.mu.RUnlock()

	for _, c := range conns {
		select {
		case c.send <- n:
		default:
			c.stop()
		}
	}
}

// Handler upgrades the request and streams notifications for userID
// until the client disconnects.
func (s *Stream) Handler(c *gin.Context, userID string) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &streamConn{
		ws:   ws,
		send: make(chan Notification, streamBuffer),
		done: make(chan struct{}),
	}
	s.attach(userID, conn)
	defer s.detach(userID, conn)

	go s.readLoop(conn)
	s.writeLoop(conn)
}

func (s *Stream) attach(userID string, conn *streamConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.conns[userID]
	if len(list) >= maxConnPerUser {
		oldest := list[0]
		list = list[1:]
		oldest.stop()
	}
	s.conns[userID] = append(list, conn)
}

func (s *Stream) detach(userID string, conn *streamConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.conns[userID]
	for i, c := range list {
		if c == conn {
			s.conns[userID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	_ = conn.ws.Close()
}

// readLoop drains client frames so pong handling and close detection
// work; clients are not expected to send anything meaningful.
func (s *Stream) readLoop(conn *streamConn) {
	defer conn.stop()
	conn.ws.SetReadLimit(512)
	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) writeLoop(conn *streamConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case n := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.done:
			_ = conn.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		}
	}
}
