package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	uuid "github.com/satori/go.uuid"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

// wsClient is one WebSocket connection. Outbound messages go through
// a buffered channel drained by writePump; a full channel drops the
// message rather than blocking the broadcaster.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	server *Server
	sendCh chan any
	done   chan struct{}
	mu     sync.Mutex
}

func (s *Server) newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:     uuid.NewV4().String(),
		conn:   conn,
		server: s,
		sendCh: make(chan any, wsSendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *wsClient) send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.server.logger.Debugf("dropping message to client %s (channel full)", c.id)
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

// readPump consumes inbound frames. The feed is push-only, so the
// content is discarded; reading is still required to process control
// frames and notice a closed connection.
func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Debugf("client %s read error: %v", c.id, err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Debugf("client %s write error: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade: %v", err)
		return
	}

	client := s.newWSClient(conn)
	s.wsClientMu.Lock()
	s.wsClients[client.id] = client
	s.wsClientMu.Unlock()
	s.logger.Debugf("client %s connected from %s", client.id, r.RemoteAddr)

	// Seed the feed so a fresh page shows a position immediately.
	client.send(positionEvent{
		Event:      "position",
		PositionMm: s.rail.Pos(),
		Time:       time.Now().UnixMilli(),
	})

	go client.writePump()
	client.readPump()
}

func (s *Server) removeClient(c *wsClient) {
	s.wsClientMu.Lock()
	defer s.wsClientMu.Unlock()
	delete(s.wsClients, c.id)
}
