package backend

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatloom/loom/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Socket is a realtime event stream connection for one channel.
// Events are delivered to the handler one at a time, in arrival order.
type Socket struct {
	conn    *websocket.Conn
	handler func(types.Event)
	logger  *log.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// DialSocket opens the realtime connection and starts delivering events to
// handler. The handler runs on the socket's read goroutine, so one event is
// fully processed before the next is decoded.
func DialSocket(ctx context.Context, wsURL, token string, handler func(types.Event), logger *log.Logger) (*Socket, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	s := &Socket{
		conn:    conn,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go s.readPump()
	go s.pingPump()
	return s, nil
}

// Close tears down the connection. Safe to call more than once.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed when the socket has shut down for any reason.
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

func (s *Socket) readPump() {
	defer s.Close()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logf("socket read: %v", err)
			}
			return
		}
		var ev types.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logf("socket decode: %v", err)
			continue
		}
		if ev.Type == "" {
			continue
		}
		s.handler(ev)
	}
}

func (s *Socket) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Socket) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
