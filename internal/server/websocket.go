package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tickforge/tickforge/internal/core/ecs"
	"github.com/tickforge/tickforge/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// session is one WebSocket connection. playerID stays empty until a join is
// accepted. Writes are serialized through writeMu because gorilla permits
// only one concurrent writer.
type session struct {
	id   string
	conn *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closeOnce sync.Once

	// guarded by the server mutex
	playerID  string
	entityID  ecs.EntityID
	lastInput int64
}

func (s *session) sendRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) sendJSON(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = s.sendRaw(data)
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", log.Error(err))
		return
	}

	sess := &session{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: s.cfg.WriteTimeout.Std(),
	}

	s.mu.Lock()
	if s.closed || (s.cfg.MaxClients > 0 && len(s.sessions) >= s.cfg.MaxClients) {
		full := !s.closed
		s.mu.Unlock()
		if full {
			sess.sendJSON(errorMessage(ErrMaxClientsReached.Error()))
		}
		sess.close()
		return
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Debug("client connected",
		log.String("session", sess.id),
		log.String("remote", conn.RemoteAddr().String()))

	stopPing := s.startPing(sess)
	s.readPump(sess)
	stopPing()

	sess.close()
	s.dropSession(sess)
	s.logger.Debug("client disconnected", log.String("session", sess.id))
}

// startPing keeps idle connections alive under the read deadline.
func (s *Server) startPing(sess *session) (stop func()) {
	timeout := s.cfg.ClientTimeout.Std()
	if timeout <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(timeout * 9 / 10)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := sess.ping(); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// readPump consumes inbound messages until the connection dies. A malformed
// message is answered with an error and the connection stays up; only
// transport errors end the session.
func (s *Server) readPump(sess *session) {
	conn := sess.conn
	if s.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageSize)
	}

	timeout := s.cfg.ClientTimeout.Std()
	resetDeadline := func() {
		if timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(timeout))
		}
	}
	resetDeadline()
	conn.SetPongHandler(func(string) error {
		resetDeadline()
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("read failed", log.String("session", sess.id), log.Error(err))
			}
			return
		}
		resetDeadline()

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			sess.sendJSON(errorMessage(ErrInvalidMessage.Error()))
			continue
		}
		s.dispatch(sess, msg)
	}
}
