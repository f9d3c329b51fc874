// Package ws provides the websocket chat used by the web page and the terminal client.
package ws

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/DungNguyen05/Economic-Agent/internal/domain"
	"github.com/DungNguyen05/Economic-Agent/internal/service"
)

const (
	maxMessageSize  = 64 << 10
	readTimeout     = 60 * time.Second
	writeTimeout    = 10 * time.Second
	pingInterval    = 30 * time.Second
	questionTimeout = 2 * time.Minute
)

// connection is a single websocket client.
type connection struct {
	conn      *websocket.Conn
	send      chan []byte
	mu        sync.Mutex
	closed    bool
	sessionID string

	// ctx is cancelled when the read loop ends, aborting pending questions.
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *connection) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *connection) bind(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
}

// Server handles WebSocket connections.
type Server struct {
	service  *service.Service
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(svc *service.Service, log *zap.Logger) *Server {
	return &Server{
		service: svc,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the websocket route.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/chat", s.HandleWebSocket)
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{conn: ws, send: make(chan []byte, 64), ctx: ctx, cancel: cancel}
	ws.SetReadLimit(maxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *connection) {
	defer func() {
		conn.cancel()
		conn.close()
	}()

	conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, message, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (s *Server) writePump(conn *connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Warn("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeQuestion:
		s.handleQuestion(conn, data)
	case TypeClear:
		s.handleClear(conn, base)
	default:
		s.sendError(conn, base.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleHello binds the connection to a session.
func (s *Server) handleHello(conn *connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()[:8]
	}
	conn.bind(sessionID)

	s.sendJSON(conn, HelloAckMessage{BaseMessage: BaseMessage{
		Type:      TypeHelloAck,
		Ts:        time.Now().UnixMilli(),
		SessionID: sessionID,
	}})
	s.log.Debug("hello handshake completed", zap.String("session", sessionID))
}

// handleQuestion answers a question without blocking the read loop.
func (s *Server) handleQuestion(conn *connection, data []byte) {
	var msg QuestionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid question message")
		return
	}

	sessionID := conn.session()
	if sessionID == "" {
		s.sendError(conn, msg.RequestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(conn.ctx, questionTimeout)
		defer cancel()

		result, err := s.service.Chat(ctx, domain.ChatRequest{Question: msg.Question, SessionID: sessionID})
		if conn.ctx.Err() != nil {
			s.log.Debug("question abandoned, client disconnected", zap.String("session", sessionID))
			return
		}
		if err != nil {
			code := ErrorCodeChatFailed
			switch domain.KindOf(err) {
			case domain.KindConfiguration:
				code = ErrorCodeNotConfigured
			case domain.KindValidation:
				code = ErrorCodeInvalidMessage
			}
			s.sendError(conn, msg.RequestID, code, domain.PublicMessage(err))
			return
		}

		answerHTML, err := RenderMarkdown(result.Answer)
		if err != nil {
			s.log.Warn("failed to render answer", zap.Error(err))
			answerHTML = "<p>" + html.EscapeString(result.Answer) + "</p>"
		}

		s.sendJSON(conn, AnswerMessage{
			BaseMessage: BaseMessage{
				Type:      TypeAnswer,
				Ts:        time.Now().UnixMilli(),
				RequestID: msg.RequestID,
				SessionID: sessionID,
			},
			Answer:        result.Answer,
			AnswerHTML:    answerHTML,
			Sources:       result.Sources,
			UsedDocuments: result.UsedDocuments,
		})
	}()
}

// handleClear forgets the history of the bound session.
func (s *Server) handleClear(conn *connection, base BaseMessage) {
	sessionID := conn.session()
	if sessionID == "" {
		s.sendError(conn, base.RequestID, ErrorCodeSessionRequired, "must send hello first")
		return
	}
	s.service.ClearSession(sessionID)
	s.sendJSON(conn, BaseMessage{
		Type:      TypeCleared,
		Ts:        time.Now().UnixMilli(),
		RequestID: base.RequestID,
		SessionID: sessionID,
	})
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *connection, requestID, code, message string) {
	s.sendJSON(conn, ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: conn.session(),
		},
		Code:    code,
		Message: message,
	})
}

func (s *Server) sendJSON(conn *connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to encode websocket message", zap.Error(err))
		return
	}
	if !conn.enqueue(data) {
		s.log.Warn("dropping websocket message, connection closed or slow", zap.String("session", conn.session()))
	}
}
