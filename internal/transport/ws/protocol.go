package ws

import "github.com/DungNguyen05/Economic-Agent/internal/domain"

// Message types from client to server
const (
	TypeHello    = "hello"
	TypeQuestion = "question"
	TypeClear    = "clear"
)

// Message types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeAnswer   = "answer"
	TypeCleared  = "cleared"
	TypeError    = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage binds the connection to a session. An empty session id asks
// the server to create one.
type HelloMessage struct {
	BaseMessage
}

// HelloAckMessage confirms the session bound to the connection.
type HelloAckMessage struct {
	BaseMessage
}

// QuestionMessage asks the chatbot a question in the bound session.
type QuestionMessage struct {
	BaseMessage
	Question string `json:"question"`
}

// AnswerMessage carries the answer to a question.
type AnswerMessage struct {
	BaseMessage
	Answer        string             `json:"answer"`
	AnswerHTML    string             `json:"answer_html"`
	Sources       []domain.SourceRef `json:"sources"`
	UsedDocuments bool               `json:"used_documents"`
}

// ErrorMessage is sent when a message cannot be served.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeNotConfigured   = "not_configured"
	ErrorCodeChatFailed      = "chat_failed"
)
