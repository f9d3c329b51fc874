// Package main provides a terminal chat client for the websocket chat.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Message types
const (
	TypeHello    = "hello"
	TypeHelloAck = "hello_ack"
	TypeQuestion = "question"
	TypeClear    = "clear"
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

// QuestionMessage asks a question in the current session.
type QuestionMessage struct {
	BaseMessage
	Question string `json:"question"`
}

// Source is a citation attached to an answer.
type Source struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// AnswerMessage is the reply to a question.
type AnswerMessage struct {
	BaseMessage
	Answer        string   `json:"answer"`
	Sources       []Source `json:"sources"`
	UsedDocuments bool     `json:"used_documents"`
}

// ErrorMessage represents an error from the server.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client represents a WebSocket client.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	done      chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// SendHello sends a hello message and waits for hello_ack.
func (c *Client) SendHello(sessionID string) error {
	msg := BaseMessage{
		Type:      TypeHello,
		Ts:        time.Now().UnixMilli(),
		SessionID: sessionID,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if base.Type == TypeError {
		var errMsg ErrorMessage
		_ = json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}
	if base.Type != TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.sessionID = base.SessionID
	return nil
}

// SendQuestion asks a question.
func (c *Client) SendQuestion(question string) error {
	return c.conn.WriteJSON(QuestionMessage{
		BaseMessage: BaseMessage{
			Type:      TypeQuestion,
			Ts:        time.Now().UnixMilli(),
			SessionID: c.sessionID,
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		},
		Question: question,
	})
}

// SendClear asks the server to forget the session history.
func (c *Client) SendClear() error {
	return c.conn.WriteJSON(BaseMessage{
		Type:      TypeClear,
		Ts:        time.Now().UnixMilli(),
		SessionID: c.sessionID,
	})
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var base BaseMessage
			if err := json.Unmarshal(data, &base); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}

			switch base.Type {
			case TypeAnswer:
				var msg AnswerMessage
				_ = json.Unmarshal(data, &msg)
				printAnswer(msg)
			case TypeCleared:
				fmt.Println("\nConversation cleared.")
			case TypeError:
				var msg ErrorMessage
				_ = json.Unmarshal(data, &msg)
				fmt.Printf("\n[error %s] %s\n", msg.Code, msg.Message)
			default:
				fmt.Printf("\n[%s] %s\n", base.Type, string(data))
			}
			fmt.Print("> ")
		}
	}
}

func printAnswer(msg AnswerMessage) {
	fmt.Printf("\n%s\n", msg.Answer)
	if len(msg.Sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, s := range msg.Sources {
		fmt.Printf("  %d. %s\n", i+1, s.Source)
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8000/ws/chat", "WebSocket server address")
	session := flag.String("session", "", "Session ID to resume")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*session); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Session established: %s\n", client.sessionID)
	fmt.Println("\nAsk an economic question and press Enter.")
	fmt.Println("Commands: /clear to forget the conversation, /quit to exit")
	fmt.Println()

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		client.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			fmt.Print("> ")
			continue
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/clear":
			if err := client.SendClear(); err != nil {
				log.Printf("Send error: %v", err)
			}
			continue
		}

		if err := client.SendQuestion(input); err != nil {
			log.Printf("Send error: %v", err)
			continue
		}
		fmt.Println("Thinking...")
	}
}
