package domain

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryMessage is one entry of a caller-supplied chat history.
type HistoryMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is a single question/answer exchange of a session.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TurnsFromHistory pairs user messages with the assistant reply that follows them.
// Unpaired trailing user messages and system messages are ignored.
func TurnsFromHistory(history []HistoryMessage) []Turn {
	var turns []Turn
	for i := 0; i < len(history); i++ {
		if history[i].Role != RoleUser {
			continue
		}
		if i+1 < len(history) && history[i+1].Role == RoleAssistant {
			turns = append(turns, Turn{Question: history[i].Content, Answer: history[i+1].Content})
			i++
		}
	}
	return turns
}

// ChatRequest is the input of a single question answered by the service.
type ChatRequest struct {
	Question    string
	History     []HistoryMessage
	SessionID   string
	Temperature *float64
	MaxTokens   *int
}

// ChatResult is the answer returned to every transport.
type ChatResult struct {
	Answer        string      `json:"answer"`
	Sources       []SourceRef `json:"sources"`
	UsedDocuments bool        `json:"used_documents"`
	SessionID     string      `json:"session,omitempty"`
}

// SourceLabels returns the source labels in citation order.
func (r *ChatResult) SourceLabels() []string {
	labels := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		labels = append(labels, s.Source)
	}
	return labels
}
