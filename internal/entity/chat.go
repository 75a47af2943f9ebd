package entity

// ChatStatus distinguishes a normal answer from the two short-circuit
// outcomes that terminate a turn before the model is called.
type ChatStatus string

const (
	// ChatStatusAnswered is the normal outcome: the model produced a reply.
	ChatStatusAnswered ChatStatus = "ANSWERED"
	// ChatStatusLocked means the conversation's pinned global collection no
	// longer matches the current default under the readonly policy. Not an
	// error: the user must migrate or start a new conversation.
	ChatStatusLocked ChatStatus = "LOCKED"
	// ChatStatusProcessing means attached files are still being indexed.
	ChatStatusProcessing ChatStatus = "PROCESSING"
)

// ChatRequest is one inbound user turn. A nil ConversationID starts a new
// conversation owned by UserID.
type ChatRequest struct {
	ConversationID *string `json:"conversation_id,omitempty"`
	UserID         string  `json:"-"`
	Message        string  `json:"message"`

	// NewConversationType applies only when ConversationID is nil.
	// Defaults to REGULAR.
	NewConversationType *ConversationType `json:"conversation_type,omitempty"`
}

type ChatResult struct {
	ConversationID string     `json:"conversation_id"`
	Response       string     `json:"response"`
	UsedRetrieval  bool       `json:"used_retrieval"`
	Status         ChatStatus `json:"status"`
}

// StreamEvent is one increment of a streaming response. Exactly one terminal
// event is delivered: Done=true on success, or Err set on failure.
type StreamEvent struct {
	Content string
	Result  *ChatResult // set on the terminal Done event
	Done    bool
	Err     error
}

// ChatMessage is one role-tagged turn of completion-model input.
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// CompletionOptions carries the sampling configuration for one model call.
type CompletionOptions struct {
	Temperature float32
	TopP        float32
	MaxTokens   int

	// DisableReasoning switches off extended-reasoning model modes for calls
	// where only a short final string is needed (query rewriting, titles).
	DisableReasoning bool
}

// CompletionDelta is one increment from a streaming completion call.
type CompletionDelta struct {
	Content string
	Done    bool
	Err     error
}

// RetrievedDocument is the fixed internal record every vector-store adapter
// normalizes its hits into, so downstream code never probes upstream shapes.
type RetrievedDocument struct {
	Content    string
	Filename   string
	DocumentID string
	Score      float64
}

// Fragment is one retrieved text fragment with its source attribution.
type Fragment struct {
	Text        string `json:"text"`
	SourceLabel string `json:"source_label"`
}

// BulkReport collects per-item outcomes of a bulk operation that attempts
// every sub-operation independently instead of aborting on first failure.
type BulkReport struct {
	Attempted int         `json:"attempted"`
	Succeeded int         `json:"succeeded"`
	Errors    []BulkError `json:"errors,omitempty"`
}

type BulkError struct {
	Item string `json:"item"`
	Err  string `json:"error"`
}

func (r *BulkReport) Record(item string, err error) {
	r.Attempted++
	if err != nil {
		r.Errors = append(r.Errors, BulkError{Item: item, Err: err.Error()})
		return
	}
	r.Succeeded++
}
