package entity

import (
	"time"
)

// ConversationType classifies how a conversation sources its retrieval context.
type ConversationType string

const (
	// ConversationTypeRegular is plain chat without retrieval.
	ConversationTypeRegular ConversationType = "REGULAR"
	// ConversationTypeUserFiles retrieves from the ephemeral collection built
	// from files the user uploaded into this conversation.
	ConversationTypeUserFiles ConversationType = "USER_FILES"
	// ConversationTypeGlobalCollection retrieves from the admin-curated global
	// default collection pinned at creation time.
	ConversationTypeGlobalCollection ConversationType = "GLOBAL_COLLECTION"
	// ConversationTypeUnclassified covers legacy rows whose type column is
	// NULL or unknown. Responds like REGULAR, but stays distinguishable so
	// cleanup tooling can find these rows.
	ConversationTypeUnclassified ConversationType = "UNCLASSIFIED"
)

// ParseConversationType maps a nullable DB value onto the closed enum.
func ParseConversationType(raw *string) ConversationType {
	if raw == nil {
		return ConversationTypeUnclassified
	}
	switch ConversationType(*raw) {
	case ConversationTypeRegular, ConversationTypeUserFiles, ConversationTypeGlobalCollection:
		return ConversationType(*raw)
	default:
		return ConversationTypeUnclassified
	}
}

// UsesRetrieval reports whether a conversation of this type runs the
// contextualize-and-retrieve steps before calling the model.
func (t ConversationType) UsesRetrieval() bool {
	return t == ConversationTypeUserFiles || t == ConversationTypeGlobalCollection
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	// MessageRoleSystem appears only in completion-model input, never in
	// persisted conversation history.
	MessageRoleSystem MessageRole = "system"
)

type Conversation struct {
	ID     string           `json:"id"`
	UserID string           `json:"user_id"`
	Type   ConversationType `json:"conversation_type"`
	Title  *string          `json:"title,omitempty"`

	// IsEmpty is true until the first message is recorded. Empty conversations
	// carry ExpiresAt and are reaped if unused.
	IsEmpty   bool       `json:"is_empty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// LinkedGlobalCollectionID is a weak reference to the registry entry,
	// present only for GLOBAL_COLLECTION conversations.
	LinkedGlobalCollectionID *string `json:"linked_global_collection_id,omitempty"`
	// OriginalGlobalCollectionName snapshots the linked collection's name at
	// creation or last-migration time. It deliberately does not follow
	// renames; staleness detection compares it against the current default.
	OriginalGlobalCollectionName *string `json:"original_global_collection_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SequenceNumber int         `json:"sequence_number"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`

	// RAGContext records the exact retrieved-and-formatted context string used
	// to produce an assistant message. Audit record only; never fed back into
	// future turns.
	RAGContext *string `json:"rag_context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Collection struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	IsAdminOnly     bool      `json:"is_admin_only"`
	IsGlobalDefault bool      `json:"is_global_default"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// CollectionFile associates a stored file with a collection. IsProcessed flips
// true only after the file's content has been chunked, embedded and written
// into the backing vector collection; it is the readiness gate other code
// polls before chatting over the collection.
type CollectionFile struct {
	ID             string    `json:"id"`
	CollectionID   *string   `json:"collection_id,omitempty"`
	ConversationID *string   `json:"conversation_id,omitempty"`
	Filename       string    `json:"filename"`
	SizeBytes      int64     `json:"size_bytes"`
	IsProcessed    bool      `json:"is_processed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Setting is one durable configuration value, namespaced by category.
// Values are stored as text; typed parsing happens at read time.
type Setting struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TelegramLink pins a Telegram user to their active conversation.
type TelegramLink struct {
	UserID         int64     `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	UpdatedAt      time.Time `json:"updated_at"`
}
