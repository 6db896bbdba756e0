package store

// Role tags one side of a conversation turn. Only the two values below are
// permitted; SaveMessage rejects anything else before touching the database.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the permitted roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation is a persisted thread anchored by an optional screenshot.
// Timestamps are unix milliseconds. MessageCount is a cached count maintained
// transactionally on every append, never recomputed by scanning.
type Conversation struct {
	ID             string `json:"id"`
	Screenshot     string `json:"screenshot,omitempty"`
	ScreenshotHash string `json:"screenshotHash,omitempty"`
	Title          string `json:"title"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt"`
	MessageCount   int    `json:"messageCount"`
	Starred        bool   `json:"starred"`
	Archived       bool   `json:"archived"`
}

// ConversationSummary is one row of a listing: the conversation plus the
// derived preview of its earliest assistant message.
type ConversationSummary struct {
	Conversation
	Preview string `json:"preview"`
}

// Message is one turn in a conversation. Messages are append-only and are
// removed only by the cascade when their conversation is deleted.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
	Error          bool   `json:"error"`
}

// ConversationWithMessages is a full conversation record plus its messages
// in timestamp order.
type ConversationWithMessages struct {
	Conversation
	Messages []Message `json:"messages"`
}

// UpdateConversation names the only mutable conversation fields. Nil fields
// are left untouched; an all-nil update is a no-op and does not bump
// updated_at.
type UpdateConversation struct {
	Title    *string
	Starred  *bool
	Archived *bool
}

// ListFilters narrows a conversation listing. Archived conversations are
// hidden unless Archived is set — archiving is a soft-hide, and the starred
// filter never overrides that default.
type ListFilters struct {
	Starred  bool
	Archived bool
}

// ExchangeItem is one prompt/answer pair handed to SaveCompleteConversation
// when a transient conversation is persisted in one shot.
type ExchangeItem struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
	Error  bool   `json:"error,omitempty"`
}
