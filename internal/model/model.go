package model

// ConversationStatus is the lifecycle status of a conversation.
type ConversationStatus string

const (
	StatusActive   ConversationStatus = "ACTIVE"
	StatusPaused   ConversationStatus = "PAUSED"
	StatusFinished ConversationStatus = "FINISHED"
	StatusArchived ConversationStatus = "ARCHIVED"
)

// DeliveryStatus tracks an outgoing message through the send pipeline.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser    Role = "user"
	RoleContact Role = "contact"
	RoleSystem  Role = "system"
)

// Conversation is the canonical conversation record as served by the API.
// This core mutates it only through the mutation coordinator; inbound
// change events adjust unread count and last-message timestamp.
type Conversation struct {
	ID             string             `json:"id"`
	ClientID       string             `json:"client_id"`
	Status         ConversationStatus `json:"status"`
	Important      bool               `json:"important"`
	AssignedUserID string             `json:"assigned_user_id,omitempty"`
	AIActive       bool               `json:"ai_active"`
	Channel        string             `json:"channel"`
	Instance       string             `json:"instance"`
	RemoteAddress  string             `json:"remote_address"`
	UnreadCount    int                `json:"unread_count"`
	MessageCount   int                `json:"message_count"`
	LastMessageAt  int64              `json:"last_message_at"`
}

// Message is a single conversation message. Two provenances exist: rows
// materialized from the canonical query, and client-synthesized
// placeholders (IsTemporary) awaiting server confirmation. A placeholder
// reuses its client-generated id as the canonical id, so the two never
// coexist once the round trip settles.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Content        string         `json:"content"`
	Role           Role           `json:"role"`
	SenderType     string         `json:"sender_type"`
	MessageType    string         `json:"message_type"`
	MediaURL       string         `json:"media_url,omitempty"`
	Status         DeliveryStatus `json:"status"`
	IsTemporary    bool           `json:"is_temporary"`
	CreatedAt      int64          `json:"created_at"`
	UpdatedAt      int64          `json:"updated_at"`
}

// GroupStats are the per-group derived counters.
type GroupStats struct {
	Active   int `json:"active"`
	Paused   int `json:"paused"`
	Finished int `json:"finished"`
	Total    int `json:"total"`
}

// ConversationGroup is an ephemeral aggregate: one logical
// channel/instance, its connection state, and the conversations routed
// through it. Recomputed on every read, never persisted.
type ConversationGroup struct {
	Instance        string             `json:"instance"`
	ConnectionState string             `json:"connection_state"`
	Conversations   []Conversation     `json:"conversations"`
	Stats           GroupStats         `json:"stats"`
}

// Category is a named, possibly-overlapping partition of conversations
// used purely for list filtering. Not a stored attribute.
type Category string

const (
	CategoryAll        Category = "all"
	CategoryUnassigned Category = "unassigned"
	CategoryMine       Category = "mine"
	CategoryNew        Category = "new"
	CategoryArchived   Category = "archived"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryAll,
	CategoryUnassigned,
	CategoryMine,
	CategoryNew,
	CategoryArchived,
}

// CategoryCounts maps category key to its count over the full,
// unfiltered conversation set. Always fully recomputed, never
// incrementally adjusted.
type CategoryCounts map[Category]int

// Stats is the cross-cutting aggregate served by the stats query.
type Stats struct {
	Active   int `json:"active"`
	Paused   int `json:"paused"`
	Finished int `json:"finished"`
	Archived int `json:"archived"`
	Unread   int `json:"unread"`
	Total    int `json:"total"`
}

// PageData bundles everything the conversation page fetches in one go.
type PageData struct {
	Groups []ConversationGroup `json:"groups"`
	Stats  Stats               `json:"stats"`
}
