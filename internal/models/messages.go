package models

import "time"

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeMedia  MessageType = "media"
	MessageTypeSystem MessageType = "system"
)

type MessageStatus string

const (
	MessageStatusActive  MessageStatus = "active"
	MessageStatusDeleted MessageStatus = "deleted"
)

type FileAttachment struct {
	MimeType string `json:"mime_type" db:"mime_type"`
	FileID   string `json:"file_id" db:"file_id"`
}

type Reaction struct {
	MessageID string    `json:"message_id" db:"message_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Emoji     string    `json:"emoji" db:"emoji"`
	ReactedAt time.Time `json:"reacted_at" db:"reacted_at"`
}

type Message struct {
	MessageID   string        `json:"message_id" db:"message_id"`
	ChatID      string        `json:"chat_id" db:"chat_id"`
	FromUser    string        `json:"from_user" db:"from_user"`
	Type        MessageType   `json:"type" db:"type"`
	Text        string        `json:"text" db:"text"`
	ReplyTo     *string       `json:"reply_to,omitempty" db:"reply_to"`
	SendingTime time.Time     `json:"sending_time" db:"sending_time"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty" db:"updated_at"`
	IsEdited    bool          `json:"is_edited" db:"is_edited"`
	Status      MessageStatus `json:"status" db:"status"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedBy   *string       `json:"deleted_by,omitempty" db:"deleted_by"`
	IsPinned    bool          `json:"is_pinned" db:"is_pinned"`

	Attachments []FileAttachment `json:"attachments"`
	Reactions   []Reaction       `json:"reactions"`
}

func (m *Message) IsActive() bool {
	return m.Status == MessageStatusActive
}
