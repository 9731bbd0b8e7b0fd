package models

import "time"

// UpdateMeta travels with every published update. Audience lists the chat
// members the notification fan-out should target.
type UpdateMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Audience  []string  `json:"audience"`
}

type ChatCreated struct {
	UpdateMeta
	ChatID  string   `json:"chat_id"`
	Kind    ChatKind `json:"kind"`
	Members []string `json:"members"`
}

type ChatDeleted struct {
	UpdateMeta
	ChatID    string `json:"chat_id"`
	DeletedBy string `json:"deleted_by"`
}

type MemberAdded struct {
	UpdateMeta
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id"`
	AddedBy string `json:"added_by"`
}

type MemberRemoved struct {
	UpdateMeta
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	RemovedBy string `json:"removed_by"`
}

type MessageSent struct {
	UpdateMeta
	MessageID   string           `json:"message_id"`
	FromUser    string           `json:"from_user"`
	ChatID      string           `json:"chat_id"`
	Type        MessageType      `json:"type"`
	Text        string           `json:"text"`
	ReplyTo     *string          `json:"reply_to,omitempty"`
	Attachments []FileAttachment `json:"attachments,omitempty"`
}

type MessageEdited struct {
	UpdateMeta
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	EditedBy  string `json:"edited_by"`
	Text      string `json:"text"`
}

type MessageDeleted struct {
	UpdateMeta
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	DeletedBy string `json:"deleted_by"`
}

type MessagePinToggled struct {
	UpdateMeta
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	ToggledBy string `json:"toggled_by"`
	Pinned    bool   `json:"pinned"`
}
