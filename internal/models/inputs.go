package models

// Per-operation inputs. Every handler binds into one of these closed
// structs; payload fields that are not listed here never reach the
// aggregates.

type ChatCreate struct {
	ChatID           string   `json:"chat_id" validate:"required,uuid"`
	Kind             ChatKind `json:"kind" validate:"required,oneof=private group event tribe"`
	Name             string   `json:"name" validate:"omitempty,max=128"`
	Description      string   `json:"description" validate:"omitempty,max=1024"`
	Members          []string `json:"members" validate:"dive,uuid"`
	LinkedEntity     string   `json:"linked_entity" validate:"omitempty,uuid"`
	SlowModeEnabled  bool     `json:"slow_mode_enabled"`
	SlowModeInterval int      `json:"slow_mode_interval_seconds" validate:"omitempty,min=1,max=3600"`
}

type MessageSend struct {
	MessageID   string           `json:"message_id" validate:"required,uuid"`
	ChatID      string           `json:"chat_id" validate:"required,uuid"`
	Type        MessageType      `json:"type" validate:"required,oneof=text media system"`
	Text        string           `json:"text" validate:"max=4096"`
	ReplyTo     *string          `json:"reply_to" validate:"omitempty,uuid"`
	Attachments []FileAttachment `json:"attachments" validate:"max=10"`
}

type MessageEdit struct {
	Text string `json:"text" validate:"required,max=4096"`
}

type ReactionToggle struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

type ChatSettingsUpdate struct {
	Name             *string `json:"name" validate:"omitempty,max=128"`
	Description      *string `json:"description" validate:"omitempty,max=1024"`
	SlowModeEnabled  *bool   `json:"slow_mode_enabled"`
	SlowModeInterval *int    `json:"slow_mode_interval_seconds" validate:"omitempty,min=1,max=3600"`
}

type MemberAdd struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type AdminSet struct {
	IsAdmin bool `json:"is_admin"`
}

type MessagesSelect struct {
	ChatID string `json:"chat_id" validate:"required,uuid"`
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=200"`
	Query  string `json:"query" validate:"omitempty,max=256"`
}
