package models

import (
	"sort"
	"strings"
	"time"
)

type ChatKind string

const (
	ChatKindPrivate ChatKind = "private"
	ChatKindGroup   ChatKind = "group"
	ChatKindEvent   ChatKind = "event"
	ChatKindTribe   ChatKind = "tribe"
)

type ChatStatus string

const (
	ChatStatusActive  ChatStatus = "active"
	ChatStatusDeleted ChatStatus = "deleted"
)

type Chat struct {
	ChatID           string     `json:"chat_id" db:"chat_id"`
	Kind             ChatKind   `json:"kind" db:"kind"`
	Name             *string    `json:"name,omitempty" db:"name"`
	Description      *string    `json:"description,omitempty" db:"description"`
	CreatedBy        string     `json:"created_by" db:"created_by"`
	LinkedEntity     *string    `json:"linked_entity,omitempty" db:"linked_entity"`
	Status           ChatStatus `json:"status" db:"status"`
	SlowModeEnabled  bool       `json:"slow_mode_enabled" db:"slow_mode_enabled"`
	SlowModeInterval int        `json:"slow_mode_interval_seconds" db:"slow_mode_interval_seconds"`
	// PairKey is the sorted "<a>:<b>" participant pair for private chats.
	// A partial unique index over it enforces private-chat dedup.
	PairKey         *string    `json:"-" db:"pair_key"`
	LastMessageText *string    `json:"last_message_text,omitempty" db:"last_message_text"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

func (c *Chat) IsActive() bool {
	return c.Status == ChatStatusActive
}

type ChatMember struct {
	ChatID     string     `json:"chat_id" db:"chat_id"`
	UserID     string     `json:"user_id" db:"user_id"`
	IsAdmin    bool       `json:"is_admin" db:"is_admin"`
	JoinedAt   time.Time  `json:"joined_at" db:"joined_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
	LastReadAt *time.Time `json:"last_read_at,omitempty" db:"last_read_at"`
}

type ChatWithMembers struct {
	Chat
	Members   []ChatMember `json:"members"`
	PinnedIDs []string     `json:"pinned_message_ids"`
}

func (c *ChatWithMembers) Member(userID string) *ChatMember {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}

func (c *ChatWithMembers) MemberIDs() []string {
	ids := make([]string, len(c.Members))
	for i, m := range c.Members {
		ids[i] = m.UserID
	}
	return ids
}

func (c *ChatWithMembers) AdminCount() int {
	n := 0
	for _, m := range c.Members {
		if m.IsAdmin {
			n++
		}
	}
	return n
}

// PrivatePairKey builds the canonical key for an unordered participant pair.
func PrivatePairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// ChatSummary is the denormalized listing row for a user's chat overview.
type ChatSummary struct {
	Chat
	MemberCount int `json:"member_count" db:"member_count"`
}
