package usecases

import (
	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/practice-sem-2/chat-service/internal/models"
)

// Membership and role predicates over a loaded chat aggregate. Pure
// functions: the aggregate is read as-is, nothing is mutated or fetched.

func IsParticipant(chat *models.ChatWithMembers, userId string) bool {
	return chat.Member(userId) != nil
}

func IsCreator(chat *models.Chat, userId string) bool {
	return chat.CreatedBy == userId
}

// IsChatAdmin reports elevated rights within the chat itself. Group chats
// carry an explicit admin set; for every other kind the creator plays that
// role.
func IsChatAdmin(chat *models.ChatWithMembers, userId string) bool {
	if chat.Kind == models.ChatKindGroup {
		member := chat.Member(userId)
		return member != nil && member.IsAdmin
	}
	return IsCreator(&chat.Chat, userId)
}

// CanModerate adds the globally privileged flag the identity service
// resolved for the actor.
func CanModerate(chat *models.ChatWithMembers, actor *auth.Actor) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin || IsChatAdmin(chat, actor.UserID)
}

// canAdministerMembers gates participant add/remove: chat creator or a
// globally privileged actor.
func canAdministerMembers(chat *models.Chat, actor *auth.Actor) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin || IsCreator(chat, actor.UserID)
}
