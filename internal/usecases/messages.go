package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/practice-sem-2/chat-service/internal/models"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
)

const lastMessageSummaryLen = 120

func (u *ChatsUsecase) SendMessage(ctx context.Context, actor *auth.Actor, message models.MessageSend) (*models.Message, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	if message.Type == models.MessageTypeText && strings.TrimSpace(message.Text) == "" {
		return nil, fmt.Errorf("%w: text message can't be empty", ErrValidation)
	}

	var sent *models.Message
	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		chats := r.GetChatsStore()
		msgs := r.GetMessagesStore()

		// The row lock serializes appends per chat, so the slow-mode check
		// below reads a stable "last message from author".
		chat, err := chats.GetChatForUpdate(ctx, message.ChatID)
		if errors.Is(err, storage.ErrChatNotFound) {
			return fmt.Errorf("%w: chat %s", ErrNotFound, message.ChatID)
		}
		if err != nil {
			return err
		}
		if !chat.IsActive() {
			return fmt.Errorf("%w: chat is deleted", ErrInvalidOperation)
		}

		if _, err = chats.GetMember(ctx, message.ChatID, actor.UserID); err != nil {
			if errors.Is(err, storage.ErrMemberNotFound) {
				return fmt.Errorf("%w: %s", ErrNotAMember, actor.UserID)
			}
			return err
		}

		if message.ReplyTo != nil {
			replied, err := msgs.GetMessage(ctx, message.ChatID, *message.ReplyTo)
			if errors.Is(err, storage.ErrMessageNotFound) {
				return fmt.Errorf("%w: replied message does not exist in this chat", ErrValidation)
			}
			if err != nil {
				return err
			}
			if !replied.IsActive() {
				return fmt.Errorf("%w: replied message was deleted", ErrValidation)
			}
		}

		now := u.now()
		lastSent, err := msgs.LastActiveSendingTime(ctx, message.ChatID, actor.UserID)
		if err != nil {
			return err
		}
		if !SlowModeAllows(chat, lastSent, now) {
			return fmt.Errorf("%w: wait %ds between messages", ErrRateLimited, chat.SlowModeInterval)
		}

		record := &models.Message{
			MessageID:   message.MessageID,
			ChatID:      message.ChatID,
			FromUser:    actor.UserID,
			Type:        message.Type,
			Text:        message.Text,
			ReplyTo:     message.ReplyTo,
			SendingTime: now,
			Status:      models.MessageStatusActive,
			Attachments: message.Attachments,
			Reactions:   []models.Reaction{},
		}
		if record.Attachments == nil {
			record.Attachments = []models.FileAttachment{}
		}

		err = msgs.PutMessage(ctx, record)
		if errors.Is(err, storage.ErrMessageAlreadyExists) {
			return fmt.Errorf("%w: message_id already taken", ErrValidation)
		}
		if err != nil {
			return err
		}

		summary := summarize(record)
		if err = chats.SetLastMessage(ctx, message.ChatID, &summary, &now); err != nil {
			return err
		}
		if err = chats.TouchMemberActivity(ctx, message.ChatID, actor.UserID, now, false); err != nil {
			return err
		}

		full, err := chats.GetChatWithMembers(ctx, message.ChatID)
		if err != nil {
			return err
		}

		sent = record
		return r.GetUpdatesStore().MessageSent(&models.MessageSent{
			UpdateMeta: models.UpdateMeta{
				Timestamp: now,
				Audience:  full.MemberIDs(),
			},
			MessageID:   record.MessageID,
			FromUser:    record.FromUser,
			ChatID:      record.ChatID,
			Type:        record.Type,
			Text:        record.Text,
			ReplyTo:     record.ReplyTo,
			Attachments: record.Attachments,
		})
	})

	if err != nil {
		return nil, err
	}
	return sent, nil
}

func (u *ChatsUsecase) EditMessage(ctx context.Context, actor *auth.Actor, chatId, messageId string, edit models.MessageEdit) (*models.Message, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}
	if strings.TrimSpace(edit.Text) == "" {
		return nil, fmt.Errorf("%w: message text can't be empty", ErrValidation)
	}

	var edited *models.Message
	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		chats := r.GetChatsStore()
		msgs := r.GetMessagesStore()

		chat, err := u.loadActiveChat(ctx, chats, chatId, false)
		if err != nil {
			return err
		}

		message, err := u.loadActiveMessage(ctx, msgs, chatId, messageId)
		if err != nil {
			return err
		}

		moderator := CanModerate(chat, actor)
		if message.FromUser != actor.UserID && !moderator {
			return fmt.Errorf("%w: only the author or a moderator may edit", ErrPermissionDenied)
		}

		now := u.now()
		if !moderator && now.Sub(message.SendingTime) > u.limits.EditWindow {
			return fmt.Errorf("%w: messages are editable for %s after sending", ErrEditWindowExpired, u.limits.EditWindow)
		}

		if err = msgs.UpdateMessageText(ctx, messageId, edit.Text, now); err != nil {
			return err
		}

		message.Text = edit.Text
		message.IsEdited = true
		message.UpdatedAt = &now
		edited = message

		return r.GetUpdatesStore().MessageEdited(&models.MessageEdited{
			UpdateMeta: models.UpdateMeta{
				Timestamp: now,
				Audience:  chat.MemberIDs(),
			},
			ChatID:    chatId,
			MessageID: messageId,
			EditedBy:  actor.UserID,
			Text:      edit.Text,
		})
	})

	if err != nil {
		return nil, err
	}
	return edited, nil
}

func (u *ChatsUsecase) DeleteMessage(ctx context.Context, actor *auth.Actor, chatId, messageId string) error {
	if actor == nil {
		return ErrAuthenticationRequired
	}

	return u.registry.Atomic(ctx, func(r storage.Registry) error {
		chats := r.GetChatsStore()
		msgs := r.GetMessagesStore()

		chat, err := u.loadActiveChat(ctx, chats, chatId, true)
		if err != nil {
			return err
		}

		message, err := u.loadActiveMessage(ctx, msgs, chatId, messageId)
		if err != nil {
			return err
		}

		if message.FromUser != actor.UserID && !CanModerate(chat, actor) {
			return fmt.Errorf("%w: only the author or a moderator may delete", ErrPermissionDenied)
		}

		if message.IsPinned {
			if err = msgs.UnpinMessage(ctx, chatId, messageId); err != nil {
				return err
			}
		}

		now := u.now()
		if err = msgs.SoftDeleteMessage(ctx, messageId, actor.UserID, now); err != nil {
			return err
		}

		// The chat preview may have pointed at the deleted message.
		newest, err := msgs.NewestActiveMessage(ctx, chatId)
		if err != nil {
			return err
		}
		if newest == nil {
			err = chats.SetLastMessage(ctx, chatId, nil, nil)
		} else {
			summary := summarize(newest)
			err = chats.SetLastMessage(ctx, chatId, &summary, &newest.SendingTime)
		}
		if err != nil {
			return err
		}

		return r.GetUpdatesStore().MessageDeleted(&models.MessageDeleted{
			UpdateMeta: models.UpdateMeta{
				Timestamp: now,
				Audience:  chat.MemberIDs(),
			},
			ChatID:    chatId,
			MessageID: messageId,
			DeletedBy: actor.UserID,
		})
	})
}

// ToggleReaction adds the (actor, emoji) reaction if absent and removes it
// if present. Returns whether the reaction is set after the call.
func (u *ChatsUsecase) ToggleReaction(ctx context.Context, actor *auth.Actor, chatId, messageId string, toggle models.ReactionToggle) (bool, error) {
	if actor == nil {
		return false, ErrAuthenticationRequired
	}
	if strings.TrimSpace(toggle.Emoji) == "" {
		return false, fmt.Errorf("%w: emoji is required", ErrValidation)
	}

	added := false
	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		chats := r.GetChatsStore()
		msgs := r.GetMessagesStore()

		chat, err := u.loadActiveChat(ctx, chats, chatId, false)
		if err != nil {
			return err
		}
		if !IsParticipant(chat, actor.UserID) {
			return fmt.Errorf("%w: %s", ErrNotAMember, actor.UserID)
		}

		if _, err = u.loadActiveMessage(ctx, msgs, chatId, messageId); err != nil {
			return err
		}

		err = msgs.RemoveReaction(ctx, messageId, actor.UserID, toggle.Emoji)
		if errors.Is(err, storage.ErrReactionNotFound) {
			added = true
			return msgs.AddReaction(ctx, messageId, actor.UserID, toggle.Emoji, u.now())
		}
		return err
	})

	if err != nil {
		return false, err
	}
	return added, nil
}

// TogglePinMessage flips the pin state of a message. Returns whether the
// message is pinned after the call.
func (u *ChatsUsecase) TogglePinMessage(ctx context.Context, actor *auth.Actor, chatId, messageId string) (bool, error) {
	if actor == nil {
		return false, ErrAuthenticationRequired
	}

	pinned := false
	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		chats := r.GetChatsStore()
		msgs := r.GetMessagesStore()

		chat, err := u.loadActiveChat(ctx, chats, chatId, true)
		if err != nil {
			return err
		}
		if !CanModerate(chat, actor) {
			return fmt.Errorf("%w: only a moderator may pin messages", ErrPermissionDenied)
		}

		message, err := u.loadActiveMessage(ctx, msgs, chatId, messageId)
		if err != nil {
			return err
		}

		now := u.now()
		if message.IsPinned {
			if err = msgs.UnpinMessage(ctx, chatId, messageId); err != nil {
				return err
			}
		} else {
			count, err := msgs.CountPins(ctx, chatId)
			if err != nil {
				return err
			}
			if count >= u.limits.PinLimit {
				return fmt.Errorf("%w: pin limit is %d", ErrCapacityExceeded, u.limits.PinLimit)
			}
			if err = msgs.PinMessage(ctx, chatId, messageId, actor.UserID, now); err != nil {
				return err
			}
			pinned = true
		}

		return r.GetUpdatesStore().MessagePinToggled(&models.MessagePinToggled{
			UpdateMeta: models.UpdateMeta{
				Timestamp: now,
				Audience:  chat.MemberIDs(),
			},
			ChatID:    chatId,
			MessageID: messageId,
			ToggledBy: actor.UserID,
			Pinned:    pinned,
		})
	})

	if err != nil {
		return false, err
	}
	return pinned, nil
}

// GetMessages pages through a chat's active messages oldest-first. The
// returned cursor is empty once the listing is exhausted.
func (u *ChatsUsecase) GetMessages(ctx context.Context, actor *auth.Actor, sel models.MessagesSelect) ([]models.Message, string, error) {
	return u.listMessages(ctx, actor, sel, false)
}

func (u *ChatsUsecase) SearchMessages(ctx context.Context, actor *auth.Actor, sel models.MessagesSelect) ([]models.Message, string, error) {
	if strings.TrimSpace(sel.Query) == "" {
		return nil, "", fmt.Errorf("%w: search query is required", ErrValidation)
	}
	return u.listMessages(ctx, actor, sel, true)
}

func (u *ChatsUsecase) listMessages(ctx context.Context, actor *auth.Actor, sel models.MessagesSelect, search bool) ([]models.Message, string, error) {
	if actor == nil {
		return nil, "", ErrAuthenticationRequired
	}

	after, err := storage.DecodeCursor(sel.Cursor)
	if errors.Is(err, storage.ErrBadCursor) {
		return nil, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err != nil {
		return nil, "", err
	}

	limit := sel.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	chat, err := u.loadChat(ctx, sel.ChatID)
	if err != nil {
		return nil, "", err
	}
	if !IsParticipant(chat, actor.UserID) && !actor.IsAdmin {
		return nil, "", fmt.Errorf("%w: chat %s", ErrNotFound, sel.ChatID)
	}
	if !chat.IsActive() && !actor.IsAdmin {
		return nil, "", fmt.Errorf("%w: chat %s", ErrNotFound, sel.ChatID)
	}

	msgs := u.registry.GetMessagesStore()

	// One extra row tells us whether another page exists.
	var page []models.Message
	if search {
		page, err = msgs.SearchMessages(ctx, sel.ChatID, sel.Query, after, uint64(limit)+1)
	} else {
		page, err = msgs.ListMessages(ctx, sel.ChatID, after, uint64(limit)+1)
	}
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(page) > limit {
		page = page[:limit]
		last := page[len(page)-1]
		cursor := storage.MessageCursor{
			SentAt:    last.SendingTime,
			MessageID: last.MessageID,
		}
		next = cursor.Encode()
	}
	return page, next, nil
}

func (u *ChatsUsecase) loadActiveMessage(ctx context.Context, msgs *storage.MessagesStorage, chatId, messageId string) (*models.Message, error) {
	message, err := msgs.GetMessage(ctx, chatId, messageId)
	if errors.Is(err, storage.ErrMessageNotFound) {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, messageId)
	}
	if err != nil {
		return nil, err
	}
	if !message.IsActive() {
		return nil, fmt.Errorf("%w: message is deleted", ErrInvalidOperation)
	}
	return message, nil
}

func summarize(message *models.Message) string {
	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = "[" + string(message.Type) + "]"
	}
	runes := []rune(text)
	if len(runes) > lastMessageSummaryLen {
		return string(runes[:lastMessageSummaryLen])
	}
	return text
}
