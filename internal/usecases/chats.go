package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/practice-sem-2/chat-service/internal/models"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
)

// RosterService is the Event/Tribe domain boundary: it answers whether a
// user belongs to the external entity a chat is scoped to. The core never
// stores that membership itself.
type RosterService interface {
	IsMember(ctx context.Context, kind models.ChatKind, entityId, userId string) (bool, error)
}

// Limits are policy knobs, not mechanism: the exact numbers come from
// configuration.
type Limits struct {
	PinLimit         int
	GroupMemberLimit int
	EditWindow       time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		PinLimit:         50,
		GroupMemberLimit: 256,
		EditWindow:       15 * time.Minute,
	}
}

type ChatsUsecase struct {
	registry storage.Registry
	rosters  RosterService
	limits   Limits
	now      func() time.Time
}

func NewChatsUsecase(r storage.Registry, rosters RosterService, limits Limits) *ChatsUsecase {
	return &ChatsUsecase{
		registry: r,
		rosters:  rosters,
		limits:   limits,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// CreateChat creates a conversation, or for private/event/tribe kinds
// returns the already existing active one: creation is "ensure a chat
// exists", never "fail because it does".
func (u *ChatsUsecase) CreateChat(ctx context.Context, actor *auth.Actor, chat models.ChatCreate) (*models.ChatWithMembers, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	members := dedupeMembers(chat.Members, actor.UserID)

	record := &models.Chat{
		ChatID:           chat.ChatID,
		Kind:             chat.Kind,
		CreatedBy:        actor.UserID,
		Status:           models.ChatStatusActive,
		SlowModeEnabled:  chat.SlowModeEnabled,
		SlowModeInterval: chat.SlowModeInterval,
		CreatedAt:        u.now(),
	}

	switch chat.Kind {
	case models.ChatKindPrivate:
		if len(members) != 2 {
			return nil, fmt.Errorf("%w: private chat must have exactly two members", ErrValidation)
		}
		pairKey := models.PrivatePairKey(members[0], members[1])
		record.PairKey = &pairKey

	case models.ChatKindGroup:
		if strings.TrimSpace(chat.Name) == "" {
			return nil, fmt.Errorf("%w: group chat requires a name", ErrValidation)
		}
		if len(members) < 3 {
			return nil, fmt.Errorf("%w: group chat requires at least three members", ErrValidation)
		}
		if len(members) > u.limits.GroupMemberLimit {
			return nil, fmt.Errorf("%w: group member limit is %d", ErrCapacityExceeded, u.limits.GroupMemberLimit)
		}
		name := chat.Name
		record.Name = &name
		if chat.Description != "" {
			description := chat.Description
			record.Description = &description
		}

	case models.ChatKindEvent, models.ChatKindTribe:
		if chat.LinkedEntity == "" {
			return nil, fmt.Errorf("%w: %s chat requires a linked entity", ErrValidation, chat.Kind)
		}
		isMember, err := u.rosters.IsMember(ctx, chat.Kind, chat.LinkedEntity, actor.UserID)
		if err != nil {
			return nil, err
		}
		if !isMember {
			return nil, fmt.Errorf("%w: creator does not belong to the linked %s", ErrPermissionDenied, chat.Kind)
		}
		linked := chat.LinkedEntity
		record.LinkedEntity = &linked

	default:
		return nil, fmt.Errorf("%w: unknown chat kind %q", ErrValidation, chat.Kind)
	}

	// Fast path: somebody already holds the deduplicated chat.
	if existing, err := u.findExisting(ctx, record); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		if err := store.CreateChat(ctx, record); err != nil {
			return err
		}

		rows := make([]models.ChatMember, len(members))
		for i, userId := range members {
			rows[i] = models.ChatMember{
				ChatID:   record.ChatID,
				UserID:   userId,
				IsAdmin:  record.Kind == models.ChatKindGroup && userId == actor.UserID,
				JoinedAt: record.CreatedAt,
			}
		}
		if err := store.AddChatMembers(ctx, record.ChatID, rows); err != nil {
			return err
		}

		return r.GetUpdatesStore().ChatCreated(&models.ChatCreated{
			UpdateMeta: models.UpdateMeta{
				Timestamp: record.CreatedAt,
				Audience:  members,
			},
			ChatID:  record.ChatID,
			Kind:    record.Kind,
			Members: members,
		})
	})

	// A concurrent creator won the race on the uniqueness index: their chat
	// is the result the caller asked for.
	if errors.Is(err, storage.ErrDuplicatePrivate) || errors.Is(err, storage.ErrDuplicateLinked) {
		existing, findErr := u.findExisting(ctx, record)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
		return nil, err
	}
	if errors.Is(err, storage.ErrChatAlreadyExists) {
		return nil, fmt.Errorf("%w: chat_id already taken", ErrValidation)
	}
	if err != nil {
		return nil, err
	}

	return u.loadChat(ctx, record.ChatID)
}

func (u *ChatsUsecase) findExisting(ctx context.Context, record *models.Chat) (*models.ChatWithMembers, error) {
	store := u.registry.GetChatsStore()

	var found *models.Chat
	var err error
	switch {
	case record.Kind == models.ChatKindPrivate && record.PairKey != nil:
		found, err = store.FindActivePrivateChat(ctx, *record.PairKey)
	case record.LinkedEntity != nil:
		found, err = store.FindActiveLinkedChat(ctx, record.Kind, *record.LinkedEntity)
	default:
		return nil, nil
	}

	if errors.Is(err, storage.ErrChatNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u.loadChat(ctx, found.ChatID)
}

func (u *ChatsUsecase) loadChat(ctx context.Context, chatId string) (*models.ChatWithMembers, error) {
	chat, err := u.registry.GetChatsStore().GetChatWithMembers(ctx, chatId)
	if errors.Is(err, storage.ErrChatNotFound) {
		return nil, fmt.Errorf("%w: chat %s", ErrNotFound, chatId)
	}
	return chat, err
}

// GetChat returns the aggregate if it is visible to the actor. Deleted
// chats stay readable for globally privileged auditors only.
func (u *ChatsUsecase) GetChat(ctx context.Context, actor *auth.Actor, chatId string) (*models.ChatWithMembers, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	chat, err := u.loadChat(ctx, chatId)
	if err != nil {
		return nil, err
	}

	if !IsParticipant(chat, actor.UserID) && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: chat %s", ErrNotFound, chatId)
	}
	if !chat.IsActive() && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: chat %s", ErrNotFound, chatId)
	}
	return chat, nil
}

// GetUsersChats returns the caller's active chat overview. With
// includeDeleted a globally privileged caller gets the audit listing
// instead, which spans every chat and status.
func (u *ChatsUsecase) GetUsersChats(ctx context.Context, actor *auth.Actor, includeDeleted bool) ([]models.ChatSummary, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}
	store := u.registry.GetChatsStore()
	if includeDeleted {
		if !actor.IsAdmin {
			return nil, fmt.Errorf("%w: audit listing is reserved for moderators", ErrPermissionDenied)
		}
		return store.ListChatsForAudit(ctx)
	}
	return store.GetUserChats(ctx, actor.UserID)
}

func (u *ChatsUsecase) AddParticipant(ctx context.Context, actor *auth.Actor, chatId, userId string) (*models.ChatWithMembers, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		chat, err := u.loadActiveChat(ctx, store, chatId, true)
		if err != nil {
			return err
		}

		if !canAdministerMembers(&chat.Chat, actor) {
			return fmt.Errorf("%w: only the chat creator may add participants", ErrPermissionDenied)
		}
		if chat.Kind == models.ChatKindPrivate {
			return fmt.Errorf("%w: private chats have a fixed participant pair", ErrInvalidOperation)
		}
		if IsParticipant(chat, userId) {
			return fmt.Errorf("%w: %s", ErrAlreadyMember, userId)
		}
		if chat.Kind == models.ChatKindGroup && len(chat.Members) >= u.limits.GroupMemberLimit {
			return fmt.Errorf("%w: group member limit is %d", ErrCapacityExceeded, u.limits.GroupMemberLimit)
		}
		if chat.LinkedEntity != nil {
			isMember, err := u.rosters.IsMember(ctx, chat.Kind, *chat.LinkedEntity, userId)
			if err != nil {
				return err
			}
			if !isMember {
				return fmt.Errorf("%w: user does not belong to the linked %s", ErrPermissionDenied, chat.Kind)
			}
		}

		now := u.now()
		err = store.AddChatMembers(ctx, chatId, []models.ChatMember{{
			ChatID:   chatId,
			UserID:   userId,
			JoinedAt: now,
		}})
		if errors.Is(err, storage.ErrMemberAlreadyExists) {
			return fmt.Errorf("%w: %s", ErrAlreadyMember, userId)
		}
		if err != nil {
			return err
		}

		return r.GetUpdatesStore().MemberAdded(&models.MemberAdded{
			UpdateMeta: models.UpdateMeta{
				Timestamp: now,
				Audience:  append(chat.MemberIDs(), userId),
			},
			ChatID:  chatId,
			UserID:  userId,
			AddedBy: actor.UserID,
		})
	})

	if err != nil {
		return nil, err
	}
	return u.loadChat(ctx, chatId)
}

func (u *ChatsUsecase) RemoveParticipant(ctx context.Context, actor *auth.Actor, chatId, userId string) (*models.ChatWithMembers, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		chat, err := u.loadActiveChat(ctx, store, chatId, true)
		if err != nil {
			return err
		}

		if !canAdministerMembers(&chat.Chat, actor) {
			return fmt.Errorf("%w: only the chat creator may remove participants", ErrPermissionDenied)
		}
		if userId == chat.CreatedBy {
			return fmt.Errorf("%w: the chat creator cannot be removed", ErrInvalidOperation)
		}
		if userId == actor.UserID {
			return fmt.Errorf("%w: use leave to remove yourself", ErrInvalidOperation)
		}
		if chat.Kind == models.ChatKindPrivate {
			return fmt.Errorf("%w: private chats have a fixed participant pair", ErrInvalidOperation)
		}
		if !IsParticipant(chat, userId) {
			return fmt.Errorf("%w: %s", ErrNotAMember, userId)
		}

		if err = store.DeleteChatMembers(ctx, chatId, []string{userId}); err != nil {
			return err
		}

		return r.GetUpdatesStore().MemberRemoved(&models.MemberRemoved{
			UpdateMeta: models.UpdateMeta{
				Timestamp: u.now(),
				Audience:  chat.MemberIDs(),
			},
			ChatID:    chatId,
			UserID:    userId,
			RemovedBy: actor.UserID,
		})
	})

	if err != nil {
		return nil, err
	}
	return u.loadChat(ctx, chatId)
}

// SetAdmin promotes or demotes a group member. Required for the sole-admin
// leave guard to be escapable at all.
func (u *ChatsUsecase) SetAdmin(ctx context.Context, actor *auth.Actor, chatId, userId string, isAdmin bool) error {
	if actor == nil {
		return ErrAuthenticationRequired
	}

	return u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		chat, err := u.loadActiveChat(ctx, store, chatId, true)
		if err != nil {
			return err
		}

		if chat.Kind != models.ChatKindGroup {
			return fmt.Errorf("%w: admins exist only in group chats", ErrInvalidOperation)
		}
		if !canAdministerMembers(&chat.Chat, actor) {
			return fmt.Errorf("%w: only the chat creator may manage admins", ErrPermissionDenied)
		}
		if userId == chat.CreatedBy && !isAdmin {
			return fmt.Errorf("%w: the creator is always an admin", ErrInvalidOperation)
		}
		if !IsParticipant(chat, userId) {
			return fmt.Errorf("%w: %s", ErrNotAMember, userId)
		}

		return store.SetMemberAdmin(ctx, chatId, userId, isAdmin)
	})
}

func (u *ChatsUsecase) LeaveChat(ctx context.Context, actor *auth.Actor, chatId string) error {
	if actor == nil {
		return ErrAuthenticationRequired
	}

	return u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		chat, err := u.loadActiveChat(ctx, store, chatId, true)
		if err != nil {
			return err
		}

		member := chat.Member(actor.UserID)
		if member == nil {
			return fmt.Errorf("%w: %s", ErrNotAMember, actor.UserID)
		}
		if chat.Kind == models.ChatKindPrivate {
			return fmt.Errorf("%w: private chats cannot be left, delete instead", ErrInvalidOperation)
		}
		if chat.Kind == models.ChatKindGroup && member.IsAdmin && chat.AdminCount() == 1 {
			return fmt.Errorf("%w: promote another admin or delete the chat first", ErrInvalidOperation)
		}

		if err = store.DeleteChatMembers(ctx, chatId, []string{actor.UserID}); err != nil {
			return err
		}

		return r.GetUpdatesStore().MemberRemoved(&models.MemberRemoved{
			UpdateMeta: models.UpdateMeta{
				Timestamp: u.now(),
				Audience:  chat.MemberIDs(),
			},
			ChatID:    chatId,
			UserID:    actor.UserID,
			RemovedBy: actor.UserID,
		})
	})
}

func (u *ChatsUsecase) MarkChatAsRead(ctx context.Context, actor *auth.Actor, chatId string) error {
	if actor == nil {
		return ErrAuthenticationRequired
	}

	store := u.registry.GetChatsStore()
	chat, err := store.GetChat(ctx, chatId)
	if errors.Is(err, storage.ErrChatNotFound) {
		return fmt.Errorf("%w: chat %s", ErrNotFound, chatId)
	}
	if err != nil {
		return err
	}
	if !chat.IsActive() {
		return fmt.Errorf("%w: chat is deleted", ErrInvalidOperation)
	}

	err = store.TouchMemberActivity(ctx, chatId, actor.UserID, u.now(), true)
	if errors.Is(err, storage.ErrMemberNotFound) {
		return fmt.Errorf("%w: %s", ErrNotAMember, actor.UserID)
	}
	return err
}

func (u *ChatsUsecase) DeleteChat(ctx context.Context, actor *auth.Actor, chatId string) error {
	if actor == nil {
		return ErrAuthenticationRequired
	}

	return u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		chat, err := u.loadActiveChat(ctx, store, chatId, true)
		if err != nil {
			return err
		}

		if !canAdministerMembers(&chat.Chat, actor) {
			return fmt.Errorf("%w: only the chat creator may delete the chat", ErrPermissionDenied)
		}

		if err = store.SetChatStatus(ctx, chatId, models.ChatStatusDeleted); err != nil {
			return err
		}

		return r.GetUpdatesStore().ChatDeleted(&models.ChatDeleted{
			UpdateMeta: models.UpdateMeta{
				Timestamp: u.now(),
				Audience:  chat.MemberIDs(),
			},
			ChatID:    chatId,
			DeletedBy: actor.UserID,
		})
	})
}

func (u *ChatsUsecase) UpdateChatSettings(ctx context.Context, actor *auth.Actor, chatId string, input models.ChatSettingsUpdate) (*models.ChatWithMembers, error) {
	if actor == nil {
		return nil, ErrAuthenticationRequired
	}

	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetChatsStore()
		chat, err := u.loadActiveChat(ctx, store, chatId, false)
		if err != nil {
			return err
		}

		if !CanModerate(chat, actor) {
			return fmt.Errorf("%w: only a moderator may change chat settings", ErrPermissionDenied)
		}

		fields := map[string]interface{}{}
		if input.Name != nil {
			if chat.Kind != models.ChatKindGroup {
				return fmt.Errorf("%w: only group chats carry a name", ErrValidation)
			}
			if strings.TrimSpace(*input.Name) == "" {
				return fmt.Errorf("%w: group name can't be empty", ErrValidation)
			}
			fields["name"] = *input.Name
		}
		if input.Description != nil {
			if chat.Kind != models.ChatKindGroup {
				return fmt.Errorf("%w: only group chats carry a description", ErrValidation)
			}
			fields["description"] = *input.Description
		}
		if input.SlowModeEnabled != nil {
			fields["slow_mode_enabled"] = *input.SlowModeEnabled
		}
		if input.SlowModeInterval != nil {
			if *input.SlowModeInterval <= 0 {
				return fmt.Errorf("%w: slow mode interval must be positive", ErrValidation)
			}
			fields["slow_mode_interval_seconds"] = *input.SlowModeInterval
		}
		if len(fields) == 0 {
			return fmt.Errorf("%w: nothing to update", ErrValidation)
		}

		return store.UpdateChatSettings(ctx, chatId, fields)
	})

	if err != nil {
		return nil, err
	}
	return u.loadChat(ctx, chatId)
}

// loadActiveChat fetches the aggregate and rejects operations on deleted
// or missing chats with the caller-facing sentinels. With forUpdate the
// chat row stays locked until the transaction ends, so guards over the
// member set or the pin count can't race a concurrent mutation.
func (u *ChatsUsecase) loadActiveChat(ctx context.Context, store *storage.ChatsStorage, chatId string, forUpdate bool) (*models.ChatWithMembers, error) {
	var chat *models.ChatWithMembers
	var err error
	if forUpdate {
		chat, err = store.GetChatWithMembersForUpdate(ctx, chatId)
	} else {
		chat, err = store.GetChatWithMembers(ctx, chatId)
	}
	if errors.Is(err, storage.ErrChatNotFound) {
		return nil, fmt.Errorf("%w: chat %s", ErrNotFound, chatId)
	}
	if err != nil {
		return nil, err
	}
	if !chat.IsActive() {
		return nil, fmt.Errorf("%w: chat is deleted", ErrInvalidOperation)
	}
	return chat, nil
}

func dedupeMembers(members []string, creator string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(members)+1)
	for _, m := range append([]string{creator}, members...) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
