package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/practice-sem-2/chat-service/internal/models"
)

var (
	ErrChatAlreadyExists   = errors.New("chat with provided chat_id already exists")
	ErrChatNotFound        = errors.New("chat with provided chat_id does not exist")
	ErrDuplicatePrivate    = errors.New("an active private chat for this pair already exists")
	ErrDuplicateLinked     = errors.New("an active chat for this linked entity already exists")
	ErrEmptyMembers        = errors.New("members array can't be empty")
	ErrMemberAlreadyExists = errors.New("user is already a chat member")
	ErrMemberNotFound      = errors.New("user is not a chat member")
)

const (
	ChatsPrimaryKey             = "chats_pkey"
	ChatsPrivatePairUniqueIdx   = "chats_private_pair_active_idx"
	ChatsLinkedEntityUniqueIdx  = "chats_linked_entity_active_idx"
	ChatMembersPrimaryKey       = "chat_members_pkey"
	ChatMembersChatIdForeignKey = "chat_members_chat_id_fkey"
)

type ChatsStorage struct {
	db Scope
}

func NewChatsStorage(db Scope) *ChatsStorage {
	return &ChatsStorage{
		db: db,
	}
}

var chatColumns = []string{
	"chat_id", "kind", "name", "description", "created_by", "linked_entity",
	"status", "slow_mode_enabled", "slow_mode_interval_seconds", "pair_key",
	"last_message_text", "last_message_at", "created_at",
}

func (s *ChatsStorage) CreateChat(ctx context.Context, chat *models.Chat) error {
	query, args, err := sq.Insert("chats").
		Columns(chatColumns...).
		Values(
			chat.ChatID, chat.Kind, chat.Name, chat.Description, chat.CreatedBy,
			chat.LinkedEntity, chat.Status, chat.SlowModeEnabled,
			chat.SlowModeInterval, chat.PairKey, chat.LastMessageText,
			chat.LastMessageAt, chat.CreatedAt,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case ChatsPrimaryKey:
		return ErrChatAlreadyExists
	case ChatsPrivatePairUniqueIdx:
		return ErrDuplicatePrivate
	case ChatsLinkedEntityUniqueIdx:
		return ErrDuplicateLinked
	default:
		return err
	}
}

func (s *ChatsStorage) getChat(ctx context.Context, pred sq.Sqlizer, forUpdate bool) (*models.Chat, error) {
	builder := sq.Select(chatColumns...).
		From("chats").
		Where(pred).
		PlaceholderFormat(sq.Dollar)

	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	chat := models.Chat{}
	err = s.db.GetContext(ctx, &chat, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	} else if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *ChatsStorage) GetChat(ctx context.Context, chatId string) (*models.Chat, error) {
	return s.getChat(ctx, sq.Eq{"chat_id": chatId}, false)
}

// GetChatForUpdate locks the chat row for the rest of the transaction.
// Message appends take this lock so the slow-mode read-then-write never
// interleaves with a concurrent append on the same chat.
func (s *ChatsStorage) GetChatForUpdate(ctx context.Context, chatId string) (*models.Chat, error) {
	return s.getChat(ctx, sq.Eq{"chat_id": chatId}, true)
}

func (s *ChatsStorage) FindActivePrivateChat(ctx context.Context, pairKey string) (*models.Chat, error) {
	return s.getChat(ctx, sq.Eq{
		"kind":     models.ChatKindPrivate,
		"pair_key": pairKey,
		"status":   models.ChatStatusActive,
	}, false)
}

func (s *ChatsStorage) FindActiveLinkedChat(ctx context.Context, kind models.ChatKind, linkedEntity string) (*models.Chat, error) {
	return s.getChat(ctx, sq.Eq{
		"kind":          kind,
		"linked_entity": linkedEntity,
		"status":        models.ChatStatusActive,
	}, false)
}

func (s *ChatsStorage) AddChatMembers(ctx context.Context, chatId string, members []models.ChatMember) error {
	if len(members) == 0 {
		return ErrEmptyMembers
	}

	builder := sq.Insert("chat_members").
		Columns("chat_id", "user_id", "is_admin", "joined_at").
		PlaceholderFormat(sq.Dollar)

	for _, member := range members {
		builder = builder.Values(chatId, member.UserID, member.IsAdmin, member.JoinedAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case ChatMembersChatIdForeignKey:
		return ErrChatNotFound
	case ChatMembersPrimaryKey:
		return ErrMemberAlreadyExists
	default:
		return err
	}
}

func (s *ChatsStorage) DeleteChatMembers(ctx context.Context, chatId string, members []string) error {
	if len(members) == 0 {
		return ErrEmptyMembers
	}

	union := sq.Or{}
	for _, member := range members {
		union = append(union, sq.Eq{"user_id": member})
	}

	query, args, err := sq.Delete("chat_members").
		Where(sq.Eq{"chat_id": chatId}).
		Where(union).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (s *ChatsStorage) SetMemberAdmin(ctx context.Context, chatId, userId string, isAdmin bool) error {
	query, args, err := sq.Update("chat_members").
		Set("is_admin", isAdmin).
		Where(sq.Eq{"chat_id": chatId, "user_id": userId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (s *ChatsStorage) GetMember(ctx context.Context, chatId, userId string) (*models.ChatMember, error) {
	query, args, err := sq.Select("chat_id", "user_id", "is_admin", "joined_at", "last_seen_at", "last_read_at").
		From("chat_members").
		Where(sq.Eq{"chat_id": chatId, "user_id": userId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	member := models.ChatMember{}
	err = s.db.GetContext(ctx, &member, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	} else if err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *ChatsStorage) GetChatWithMembers(ctx context.Context, chatId string) (*models.ChatWithMembers, error) {
	return s.getChatWithMembers(ctx, chatId, false)
}

// GetChatWithMembersForUpdate loads the aggregate while holding the chat
// row lock, like GetChatForUpdate. Mutations that guard on the member set
// or the pin count take this variant so the guard and the write see the
// same state.
func (s *ChatsStorage) GetChatWithMembersForUpdate(ctx context.Context, chatId string) (*models.ChatWithMembers, error) {
	return s.getChatWithMembers(ctx, chatId, true)
}

func (s *ChatsStorage) getChatWithMembers(ctx context.Context, chatId string, forUpdate bool) (*models.ChatWithMembers, error) {
	chat, err := s.getChat(ctx, sq.Eq{"chat_id": chatId}, forUpdate)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("chat_id", "user_id", "is_admin", "joined_at", "last_seen_at", "last_read_at").
		From("chat_members").
		Where(sq.Eq{"chat_id": chatId}).
		OrderBy("user_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	members := make([]models.ChatMember, 0)
	err = s.db.SelectContext(ctx, &members, query, args...)
	if err != nil {
		return nil, err
	}

	pinQuery, pinArgs, err := sq.Select("message_id").
		From("chat_pins").
		Where(sq.Eq{"chat_id": chatId}).
		OrderBy("pinned_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	pinned := make([]string, 0)
	err = s.db.SelectContext(ctx, &pinned, pinQuery, pinArgs...)
	if err != nil {
		return nil, err
	}

	return &models.ChatWithMembers{
		Chat:      *chat,
		Members:   members,
		PinnedIDs: pinned,
	}, nil
}

func (s *ChatsStorage) TouchMemberActivity(ctx context.Context, chatId, userId string, seenAt time.Time, markRead bool) error {
	builder := sq.Update("chat_members").
		Set("last_seen_at", seenAt).
		Where(sq.Eq{"chat_id": chatId, "user_id": userId}).
		PlaceholderFormat(sq.Dollar)

	if markRead {
		builder = builder.Set("last_read_at", seenAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (s *ChatsStorage) SetChatStatus(ctx context.Context, chatId string, status models.ChatStatus) error {
	return s.updateChat(ctx, chatId, map[string]interface{}{"status": status})
}

// SetLastMessage rewrites the chat preview. Nil arguments clear it, for
// chats whose every message has been deleted.
func (s *ChatsStorage) SetLastMessage(ctx context.Context, chatId string, text *string, at *time.Time) error {
	return s.updateChat(ctx, chatId, map[string]interface{}{
		"last_message_text": text,
		"last_message_at":   at,
	})
}

func (s *ChatsStorage) UpdateChatSettings(ctx context.Context, chatId string, fields map[string]interface{}) error {
	return s.updateChat(ctx, chatId, fields)
}

func (s *ChatsStorage) updateChat(ctx context.Context, chatId string, fields map[string]interface{}) error {
	query, args, err := sq.Update("chats").
		SetMap(fields).
		Where(sq.Eq{"chat_id": chatId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// GetUserChats lists a user's active chats newest-activity first.
func (s *ChatsStorage) GetUserChats(ctx context.Context, userId string) ([]models.ChatSummary, error) {
	builder := summaryBuilder().
		Join("chat_members ON chat_members.chat_id = chats.chat_id").
		Where(sq.Eq{
			"chat_members.user_id": userId,
			"chats.status":         models.ChatStatusActive,
		})

	return s.selectSummaries(ctx, builder)
}

// ListChatsForAudit lists every chat regardless of status or the caller's
// membership. Deleted chats stay listable this way after their members are
// gone. Reserved for globally privileged callers.
func (s *ChatsStorage) ListChatsForAudit(ctx context.Context) ([]models.ChatSummary, error) {
	return s.selectSummaries(ctx, summaryBuilder())
}

func summaryBuilder() sq.SelectBuilder {
	cols := make([]string, 0, len(chatColumns)+1)
	for _, c := range chatColumns {
		cols = append(cols, "chats."+c)
	}
	cols = append(cols, "count(members.user_id) AS member_count")

	return sq.Select(cols...).
		From("chats").
		LeftJoin("chat_members members ON members.chat_id = chats.chat_id").
		GroupBy("chats.chat_id").
		OrderBy("chats.last_message_at DESC NULLS LAST", "chats.created_at DESC").
		PlaceholderFormat(sq.Dollar)
}

func (s *ChatsStorage) selectSummaries(ctx context.Context, builder sq.SelectBuilder) ([]models.ChatSummary, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	chats := make([]models.ChatSummary, 0)
	err = s.db.SelectContext(ctx, &chats, query, args...)
	if err != nil {
		return nil, err
	}
	return chats, nil
}
