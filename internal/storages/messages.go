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
	ErrMessageAlreadyExists   = errors.New("message with provided message_id already exists")
	ErrMessageNotFound        = errors.New("message does not exist")
	ErrRepliedMessageNotFound = errors.New("message replies to a not existing message")
	ErrReactionAlreadyExists  = errors.New("reaction already exists")
	ErrReactionNotFound       = errors.New("reaction does not exist")
	ErrPinAlreadyExists       = errors.New("message is already pinned")
	ErrPinNotFound            = errors.New("message is not pinned")
)

const (
	MessagesPrimaryKey        = "messages_pkey"
	MessagesChatIdForeignKey  = "messages_chat_id_fkey"
	MessagesReplyToForeignKey = "messages_reply_to_fkey"
	ReactionsPrimaryKey       = "message_reactions_pkey"
	PinsPrimaryKey            = "chat_pins_pkey"
)

type MessagesStorage struct {
	db Scope
}

func NewMessagesStorage(db Scope) *MessagesStorage {
	return &MessagesStorage{
		db: db,
	}
}

var messageColumns = []string{
	"message_id", "chat_id", "from_user", "type", "text", "reply_to",
	"sending_time", "updated_at", "is_edited", "status", "deleted_at",
	"deleted_by", "is_pinned",
}

func (s *MessagesStorage) PutMessage(ctx context.Context, message *models.Message) error {
	query, args, err := sq.Insert("messages").
		Columns(messageColumns...).
		Values(
			message.MessageID, message.ChatID, message.FromUser, message.Type,
			message.Text, message.ReplyTo, message.SendingTime,
			message.UpdatedAt, message.IsEdited, message.Status,
			message.DeletedAt, message.DeletedBy, message.IsPinned,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case MessagesReplyToForeignKey:
		return ErrRepliedMessageNotFound
	case MessagesChatIdForeignKey:
		return ErrChatNotFound
	case MessagesPrimaryKey:
		return ErrMessageAlreadyExists
	}
	if err != nil {
		return err
	}

	if len(message.Attachments) == 0 {
		return nil
	}

	builder := sq.Insert("message_attachments").
		Columns("message_id", "file_id", "mime_type").
		PlaceholderFormat(sq.Dollar)
	for _, att := range message.Attachments {
		builder = builder.Values(message.MessageID, att.FileID, att.MimeType)
	}

	query, args, err = builder.ToSql()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *MessagesStorage) GetMessage(ctx context.Context, chatId, messageId string) (*models.Message, error) {
	query, args, err := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"chat_id": chatId, "message_id": messageId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	msg := models.Message{}
	err = s.db.GetContext(ctx, &msg, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	} else if err != nil {
		return nil, err
	}

	loaded, err := s.attachDetails(ctx, []models.Message{msg})
	if err != nil {
		return nil, err
	}
	return &loaded[0], nil
}

func (s *MessagesStorage) UpdateMessageText(ctx context.Context, messageId, text string, at time.Time) error {
	query, args, err := sq.Update("messages").
		Set("text", text).
		Set("is_edited", true).
		Set("updated_at", at).
		Where(sq.Eq{"message_id": messageId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	return s.execExpectingRow(ctx, query, args, ErrMessageNotFound)
}

func (s *MessagesStorage) SoftDeleteMessage(ctx context.Context, messageId, deletedBy string, at time.Time) error {
	query, args, err := sq.Update("messages").
		Set("status", models.MessageStatusDeleted).
		Set("deleted_at", at).
		Set("deleted_by", deletedBy).
		Where(sq.Eq{"message_id": messageId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	return s.execExpectingRow(ctx, query, args, ErrMessageNotFound)
}

// LastActiveSendingTime returns when the author last sent a message that is
// still active in this chat, or nil if there is none. Deleted messages do
// not count towards slow-mode throttling.
func (s *MessagesStorage) LastActiveSendingTime(ctx context.Context, chatId, authorId string) (*time.Time, error) {
	query, args, err := sq.Select("sending_time").
		From("messages").
		Where(sq.Eq{
			"chat_id":   chatId,
			"from_user": authorId,
			"status":    models.MessageStatusActive,
		}).
		OrderBy("sending_time DESC", "message_id DESC").
		Limit(1).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	var sendingTime time.Time
	err = s.db.GetContext(ctx, &sendingTime, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &sendingTime, nil
}

// NewestActiveMessage returns the chat's most recent active message, or nil
// when none remain. Feeds the chat preview after a deletion.
func (s *MessagesStorage) NewestActiveMessage(ctx context.Context, chatId string) (*models.Message, error) {
	query, args, err := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{
			"chat_id": chatId,
			"status":  models.MessageStatusActive,
		}).
		OrderBy("sending_time DESC", "message_id DESC").
		Limit(1).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	message := models.Message{}
	err = s.db.GetContext(ctx, &message, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListMessages pages through active messages oldest-first with a keyset
// cursor over (sending_time, message_id), which stays correct while new
// messages keep arriving.
func (s *MessagesStorage) ListMessages(ctx context.Context, chatId string, after *MessageCursor, limit uint64) ([]models.Message, error) {
	return s.selectMessages(ctx, chatId, after, limit, nil)
}

func (s *MessagesStorage) SearchMessages(ctx context.Context, chatId, pattern string, after *MessageCursor, limit uint64) ([]models.Message, error) {
	match := sq.ILike{"text": "%" + pattern + "%"}
	return s.selectMessages(ctx, chatId, after, limit, match)
}

func (s *MessagesStorage) selectMessages(ctx context.Context, chatId string, after *MessageCursor, limit uint64, extra sq.Sqlizer) ([]models.Message, error) {
	builder := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{
			"chat_id": chatId,
			"status":  models.MessageStatusActive,
		}).
		OrderBy("sending_time", "message_id").
		PlaceholderFormat(sq.Dollar)

	if after != nil {
		builder = builder.Where(sq.Expr(
			"(sending_time, message_id) > (?, ?)",
			after.SentAt, after.MessageID,
		))
	}
	if extra != nil {
		builder = builder.Where(extra)
	}
	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0)
	err = s.db.SelectContext(ctx, &messages, query, args...)
	if err != nil {
		return nil, err
	}

	return s.attachDetails(ctx, messages)
}

func (s *MessagesStorage) AddReaction(ctx context.Context, messageId, userId, emoji string, at time.Time) error {
	query, args, err := sq.Insert("message_reactions").
		Columns("message_id", "user_id", "emoji", "reacted_at").
		Values(messageId, userId, emoji, at).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	if GetPgxConstraintName(err) == ReactionsPrimaryKey {
		return ErrReactionAlreadyExists
	}
	return err
}

func (s *MessagesStorage) RemoveReaction(ctx context.Context, messageId, userId, emoji string) error {
	query, args, err := sq.Delete("message_reactions").
		Where(sq.Eq{"message_id": messageId, "user_id": userId, "emoji": emoji}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	return s.execExpectingRow(ctx, query, args, ErrReactionNotFound)
}

func (s *MessagesStorage) CountPins(ctx context.Context, chatId string) (int, error) {
	query, args, err := sq.Select("count(*)").
		From("chat_pins").
		Where(sq.Eq{"chat_id": chatId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return 0, err
	}

	count := 0
	err = s.db.GetContext(ctx, &count, query, args...)
	return count, err
}

func (s *MessagesStorage) PinMessage(ctx context.Context, chatId, messageId, pinnedBy string, at time.Time) error {
	query, args, err := sq.Insert("chat_pins").
		Columns("chat_id", "message_id", "pinned_by", "pinned_at").
		Values(chatId, messageId, pinnedBy, at).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	if GetPgxConstraintName(err) == PinsPrimaryKey {
		return ErrPinAlreadyExists
	}
	if err != nil {
		return err
	}

	return s.setPinnedFlag(ctx, messageId, true)
}

func (s *MessagesStorage) UnpinMessage(ctx context.Context, chatId, messageId string) error {
	query, args, err := sq.Delete("chat_pins").
		Where(sq.Eq{"chat_id": chatId, "message_id": messageId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	if err := s.execExpectingRow(ctx, query, args, ErrPinNotFound); err != nil {
		return err
	}

	return s.setPinnedFlag(ctx, messageId, false)
}

func (s *MessagesStorage) setPinnedFlag(ctx context.Context, messageId string, pinned bool) error {
	query, args, err := sq.Update("messages").
		Set("is_pinned", pinned).
		Where(sq.Eq{"message_id": messageId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	return s.execExpectingRow(ctx, query, args, ErrMessageNotFound)
}

func (s *MessagesStorage) execExpectingRow(ctx context.Context, query string, args []interface{}, missing error) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return missing
	}
	return nil
}

// attachDetails loads reactions and attachments for a batch of messages.
func (s *MessagesStorage) attachDetails(ctx context.Context, messages []models.Message) ([]models.Message, error) {
	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]string, len(messages))
	index := make(map[string]int, len(messages))
	for i := range messages {
		messages[i].Reactions = []models.Reaction{}
		messages[i].Attachments = []models.FileAttachment{}
		ids[i] = messages[i].MessageID
		index[messages[i].MessageID] = i
	}

	query, args, err := sq.Select("message_id", "user_id", "emoji", "reacted_at").
		From("message_reactions").
		Where(sq.Eq{"message_id": ids}).
		OrderBy("reacted_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	reactions := make([]models.Reaction, 0)
	if err = s.db.SelectContext(ctx, &reactions, query, args...); err != nil {
		return nil, err
	}
	for _, r := range reactions {
		i := index[r.MessageID]
		messages[i].Reactions = append(messages[i].Reactions, r)
	}

	query, args, err = sq.Select("message_id", "file_id", "mime_type").
		From("message_attachments").
		Where(sq.Eq{"message_id": ids}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var messageId string
		att := models.FileAttachment{}
		if err = rows.Scan(&messageId, &att.FileID, &att.MimeType); err != nil {
			return nil, err
		}
		i := index[messageId]
		messages[i].Attachments = append(messages[i].Attachments, att)
	}

	return messages, rows.Err()
}
