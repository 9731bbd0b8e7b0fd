package storage

import (
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/practice-sem-2/chat-service/internal/models"
)

// UpdatesStorage publishes domain updates to Kafka. The notification
// service consumes them and owns push/email fan-out; our responsibility
// ends at producing the payload.
type UpdatesStorage struct {
	cfg      *UpdatesStoreConfig
	producer sarama.SyncProducer
}

type UpdatesStoreConfig struct {
	UpdatesTopic string
}

func NewUpdatesStore(p sarama.SyncProducer, cfg *UpdatesStoreConfig) *UpdatesStorage {
	return &UpdatesStorage{
		producer: p,
		cfg:      cfg,
	}
}

const (
	UpdateKindChatCreated       = "chat_created"
	UpdateKindChatDeleted       = "chat_deleted"
	UpdateKindMemberAdded       = "member_added"
	UpdateKindMemberRemoved     = "member_removed"
	UpdateKindMessageSent       = "message_sent"
	UpdateKindMessageEdited     = "message_edited"
	UpdateKindMessageDeleted    = "message_deleted"
	UpdateKindMessagePinToggled = "message_pin_toggled"
)

type updateEnvelope struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

// putUpdate keys every record by chat id so one chat's updates land on one
// partition, in order.
func (s *UpdatesStorage) putUpdate(key, kind string, payload interface{}) error {
	body, err := json.Marshal(updateEnvelope{
		Kind:    kind,
		Payload: payload,
	})
	if err != nil {
		return err
	}

	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     s.cfg.UpdatesTopic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(body),
		Timestamp: time.Time{},
	})

	return err
}

func (s *UpdatesStorage) ChatCreated(update *models.ChatCreated) error {
	return s.putUpdate(update.ChatID, UpdateKindChatCreated, update)
}

func (s *UpdatesStorage) ChatDeleted(update *models.ChatDeleted) error {
	return s.putUpdate(update.ChatID, UpdateKindChatDeleted, update)
}

func (s *UpdatesStorage) MemberAdded(update *models.MemberAdded) error {
	return s.putUpdate(update.ChatID, UpdateKindMemberAdded, update)
}

func (s *UpdatesStorage) MemberRemoved(update *models.MemberRemoved) error {
	return s.putUpdate(update.ChatID, UpdateKindMemberRemoved, update)
}

func (s *UpdatesStorage) MessageSent(update *models.MessageSent) error {
	return s.putUpdate(update.ChatID, UpdateKindMessageSent, update)
}

func (s *UpdatesStorage) MessageEdited(update *models.MessageEdited) error {
	return s.putUpdate(update.ChatID, UpdateKindMessageEdited, update)
}

func (s *UpdatesStorage) MessageDeleted(update *models.MessageDeleted) error {
	return s.putUpdate(update.ChatID, UpdateKindMessageDeleted, update)
}

func (s *UpdatesStorage) MessagePinToggled(update *models.MessagePinToggled) error {
	return s.putUpdate(update.ChatID, UpdateKindMessagePinToggled, update)
}
