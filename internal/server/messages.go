package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/practice-sem-2/chat-service/internal/models"
)

type sendMessageBody struct {
	MessageID   string                  `json:"message_id"`
	Type        models.MessageType      `json:"type"`
	Text        string                  `json:"text"`
	ReplyTo     *string                 `json:"reply_to"`
	Attachments []models.FileAttachment `json:"attachments"`
}

func (s *ChatServer) SendMessage(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	body := sendMessageBody{}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, wrapValidation(err))
		return
	}
	input := models.MessageSend{
		MessageID:   body.MessageID,
		ChatID:      chatId,
		Type:        body.Type,
		Text:        body.Text,
		ReplyTo:     body.ReplyTo,
		Attachments: body.Attachments,
	}
	if err := s.validate.Struct(&input); err != nil {
		abortWithError(c, wrapValidation(err))
		return
	}

	message, err := s.chats.SendMessage(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (s *ChatServer) EditMessage(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}
	messageId, ok := pathUUID(c, "message_id")
	if !ok {
		return
	}

	input := models.MessageEdit{}
	if !s.bind(c, &input) {
		return
	}

	message, err := s.chats.EditMessage(c.Request.Context(), actorFrom(c), chatId, messageId, input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

func (s *ChatServer) DeleteMessage(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}
	messageId, ok := pathUUID(c, "message_id")
	if !ok {
		return
	}

	if err := s.chats.DeleteMessage(c.Request.Context(), actorFrom(c), chatId, messageId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *ChatServer) ToggleReaction(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}
	messageId, ok := pathUUID(c, "message_id")
	if !ok {
		return
	}

	input := models.ReactionToggle{}
	if !s.bind(c, &input) {
		return
	}

	added, err := s.chats.ToggleReaction(c.Request.Context(), actorFrom(c), chatId, messageId, input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (s *ChatServer) TogglePinMessage(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}
	messageId, ok := pathUUID(c, "message_id")
	if !ok {
		return
	}

	pinned, err := s.chats.TogglePinMessage(c.Request.Context(), actorFrom(c), chatId, messageId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": pinned})
}

func (s *ChatServer) listSelect(c *gin.Context, chatId string) models.MessagesSelect {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return models.MessagesSelect{
		ChatID: chatId,
		Cursor: c.Query("cursor"),
		Limit:  limit,
		Query:  c.Query("q"),
	}
}

func (s *ChatServer) ListMessages(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	sel := s.listSelect(c, chatId)
	if err := s.validate.Struct(&sel); err != nil {
		abortWithError(c, wrapValidation(err))
		return
	}

	messages, next, err := s.chats.GetMessages(c.Request.Context(), actorFrom(c), sel)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":    messages,
		"next_cursor": next,
	})
}

func (s *ChatServer) SearchMessages(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	sel := s.listSelect(c, chatId)
	if err := s.validate.Struct(&sel); err != nil {
		abortWithError(c, wrapValidation(err))
		return
	}

	messages, next, err := s.chats.SearchMessages(c.Request.Context(), actorFrom(c), sel)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":    messages,
		"next_cursor": next,
	})
}
