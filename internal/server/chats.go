package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/practice-sem-2/chat-service/internal/models"
	usecase "github.com/practice-sem-2/chat-service/internal/usecases"
	"github.com/sirupsen/logrus"
)

type ChatServer struct {
	chats    *usecase.ChatsUsecase
	validate *validator.Validate
	log      *logrus.Logger
}

func NewChatServer(c *usecase.ChatsUsecase, v *validator.Validate, log *logrus.Logger) *ChatServer {
	return &ChatServer{
		chats:    c,
		validate: v,
		log:      log,
	}
}

func (s *ChatServer) bind(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		abortWithError(c, wrapValidation(err))
		return false
	}
	if err := s.validate.Struct(dest); err != nil {
		abortWithError(c, wrapValidation(err))
		return false
	}
	return true
}

func pathUUID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if !usecase.ValidateUUID(id) {
		abortWithError(c, fmt.Errorf("%w: %s must be a uuid", usecase.ErrValidation, name))
		return "", false
	}
	return id, true
}

func (s *ChatServer) CreateChat(c *gin.Context) {
	input := models.ChatCreate{}
	if !s.bind(c, &input) {
		return
	}

	chat, err := s.chats.CreateChat(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (s *ChatServer) GetChat(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	chat, err := s.chats.GetChat(c.Request.Context(), actorFrom(c), chatId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (s *ChatServer) ListUserChats(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"

	chats, err := s.chats.GetUsersChats(c.Request.Context(), actorFrom(c), includeDeleted)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (s *ChatServer) DeleteChat(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	if err := s.chats.DeleteChat(c.Request.Context(), actorFrom(c), chatId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *ChatServer) UpdateChatSettings(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	input := models.ChatSettingsUpdate{}
	if !s.bind(c, &input) {
		return
	}

	chat, err := s.chats.UpdateChatSettings(c.Request.Context(), actorFrom(c), chatId, input)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (s *ChatServer) AddParticipant(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	input := models.MemberAdd{}
	if !s.bind(c, &input) {
		return
	}

	chat, err := s.chats.AddParticipant(c.Request.Context(), actorFrom(c), chatId, input.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (s *ChatServer) RemoveParticipant(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}
	userId, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	chat, err := s.chats.RemoveParticipant(c.Request.Context(), actorFrom(c), chatId, userId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (s *ChatServer) SetAdmin(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}
	userId, ok := pathUUID(c, "user_id")
	if !ok {
		return
	}

	input := models.AdminSet{}
	if !s.bind(c, &input) {
		return
	}

	if err := s.chats.SetAdmin(c.Request.Context(), actorFrom(c), chatId, userId, input.IsAdmin); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *ChatServer) LeaveChat(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	if err := s.chats.LeaveChat(c.Request.Context(), actorFrom(c), chatId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *ChatServer) MarkChatAsRead(c *gin.Context) {
	chatId, ok := pathUUID(c, "chat_id")
	if !ok {
		return
	}

	if err := s.chats.MarkChatAsRead(c.Request.Context(), actorFrom(c), chatId); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
