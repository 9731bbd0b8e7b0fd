package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/sirupsen/logrus"
)

func NewRouter(s *ChatServer, verifier *auth.Verifier, log *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", AuthMiddleware(verifier))

	api.POST("/chats", s.CreateChat)
	api.GET("/chats", s.ListUserChats)
	api.GET("/chats/:chat_id", s.GetChat)
	api.PATCH("/chats/:chat_id", s.UpdateChatSettings)
	api.DELETE("/chats/:chat_id", s.DeleteChat)

	api.POST("/chats/:chat_id/members", s.AddParticipant)
	api.DELETE("/chats/:chat_id/members/:user_id", s.RemoveParticipant)
	api.PUT("/chats/:chat_id/members/:user_id/admin", s.SetAdmin)
	api.POST("/chats/:chat_id/leave", s.LeaveChat)
	api.POST("/chats/:chat_id/read", s.MarkChatAsRead)

	api.GET("/chats/:chat_id/messages", s.ListMessages)
	api.POST("/chats/:chat_id/messages", s.SendMessage)
	api.GET("/chats/:chat_id/search", s.SearchMessages)
	api.PATCH("/chats/:chat_id/messages/:message_id", s.EditMessage)
	api.DELETE("/chats/:chat_id/messages/:message_id", s.DeleteMessage)
	api.POST("/chats/:chat_id/messages/:message_id/reactions", s.ToggleReaction)
	api.POST("/chats/:chat_id/messages/:message_id/pin", s.TogglePinMessage)

	return router
}

func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Error("request failed")
		} else {
			entry.Debug("request handled")
		}
	}
}
