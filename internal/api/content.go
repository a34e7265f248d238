package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/livercare-risk-server/internal/domain"
	"github.com/livercare-risk-server/internal/middleware"
)

const maxChatMessageBytes = 4096

type chatRequest struct {
	Message string `json:"message"`
}

type chatErrorFrame struct {
	Error string `json:"error"`
}

func (s *Server) handleListPosts(c *gin.Context) {
	posts, err := s.deps.Blog.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	if posts == nil {
		posts = []*domain.BlogPost{}
	}
	c.JSON(http.StatusOK, posts)
}

func (s *Server) handleGetPost(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.Abort(c, http.StatusNotFound, domain.ErrNotFoundCode, "Post not found")
		return
	}

	post, err := s.deps.Blog.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, "Post not found")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, http.StatusBadRequest, domain.ErrInvalidInput, "Message is required")
		return
	}

	reply, err := s.deps.Chatbot.Reply(req.Message)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	s.deps.Metrics.ObserveChat(string(reply.Topic))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"topic":   reply.Topic,
		"message": reply.Message,
	})
}

// handleChatSocket answers every text frame with one JSON reply frame.
func (s *Server) handleChatSocket(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.deps.Logger.WithError(err).Debug("Chat websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxChatMessageBytes)

	logger := s.deps.Logger.WithField(middleware.CorrelationIDKey, c.GetString(middleware.CorrelationIDKey))
	logger.Debug("Chat websocket connected")

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Warn("Chat websocket closed unexpectedly")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame interface{}
		reply, err := s.deps.Chatbot.Reply(string(data))
		if err != nil {
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				logger.WithError(err).Error("Chatbot failed")
				return
			}
			frame = chatErrorFrame{Error: ve.Message}
		} else {
			s.deps.Metrics.ObserveChat(string(reply.Topic))
			frame = reply
		}

		if err := conn.WriteJSON(frame); err != nil {
			logger.WithError(err).Warn("Failed to write chat reply")
			return
		}
	}
}

// checkOrigin applies the CORS allow list to websocket handshakes.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	allowed := s.configManager.GetServerConfig().AllowedOrigins
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
