package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assistantdomain "github.com/smallbiznis/covera/internal/assistant/domain"
	"go.uber.org/zap"
)

const chatFallbackReply = "Désolée, une erreur technique est survenue. Merci de réessayer dans un instant."

type chatRequest struct {
	Message     string `form:"msg" json:"msg"`
	SessionID   string `form:"session_id" json:"session_id"`
	UserPhone   string `form:"user_phone" json:"user_phone"`
	MediaURL    string `form:"media_url" json:"media_url"`
	MessageType string `form:"message_type" json:"message_type"`
}

type chatResponse struct {
	Reply     string         `json:"reply"`
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Chat runs one conversation turn. Failures past input validation still
// answer with a reply the messaging channel can forward to the client.
func (s *Server) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.MediaURL) == "" {
		AbortWithError(c, newValidationError("msg", "required", "msg or media_url is required"))
		return
	}
	bindSession(c, req.SessionID)

	reply, err := s.assistant.Chat(c.Request.Context(), assistantdomain.ChatRequest{
		SessionID:   req.SessionID,
		Phone:       req.UserPhone,
		Message:     req.Message,
		MediaURL:    req.MediaURL,
		MessageType: req.MessageType,
	})
	if reply.SessionID == "" {
		reply.SessionID = strings.TrimSpace(req.SessionID)
	}
	if err == nil {
		bindSession(c, reply.SessionID)
		c.JSON(http.StatusOK, chatResponse{Reply: reply.Reply, SessionID: reply.SessionID, Metadata: reply.Metadata})
		return
	}

	switch {
	case errors.Is(err, assistantdomain.ErrEmptyMessage):
		AbortWithError(c, err)
		return
	case errors.Is(err, assistantdomain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, chatResponse{Reply: reply.Reply, SessionID: reply.SessionID})
		return
	case errors.Is(err, assistantdomain.ErrSessionBusy):
		c.JSON(http.StatusConflict, chatResponse{Reply: reply.Reply, SessionID: reply.SessionID})
		return
	}

	s.log.Error("chat turn failed", zap.String("session_id", reply.SessionID), zap.Error(err))
	_ = c.Error(err)
	text := reply.Reply
	if text == "" {
		text = chatFallbackReply
	}
	c.JSON(http.StatusInternalServerError, chatResponse{Reply: text, SessionID: reply.SessionID})
}
