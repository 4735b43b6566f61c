package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/service/groups"
	"github.com/vovakirdan/huddle/internal/store"
)

// MessageHandlers serves message history and posting over REST.
type MessageHandlers struct {
	messages store.MessageStore
	groups   *groups.Service
	router   *core.Router
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(messages store.MessageStore, svc *groups.Service, router *core.Router, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		messages: messages,
		groups:   svc,
		router:   router,
		log:      logger,
	}
}

// PostMessageRequest represents the post message request body. An empty
// chatId means the global room.
type PostMessageRequest struct {
	ChatID string `json:"chatId"`
	Sender string `json:"sender"`
	Text   string `json:"text" binding:"required"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        int64  `json:"id"`
	ChatID    string `json:"chatId"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func toMessageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		ChatID:    m.RoomID,
		Sender:    m.SenderID,
		Text:      m.Text,
		Timestamp: m.CreatedAt.Format(time.RFC3339Nano),
	}
}

// ListMessages returns the messages of a room, oldest first.
// GET /api/messages?chatId=
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	room := c.DefaultQuery("chatId", h.router.GlobalRoom())

	if user := actor(c, ""); user != "" && room != h.router.GlobalRoom() {
		if err := h.groups.RequireMember(ctx, room, user); err != nil {
			h.writeError(c, err)
			return
		}
	}

	msgs, err := h.messages.ListMessages(ctx, room)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, response)
}

// PostMessage persists a message and delivers it to live subscribers.
// POST /api/messages
func (h *MessageHandlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid post message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text and sender are required"})
		return
	}
	sender := actor(c, req.Sender)
	if sender == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "text and sender are required"})
		return
	}

	ctx := c.Request.Context()
	room := req.ChatID
	if room == "" {
		room = h.router.GlobalRoom()
	}
	if room != h.router.GlobalRoom() {
		if err := h.groups.RequireMember(ctx, room, sender); err != nil {
			h.writeError(c, err)
			return
		}
	}

	msg, err := h.router.PostMessage(ctx, room, sender, req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(msg))
}

func (h *MessageHandlers) writeError(c *gin.Context, err error) {
	var ce *core.CoreError
	switch {
	case errors.Is(err, groups.ErrNotMember):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this group"})
	case errors.Is(err, groups.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
	case errors.As(err, &ce) && ce.Code == core.ErrCodeValidation:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ce.Message})
	default:
		h.log.Error().Err(err).Msg("message request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
