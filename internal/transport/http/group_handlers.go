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

// GroupHandlers provides HTTP handlers for group management endpoints.
type GroupHandlers struct {
	groups *groups.Service
	router *core.Router
	log    *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(svc *groups.Service, router *core.Router, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{
		groups: svc,
		router: router,
		log:    logger,
	}
}

// CreateGroupRequest represents the create group request body. Creator is
// ignored when the request is authenticated.
type CreateGroupRequest struct {
	Name    string   `json:"name" binding:"required"`
	Creator string   `json:"creator"`
	Members []string `json:"members" binding:"required"`
}

// AddMemberRequest represents the add member request body.
type AddMemberRequest struct {
	Username string `json:"username" binding:"required"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Creator     string   `json:"creator"`
	Members     []string `json:"members"`
	MemberCount int      `json:"member_count"`
	OnlineCount *int     `json:"online_count,omitempty"`
	LastMessage string   `json:"last_message,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toGroupResponse(g *store.Group) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Creator:     g.CreatorID,
		Members:     nonNil(g.Members),
		MemberCount: g.MemberCount(),
		LastMessage: g.LastMessage,
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   g.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateGroup handles group creation.
// POST /api/groups
func (h *GroupHandlers) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name, creator and members are required"})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), groups.CreateRequest{
		Name:    req.Name,
		Creator: actor(c, req.Creator),
		Members: req.Members,
	})
	if err != nil {
		h.writeError(c, err, "failed to create group")
		return
	}
	c.JSON(http.StatusCreated, toGroupResponse(group))
}

// ListUserGroups lists the groups a user belongs to, most recently active first.
// GET /api/groups/user/:username
func (h *GroupHandlers) ListUserGroups(c *gin.Context) {
	list, err := h.groups.ListByMember(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err, "failed to list groups")
		return
	}

	response := make([]GroupResponse, 0, len(list))
	for _, g := range list {
		response = append(response, toGroupResponse(g))
	}
	c.JSON(http.StatusOK, response)
}

// GetGroup returns a group with the number of members currently online.
// GET /api/groups/:id
func (h *GroupHandlers) GetGroup(c *gin.Context) {
	ctx := c.Request.Context()
	group, err := h.groups.Get(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to get group")
		return
	}

	resp := toGroupResponse(group)
	if h.router != nil {
		online, err := h.router.OnlineMembers(ctx, group.ID)
		if err != nil {
			h.log.Warn().Err(err).Str("group", group.ID).Msg("failed to count online members")
		} else {
			n := len(online)
			resp.OnlineCount = &n
		}
	}
	c.JSON(http.StatusOK, resp)
}

// AddMember adds a user to a group.
// POST /api/groups/:id/members
func (h *GroupHandlers) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	group, err := h.groups.AddMember(c.Request.Context(), c.Param("id"), req.Username)
	if err != nil {
		h.writeError(c, err, "failed to add member")
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(group))
}

// RemoveMember removes a user from a group.
// DELETE /api/groups/:id/members/:username
func (h *GroupHandlers) RemoveMember(c *gin.Context) {
	group, err := h.groups.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("username"))
	if err != nil {
		h.writeError(c, err, "failed to remove member")
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(group))
}

func (h *GroupHandlers) writeError(c *gin.Context, err error, msg string) {
	status, text := groupErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
	}
	c.JSON(status, ErrorResponse{Error: text})
}

func groupErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, groups.ErrValidation), errors.Is(err, groups.ErrUnknownUser), errors.Is(err, groups.ErrCreatorRemoval):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, groups.ErrGroupNotFound):
		return http.StatusNotFound, "group not found"
	case errors.Is(err, groups.ErrNotMember):
		return http.StatusNotFound, "user is not a member"
	case errors.Is(err, groups.ErrNameTaken), errors.Is(err, groups.ErrAlreadyMember):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}
