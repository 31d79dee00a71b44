package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type roomHandlers struct {
	rooms  *app.RoomService
	access *app.AccessController
}

type createRoomRequest struct {
	RoomID             string  `json:"roomId" binding:"required"`
	Password           string  `json:"password"`
	LifetimeSeconds    int64   `json:"lifetimeSeconds"`
	Layout             *string `json:"layout"`
	UpvoteEnabled      *bool   `json:"upvoteEnabled"`
	RateLimit          *int    `json:"rateLimit"`
	MaxMessageDuration *int    `json:"maxMessageDuration"`
}

type authenticateRequest struct {
	Password string `json:"password"`
}

type roomResponse struct {
	RoomID             string    `json:"roomId"`
	LifetimeSeconds    int64     `json:"lifetimeSeconds"`
	Layout             string    `json:"layout"`
	UpvoteEnabled      bool      `json:"upvoteEnabled"`
	RateLimit          int       `json:"rateLimit"`
	MaxMessageDuration int       `json:"maxMessageDuration"`
	CreatedAt          time.Time `json:"createdAt"`
	RequiresPassword   bool      `json:"requiresPassword"`
}

type lockedRoomResponse struct {
	RoomID           string `json:"roomId"`
	RequiresPassword bool   `json:"requiresPassword"`
}

func toRoomResponse(r *domain.Room) roomResponse {
	return roomResponse{
		RoomID:             string(r.ID),
		LifetimeSeconds:    r.LifetimeSeconds,
		Layout:             r.Layout,
		UpvoteEnabled:      r.UpvoteEnabled,
		RateLimit:          r.RateLimit,
		MaxMessageDuration: r.MaxMessageDuration,
		CreatedAt:          r.CreatedAt.UTC(),
		RequiresPassword:   r.RequiresPassword(),
	}
}

func (h *roomHandlers) create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), req.RoomID, domain.RoomParams{
		Password:           req.Password,
		LifetimeSeconds:    req.LifetimeSeconds,
		Layout:             req.Layout,
		UpvoteEnabled:      req.UpvoteEnabled,
		RateLimit:          req.RateLimit,
		MaxMessageDuration: req.MaxMessageDuration,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": toRoomResponse(room)})
}

// get reveals configuration of a protected room only to a holder of a token for it.
func (h *roomHandlers) get(c *gin.Context) {
	roomID := c.Param("roomId")
	room, err := h.rooms.Get(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	if room.RequiresPassword() {
		if err := h.access.Verify(h.tokenFor(c, roomID), room.ID); err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("room", roomID).Msg("room locked")
			c.JSON(http.StatusOK, lockedRoomResponse{RoomID: roomID, RequiresPassword: true})
			return
		}
	}
	c.JSON(http.StatusOK, toRoomResponse(room))
}

func (h *roomHandlers) authenticate(c *gin.Context) {
	roomID := c.Param("roomId")
	var req authenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	token, err := h.access.Authenticate(c.Request.Context(), roomID, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(tokenKey(roomID), token)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

func (h *roomHandlers) remove(c *gin.Context) {
	roomID := c.Param("roomId")
	id, err := domain.ParseRoomID(roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.access.Verify(h.tokenFor(c, roomID), id); err != nil {
		writeError(c, err)
		return
	}
	if err := h.rooms.Delete(c.Request.Context(), roomID); err != nil {
		writeError(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Delete(tokenKey(roomID))
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func tokenKey(roomID string) string { return "access_token:" + roomID }

// tokenFor prefers the Authorization header and falls back to the cookie session.
func (h *roomHandlers) tokenFor(c *gin.Context, roomID string) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	if v, ok := sessions.Default(c).Get(tokenKey(roomID)).(string); ok {
		return v
	}
	return ""
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRoomID), errors.Is(err, domain.ErrInvalidParams):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDuplicateRoom):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
