package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/livecast/livecast/internal/service"
)

// Handler exposes the session engine over HTTP. The identity collaborator
// supplies the caller's user ID (X-User-ID header or user_id query param);
// the engine only checks ownership and allow-lists.
type Handler struct {
	registry  *service.StreamRegistry
	presence  *service.ViewerPresenceTracker
	chat      *service.ChatFanoutService
	gifts     *service.GiftLedger
	analytics *service.AnalyticsAggregator
	hub       *Hub
}

func NewHandler(
	registry *service.StreamRegistry,
	presence *service.ViewerPresenceTracker,
	chat *service.ChatFanoutService,
	gifts *service.GiftLedger,
	analytics *service.AnalyticsAggregator,
	hub *Hub,
) *Handler {
	return &Handler{
		registry:  registry,
		presence:  presence,
		chat:      chat,
		gifts:     gifts,
		analytics: analytics,
		hub:       hub,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws", h.ServeWS)

	api := router.Group("/api/v1")
	{
		api.GET("/health", HealthCheck)

		api.POST("/streams", h.CreateStream)
		api.GET("/streams", h.ListLive)
		api.GET("/streams/:id", h.GetStream)
		api.PATCH("/streams/:id", h.UpdateStream)
		api.POST("/streams/:id/start", h.StartStream)
		api.POST("/streams/:id/end", h.EndStream)

		api.POST("/streams/:id/join", h.Join)
		api.POST("/streams/:id/leave", h.Leave)
		api.GET("/streams/:id/viewers", h.ListViewers)
		api.PUT("/streams/:id/moderators/:userId", h.SetModerator)

		api.GET("/streams/:id/messages", h.Messages)
		api.POST("/streams/:id/messages", h.PostMessage)
		api.POST("/streams/:id/messages/:messageId/pin", h.PinMessage)
		api.DELETE("/streams/:id/messages/:messageId/pin", h.UnpinMessage)
		api.POST("/streams/:id/messages/:messageId/reactions", h.React)

		api.POST("/streams/:id/gifts", h.SendGift)
		api.GET("/streams/:id/analytics", h.GetAnalytics)
	}
}

func callerID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrChatDisabled),
		errors.Is(err, service.ErrMonetizationDisabled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFromError(err), gin.H{"error": err.Error()})
}

func (h *Handler) CreateStream(c *gin.Context) {
	var req service.CreateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	stream, err := h.registry.CreateStream(callerID(c), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stream)
}

func (h *Handler) ListLive(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	streams := h.registry.ListLive(c.Query("category"), limit)
	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"count":   len(streams),
	})
}

func (h *Handler) GetStream(c *gin.Context) {
	stream, err := h.registry.GetStream(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stream)
}

func (h *Handler) UpdateStream(c *gin.Context) {
	var req service.UpdateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	stream, err := h.registry.UpdateStream(c.Param("id"), callerID(c), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stream)
}

func (h *Handler) StartStream(c *gin.Context) {
	stream, err := h.registry.StartStream(c.Param("id"), callerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stream)
}

func (h *Handler) EndStream(c *gin.Context) {
	stream, err := h.registry.EndStream(c.Param("id"), callerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stream)
}

func (h *Handler) Join(c *gin.Context) {
	var req service.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if req.UserID == "" {
		req.UserID = callerID(c)
	}
	viewer, err := h.presence.Join(c.Param("id"), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewer)
}

func (h *Handler) Leave(c *gin.Context) {
	viewer, err := h.presence.Leave(c.Param("id"), callerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if viewer == nil {
		c.JSON(http.StatusOK, gin.H{"left": false})
		return
	}
	c.JSON(http.StatusOK, viewer)
}

func (h *Handler) ListViewers(c *gin.Context) {
	viewers, err := h.presence.ListActive(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"viewers": viewers,
		"count":   len(viewers),
	})
}

func (h *Handler) SetModerator(c *gin.Context) {
	var req struct {
		IsModerator bool `json:"is_moderator"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if err := h.presence.SetModerator(c.Param("id"), callerID(c), c.Param("userId"), req.IsModerator); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("userId"), "is_moderator": req.IsModerator})
}

func (h *Handler) Messages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	messages, err := h.chat.Messages(c.Param("id"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

func (h *Handler) PostMessage(c *gin.Context) {
	var req service.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if req.UserID == "" {
		req.UserID = callerID(c)
	}
	msg, err := h.chat.PostMessage(c.Param("id"), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) PinMessage(c *gin.Context) {
	msg, err := h.chat.Pin(c.Param("id"), c.Param("messageId"), callerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) UnpinMessage(c *gin.Context) {
	msg, err := h.chat.Unpin(c.Param("id"), c.Param("messageId"), callerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) React(c *gin.Context) {
	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	msg, err := h.chat.React(c.Param("id"), c.Param("messageId"), callerID(c), req.Reaction)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) SendGift(c *gin.Context) {
	var req service.SendGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}
	if req.FromUserID == "" {
		req.FromUserID = callerID(c)
	}
	gift, err := h.gifts.SendGift(c.Param("id"), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gift)
}

func (h *Handler) GetAnalytics(c *gin.Context) {
	snapshot, err := h.analytics.GetAnalytics(c.Param("id"), callerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// ServeWS upgrades the connection and subscribes the client to a stream's
// fan-out channel. Viewer presence stays a REST concern; the socket is the
// delivery transport only, plus inbound chat frames.
func (h *Handler) ServeWS(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	username := c.Query("username")
	streamID := c.Query("stream_id")

	if streamID != "" {
		if _, err := h.registry.GetStream(streamID); err != nil {
			abortWithError(c, err)
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, 256),
		hub:      h.hub,
		userID:   userID,
		username: username,
		streams:  make(map[string]bool),
	}
	h.hub.register <- client
	if streamID != "" {
		h.hub.Subscribe(client, streamID)
	}

	go client.writePump()
	go client.readPump()
}
