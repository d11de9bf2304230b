package historyapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/0ya-sh0/GoChatRoom/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_LATEST_LIMIT = 50
	MAX_LATEST_LIMIT     = 1000
)

// Response is the envelope every endpoint answers with. Code mirrors the
// HTTP status.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type Handler struct {
	log   zerolog.Logger
	store store.Store
}

func NewHandler(log zerolog.Logger, s store.Store) *Handler {
	return &Handler{log: log.With().Str("component", "historyapi").Logger(), store: s}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "success", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: status, Message: message})
}

// Save handles POST /api/chat/save.
func (h *Handler) Save(c *gin.Context) {
	var rec store.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		h.log.Warn().Err(err).Msg("invalid save request")
		fail(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.store.SaveMessage(c.Request.Context(), rec); err != nil {
		if errors.Is(err, store.ErrInvalidRecord) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("id", rec.ID).Msg("save message failed")
		fail(c, http.StatusInternalServerError, "could not save message")
		return
	}
	ok(c, rec)
}

// Latest handles GET /api/chat/latest?limit=N.
func (h *Handler) Latest(c *gin.Context) {
	limit := DEFAULT_LATEST_LIMIT
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MAX_LATEST_LIMIT)
	}
	h.fetch(c, limit)
}

// All handles GET /api/chat/all.
func (h *Handler) All(c *gin.Context) {
	h.fetch(c, 0)
}

func (h *Handler) fetch(c *gin.Context, limit int) {
	records, err := h.store.FetchLatest(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Int("limit", limit).Msg("fetch messages failed")
		fail(c, http.StatusInternalServerError, "could not fetch messages")
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	ok(c, records)
}

// Health handles GET /api/chat/health.
func (h *Handler) Health(c *gin.Context) {
	if !h.store.Health(c.Request.Context()) {
		fail(c, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	ok(c, gin.H{"status": "ok"})
}
