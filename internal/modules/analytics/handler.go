package analytics

import (
	"errors"
	"strconv"

	"github.com/Shotlin/shotlin-backend/internal/models"
	"github.com/Shotlin/shotlin-backend/internal/pkg/pagination"
	"github.com/Shotlin/shotlin-backend/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler exposes the ingestion endpoints publicly and the aggregation
// views to the admin dashboard.
type Handler struct {
	svc    *Service
	engine *Engine
	db     *gorm.DB
}

func NewHandler(svc *Service, engine *Engine, db *gorm.DB) *Handler {
	return &Handler{svc: svc, engine: engine, db: db}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, rateMW gin.HandlerFunc) {
	g := rg.Group("/analytics")

	g.POST("/collect", rateMW, h.collect)
	g.POST("/heartbeat", rateMW, h.heartbeat)

	admin := g.Group("", authMW)
	admin.GET("/summary", h.summary)
	admin.GET("/timeseries", h.timeSeries)
	admin.GET("/pages", h.topPages)
	admin.GET("/geo", h.geography)
	admin.GET("/devices", h.devices)
	admin.GET("/referrers", h.referrers)
	admin.GET("/realtime", h.realtime)
	admin.GET("/sessions", h.listSessions)
}

func (h *Handler) collect(c *gin.Context) {
	var in CollectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sessionID, err := h.svc.Collect(c.Request.Context(), in, c.ClientIP())
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": sessionID})
}

func (h *Handler) heartbeat(c *gin.Context) {
	var in HeartbeatInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.Heartbeat(c.Request.Context(), in); err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			response.BadRequest(c, err.Error())
		case errors.Is(err, ErrSessionNotFound):
			response.NotFoundMsg(c, "session not found")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.NoContent(c)
}

func (h *Handler) summary(c *gin.Context) {
	rng, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	stats, err := h.engine.Summary(c.Request.Context(), rng)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *Handler) timeSeries(c *gin.Context) {
	rng, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	points, err := h.engine.TimeSeries(c.Request.Context(), rng)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, points)
}

func (h *Handler) topPages(c *gin.Context) {
	rng, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	limit := defaultPagesLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			response.BadRequest(c, "limit must be an integer within 1-100")
			return
		}
		limit = parsed
	}

	pages, err := h.engine.TopPages(c.Request.Context(), rng, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, pages)
}

func (h *Handler) geography(c *gin.Context) {
	rng, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	countries, err := h.engine.Geography(c.Request.Context(), rng)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, countries)
}

func (h *Handler) devices(c *gin.Context) {
	rng, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	stats, err := h.engine.Devices(c.Request.Context(), rng)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *Handler) referrers(c *gin.Context) {
	rng, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	stats, err := h.engine.Referrers(c.Request.Context(), rng)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *Handler) realtime(c *gin.Context) {
	stats, err := h.engine.Realtime(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}

// listSessions serves the admin raw-data view of recent sessions.
func (h *Handler) listSessions(c *gin.Context) {
	q := pagination.FromContext(c)

	tx := h.db.WithContext(c.Request.Context()).
		Model(&models.VisitorSession{}).
		Order("last_active_at DESC")

	var items []models.VisitorSession
	meta, err := pagination.Paginate(tx, q, &items)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	pagination.Paged(c, items, meta)
}

func parseRangeQuery(c *gin.Context) (Range, bool) {
	rng, ok := ParseRange(c.Query("range"))
	if !ok {
		response.BadRequest(c, "range must be one of today, 7d, 30d, all")
		return "", false
	}
	return rng, true
}
