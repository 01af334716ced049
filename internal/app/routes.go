package app

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/Shotlin/shotlin-backend/internal/middleware"
	"github.com/Shotlin/shotlin-backend/internal/modules/analytics"
	pkgjwt "github.com/Shotlin/shotlin-backend/internal/pkg/jwt"
	pkgredis "github.com/Shotlin/shotlin-backend/internal/pkg/redis"
	"github.com/Shotlin/shotlin-backend/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const dashboardTokenTTL = 12 * time.Hour

func (a *App) registerRoutes(svc *analytics.Service, engine *analytics.Engine, rc *pkgredis.Client) {
	r := a.router
	authMW := middleware.Auth()
	rateMW := middleware.RateLimit(rc.Raw())

	r.NoRoute(func(c *gin.Context) { response.NotFound(c) })
	r.NoMethod(func(c *gin.Context) { response.MethodNotAllowed(c) })

	appInfo := gin.H{
		"name":    "shotlin-backend",
		"version": "1.0.0",
	}

	api := r.Group("/api/v2")
	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	api.POST("/auth/token", a.issueToken)

	analytics.NewHandler(svc, engine, a.db).RegisterRoutes(api, authMW, rateMW)
}

// issueToken exchanges the configured access key for a short-lived dashboard
// JWT.
func (a *App) issueToken(c *gin.Context) {
	var in struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	key := strings.TrimSpace(a.cfg.AccessKey)
	if key == "" || subtle.ConstantTimeCompare([]byte(in.Key), []byte(key)) != 1 {
		response.Unauthorized(c)
		return
	}

	token, err := pkgjwt.Sign("dashboard", dashboardTokenTTL)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"token": token, "expires_in": int64(dashboardTokenTTL.Seconds())})
}
