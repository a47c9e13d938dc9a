package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter собирает gin engine со всеми маршрутами
func NewRouter(h *Handler, auth *Auth, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(logger), Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/coaches/:id/slots", h.ListSlots)
		v1.GET("/coaches/:id/candidates", h.ListCandidates)
		v1.POST("/payments/confirm", h.ConfirmPayment)

		authed := v1.Group("", JWT(auth))
		authed.POST("/sessions", h.Book)
		authed.GET("/sessions", h.ListSessions)
		authed.GET("/sessions/:id", h.GetSession)
		authed.POST("/sessions/:id/cancel", h.CancelSession)
		authed.POST("/sessions/:id/start", h.StartSession)
		authed.POST("/sessions/:id/complete", h.CompleteSession)

		coach := authed.Group("", RequireCoach())
		coach.GET("/availability", h.ListRules)
		coach.POST("/availability", h.CreateRules)
		coach.PUT("/availability/:id", h.UpdateRule)
		coach.DELETE("/availability/:id", h.DeactivateRule)
		coach.DELETE("/availability/groups/:group_id", h.DeactivateGroup)
		coach.GET("/coach/stats", h.CoachStats)
	}

	return r
}
