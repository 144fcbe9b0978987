// Package http is the gin transport over the scheduling façade.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"savrdv/internal/authz"
)

type RouterConfig struct {
	JWTSecret string
}

func NewRouter(cfg RouterConfig, slots *SlotsHandler, requests *RequestsHandler, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(JWTAuth(cfg.JWTSecret, log))
	{
		v1.GET("/availability", RequireCapability(authz.OpListAvailability), slots.ListAvailability)

		v1.POST("/slots", RequireCapability(authz.OpCreateSlot), slots.Create)
		v1.POST("/slots/generate", RequireCapability(authz.OpGenerateSlots), slots.Generate)
		v1.DELETE("/slots/:id", RequireCapability(authz.OpDeleteSlot), slots.Delete)
		v1.POST("/slots/:id/reserve", RequireCapability(authz.OpReserveSlot), slots.Reserve)
		v1.POST("/slots/:id/release", RequireCapability(authz.OpReleaseSlot), slots.Release)
		v1.GET("/technicians/:technicianId/slots", RequireCapability(authz.OpListSlots), slots.ListByTechnician)

		v1.POST("/requests", RequireCapability(authz.OpCreateRequest), requests.Create)
		v1.GET("/requests", RequireCapability(authz.OpListRequests), requests.List)
		v1.GET("/requests/:id", RequireCapability(authz.OpReadRequest), requests.Get)
		v1.POST("/requests/:id/process", RequireCapability(authz.OpProcessRequest), requests.Process)
		v1.POST("/requests/:id/cancel", RequireCapability(authz.OpCancelRequest), requests.Cancel)
		v1.GET("/clients/:clientId/requests", RequireCapability(authz.OpReadRequest), requests.ListByClient)
	}

	return r
}
