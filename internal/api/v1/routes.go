package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pmon/internal/api/v1/alerts"
	"pmon/internal/api/v1/monitors"
)

// SetupRoutes configures API v1 routes.
func SetupRoutes(routerGroup *gin.RouterGroup, checker monitors.Checker, history alerts.HistoryStore, events http.HandlerFunc) {
	// Initialize handlers
	monitorsHandler := monitors.NewHandler(checker)
	alertsHandler := alerts.NewHandler(history)

	routerGroup.POST("/monitors/:id/check", monitorsHandler.Check)
	routerGroup.GET("/alert-history", alertsHandler.History)

	if events != nil {
		routerGroup.GET("/events", gin.WrapF(events))
	}
}
