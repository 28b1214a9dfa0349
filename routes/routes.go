package routes

import (
	"macromap/controllers"
	"macromap/middlewares"
	"macromap/services"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Menus         *services.MenuService
	Hub           *services.RealtimeHub
	GoogleMapsKey string
	JWTSecret     string
	StaticDir     string
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.Default()

	rc := controllers.NewRestaurantController(d.Menus, d.GoogleMapsKey)
	r.POST("/rank", rc.Rank)
	r.POST("/refresh-one", rc.RefreshOne)
	r.GET("/browse", rc.Browse)
	r.GET("/config", rc.Config)
	r.GET("/healthz", controllers.Health)

	// Maintenance
	r.DELETE("/cleanup", middlewares.AdminAuth(d.JWTSecret), rc.Cleanup)

	if d.Hub != nil {
		rt := controllers.NewRealtimeController(d.Hub)
		r.GET("/ws", rt.UpdatesWS)
	}

	if d.StaticDir != "" {
		r.Static("/app", d.StaticDir)
	}

	return r
}
