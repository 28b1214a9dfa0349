package controllers

import (
	"context"
	"log"
	"net/http"

	"macromap/models"
	"macromap/services"

	"github.com/gin-gonic/gin"
)

type RestaurantController struct {
	Menus         *services.MenuService
	GoogleMapsKey string
}

func NewRestaurantController(menus *services.MenuService, mapsKey string) *RestaurantController {
	return &RestaurantController{Menus: menus, GoogleMapsKey: mapsKey}
}

// POST /rank  { "names": ["Burger King", ...], "limit": 5 }
func (rc *RestaurantController) Rank(c *gin.Context) {
	var req struct {
		Names []string `json:"names" binding:"required"`
		Limit int      `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "names array required"})
		return
	}

	ranked, err := rc.Menus.Rank(c.Request.Context(), req.Names, req.Limit)
	if err != nil {
		log.Printf("[RANK] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ranked == nil {
		ranked = []services.RankedRestaurant{}
	}
	c.JSON(http.StatusOK, ranked)
}

// POST /refresh-one  { "name": "Taco Bell" }
// Always 200; the outcome is only reported through success.
func (rc *RestaurantController) RefreshOne(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	// finish the merge even if the caller goes away
	ctx := context.WithoutCancel(c.Request.Context())
	if _, err := rc.Menus.RefreshRestaurant(ctx, req.Name); err != nil {
		log.Printf("[REFRESH] %s: %v", req.Name, err)
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /browse?search=king
func (rc *RestaurantController) Browse(c *gin.Context) {
	out, err := rc.Menus.Store().Browse(c.Request.Context(), c.Query("search"), services.BrowseLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if out == nil {
		out = []models.Restaurant{}
	}
	c.JSON(http.StatusOK, out)
}

// DELETE /cleanup
func (rc *RestaurantController) Cleanup(c *gin.Context) {
	res, err := rc.Menus.Sweep(c.Request.Context())
	if err != nil {
		log.Printf("[CLEANUP] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"itemsRemoved":       res.ItemsRemoved,
		"restaurantsRemoved": res.RestaurantsRemoved,
	})
}

// GET /config
func (rc *RestaurantController) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"apiKey": rc.GoogleMapsKey})
}

// GET /healthz
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
