package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dineops/customer-sync/internal/database/profiles"
)

// AnalyticsController serves read-only views over the synced analytics
// tables.
type AnalyticsController struct {
	repo *profiles.Repository
}

func NewAnalyticsController(repo *profiles.Repository) *AnalyticsController {
	return &AnalyticsController{repo: repo}
}

// GetSegments returns the per-segment rollup of synced profiles.
func (a *AnalyticsController) GetSegments(c *gin.Context) {
	stats, err := a.repo.SegmentRollup(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "segment rollup")
		return
	}

	var total int64
	if total, err = a.repo.CountProfiles(); err != nil {
		respondInternalError(c, err, "count profiles")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"segments":        stats,
		"total_customers": total,
	})
}

// GetCustomer returns one customer's profile with its time-slot and
// category breakdowns.
func (a *AnalyticsController) GetCustomer(c *gin.Context) {
	customerID := c.Param("id")

	profile, err := a.repo.GetProfile(customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "customer")
			return
		}
		respondInternalError(c, err, "get customer profile")
		return
	}

	slots, err := a.repo.ListTimeSlots(customerID)
	if err != nil {
		respondInternalError(c, err, "list time slots")
		return
	}

	prefs, err := a.repo.ListPreferences(customerID)
	if err != nil {
		respondInternalError(c, err, "list preferences")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":     profile,
		"time_slots":  slots,
		"preferences": prefs,
	})
}

// GetSuggestions returns the marketing suggestions from the latest run.
func (a *AnalyticsController) GetSuggestions(c *gin.Context) {
	rows, err := a.repo.ListSuggestions()
	if err != nil {
		respondInternalError(c, err, "list suggestions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": rows})
}
