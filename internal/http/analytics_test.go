package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dineops/customer-sync/internal/database"
	"github.com/dineops/customer-sync/internal/database/profiles"
	"github.com/dineops/customer-sync/internal/entities"
)

func setupAnalyticsRouter(t *testing.T) (*gin.Engine, *profiles.Repository) {
	dbPath := "./test_http_analytics_" + t.Name() + ".db"

	analytics, err := database.OpenAnalytics(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		analytics.Close()
		os.Remove(dbPath)
	})

	gin.SetMode(gin.TestMode)
	router := NewRouter(RouterConfig{
		SyncService: newFakeSyncService(),
		Analytics:   analytics,
		Version:     "test",
	})
	return router, profiles.NewRepository(analytics)
}

func TestGetSegments(t *testing.T) {
	router, repo := setupAnalyticsRouter(t)

	ctx := context.Background()
	require.NoError(t, repo.UpsertProfile(ctx, &entities.CustomerProfile{
		CustomerID: "c1", CustomerSegment: "重要价值客户", TotalSpend: 12000, RFMScore: "555",
	}))
	require.NoError(t, repo.UpsertProfile(ctx, &entities.CustomerProfile{
		CustomerID: "c2", CustomerSegment: "低价值客户", TotalSpend: 50, RFMScore: "111",
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/segments", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Segments       []profiles.SegmentStat `json:"segments"`
		TotalCustomers int64                  `json:"total_customers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.TotalCustomers)
	assert.Len(t, resp.Segments, 2)
}

func TestGetCustomer(t *testing.T) {
	router, repo := setupAnalyticsRouter(t)

	ctx := context.Background()
	require.NoError(t, repo.UpsertProfile(ctx, &entities.CustomerProfile{
		CustomerID: "c1", Nickname: "常客", CustomerSegment: "重要价值客户", RFMScore: "555",
	}))
	require.NoError(t, repo.ReplaceTimeSlots(ctx, []entities.TimeSlotAnalysis{
		{CustomerID: "c1", TimeSlot: "afternoon", OrderCount: 7},
	}))
	require.NoError(t, repo.ReplacePreferences(ctx, []entities.ProductPreference{
		{CustomerID: "c1", Category: "热菜", OrderCount: 5, TotalSpend: 800},
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/customers/c1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Profile     entities.CustomerProfile     `json:"profile"`
		TimeSlots   []entities.TimeSlotAnalysis  `json:"time_slots"`
		Preferences []entities.ProductPreference `json:"preferences"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "常客", resp.Profile.Nickname)
	require.Len(t, resp.TimeSlots, 1)
	assert.Equal(t, 7, resp.TimeSlots[0].OrderCount)
	require.Len(t, resp.Preferences, 1)
	assert.Equal(t, "热菜", resp.Preferences[0].Category)
}

func TestGetCustomerNotFound(t *testing.T) {
	router, _ := setupAnalyticsRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/customers/nobody", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSuggestions(t *testing.T) {
	router, repo := setupAnalyticsRouter(t)

	require.NoError(t, repo.ReplaceSuggestions(context.Background(), []entities.MarketingSuggestion{
		{Segment: "重要价值客户", CustomerCount: 3, AvgSpend: 8000, Suggestion: "提供专属折扣与会员礼遇"},
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analytics/suggestions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Suggestions []entities.MarketingSuggestion `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, 3, resp.Suggestions[0].CustomerCount)
}

func TestHealthWithDatabase(t *testing.T) {
	router, _ := setupAnalyticsRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Checks["analytics_db"])
}
