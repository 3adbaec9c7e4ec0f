package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/ccjoness/StellarIQ-API/scheduler"
	"github.com/ccjoness/StellarIQ-API/services/analysis"
	"github.com/ccjoness/StellarIQ-API/services/monitor"
	"github.com/gin-gonic/gin"
)

// JobRunner is the scheduler surface exposed to administrators
type JobRunner interface {
	TriggerManualSweep(ctx context.Context) bool
	Status() scheduler.Status
}

// MonitorService is the monitor surface exposed to administrators
type MonitorService interface {
	ForceCheck(ctx context.Context, ownerID uint, symbol string) (bool, error)
	Stats(ctx context.Context) (monitor.Stats, error)
}

// SymbolAnalyzer runs on-demand analysis
type SymbolAnalyzer interface {
	AnalyzeWith(ctx context.Context, symbol string, class models.AssetClass, strategy analysis.Strategy) (*analysis.Result, error)
}

// CacheInvalidator drops cached market data for a symbol
type CacheInvalidator interface {
	Invalidate(ctx context.Context, symbol string) int
}

// NotificationLister reads recent delivery records
type NotificationLister interface {
	ListRecentNotifications(ctx context.Context, limit int) ([]models.NotificationRecord, error)
}

// MonitoringController handles monitoring administration requests
type MonitoringController struct {
	jobs          JobRunner
	monitor       MonitorService
	analyzer      SymbolAnalyzer
	cache         CacheInvalidator
	notifications NotificationLister
}

// NewMonitoringController creates a new monitoring controller
func NewMonitoringController(jobs JobRunner, m MonitorService, analyzer SymbolAnalyzer, cache CacheInvalidator, notifications NotificationLister) *MonitoringController {
	return &MonitoringController{
		jobs:          jobs,
		monitor:       m,
		analyzer:      analyzer,
		cache:         cache,
		notifications: notifications,
	}
}

// TriggerSweep starts a monitoring sweep outside the schedule
// POST /api/v1/admin/monitoring/sweep
func (mc *MonitoringController) TriggerSweep(c *gin.Context) {
	triggered := mc.jobs.TriggerManualSweep(c.Request.Context())

	message := "Monitoring sweep started"
	if !triggered {
		message = "A monitoring sweep is already running"
	}
	c.JSON(http.StatusAccepted, gin.H{
		"triggered": triggered,
		"message":   message,
	})
}

// GetJobStatus returns scheduler state
// GET /api/v1/admin/monitoring/jobs
func (mc *MonitoringController) GetJobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, mc.jobs.Status())
}

type forceCheckRequest struct {
	OwnerID uint   `json:"owner_id" binding:"required"`
	Symbol  string `json:"symbol" binding:"required"`
}

// ForceCheck evaluates one watch item immediately, ignoring its cooldown
// POST /api/v1/admin/monitoring/force-check
func (mc *MonitoringController) ForceCheck(c *gin.Context) {
	var req forceCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id and symbol are required"})
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	checked, err := mc.monitor.ForceCheck(c.Request.Context(), req.OwnerID, symbol)
	if err != nil {
		respondError(c, "ForceCheck", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checked":  checked,
		"owner_id": req.OwnerID,
		"symbol":   symbol,
	})
}

// GetStats returns monitoring counters
// GET /api/v1/admin/monitoring/stats
func (mc *MonitoringController) GetStats(c *gin.Context) {
	stats, err := mc.monitor.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "GetStats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AnalyzeSymbol runs the condition analysis for a symbol
// GET /api/v1/admin/analysis/:symbol?asset_class=equity&strategy=weighted
func (mc *MonitoringController) AnalyzeSymbol(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	class := c.DefaultQuery("asset_class", string(models.AssetEquity))
	if !models.IsValidAssetClass(class) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_class must be equity or crypto"})
		return
	}

	strategy, err := analysis.StrategyByName(c.Query("strategy"))
	if err != nil {
		respondError(c, "AnalyzeSymbol", err)
		return
	}

	result, err := mc.analyzer.AnalyzeWith(c.Request.Context(), symbol, models.AssetClass(class), strategy)
	if err != nil {
		respondError(c, "AnalyzeSymbol", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListStrategies lists available aggregation strategies
// GET /api/v1/admin/analysis/strategies
func (mc *MonitoringController) ListStrategies(c *gin.Context) {
	items := make([]gin.H, 0)
	for _, name := range analysis.StrategyNames() {
		s, _ := analysis.StrategyByName(name)
		items = append(items, gin.H{
			"name":        s.Name(),
			"description": s.Description(),
			"default":     name == analysis.DefaultStrategy,
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": items})
}

// InvalidateCache drops cached market data for a symbol
// DELETE /api/v1/admin/market/cache/:symbol
func (mc *MonitoringController) InvalidateCache(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	removed := mc.cache.Invalidate(c.Request.Context(), symbol)
	c.JSON(http.StatusOK, gin.H{
		"symbol":  symbol,
		"removed": removed,
	})
}

// ListNotifications returns the most recent delivery records
// GET /api/v1/admin/notifications?limit=50
func (mc *MonitoringController) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := mc.notifications.ListRecentNotifications(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "ListNotifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  records,
		"count": len(records),
	})
}
