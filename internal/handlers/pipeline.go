package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/agents"
	"github.com/quantara-ai/quantara-go/internal/cache"
	"github.com/quantara-ai/quantara-go/internal/database"
	"github.com/quantara-ai/quantara-go/internal/models"
	"github.com/quantara-ai/quantara-go/internal/orchestrator"
	"github.com/quantara-ai/quantara-go/internal/storage"
)

var startTime = time.Now()

// PipelineHandler is the thin HTTP surface over the orchestrator. The
// external scheduler posts cycle triggers here; operators drive system
// start/stop, agent overrides and the emergency reset through it. No
// business logic lives in this layer.
type PipelineHandler struct {
	orch          *orchestrator.Orchestrator
	store         storage.Store
	db            *database.PostgresDB
	redis         *database.RedisClient
	decisionCache *cache.RedisDecisionCache
	logger        *logrus.Logger
}

func NewPipelineHandler(
	orch *orchestrator.Orchestrator,
	store storage.Store,
	db *database.PostgresDB,
	redis *database.RedisClient,
	logger *logrus.Logger,
) *PipelineHandler {
	h := &PipelineHandler{
		orch:   orch,
		store:  store,
		db:     db,
		redis:  redis,
		logger: logger,
	}
	if redis != nil {
		h.decisionCache = cache.NewRedisDecisionCache(redis.Client, 30*time.Second, logger)
	}
	return h
}

// SetupRoutes registers all pipeline endpoints on the router.
func (h *PipelineHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/cycles/:userID", h.triggerCycle)
		v1.GET("/status", h.status)
		v1.GET("/decisions/:userID", h.listDecisions)

		system := v1.Group("/system")
		{
			system.POST("/start", h.startSystem)
			system.POST("/stop", h.stopSystem)
		}

		v1.PUT("/agents/:id/status", h.overrideAgent)
		v1.POST("/emergency/reset", h.resetEmergency)
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

func (h *PipelineHandler) health(c *gin.Context) {
	services := make(map[string]string)

	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			services["database"] = "unhealthy: " + err.Error()
		} else {
			services["database"] = "healthy"
		}
	} else {
		services["database"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(c.Request.Context()); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	status := "ok"
	for _, s := range services {
		if strings.HasPrefix(s, "unhealthy") {
			status = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Services:  services,
		Uptime:    time.Since(startTime).String(),
	})
}

type cycleRequest struct {
	Portfolio models.PortfolioState  `json:"portfolio"`
	Market    *agents.MarketSnapshot `json:"market,omitempty"`
}

// triggerCycle is what the external 30-second scheduler calls. The request
// carries the portfolio and, when the scheduler has it, the market snapshot;
// the response is the full cycle summary, including skip and rejection
// reasons.
func (h *PipelineHandler) triggerCycle(c *gin.Context) {
	userID := c.Param("userID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userID is required"})
		return
	}

	var req cycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cycle request: " + err.Error()})
		return
	}
	req.Portfolio.UserID = userID

	summary := h.orch.RunCycleWithMarket(c.Request.Context(), userID, req.Portfolio, req.Market)
	c.JSON(http.StatusOK, summary)
}

func (h *PipelineHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":    h.orch.Active(),
		"timestamp": time.Now().UTC(),
	})
}

func (h *PipelineHandler) listDecisions(c *gin.Context) {
	userID := c.Param("userID")

	var filter models.DecisionFilter
	if action := c.Query("action"); action != "" {
		filter.Action = models.Action(action)
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = t
	}

	// Only the unfiltered listing is cached; filtered queries are rare.
	cacheable := filter == (models.DecisionFilter{}) && h.decisionCache != nil
	if cacheable {
		if decisions, ok := h.decisionCache.Get(c.Request.Context(), userID); ok {
			c.JSON(http.StatusOK, gin.H{"data": decisions, "total": len(decisions)})
			return
		}
	}

	decisions, err := h.store.ListDecisions(c.Request.Context(), userID, filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list decisions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list decisions"})
		return
	}
	if cacheable {
		h.decisionCache.Set(c.Request.Context(), userID, decisions)
	}
	c.JSON(http.StatusOK, gin.H{"data": decisions, "total": len(decisions)})
}

func (h *PipelineHandler) startSystem(c *gin.Context) {
	h.orch.Start()
	c.JSON(http.StatusOK, gin.H{"active": true})
}

func (h *PipelineHandler) stopSystem(c *gin.Context) {
	h.orch.Stop()
	c.JSON(http.StatusOK, gin.H{"active": false})
}

type agentStatusRequest struct {
	Status models.AgentStatus `json:"status" binding:"required"`
}

func (h *PipelineHandler) overrideAgent(c *gin.Context) {
	id := c.Param("id")

	var req agentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	if req.Status != models.AgentStatusActive && req.Status != models.AgentStatusInactive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be active or inactive"})
		return
	}

	if err := h.orch.OverrideAgentStatus(id, req.Status); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": id, "status": req.Status})
}

// resetEmergency requires a bearer token signed with the operator secret.
// An absent or invalid token is a hard 401; the reset never silently
// succeeds.
func (h *PipelineHandler) resetEmergency(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
		return
	}

	if err := h.orch.ResetEmergency(token); err != nil {
		h.logger.WithError(err).Warn("Emergency reset rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}
