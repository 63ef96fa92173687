package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/internal/notification/scheduler"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Reporter exposes the operator views
type Reporter interface {
	Stats(ctx context.Context, now time.Time) (*domain.Stats, error)
	UpcomingIPOs(ctx context.Context, now time.Time, limit int) ([]domain.IPOView, error)
	Ping(ctx context.Context) error
}

// TickRunner runs one scheduler tick on demand
type TickRunner interface {
	RunOnce(ctx context.Context) (scheduler.TickResult, error)
}

// TestNotifier pushes a sample notification to a device token
type TestNotifier interface {
	SendTest(ctx context.Context, token string) error
}

// NotificationHandler handles the operator HTTP requests
type NotificationHandler struct {
	reporter Reporter
	runner   TickRunner
	notifier TestNotifier
	clock    func() time.Time
	logger   *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler. runner and
// notifier may be nil when push delivery is not configured.
func NewNotificationHandler(reporter Reporter, runner TickRunner, notifier TestNotifier, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		reporter: reporter,
		runner:   runner,
		notifier: notifier,
		clock:    time.Now,
		logger:   logger,
	}
}

// SendTestRequest is the body of a test notification request
type SendTestRequest struct {
	Token string `json:"token" binding:"required"`
}

// Health reports whether the database is reachable
// GET /api/health
func (h *NotificationHandler) Health(c *gin.Context) {
	if err := h.reporter.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "IPO Reminder Backend is running"})
}

// GetStats returns ledger and registration counts
// GET /api/stats
func (h *NotificationHandler) GetStats(c *gin.Context) {
	stats, err := h.reporter.Stats(c.Request.Context(), h.clock())
	if err != nil {
		h.logger.Error("failed to load stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetUpcomingIPOs returns IPOs that have not closed yet
// GET /api/ipos/upcoming?limit=20
func (h *NotificationHandler) GetUpcomingIPOs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	ipos, err := h.reporter.UpcomingIPOs(c.Request.Context(), h.clock(), limit)
	if err != nil {
		h.logger.Error("failed to list upcoming ipos", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list upcoming ipos"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ipos":  ipos,
		"count": len(ipos),
	})
}

// RunNotifications triggers one scan and dispatch cycle
// POST /api/notifications/run
func (h *NotificationHandler) RunNotifications(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push delivery is not configured"})
		return
	}

	result, err := h.runner.RunOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrTickInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a notification cycle is already running"})
			return
		}
		h.logger.Error("manual tick failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification cycle failed", "result": result})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SendTestNotification pushes a sample opening notification to one token
// POST /api/notifications/test
func (h *NotificationHandler) SendTestNotification(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push delivery is not configured"})
		return
	}

	var req SendTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.notifier.SendTest(c.Request.Context(), req.Token); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send test notification", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "test notification sent"})
}
