package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"campus-queue-backend/internal/mw"
)

// RouterConfig carries the knobs the router needs from the config file.
type RouterConfig struct {
	JWTSecret       string
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheStore := cache.New(cfg.CacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	auth := mw.Auth(cfg.JWTSecret)

	// Public read surface: snapshot reads, live subscriptions, push keys.
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/queues/:queue_id/snapshot", caching, h.GetSnapshot)
		api.GET("/queues/:queue_id/ws", h.QueueSocket)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	// Authenticated user surface.
	user := r.Group("/api")
	user.Use(rateLimiter, auth)
	{
		user.POST("/queues/:queue_id/checkin", h.CheckIn)
	}

	// Operator surface; every action is additionally gated per queue.
	operator := r.Group("/api/operator")
	operator.Use(rateLimiter, auth)
	{
		operator.GET("/queues", h.ListOperatorQueues)
		operator.POST("/queues/:queue_id/next", h.ServeNext)
		operator.POST("/queues/:queue_id/skip", h.SkipCurrent)
		operator.POST("/queues/:queue_id/recall", h.RecallCurrent)
		operator.POST("/queues/:queue_id/complete", h.CompleteCurrent)
		operator.POST("/queues/:queue_id/pause", h.PauseQueue)
		operator.POST("/queues/:queue_id/resume", h.ResumeQueue)
	}

	return r
}
