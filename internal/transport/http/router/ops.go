package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mdw "account-service/internal/transport/http/middleware"
)

// Pinger 存储健康检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// mountOps 根路径下的运维接口
func mountOps(r *gin.Engine, p Pinger, l *zap.Logger) {
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "Welcome to the account service API!"}) })
	r.GET("/hello", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "Hello, world!"}) })
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"pong": "it worked!"}) })

	r.GET("/test-db", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if p == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"database": "Disconnected"})
			return
		}
		if err := p.Ping(ctx); err != nil {
			l.Warn("database ping failed", zap.String("rid", c.GetString(mdw.KeyRequestID)), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"database": "Disconnected"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"database": "Connected"})
	})

	r.GET("/metrics", gin.WrapH(mdw.MetricsHandler()))
}
