package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"account-service/internal/core/auth"
	"account-service/internal/core/config"
	"account-service/internal/core/throttle"
	mdw "account-service/internal/transport/http/middleware"
	resp "account-service/internal/transport/http/response"
)

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", mdw.KeyRequestID)
	cc.ExposeHeaders = []string{mdw.KeyRequestID}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}

func NewAPIEngine(l *zap.Logger, cfg *config.Config, jwter *auth.JWTer, db Pinger, mods ...Module) *gin.Engine {
	r := gin.New()

	lim := cfg.Limits
	var perIP throttle.Limiter
	if lim.PerIPRps > 0 {
		perIP = throttle.NewMemoryLimiter(rate.Limit(lim.PerIPRps), lim.PerIPBurst)
	}

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.Recovery(l),
		cors.New(corsConfig(cfg.CORS.AllowOrigins)),
		mdw.RateLimit(rate.Limit(lim.RPS), lim.Burst),
		mdw.RateLimitPerIP(perIP),
		mdw.Timeout(time.Duration(lim.TimeoutSec)*time.Second),
		mdw.ConcurrencyLimit(lim.Concurrency),
		mdw.MaxBodyBytes(lim.MaxBodyBytes),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, resp.Error(http.StatusNotFound, "route not found"))
	})

	mountOps(r, db, l)

	// 前缀
	api := r.Group(cfg.App.HTTP.RoutePrefix)

	// 鉴权分组（/me 必须挂这里，才能拿到 userId）
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(jwter))

	mountAll(api, authed, mods)

	return r
}
