package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"account-service/internal/domain"
	"account-service/internal/transport/http/dto"
	mdw "account-service/internal/transport/http/middleware"
	resp "account-service/internal/transport/http/response"
)

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

var accountOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "account_operations_total", Help: "Account operations by outcome"},
	[]string{"op", "outcome"},
)

func init() { prometheus.MustRegister(accountOps) }

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	dto.RegisterValidators()
	return EZ{g: g, log: l}
}

// Action 一个接口：I 入参，O 出参（作为信封 data）
type Action[I any, O any] struct {
	Name    string // 日志/指标里的操作名
	Method  string
	Path    string
	Binder  Binder
	Status  int    // 成功状态码，默认 200
	Message string // 成功文案（可选）
	Handler func(c *gin.Context, in *I) (O, error)
}

// Fail 记录失败并写出信封；客户端错误 Warn，其它 Error
func Fail(c *gin.Context, l *zap.Logger, op string, err error) {
	status, body := resp.FromError(err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("rid", c.GetString(mdw.KeyRequestID)),
		zap.Int("status", status),
		zap.Error(err),
	}
	if domain.KindOf(err) == domain.KindUnexpected {
		l.Error("request failed", fields...)
		outcome(op, "error")
	} else {
		l.Warn("request rejected", fields...)
		outcome(op, domain.KindOf(err).String())
	}
	c.AbortWithStatusJSON(status, body)
}

func outcome(op, v string) {
	if op != "" {
		accountOps.WithLabelValues(op, v).Inc()
	}
}

// RegisterAction 在当前 EZ 下注册接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	op := a.Name
	if op == "" {
		op = strings.ToLower(a.Method) + " " + a.Path
	}
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}

	h := func(c *gin.Context) {
		// 1) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			var mbe *http.MaxBytesError
			if errors.As(bindErr, &mbe) {
				e.log.Warn("request rejected", zap.String("op", op), zap.String("rid", c.GetString(mdw.KeyRequestID)), zap.Error(bindErr))
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, resp.Error(http.StatusRequestEntityTooLarge, "request body too large"))
				return
			}
			err := &domain.Error{Kind: domain.KindValidation, Msg: "validation error", Err: bindErr}
			status, body := resp.FromError(err)
			e.log.Warn("request rejected", zap.String("op", op), zap.String("rid", c.GetString(mdw.KeyRequestID)), zap.Error(bindErr))
			outcome(op, domain.KindValidation.String())
			c.AbortWithStatusJSON(status, resp.WithDetails(body, dto.BindErrorDetails(bindErr)))
			return
		}

		// 2) 执行
		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, e.log, op, err)
			return
		}
		outcome(op, "ok")

		// 3) 成功响应
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		var data any = out
		if isEmpty(out) {
			data = nil
		}
		c.JSON(status, resp.OK(a.Message, data))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// Empty 无 data 的接口出参
type Empty struct{}

func isEmpty(v any) bool {
	_, ok := v.(Empty)
	return ok
}
