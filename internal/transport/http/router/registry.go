package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// Module 业务模块：api 为公共分组，authed 为已挂 AuthJWT 的分组
type Module interface {
	Mount(api, authed *gin.RouterGroup)
}

// 可选：实现该接口可控制挂载顺序（数值越小越先挂）
// 不实现则默认 100
type prioritizer interface{ Priority() int }

func mountAll(api, authed *gin.RouterGroup, mods []Module) {
	mods = append([]Module(nil), mods...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.Mount(api, authed)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
