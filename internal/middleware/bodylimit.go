package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SmallBodyLimit 普通 API 请求体上限，广播文本远小于此值
const SmallBodyLimit = 64 * 1024 // 64KB

// BodySizeLimit 限制请求体大小的中间件
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 检查 Content-Length 头
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"code": http.StatusRequestEntityTooLarge,
				"msg":  fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
			})
			return
		}

		// 限制请求体读取大小，分块传输时由读取方报错
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

		c.Next()
	}
}
