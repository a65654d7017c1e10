package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insightvigil/biblioteca-escolar/pkg/response"
)

// MustBindJSON 绑定并校验 JSON 请求体
// 失败时写入 400（超出 BodyLimit 时写入 413）并返回 false，调用方应直接 return
func MustBindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

// MustBindOptionalJSON 请求体可为空的 JSON 绑定（如归还、续借）
func MustBindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return MustBindJSON(c, obj)
}

// MustBindQuery 绑定并校验查询参数
func MustBindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

// MustGetParam 读取非空路径参数
func MustGetParam(c *gin.Context, name, message string) (string, bool) {
	v := c.Param(name)
	if v == "" {
		response.BadRequest(c, response.CodeBadRequest, message)
		return "", false
	}
	return v, true
}

func writeBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeBadRequest, "参数校验失败", err.Error())
}
