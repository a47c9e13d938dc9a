package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
)

// Envelope общий формат ответа
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *apperrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// JSON отправляет успешный ответ
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	envelope := Envelope{Data: data}
	if len(meta) > 0 && len(meta[0]) > 0 {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created отвечает 201
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// NoContent отвечает 204
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error переводит ошибку в общий формат; неожиданные ошибки скрываются за 500
func Error(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	_ = c.Error(err)
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(appErr.Status, Envelope{Error: appErr})
}
