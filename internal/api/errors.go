package api

import (
	"net/http"

	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps an error kind to its HTTP status
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInsufficientStock:
		return http.StatusBadRequest
	case service.KindAlreadyProcessed:
		return http.StatusBadRequest
	case service.KindInvalidTransition:
		return http.StatusBadRequest
	case service.KindConflict:
		return http.StatusConflict
	case service.KindStorage:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": code, "message": text}. Storage
// failures keep their cause in the log only.
func writeError(c *gin.Context, err error) {
	e, ok := service.AsError(err)
	if !ok {
		e = &service.Error{Kind: service.KindStorage, Code: service.CodeStorage, Message: "internal error", Err: err}
	}

	status := statusFor(e.Kind)
	body := gin.H{
		"error":   e.Code,
		"message": e.Message,
	}

	switch e.Kind {
	case service.KindInsufficientStock:
		body["product_id"] = e.ProductID
		body["available"] = e.Available
	case service.KindStorage:
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   service.CodeValidation,
		"message": message,
	})
}
