package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/log"
	"github.com/bitmark-inc/picture-gallery/traceutils"
)

func abortWithError(c *gin.Context, code int, message string, traceErr error) {
	if code >= http.StatusInternalServerError {
		log.Error(message, log.SourceAPI, zap.String("path", c.FullPath()), zap.Error(traceErr))
		if traceErr != nil {
			traceutils.CaptureException(c, traceErr)
		}
	} else {
		log.Debug(message, log.SourceAPI, zap.String("path", c.FullPath()), zap.Error(traceErr))
	}

	c.AbortWithStatusJSON(code, gin.H{
		"message": message,
	})
}

func statusOf(err error) int {
	switch {
	case customErrors.Validation.Has(err):
		return http.StatusBadRequest
	case customErrors.Permission.Has(err):
		return http.StatusForbidden
	case customErrors.NotFound.Has(err):
		return http.StatusNotFound
	case customErrors.Conflict.Has(err):
		return http.StatusConflict
	case customErrors.QuotaExceeded.Has(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// abortWithServiceError answers with the status of the error class. Messages
// of unclassified and system errors are not exposed.
func abortWithServiceError(c *gin.Context, err error) {
	code := statusOf(err)
	message := "internal server error"
	if code != http.StatusInternalServerError {
		message = customErrors.Message(err)
	}
	abortWithError(c, code, message, err)
}
