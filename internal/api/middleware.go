package api

import (
	"errors"
	"net/http"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
	"github.com/gin-gonic/gin"
)

func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var (
			apiErr      *apperrors.APIError
			notFound    *apperrors.NotFoundError
			conflict    *apperrors.ConflictError
			fallbackErr *apperrors.FallbackComputationFailed
			dbErr       *apperrors.DatabaseError
			ethErr      *apperrors.EthereumError
			nobleErr    *apperrors.NobleError
		)

		switch {
		case errors.As(err, &apiErr):
			if apiErr.StatusCode >= http.StatusInternalServerError {
				logger.Error("API error: %v", apiErr)
			} else {
				logger.Warn("API error: %v", apiErr)
			}
			c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
		case errors.As(err, &notFound):
			c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
		case errors.As(err, &fallbackErr):
			logger.Warn("Quote failed: %v", fallbackErr)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unable to estimate swap: " + fallbackErr.Reason})
		case errors.As(err, &dbErr):
			logger.Error("Database error: %v", dbErr)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		case errors.As(err, &ethErr):
			logger.Error("Ethereum error: %v", ethErr)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Ethereum service unavailable"})
		case errors.As(err, &nobleErr):
			logger.Error("Noble error: %v", nobleErr)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Noble service unavailable"})
		default:
			logger.Error("Unexpected error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		c.Abort()
	}
}
