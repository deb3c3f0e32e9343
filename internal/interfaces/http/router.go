package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/infrastructure/logging"
	"github.com/bivex/iab-client/internal/interfaces/http/handlers"
)

// Callback routes
const (
	PathResults = "/v1/results"
	PathDiscard = "/v1/results/discard"
)

// NewRouter builds the callback server's routes
func NewRouter(callbacks *handlers.CallbackHandler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.RequestMiddleware(logger),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST(PathResults, callbacks.Result)
	router.POST(PathDiscard, callbacks.Discard)
	return router
}
