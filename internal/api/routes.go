package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/api/handlers"
	"github.com/irfndi/newsindex-ai-go/internal/middleware"
)

// Dependencies are the services the HTTP API is built from.
type Dependencies struct {
	Pipeline     handlers.Pipeline
	Records      handlers.RecordReader
	Admin        *middleware.AdminMiddleware
	HealthChecks map[string]handlers.HealthChecker
	ServiceName  string
	Version      string
	Logger       *logrus.Logger
}

// NewRouter builds the gin engine with recovery, tracing and request logging.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TelemetryMiddleware(deps.ServiceName))
	router.Use(middleware.RequestLogger(deps.Logger))

	SetupRoutes(router, deps)
	return router
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks, deps.Version)
	articlesHandler := handlers.NewArticlesHandler(deps.Pipeline, deps.Records, deps.Logger)
	analysisHandler := handlers.NewAnalysisHandler(deps.Pipeline, deps.Records, deps.Logger)
	marketHandler := handlers.NewMarketHandler(deps.Pipeline, deps.Records, deps.Logger)
	accuracyHandler := handlers.NewAccuracyHandler(deps.Pipeline, deps.Records, deps.Logger)
	learningHandler := handlers.NewLearningHandler(deps.Pipeline, deps.Records, deps.Logger)

	requireAdmin := deps.Admin.RequireAdminAuth()

	// Health check endpoint
	router.GET("/health", healthHandler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Article ingestion
		articles := v1.Group("/articles")
		{
			articles.POST("/:date", requireAdmin, articlesHandler.IngestArticles)
			articles.GET("/:date", articlesHandler.GetArticles)
		}

		// Sentiment analysis and investment index
		analysis := v1.Group("/analysis")
		{
			analysis.POST("/run", requireAdmin, analysisHandler.RunAnalysis)
			analysis.GET("/latest", analysisHandler.GetLatestAnalysis)
			analysis.GET("/crypto/latest", analysisHandler.GetLatestCryptoAnalysis)
			analysis.GET("/crypto/:date", analysisHandler.GetCryptoAnalysis)
			analysis.GET("/:date", analysisHandler.GetAnalysis)
		}

		// Market snapshots
		market := v1.Group("/market")
		{
			market.POST("/:date", requireAdmin, marketHandler.IngestMarket)
			market.GET("/:date", marketHandler.GetMarket)
		}

		// Prediction accuracy
		accuracy := v1.Group("/accuracy")
		{
			accuracy.POST("/calculate", requireAdmin, accuracyHandler.CalculateAccuracy)
			accuracy.GET("/logs", accuracyHandler.GetAccuracyLogs)
		}

		// Learning summary
		learning := v1.Group("/learning")
		{
			learning.POST("/update", requireAdmin, learningHandler.UpdateLearning)
			learning.GET("/latest", learningHandler.GetLatestLearning)
		}
	}
}
