// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/session"
	"github.com/ElMoha943/VRC-LogAnalyzer/internal/storage"
	"github.com/ElMoha943/VRC-LogAnalyzer/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store       storage.Store
	AnalysisMgr *session.Manager
	UploadMgr   *upload.Manager
	Version     string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Upload  UploadHandler
	Analyze AnalyzeHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version),
		Upload:  NewUploadHandler(deps.Store, deps.UploadMgr),
		Analyze: NewAnalyzeHandler(deps.Store, deps.AnalysisMgr),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)
	e.GET("/api/health", handlers.Health.HandleHealth)

	// File upload routes
	fileGroup := e.Group("/api/files")
	fileGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	fileGroup.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	fileGroup.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	fileGroup.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	fileGroup.GET("/upload/jobs/:jobId", handlers.Upload.HandleUploadJobStatus)
	fileGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	fileGroup.GET("/:id", handlers.Upload.HandleGetFile)
	fileGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)

	// Analysis routes
	e.POST("/api/analyze", handlers.Analyze.HandleStartAnalysis)

	analysisGroup := e.Group("/api/analysis")
	analysisGroup.GET("/:analysisId/status", handlers.Analyze.HandleAnalysisStatus)
	analysisGroup.POST("/:analysisId/keepalive", handlers.Analyze.HandleKeepAlive)
	analysisGroup.GET("/:analysisId/report", handlers.Analyze.HandleReport)
	analysisGroup.GET("/:analysisId/report/msgpack", handlers.Analyze.HandleReportMsgpack)
	analysisGroup.GET("/:analysisId/events", handlers.Analyze.HandleEvents)
	analysisGroup.DELETE("/:analysisId", handlers.Analyze.HandleDeleteAnalysis)
}

// SetupMiddleware configures the custom error handler
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
