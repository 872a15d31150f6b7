// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleUploadJobStatus(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// AnalyzeHandler handles analysis run operations
type AnalyzeHandler interface {
	HandleStartAnalysis(c echo.Context) error
	HandleAnalysisStatus(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
	HandleReport(c echo.Context) error
	HandleReportMsgpack(c echo.Context) error
	HandleEvents(c echo.Context) error
	HandleDeleteAnalysis(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// AnalysisManager is the slice of the session manager the handlers
// use. This allows mocking in tests.
type AnalysisManager interface {
	StartAnalysis(fileID, filePath string, w models.Window) (*models.Analysis, error)
	Get(id string) (*models.Analysis, bool)
	Touch(id string) bool
	Report(id string) (*models.Report, bool)
	QueryEvents(ctx context.Context, id string, from, to time.Time) ([]models.LogRecord, error)
	Delete(id string) bool
}
