// handlers_analyze.go - Analysis run operation handlers
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
	"github.com/ElMoha943/VRC-LogAnalyzer/internal/storage"
)

// windowLayouts are the accepted window bound formats: the value an
// HTML datetime-local input produces, with or without seconds, and a
// space-separated variant.
var windowLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// AnalyzeHandlerImpl implements the AnalyzeHandler interface
type AnalyzeHandlerImpl struct {
	store    storage.Store
	analyses AnalysisManager
}

// NewAnalyzeHandler creates a new analyze handler instance
func NewAnalyzeHandler(store storage.Store, analyses AnalysisManager) AnalyzeHandler {
	return &AnalyzeHandlerImpl{
		store:    store,
		analyses: analyses,
	}
}

// HandleStartAnalysis validates the request and launches a background
// analysis of one uploaded file. An inverted window fails here, before
// the file is even opened.
func (h *AnalyzeHandlerImpl) HandleStartAnalysis(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	w, apiErr := req.parseWindow()
	if apiErr != nil {
		return apiErr
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	path, err := h.store.GetFilePath(info.ID)
	if err != nil {
		return NewInternalError("failed to resolve file path", err)
	}

	analysis, err := h.analyses.StartAnalysis(info.ID, path, w)
	if err != nil {
		return NewInvalidWindowError(err.Error())
	}

	h.store.SetStatus(info.ID, "analyzing")

	return c.JSON(http.StatusAccepted, analysis)
}

// HandleAnalysisStatus returns the current state of an analysis run
func (h *AnalyzeHandlerImpl) HandleAnalysisStatus(c echo.Context) error {
	id := c.Param("analysisId")
	if id == "" {
		return NewValidationError("analysisId")
	}

	analysis, ok := h.analyses.Get(id)
	if !ok {
		return NewNotFoundError("analysis", id)
	}

	// Viewing the status keeps the analysis alive.
	h.analyses.Touch(id)

	return c.JSON(http.StatusOK, analysis)
}

// HandleKeepAlive extends the analysis lifetime for active viewing
func (h *AnalyzeHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("analysisId")
	if id == "" {
		return NewValidationError("analysisId")
	}

	if ok := h.analyses.Touch(id); !ok {
		return NewNotFoundError("analysis", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleReport returns the finished report as JSON
func (h *AnalyzeHandlerImpl) HandleReport(c echo.Context) error {
	report, apiErr := h.lookupReport(c)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, report)
}

// HandleReportMsgpack returns the finished report in MessagePack
// encoding, for clients rendering large tables
func (h *AnalyzeHandlerImpl) HandleReportMsgpack(c echo.Context) error {
	report, apiErr := h.lookupReport(c)
	if apiErr != nil {
		return apiErr
	}

	data, err := msgpack.Marshal(report)
	if err != nil {
		return NewInternalError("failed to encode report", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleEvents returns the raw event timeline of an analysis within an
// optional millisecond time range, defaulting to the analysis window
func (h *AnalyzeHandlerImpl) HandleEvents(c echo.Context) error {
	id := c.Param("analysisId")
	if id == "" {
		return NewValidationError("analysisId")
	}

	analysis, ok := h.analyses.Get(id)
	if !ok {
		return NewNotFoundError("analysis", id)
	}
	if analysis.Status != models.AnalysisStatusComplete {
		return NewConflictError("analysis not complete")
	}

	from := time.UnixMilli(analysis.WindowStart)
	to := time.UnixMilli(analysis.WindowEnd)

	if s := c.QueryParam("from"); s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return NewBadRequestError("invalid from timestamp", err)
		}
		from = time.UnixMilli(ms)
	}
	if s := c.QueryParam("to"); s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return NewBadRequestError("invalid to timestamp", err)
		}
		to = time.UnixMilli(ms)
	}

	h.analyses.Touch(id)

	events, err := h.analyses.QueryEvents(c.Request().Context(), id, from, to)
	if err != nil {
		return NewInternalError("failed to query events", err)
	}

	return c.JSON(http.StatusOK, eventsResponse{
		Events: events,
		Count:  len(events),
	})
}

// HandleDeleteAnalysis discards an analysis run and its record archive
func (h *AnalyzeHandlerImpl) HandleDeleteAnalysis(c echo.Context) error {
	id := c.Param("analysisId")
	if id == "" {
		return NewValidationError("analysisId")
	}

	if ok := h.analyses.Delete(id); !ok {
		return NewNotFoundError("analysis", id)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *AnalyzeHandlerImpl) lookupReport(c echo.Context) (*models.Report, *APIError) {
	id := c.Param("analysisId")
	if id == "" {
		return nil, NewValidationError("analysisId")
	}

	if _, ok := h.analyses.Get(id); !ok {
		return nil, NewNotFoundError("analysis", id)
	}

	h.analyses.Touch(id)

	report, ok := h.analyses.Report(id)
	if !ok {
		return nil, NewConflictError("analysis not complete")
	}
	return report, nil
}

// Request/Response types

type analyzeRequest struct {
	FileID      string `json:"fileId"`
	WindowStart string `json:"windowStart"`
	WindowEnd   string `json:"windowEnd"`
}

func (r *analyzeRequest) parseWindow() (models.Window, *APIError) {
	if r.WindowStart == "" {
		return models.Window{}, NewValidationError("windowStart")
	}
	if r.WindowEnd == "" {
		return models.Window{}, NewValidationError("windowEnd")
	}

	start, err := parseWindowTime(r.WindowStart)
	if err != nil {
		return models.Window{}, NewBadRequestError("invalid windowStart", err)
	}
	end, err := parseWindowTime(r.WindowEnd)
	if err != nil {
		return models.Window{}, NewBadRequestError("invalid windowEnd", err)
	}

	w := models.Window{Start: start, End: end}
	if !w.Valid() {
		return models.Window{}, NewInvalidWindowError(
			"windowEnd " + r.WindowEnd + " precedes windowStart " + r.WindowStart)
	}
	return w, nil
}

func parseWindowTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range windowLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

type eventsResponse struct {
	Events []models.LogRecord `json:"events"`
	Count  int                `json:"count"`
}
