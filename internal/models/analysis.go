package models

// AnalysisStatus represents the status of an analysis run.
type AnalysisStatus string

const (
	AnalysisStatusPending  AnalysisStatus = "pending"
	AnalysisStatusRunning  AnalysisStatus = "running"
	AnalysisStatusComplete AnalysisStatus = "complete"
	AnalysisStatusError    AnalysisStatus = "error"
)

// Analysis tracks one upload-plus-window analysis run.
type Analysis struct {
	ID               string         `json:"id"`
	FileID           string         `json:"fileId"`
	Status           AnalysisStatus `json:"status"`
	Progress         float64        `json:"progress"`              // 0-100
	WindowStart      int64          `json:"windowStart,omitempty"` // Unix ms
	WindowEnd        int64          `json:"windowEnd,omitempty"`   // Unix ms
	RecordCount      int            `json:"recordCount,omitempty"`
	InstanceCount    int            `json:"instanceCount,omitempty"`
	UserCount        int            `json:"userCount,omitempty"`
	ProcessingTimeMs int64          `json:"processingTimeMs,omitempty"`
	Errors           []ParseError   `json:"errors,omitempty"`
}

// NewAnalysis creates an Analysis in pending status.
func NewAnalysis(id, fileID string) *Analysis {
	return &Analysis{
		ID:       id,
		FileID:   fileID,
		Status:   AnalysisStatusPending,
		Progress: 0,
		Errors:   make([]ParseError, 0),
	}
}
