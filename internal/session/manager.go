// Package session owns the lifecycle of analysis runs: one run per
// uploaded file and window, executed in the background, queryable while
// it lives and reaped when idle.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/analyzer"
	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
	"github.com/ElMoha943/VRC-LogAnalyzer/internal/parser"
)

// MaxAnalyses limits concurrent analyses to prevent memory exhaustion.
const MaxAnalyses = 10

// AnalysisMaxAge is how long completed analyses are kept before cleanup.
const AnalysisMaxAge = 30 * time.Minute

// AnalysisKeepAliveWindow is how long an analysis survives past its last
// access regardless of age.
const AnalysisKeepAliveWindow = 5 * time.Minute

// Manager runs and tracks analyses.
type Manager struct {
	analyses  map[string]*analysisState
	mu        sync.RWMutex
	newParser func() *parser.VRChatParser
	tempDir   string

	// OnFileStatus, when set, is invoked with the source file's new
	// status ("analyzed" or "error") as analyses finish. Set before
	// the first StartAnalysis call.
	OnFileStatus func(fileID, status string)
}

// analysisState holds the run metadata, the finished report, and the
// DuckDB-backed record archive used by the raw timeline endpoint.
type analysisState struct {
	Analysis     *models.Analysis
	Report       *models.Report
	Records      *parser.RecordStore
	LastAccessed time.Time
}

// NewManager creates a manager writing record archives under tempDir.
func NewManager(tempDir string) *Manager {
	os.MkdirAll(tempDir, 0755)
	return &Manager{
		analyses:  make(map[string]*analysisState),
		newParser: parser.NewVRChatParser,
		tempDir:   tempDir,
	}
}

// SetPatternSet makes the manager build parsers from a custom pattern
// set, typically loaded from a YAML pattern file at startup.
func (m *Manager) SetPatternSet(set *parser.PatternSet) {
	m.newParser = func() *parser.VRChatParser {
		return parser.NewVRChatParserWithPatterns(set)
	}
}

// StartAnalysis validates the window and launches the analysis in a
// background goroutine. An inverted window is rejected here, before any
// parsing work happens.
func (m *Manager) StartAnalysis(fileID, filePath string, w models.Window) (*models.Analysis, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("invalid window: end %s precedes start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}

	m.evictIfAtCapacity()

	id := uuid.New().String()
	analysis := models.NewAnalysis(id, fileID)
	analysis.Status = models.AnalysisStatusRunning
	analysis.WindowStart = w.Start.UnixMilli()
	analysis.WindowEnd = w.End.UnixMilli()

	m.mu.Lock()
	m.analyses[id] = &analysisState{
		Analysis:     analysis,
		LastAccessed: time.Now(),
	}
	m.mu.Unlock()

	go m.run(id, filePath, w)

	// The goroutine owns the stored Analysis; callers get a snapshot.
	snapshot := *analysis
	return &snapshot, nil
}

func (m *Manager) run(id, filePath string, w models.Window) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Analyze %s] PANIC recovered: %v\n", shortID(id), r)
			m.fail(id, fmt.Sprintf("analysis panicked: %v", r))
		}
	}()

	start := time.Now()
	fmt.Printf("[Analyze %s] Starting analysis of %s\n", shortID(id), filePath)

	if info, err := os.Stat(filePath); err != nil {
		fmt.Printf("[Analyze %s] ERROR stat file: %v\n", shortID(id), err)
		m.fail(id, fmt.Sprintf("file unavailable: %v", err))
		return
	} else {
		fmt.Printf("[Analyze %s] File size: %d bytes\n", shortID(id), info.Size())
	}

	p := m.newParser()
	if ok, err := p.CanParse(filePath); err != nil || !ok {
		fmt.Printf("[Analyze %s] ERROR: not a recognizable VRChat log\n", shortID(id))
		m.fail(id, "file does not look like a VRChat client log")
		return
	}

	store, err := parser.NewRecordStore(m.tempDir, id)
	if err != nil {
		fmt.Printf("[Analyze %s] ERROR: failed to create record store: %v\n", shortID(id), err)
		m.fail(id, fmt.Sprintf("failed to create storage: %v", err))
		return
	}

	rec := analyzer.NewReconstructor()
	joins, leaves := 0, 0

	onRecord := func(r models.LogRecord) {
		store.Add(r)
		rec.Feed(r)
		switch r.Kind {
		case models.RecordUserJoin:
			joins++
		case models.RecordUserLeave:
			leaves++
		}
	}

	onProgress := func(lines int, bytesRead, totalBytes int64) {
		progress := 10.0
		if totalBytes > 0 {
			progress = 10.0 + float64(bytesRead)*80.0/float64(totalBytes)
		}
		if progress > 89.9 {
			progress = 89.9
		}
		m.mu.Lock()
		if state, ok := m.analyses[id]; ok {
			state.Analysis.Progress = progress
			state.Analysis.RecordCount = store.Len()
		}
		m.mu.Unlock()
	}

	diags, err := p.ParseFile(filePath, onRecord, onProgress)
	if err != nil {
		store.Close()
		fmt.Printf("[Analyze %s] ERROR: parse failed: %v\n", shortID(id), err)
		m.fail(id, fmt.Sprintf("parse failed: %v", err))
		return
	}

	if err := store.Finalize(); err != nil {
		store.Close()
		fmt.Printf("[Analyze %s] ERROR: finalizing record store: %v\n", shortID(id), err)
		m.fail(id, fmt.Sprintf("failed to finalize storage: %v", err))
		return
	}

	instances, anomalies := rec.Finish()
	report := analyzer.BuildReport(instances, w, analyzer.SourceStats{
		JoinEvents:  joins,
		LeaveEvents: leaves,
		Anomalies:   anomalies,
	})

	elapsed := time.Since(start).Milliseconds()
	fmt.Printf("[Analyze %s] Complete: %d records, %d instances, %d users, %d anomalies in %dms\n",
		shortID(id), store.Len(), len(report.Instances), report.TotalUsers, report.Anomalies, elapsed)

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.analyses[id]
	if !ok {
		// Evicted while running.
		store.Close()
		return
	}

	state.Report = report
	state.Records = store
	state.Analysis.Status = models.AnalysisStatusComplete
	state.Analysis.Progress = 100
	state.Analysis.RecordCount = store.Len()
	state.Analysis.InstanceCount = len(report.Instances)
	state.Analysis.UserCount = report.TotalUsers
	state.Analysis.ProcessingTimeMs = elapsed
	state.Analysis.Errors = diags

	if m.OnFileStatus != nil {
		go m.OnFileStatus(state.Analysis.FileID, "analyzed")
	}
}

func (m *Manager) fail(id, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.analyses[id]
	if !ok {
		return
	}
	state.Analysis.Status = models.AnalysisStatusError
	state.Analysis.Errors = append(state.Analysis.Errors, models.ParseError{Reason: reason})

	if m.OnFileStatus != nil {
		go m.OnFileStatus(state.Analysis.FileID, "error")
	}
}

// Get returns a snapshot of the analysis metadata by ID. A snapshot,
// not the live struct: the background goroutine keeps updating progress
// under the mutex, which callers do not hold while marshaling.
func (m *Manager) Get(id string) (*models.Analysis, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.analyses[id]
	if !ok {
		return nil, false
	}
	a := *state.Analysis
	return &a, true
}

// Touch refreshes the LastAccessed timestamp so an actively viewed
// analysis is not reaped.
func (m *Manager) Touch(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.analyses[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Report returns the finished report, or ok=false when the analysis is
// unknown or not yet complete.
func (m *Manager) Report(id string) (*models.Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.analyses[id]
	if !ok || state.Report == nil {
		return nil, false
	}
	return state.Report, true
}

// QueryEvents returns the raw event records of an analysis in [from, to).
func (m *Manager) QueryEvents(ctx context.Context, id string, from, to time.Time) ([]models.LogRecord, error) {
	m.mu.RLock()
	state, ok := m.analyses[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("analysis %s not found", id)
	}
	if state.Records == nil {
		return nil, fmt.Errorf("analysis %s has no record archive yet", id)
	}
	return state.Records.QueryRange(ctx, from, to)
}

// Delete removes an analysis and releases its record archive.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.analyses[id]
	if !ok {
		return false
	}
	if state.Records != nil {
		state.Records.Close()
	}
	delete(m.analyses, id)
	return true
}

// evictIfAtCapacity removes finished analyses when the map is full.
func (m *Manager) evictIfAtCapacity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.analyses) < MaxAnalyses {
		return
	}

	toFree := len(m.analyses) - MaxAnalyses + 1
	for id, state := range m.analyses {
		if toFree == 0 {
			break
		}
		if state.Analysis.Status != models.AnalysisStatusComplete &&
			state.Analysis.Status != models.AnalysisStatusError {
			continue
		}
		if state.Records != nil {
			state.Records.Close()
		}
		delete(m.analyses, id)
		toFree--
		fmt.Printf("[Manager] Evicted analysis %s to free memory\n", shortID(id))
	}
}

// CleanupOld removes finished analyses older than maxAge, keeping any
// accessed within AnalysisKeepAliveWindow.
func (m *Manager) CleanupOld(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-AnalysisKeepAliveWindow)

	for id, state := range m.analyses {
		if state.Analysis.Status != models.AnalysisStatusComplete &&
			state.Analysis.Status != models.AnalysisStatusError {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			if state.Records != nil {
				state.Records.Close()
			}
			delete(m.analyses, id)
			fmt.Printf("[Manager] Cleaned up aged analysis %s (last accessed %s ago)\n",
				shortID(id), time.Since(state.LastAccessed).Round(time.Second))
		}
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
