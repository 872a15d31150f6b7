package upload

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

// stubStore is an in-memory Store for job tests.
type stubStore struct {
	mu           sync.Mutex
	files        map[string]*models.FileInfo
	failAssemble bool
}

func newStubStore() *stubStore {
	return &stubStore{files: make(map[string]*models.FileInfo)}
}

func (s *stubStore) CompleteChunkedUpload(uploadID string, name string, totalChunks int) (*models.FileInfo, error) {
	if s.failAssemble {
		return nil, errors.New("chunk 0 missing")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info := &models.FileInfo{
		ID:         "file-" + uploadID,
		Name:       name,
		Size:       42,
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}
	s.files[info.ID] = info
	return info, nil
}

func (s *stubStore) GetFilePath(id string) (string, error) {
	return "/nonexistent/" + id, nil
}

func (s *stubStore) RegisterFile(info *models.FileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = info
}

var _ Store = (*stubStore)(nil)

func waitForJob(t *testing.T, m *Manager, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := m.GetJob(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.Status == StatusComplete || job.Status == StatusError {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return nil
}

func TestJobLifecycle(t *testing.T) {
	m := NewManager(newStubStore())

	job := m.StartJob("u1", "output_log.txt", 2, 0, 0, "identity")
	if job.ID == "" || job.Status != StatusProcessing {
		t.Fatalf("unexpected initial job: %+v", job)
	}

	done := waitForJob(t, m, job.ID)
	if done.Status != StatusComplete {
		t.Fatalf("status = %s, error = %s", done.Status, done.Error)
	}
	if done.Progress != 100 {
		t.Errorf("Progress = %v, want 100", done.Progress)
	}
	if done.FileInfo == nil || done.FileInfo.Name != "output_log.txt" {
		t.Errorf("FileInfo = %+v", done.FileInfo)
	}
	if done.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestJobAssemblyFailure(t *testing.T) {
	store := newStubStore()
	store.failAssemble = true
	m := NewManager(store)

	job := m.StartJob("u1", "output_log.txt", 2, 0, 0, "identity")
	done := waitForJob(t, m, job.ID)
	if done.Status != StatusError {
		t.Fatalf("status = %s, want error", done.Status)
	}
	if done.Error == "" {
		t.Error("expected an error message")
	}
}

func TestGetJobReturnsSnapshot(t *testing.T) {
	m := NewManager(newStubStore())

	job := m.StartJob("u1", "output_log.txt", 1, 0, 0, "identity")

	// Mutating a returned job must not leak into the manager; processJob
	// owns the stored struct.
	job.Error = "mutated by caller"

	done := waitForJob(t, m, job.ID)
	if done.Error != "" {
		t.Errorf("caller mutation leaked into manager state: %q", done.Error)
	}

	snap1, _ := m.GetJob(job.ID)
	snap2, _ := m.GetJob(job.ID)
	if snap1 == snap2 {
		t.Error("GetJob must return a fresh snapshot per call")
	}
}

func TestCleanupOldJobs(t *testing.T) {
	m := NewManager(newStubStore())

	job := m.StartJob("u1", "output_log.txt", 1, 0, 0, "identity")
	waitForJob(t, m, job.ID)

	m.CleanupOldJobs(time.Hour)
	if _, ok := m.GetJob(job.ID); !ok {
		t.Error("fresh job should survive cleanup")
	}

	time.Sleep(5 * time.Millisecond)
	m.CleanupOldJobs(0)
	if _, ok := m.GetJob(job.ID); ok {
		t.Error("finished job older than maxAge should be removed")
	}
}
