package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
)

func createTestStore(t *testing.T) *LocalStore {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		if _, err := NewLocalStore(uploadDir); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		content := "2025.08.31 04:00:00 Log        -  [Behaviour] OnLeftRoom\n"
		info, err := store.Save("output_log.txt", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "output_log.txt" {
			t.Errorf("Expected name 'output_log.txt', got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}
		if info.Status != "uploaded" {
			t.Errorf("Expected status 'uploaded', got %v", info.Status)
		}

		// Verify physical file
		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != content {
			t.Errorf("Saved content mismatch: got %q", string(data))
		}
	})

	t.Run("saves empty file", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("empty.log", strings.NewReader(""))
		if err != nil {
			t.Fatalf("Failed to save empty file: %v", err)
		}
		if info.Size != 0 {
			t.Errorf("Expected size 0, got %d", info.Size)
		}
	})
}

func TestLocalStore_SaveBytes(t *testing.T) {
	store := createTestStore(t)

	data := []byte("log payload")
	info, err := store.SaveBytes("bytes.log", data)
	if err != nil {
		t.Fatalf("Failed to save bytes: %v", err)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("Expected size %d, got %d", len(data), info.Size)
	}

	savedData, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(savedData, data) {
		t.Error("Saved data doesn't match original")
	}
}

func TestLocalStore_Get(t *testing.T) {
	t.Run("gets existing file", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("test.log", strings.NewReader("content"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		retrieved, err := store.Get(info.ID)
		if err != nil {
			t.Fatalf("Failed to get file: %v", err)
		}
		if retrieved.ID != info.ID || retrieved.Name != info.Name {
			t.Errorf("Got %+v, want %+v", retrieved, info)
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		store := createTestStore(t)
		if _, err := store.Get("non-existent-id"); err == nil {
			t.Error("Expected error for non-existent file")
		}
	})
}

func TestLocalStore_List(t *testing.T) {
	t.Run("sorts by upload time descending and limits", func(t *testing.T) {
		store := createTestStore(t)

		ids := make([]string, 5)
		for i := 0; i < 5; i++ {
			info, err := store.Save("file.log", strings.NewReader("content"))
			if err != nil {
				t.Fatalf("Failed to save file: %v", err)
			}
			ids[i] = info.ID
			time.Sleep(10 * time.Millisecond)
		}

		files, err := store.List(3)
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}
		if len(files) != 3 {
			t.Fatalf("Expected 3 files, got %d", len(files))
		}
		if files[0].ID != ids[4] {
			t.Error("Expected most recent file first")
		}
	})
}

func TestLocalStore_Delete(t *testing.T) {
	t.Run("deletes file and metadata", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("test.log", strings.NewReader("content"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if err := store.Delete(info.ID); err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}
		if _, err := store.Get(info.ID); err == nil {
			t.Error("Expected error when getting deleted file")
		}
		if _, err := os.Stat(filepath.Join(store.uploadDir, info.ID)); !os.IsNotExist(err) {
			t.Error("Physical file should be deleted")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		store := createTestStore(t)
		if err := store.Delete("non-existent-id"); err == nil {
			t.Error("Expected error when deleting non-existent file")
		}
	})
}

func TestLocalStore_SetStatus(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("test.log", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	if err := store.SetStatus(info.ID, "analyzed"); err != nil {
		t.Fatalf("Failed to set status: %v", err)
	}
	retrieved, _ := store.Get(info.ID)
	if retrieved.Status != "analyzed" {
		t.Errorf("Expected status 'analyzed', got %v", retrieved.Status)
	}

	if err := store.SetStatus("non-existent-id", "analyzed"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLocalStore_GetFilePath(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("test.log", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	path, err := store.GetFilePath(info.ID)
	if err != nil {
		t.Fatalf("Failed to get file path: %v", err)
	}
	if path != filepath.Join(store.uploadDir, info.ID) {
		t.Errorf("Unexpected path %s", path)
	}

	if _, err := store.GetFilePath("non-existent-id"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLocalStore_ChunkedUpload(t *testing.T) {
	t.Run("assembles chunks into final file", func(t *testing.T) {
		store := createTestStore(t)

		uploadID := "upload-complete"
		chunks := []string{"Hello ", "World", "!"}
		for i, content := range chunks {
			var err error
			if i%2 == 0 {
				err = store.SaveChunk(uploadID, i, strings.NewReader(content))
			} else {
				err = store.SaveChunkBytes(uploadID, i, []byte(content))
			}
			if err != nil {
				t.Fatalf("Failed to save chunk %d: %v", i, err)
			}
		}

		info, err := store.CompleteChunkedUpload(uploadID, "assembled.log", len(chunks))
		if err != nil {
			t.Fatalf("Failed to complete upload: %v", err)
		}
		if info.Name != "assembled.log" {
			t.Errorf("Expected name 'assembled.log', got %v", info.Name)
		}

		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read assembled file: %v", err)
		}
		if string(data) != "Hello World!" {
			t.Errorf("Expected 'Hello World!', got %q", string(data))
		}

		chunkDir := filepath.Join(store.uploadDir, "chunks", uploadID)
		if _, err := os.Stat(chunkDir); !os.IsNotExist(err) {
			t.Error("Chunk directory should be cleaned up")
		}
	})

	t.Run("returns error for missing chunks", func(t *testing.T) {
		store := createTestStore(t)

		if err := store.SaveChunk("upload-incomplete", 0, strings.NewReader("chunk0")); err != nil {
			t.Fatalf("Failed to save chunk: %v", err)
		}
		if _, err := store.CompleteChunkedUpload("upload-incomplete", "incomplete.log", 3); err == nil {
			t.Error("Expected error when chunks are missing")
		}
	})
}

func TestLocalStore_RegisterFile(t *testing.T) {
	store := createTestStore(t)

	path := filepath.Join(store.uploadDir, "existing-file")
	content := []byte("existing content")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	store.RegisterFile(&models.FileInfo{
		ID:         "existing-file",
		Name:       "registered.log",
		Size:       int64(len(content)),
		UploadedAt: time.Now(),
		Status:     "uploaded",
	})

	retrieved, err := store.Get("existing-file")
	if err != nil {
		t.Fatalf("Failed to get registered file: %v", err)
	}
	if retrieved.Name != "registered.log" {
		t.Errorf("Expected name 'registered.log', got %v", retrieved.Name)
	}
}

func TestLocalStore_ConcurrentSaves(t *testing.T) {
	store := createTestStore(t)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			_, err := store.Save("file.log", strings.NewReader("content"))
			if err != nil {
				t.Errorf("Failed to save file: %v", err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	files, err := store.List(20)
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(files) != 10 {
		t.Errorf("Expected 10 files, got %d", len(files))
	}
}

// failingReader simulates a broken upload stream.
type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestLocalStore_SaveReadError(t *testing.T) {
	store := createTestStore(t)
	if _, err := store.Save("test.log", failingReader{}); err == nil {
		t.Error("Expected error when reader fails")
	}
}
