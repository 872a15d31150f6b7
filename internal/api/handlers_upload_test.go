package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElMoha943/VRC-LogAnalyzer/internal/models"
	"github.com/ElMoha943/VRC-LogAnalyzer/internal/testutil"
	"github.com/ElMoha943/VRC-LogAnalyzer/internal/upload"
)

const sampleLogContent = "2025.08.31 04:10:00 Log        -  [Behaviour] OnPlayerJoined Alice (usr_1)\n"

func newUploadHandlerForTest() (UploadHandler, *testutil.MockStorage, *upload.Manager) {
	store := testutil.NewMockStorage()
	mgr := upload.NewManager(store)
	return NewUploadHandler(store, mgr), store, mgr
}

func TestHandleUploadFile(t *testing.T) {
	h, store, _ := newUploadHandlerForTest()

	body, _ := json.Marshal(map[string]string{
		"name": "output_log_2025-08-31.txt",
		"data": base64.StdEncoding.EncodeToString([]byte(sampleLogContent)),
	})
	c, rec := newAnalyzeTestContext(http.MethodPost, "/api/files/upload", string(body))

	require.NoError(t, h.HandleUploadFile(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var info models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "output_log_2025-08-31.txt", info.Name)
	assert.Equal(t, int64(len(sampleLogContent)), info.Size)

	data, err := store.GetFileData(info.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleLogContent, string(data))
}

func TestHandleUploadFile_Validation(t *testing.T) {
	h, _, _ := newUploadHandlerForTest()

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"data":"aGVsbG8="}`},
		{"missing data", `{"name":"log.txt"}`},
		{"bad extension", `{"name":"malware.exe","data":"aGVsbG8="}`},
		{"invalid base64", `{"name":"log.txt","data":"!!!not-base64!!!"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newAnalyzeTestContext(http.MethodPost, "/api/files/upload", tt.body)
			err := h.HandleUploadFile(c)
			require.Error(t, err)
			apiErr, ok := err.(*APIError)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		})
	}
}

func TestHandleUploadBinary(t *testing.T) {
	h, store, _ := newUploadHandlerForTest()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "output_log.txt")
	require.NoError(t, err)
	fw.Write([]byte(sampleLogContent))
	mw.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleUploadBinary(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, store.GetFileCount())
}

func TestHandleUploadBinary_RejectsUnsupportedExtension(t *testing.T) {
	h, store, _ := newUploadHandlerForTest()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "installer.exe")
	require.NoError(t, err)
	fw.Write([]byte("MZ"))
	mw.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	uploadErr := h.HandleUploadBinary(c)
	require.Error(t, uploadErr)
	assert.Equal(t, http.StatusBadRequest, uploadErr.(*APIError).Status)
	assert.Equal(t, 0, store.GetFileCount())
}

func TestChunkedUploadFlow(t *testing.T) {
	h, store, mgr := newUploadHandlerForTest()

	chunks := []string{"2025.08.31 04:10:00 Log        -  [Behaviour] ", "OnPlayerJoined Alice (usr_1)\n"}
	for i, chunk := range chunks {
		body, _ := json.Marshal(map[string]interface{}{
			"uploadId":   "upload-1",
			"chunkIndex": i,
			"data":       base64.StdEncoding.EncodeToString([]byte(chunk)),
		})
		c, rec := newAnalyzeTestContext(http.MethodPost, "/api/files/upload/chunk", string(body))
		require.NoError(t, h.HandleUploadChunk(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"uploadId":    "upload-1",
		"name":        "output_log.txt",
		"totalChunks": len(chunks),
		"encoding":    "identity",
	})
	c, rec := newAnalyzeTestContext(http.MethodPost, "/api/files/upload/complete", string(body))
	require.NoError(t, h.HandleCompleteUpload(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	jobID, _ := resp["jobId"].(string)
	require.NotEmpty(t, jobID)

	// Assembly runs in the background; poll the job until it finishes.
	deadline := time.Now().Add(5 * time.Second)
	var job *upload.Job
	for time.Now().Before(deadline) {
		j, ok := mgr.GetJob(jobID)
		require.True(t, ok)
		if j.Status == upload.StatusComplete || j.Status == upload.StatusError {
			job = j
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, job, "upload job did not finish in time")
	require.Equal(t, upload.StatusComplete, job.Status)
	require.NotNil(t, job.FileInfo)

	data, err := store.GetFileData(job.FileInfo.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleLogContent, string(data))

	// Job status is also reachable over the API.
	c, rec = newAnalyzeTestContext(http.MethodGet, "/api/files/upload/jobs/"+jobID, "")
	c.SetParamNames("jobId")
	c.SetParamValues(jobID)
	require.NoError(t, h.HandleUploadJobStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCompleteUpload_Validation(t *testing.T) {
	h, _, _ := newUploadHandlerForTest()

	tests := []struct {
		name string
		body string
	}{
		{"missing uploadId", `{"name":"log.txt","totalChunks":1}`},
		{"missing name", `{"uploadId":"u1","totalChunks":1}`},
		{"zero chunks", `{"uploadId":"u1","name":"log.txt","totalChunks":0}`},
		{"bad extension", `{"uploadId":"u1","name":"log.pdf","totalChunks":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newAnalyzeTestContext(http.MethodPost, "/api/files/upload/complete", tt.body)
			err := h.HandleCompleteUpload(c)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, err.(*APIError).Status)
		})
	}
}

func TestHandleUploadJobStatus_NotFound(t *testing.T) {
	h, _, _ := newUploadHandlerForTest()

	c, _ := newAnalyzeTestContext(http.MethodGet, "/api/files/upload/jobs/missing", "")
	c.SetParamNames("jobId")
	c.SetParamValues("missing")
	err := h.HandleUploadJobStatus(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, err.(*APIError).Status)
}

func TestHandleGetRecentFiles(t *testing.T) {
	h, store, _ := newUploadHandlerForTest()
	store.AddFile("file-1", "a.txt", []byte("a"))
	store.AddFile("file-2", "b.txt", []byte("b"))

	c, rec := newAnalyzeTestContext(http.MethodGet, "/api/files/recent", "")
	require.NoError(t, h.HandleGetRecentFiles(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var files []*models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 2)
}

func TestHandleGetFile(t *testing.T) {
	h, store, _ := newUploadHandlerForTest()
	store.AddFile("file-1", "a.txt", []byte("a"))

	c, rec := newAnalyzeTestContext(http.MethodGet, "/api/files/file-1", "")
	c.SetParamNames("id")
	c.SetParamValues("file-1")
	require.NoError(t, h.HandleGetFile(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = newAnalyzeTestContext(http.MethodGet, "/api/files/missing", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")
	err := h.HandleGetFile(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, err.(*APIError).Status)
}

func TestHandleDeleteFile(t *testing.T) {
	h, store, _ := newUploadHandlerForTest()
	store.AddFile("file-1", "a.txt", []byte("a"))

	c, rec := newAnalyzeTestContext(http.MethodDelete, "/api/files/file-1", "")
	c.SetParamNames("id")
	c.SetParamValues("file-1")
	require.NoError(t, h.HandleDeleteFile(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, store.GetFileCount())
}

func TestErrorHandlerRendersAPIError(t *testing.T) {
	c, rec := newAnalyzeTestContext(http.MethodGet, "/api/files/missing", "")

	ErrorHandler(NewNotFoundError("file", "missing"), c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
}
