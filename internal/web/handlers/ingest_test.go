package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/image-search/internal/database"
	"github.com/kozaktomas/image-search/internal/database/mock"
)

const inlineImages = `"images":[
	{"path":"eiffel/1.jpg","class":"eiffel tower","dominantcolor":"#ffffff"},
	{"path":"eiffel/2.jpg","class":"eiffel tower","dominantcolor":"#0000ff"},
	{"path":"taj/1.jpg","class":"taj mahal","dominantcolor":"#fefefe"}
]`

// registerMockStore installs a mock snapshot store for the duration of a test
func registerMockStore(t *testing.T) *mock.MockSnapshotStore {
	t.Helper()
	store := mock.NewMockSnapshotStore()
	database.RegisterSnapshotStore("mock", func() database.SnapshotWriter { return store })
	t.Cleanup(func() { database.RegisterSnapshotStore("", nil) })
	return store
}

// startIngest posts body to the handler and returns the created job
func startIngest(t *testing.T, handler *IngestHandler, body string) *IngestJob {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/ingest", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()

	handler.Start(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	job := handler.jobManager.GetJob(result["job_id"])
	if job == nil {
		t.Fatalf("job %q not registered", result["job_id"])
	}
	return job
}

// waitForJob polls until the job reaches a terminal state
func waitForJob(t *testing.T, job *IngestJob) *IngestJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if isJobTerminal(job.GetStatus()) {
			return job.View()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish, status %s", job.ID, job.GetStatus())
	return nil
}

func TestIngestHandler_Start_Validation(t *testing.T) {
	handler := NewIngestHandler(testConfig(), newTestEngine(t), NewJobManager())

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"invalid json", `{invalid json}`, errInvalidRequestBody},
		{"nothing to ingest", `{}`, "exactly one of dataset or images is required"},
		{"both sources", `{"dataset":"images.json",` + inlineImages + `}`, "exactly one of dataset or images is required"},
		{"negative per category", `{"per_category":-1,` + inlineImages + `}`, "per_category must not be negative"},
		{"image without path", `{"images":[{"class":"x"}]}`, "image 0 has no path"},
		{"escaping dataset", `{"dataset":"../images.json"}`, "dataset must be a relative path under the images root"},
		{"absolute dataset", `{"dataset":"/etc/images.json"}`, "dataset must be a relative path under the images root"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/ingest", bytes.NewBufferString(tc.body))
			recorder := httptest.NewRecorder()

			handler.Start(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.message)
		})
	}
}

func TestIngestHandler_InlineImages(t *testing.T) {
	store := registerMockStore(t)
	eng := newTestEngine(t)
	handler := NewIngestHandler(testConfig(), eng, NewJobManager())

	job := waitForJob(t, startIngest(t, handler, `{`+inlineImages+`}`))

	if job.Status != JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.Error)
	}
	if job.Result == nil || job.Result.Items != 3 || job.Result.Generation != 1 {
		t.Errorf("unexpected result %+v", job.Result)
	}
	if job.Phase != "done" || job.CompletedAt == nil {
		t.Errorf("unexpected progress phase=%s completed_at=%v", job.Phase, job.CompletedAt)
	}
	if status := eng.Status(); status.Items != 3 {
		t.Errorf("expected 3 items in the engine, got %+v", status)
	}
	if store.Saves() != 1 {
		t.Errorf("expected one saved snapshot, got %d", store.Saves())
	}
}

func TestIngestHandler_PerCategoryWithoutPersist(t *testing.T) {
	store := registerMockStore(t)
	eng := newTestEngine(t)
	handler := NewIngestHandler(testConfig(), eng, NewJobManager())

	// One image per category leaves two items, enough to normalize.
	job := waitForJob(t, startIngest(t, handler, `{"per_category":1,"persist":false,`+inlineImages+`}`))

	if job.Status != JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.Error)
	}
	if job.Result.Items != 2 {
		t.Errorf("expected 2 items, got %d", job.Result.Items)
	}
	if store.Saves() != 0 {
		t.Errorf("expected no saves, got %d", store.Saves())
	}
}

func TestIngestHandler_DatasetFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "images.json"), []byte(`{`+inlineImages+`}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Images.Root = dir
	handler := NewIngestHandler(cfg, newTestEngine(t), NewJobManager())

	job := waitForJob(t, startIngest(t, handler, `{"dataset":"images.json","persist":false}`))

	if job.Status != JobStatusCompleted || job.Source != "images.json" {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestIngestHandler_FailedBuild(t *testing.T) {
	eng := newTestEngine(t)
	handler := NewIngestHandler(testConfig(), eng, NewJobManager())

	body := `{"persist":false,"images":[{"path":"eiffel/1.jpg","class":"eiffel tower","dominantcolor":"#ffffff"},{"path":"missing.jpg","class":"taj mahal","dominantcolor":"#ffffff"}]}`
	job := waitForJob(t, startIngest(t, handler, body))

	if job.Status != JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.Error, "missing.jpg") {
		t.Errorf("expected error to name the image, got %q", job.Error)
	}
	if eng.Status().State != "empty" {
		t.Error("a failed build must not publish a generation")
	}
}

func TestIngestHandler_SaveFailure(t *testing.T) {
	store := registerMockStore(t)
	store.SaveError = errors.New("disk full")
	eng := newTestEngine(t)
	handler := NewIngestHandler(testConfig(), eng, NewJobManager())

	job := waitForJob(t, startIngest(t, handler, `{`+inlineImages+`}`))

	if job.Status != JobStatusFailed || !strings.Contains(job.Error, "disk full") {
		t.Errorf("unexpected job status %s (%s)", job.Status, job.Error)
	}
	// The generation is still served from memory.
	if eng.Status().Items != 3 {
		t.Errorf("expected the published generation to stay, got %+v", eng.Status())
	}
}

func TestIngestHandler_Status(t *testing.T) {
	handler := NewIngestHandler(testConfig(), newTestEngine(t), NewJobManager())
	handler.jobManager.CreateJob("job-1", "inline", IngestJobOptions{})

	tests := []struct {
		name   string
		jobID  string
		status int
	}{
		{"found", "job-1", http.StatusOK},
		{"not found", "nonexistent", http.StatusNotFound},
		{"missing", "", http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/ingest/"+tc.jobID, nil)
			req = requestWithChiParams(req, map[string]string{"jobId": tc.jobID})
			recorder := httptest.NewRecorder()

			handler.Status(recorder, req)

			assertStatusCode(t, recorder, tc.status)
		})
	}
}

func TestIngestHandler_Cancel(t *testing.T) {
	handler := NewIngestHandler(testConfig(), newTestEngine(t), NewJobManager())
	job := handler.jobManager.CreateJob("cancel-test-job", "inline", IngestJobOptions{})
	job.Status = JobStatusRunning

	req := httptest.NewRequest("DELETE", "/api/v1/ingest/cancel-test-job", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "cancel-test-job"})
	recorder := httptest.NewRecorder()

	handler.Cancel(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]bool
	parseJSONResponse(t, recorder, &result)
	if !result["cancelled"] {
		t.Error("expected cancelled to be true")
	}
	if job.GetStatus() != JobStatusCancelled {
		t.Errorf("expected cancelled status, got %s", job.GetStatus())
	}

	req = httptest.NewRequest("DELETE", "/api/v1/ingest/nonexistent", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "nonexistent"})
	recorder = httptest.NewRecorder()
	handler.Cancel(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "job not found")
}

func TestIngestHandler_EventsForFinishedJob(t *testing.T) {
	handler := NewIngestHandler(testConfig(), newTestEngine(t), NewJobManager())
	job := handler.jobManager.CreateJob("done-job", "inline", IngestJobOptions{})
	job.finish(JobStatusCompleted, "", nil)

	req := httptest.NewRequest("GET", "/api/v1/ingest/done-job/events", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "done-job"})
	recorder := httptest.NewRecorder()

	handler.Events(recorder, req)

	assertContentType(t, recorder, "text/event-stream")
	body := recorder.Body.String()
	if !strings.HasPrefix(body, "event: status\ndata: ") {
		t.Errorf("unexpected SSE body %q", body)
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Errorf("expected completed status in %q", body)
	}
}

func TestIngestHandler_EventsJobNotFound(t *testing.T) {
	handler := NewIngestHandler(testConfig(), newTestEngine(t), NewJobManager())

	req := httptest.NewRequest("GET", "/api/v1/ingest/nope/events", nil)
	req = requestWithChiParams(req, map[string]string{"jobId": "nope"})
	recorder := httptest.NewRecorder()

	handler.Events(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestIngestJob_Listeners(t *testing.T) {
	job := &IngestJob{ID: "test-job-listeners", Status: JobStatusRunning}

	ch := job.AddListener()
	if ch == nil {
		t.Fatal("expected channel from AddListener")
	}

	go func() {
		job.SendEvent(JobEvent{Type: "test", Message: "hello"})
	}()

	event := <-ch
	if event.Type != "test" || event.Message != "hello" {
		t.Errorf("unexpected event %+v", event)
	}

	job.RemoveListener(ch)
	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after RemoveListener")
	}
}

func TestIngestJob_CancelAfterFinish(t *testing.T) {
	job := &IngestJob{ID: "finished", Status: JobStatusRunning}
	if !job.finish(JobStatusCompleted, "", nil) {
		t.Fatal("expected finish to succeed")
	}

	job.Cancel()

	if job.GetStatus() != JobStatusCompleted {
		t.Errorf("a finished job must keep its status, got %s", job.GetStatus())
	}
	if job.finish(JobStatusFailed, "late", nil) {
		t.Error("finish must not overwrite a terminal status")
	}
}

func TestJobManager(t *testing.T) {
	manager := NewJobManager()
	running := manager.CreateJob("running", "inline", IngestJobOptions{})
	running.Status = JobStatusRunning
	done := manager.CreateJob("done", "inline", IngestJobOptions{})
	done.finish(JobStatusCompleted, "", nil)

	manager.CancelAll()

	if running.GetStatus() != JobStatusCancelled {
		t.Errorf("expected running job to be cancelled, got %s", running.GetStatus())
	}
	if done.GetStatus() != JobStatusCompleted {
		t.Errorf("expected finished job to stay completed, got %s", done.GetStatus())
	}

	manager.DeleteJob("done")
	if manager.GetJob("done") != nil {
		t.Error("expected job to be deleted")
	}
}
