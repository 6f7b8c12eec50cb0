package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/constants"
	"github.com/kozaktomas/image-search/internal/database"
	"github.com/kozaktomas/image-search/internal/dataset"
	"github.com/kozaktomas/image-search/internal/engine"
)

// IngestHandler handles corpus build jobs
type IngestHandler struct {
	config     *config.Config
	engine     *engine.Engine
	jobManager *JobManager
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(cfg *config.Config, eng *engine.Engine, jm *JobManager) *IngestHandler {
	return &IngestHandler{
		config:     cfg,
		engine:     eng,
		jobManager: jm,
	}
}

// IngestRequest starts a build either from a manifest under the images root
// or from inline images.
type IngestRequest struct {
	Dataset        string          `json:"dataset"`
	Images         []dataset.Image `json:"images"`
	PerCategory    int             `json:"per_category"`
	AllowPartial   bool            `json:"allow_partial"`
	StrictCapacity bool            `json:"strict_capacity"`
	Persist        *bool           `json:"persist"` // default true
}

// Start starts a new ingest job
func (h *IngestHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if (req.Dataset == "") == (len(req.Images) == 0) {
		respondError(w, http.StatusBadRequest, "exactly one of dataset or images is required")
		return
	}
	if req.PerCategory < 0 {
		respondError(w, http.StatusBadRequest, "per_category must not be negative")
		return
	}

	ds, source, err := h.loadDataset(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	options := IngestJobOptions{
		PerCategory:    req.PerCategory,
		AllowPartial:   req.AllowPartial,
		StrictCapacity: req.StrictCapacity,
		Persist:        req.Persist == nil || *req.Persist,
	}

	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, source, options)

	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)

	go h.runIngestJob(ctx, cancel, job, ds)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"source": source,
		"status": string(JobStatusPending),
	})
}

// loadDataset returns the request's images and a label for the job.
func (h *IngestHandler) loadDataset(req IngestRequest) (*dataset.Dataset, string, error) {
	if len(req.Images) > 0 {
		for i, img := range req.Images {
			if img.Path == "" {
				return nil, "", fmt.Errorf("image %d has no path", i)
			}
		}
		return &dataset.Dataset{Images: req.Images}, "inline", nil
	}

	if !filepath.IsLocal(req.Dataset) {
		return nil, "", fmt.Errorf("dataset must be a relative path under the images root")
	}
	ds, err := dataset.Load(filepath.Join(h.config.Images.Root, req.Dataset))
	if err != nil {
		return nil, "", err
	}
	return ds, req.Dataset, nil
}

// Status returns the status of an ingest job
func (h *IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job.View())
}

// Events streams job progress as server-sent events.
func (h *IngestHandler) Events(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	streamJobEvents(w, r, job, func() any { return job.View() })
}

// Cancel cancels an ingest job
func (h *IngestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runIngestJob builds and publishes a generation in the background
func (h *IngestHandler) runIngestJob(ctx context.Context, cancel context.CancelFunc, job *IngestJob, ds *dataset.Dataset) {
	defer cancel()

	if !job.setStatus(JobStatusRunning) {
		return
	}
	job.SendEvent(JobEvent{Type: "started", Message: "Ingest job started"})

	if job.Options.PerCategory > 0 {
		ds = ds.Select(h.config.Search.Categories, job.Options.PerCategory)
	}
	records := ds.Records()
	log.Printf("Ingest job %s: %d records from %s", job.ID, len(records), sanitizeForLog(job.Source))

	report, err := h.engine.Ingest(ctx, records, engine.IngestOptions{
		Workers:        h.config.Ingest.Workers,
		DecodeTimeout:  h.config.Ingest.DecodeTimeout,
		AllowPartial:   job.Options.AllowPartial,
		StrictCapacity: job.Options.StrictCapacity,
		OnProgress: func(p engine.Progress) {
			job.progress(p)
			job.SendEvent(JobEvent{Type: "progress", Data: p})
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("Ingest job %s cancelled", job.ID)
			return
		}
		h.failJob(job, fmt.Sprintf("ingest failed: %v", err))
		return
	}

	if job.Options.Persist && database.IsInitialized() {
		store, err := database.GetSnapshotStore(ctx)
		if err == nil {
			err = h.engine.Save(ctx, store)
		}
		if err != nil {
			h.failJob(job, fmt.Sprintf("generation %d published but not saved: %v", report.Generation, err))
			return
		}
	}

	if job.finish(JobStatusCompleted, "", report) {
		log.Printf("Ingest job %s completed: generation %d with %d items", job.ID, report.Generation, report.Items)
		job.SendEvent(JobEvent{Type: "completed", Message: "Ingest job completed", Data: report})
	}
}

// failJob marks a job as failed
func (h *IngestHandler) failJob(job *IngestJob, errMsg string) {
	if job.finish(JobStatusFailed, errMsg, nil) {
		log.Printf("Ingest job %s failed: %s", job.ID, errMsg)
		job.SendEvent(JobEvent{Type: "job_error", Message: errMsg})
	}
}
