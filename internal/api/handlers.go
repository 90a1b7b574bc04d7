package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/task"
)

// transcribeRequest is the body of POST /transcribe.
type transcribeRequest struct {
	RecordingID string `json:"recording_id" binding:"required"`
	FileURL     string `json:"file_url" binding:"required"`
	Language    string `json:"language,omitempty"`
}

// transcribeResponse is the synchronous transcription result.
type transcribeResponse struct {
	RecordingID string             `json:"recording_id"`
	Text        string             `json:"text"`
	Segments    []task.TextSegment `json:"segments"`
	Duration    float64            `json:"duration"`
}

func (s *Server) health(c *gin.Context) {
	modelLoaded := s.probes.ModelLoaded == nil || s.probes.ModelLoaded()
	brokerConnected := s.probes.BrokerConnected != nil && s.probes.BrokerConnected()
	status := "healthy"
	if !modelLoaded {
		status = "starting"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"model_loaded":     modelLoaded,
		"broker_connected": brokerConnected,
	})
}

// transcribe downloads the object and runs the pipeline inline. Permanent
// input errors map to 404, everything else to 500.
func (s *Server) transcribe(c *gin.Context) {
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.probes.ModelLoaded != nil && !s.probes.ModelLoaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not loaded"})
		return
	}

	ctx := c.Request.Context()
	dir, err := os.MkdirTemp(s.workDir, "api-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "workspace unavailable"})
		return
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(req.FileURL)
	if ext == "" {
		ext = ".ogg"
	}
	localPath := filepath.Join(dir, "source"+ext)
	if err := s.downloader.Download(ctx, req.FileURL, localPath); err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.processor.Process(ctx, req.RecordingID, localPath, req.Language)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transcribeResponse{
		RecordingID: req.RecordingID,
		Text:        result.Text,
		Segments:    result.Segments,
		Duration:    result.Duration,
	})
}

// transcribeBatch queues the items and returns immediately; the runner works
// through them on the daemon context.
func (s *Server) transcribeBatch(c *gin.Context) {
	var items []jobs.BatchItem
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}

	jobID := jobs.NewJobID()
	if s.jobSink != nil {
		if err := s.jobSink.SetProgress(c.Request.Context(), jobID, "queued", 0, len(items)); err != nil {
			s.logger.Warn("initial progress write failed", logging.Error(err))
		}
	}
	go s.runner.Run(s.batchCtx, jobID, items)

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"status": "queued",
		"count":  len(items),
	})
}

func (s *Server) jobProgress(c *gin.Context) {
	status, err := s.jobStore.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "job store unavailable"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) listJournal(c *gin.Context) {
	if s.outcomes == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	entries, err := s.outcomes.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal unavailable"})
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"task_id":            e.TaskID,
			"recording_id":       e.RecordingID,
			"status":             e.Status,
			"error":              e.Error,
			"attempts":           e.Attempts,
			"duration":           e.DurationSeconds,
			"processing_time_ms": e.ProcessingMS,
			"created_at":         e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": out})
}

func (s *Server) respondError(c *gin.Context, err error) {
	if services.IsPermanent(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", logging.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
