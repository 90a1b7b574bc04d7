package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scribe/internal/jobs"
	"scribe/internal/journal"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// Probes expose worker liveness details for the health endpoint.
type Probes struct {
	ModelLoaded     func() bool
	BrokerConnected func() bool
}

// JobReader reads batch job progress, implemented by the jobs store.
type JobReader interface {
	Progress(ctx context.Context, jobID string) (jobs.JobStatus, error)
}

// JournalReader lists recorded task outcomes.
type JournalReader interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Server is the synchronous HTTP surface next to the broker consumer: direct
// transcription, batch jobs, job progress, and health.
type Server struct {
	engine  *gin.Engine
	httpSrv *http.Server

	downloader jobs.Downloader
	processor  jobs.Processor
	jobStore   JobReader
	jobSink    jobs.Progress
	runner     *jobs.Runner
	outcomes   JournalReader
	probes     Probes
	workDir    string
	logger     *slog.Logger

	// batchCtx outlives individual requests so queued batches keep running
	// after the submitting client disconnects.
	batchCtx context.Context
}

// Options collects the server's collaborators.
type Options struct {
	Bind       string
	WorkDir    string
	Downloader jobs.Downloader
	Processor  jobs.Processor
	JobStore   JobReader
	JobSink    jobs.Progress
	Runner     *jobs.Runner
	Outcomes   JournalReader
	Probes     Probes
	BatchCtx   context.Context
	Logger     *slog.Logger
}

// New builds the server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	batchCtx := opts.BatchCtx
	if batchCtx == nil {
		batchCtx = context.Background()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		engine:     engine,
		downloader: opts.Downloader,
		processor:  opts.Processor,
		jobStore:   opts.JobStore,
		jobSink:    opts.JobSink,
		runner:     opts.Runner,
		outcomes:   opts.Outcomes,
		probes:     opts.Probes,
		workDir:    opts.WorkDir,
		logger:     logging.NewComponentLogger(logger, "api"),
		batchCtx:   batchCtx,
	}

	engine.Use(gin.Recovery(), s.requestLogger())
	engine.GET("/health", s.health)
	engine.POST("/transcribe", s.transcribe)
	engine.POST("/transcribe/batch", s.transcribeBatch)
	engine.GET("/job/:id", s.jobProgress)
	engine.GET("/journal", s.listJournal)

	s.httpSrv = &http.Server{
		Addr:              opts.Bind,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", logging.String("bind", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// requestLogger stamps each request with an id and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))
		started := time.Now()

		c.Next()

		s.logger.Info("request",
			logging.String(logging.FieldCorrelationID, requestID),
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(started)))
	}
}
