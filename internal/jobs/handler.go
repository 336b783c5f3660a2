package jobs

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kubev2v/doc-processor/internal/document"
	"github.com/kubev2v/doc-processor/internal/events"
	"github.com/kubev2v/doc-processor/internal/queue"
	"github.com/kubev2v/doc-processor/pkg/metrics"
	"github.com/kubev2v/doc-processor/pkg/offload"
)

// DocumentProcessor converts a document and writes its artifacts.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, inputPath, chunksPath, markdownPath string) (*document.Stats, error)
}

type EventWriter interface {
	WriteJobEvent(ctx context.Context, kind string, ev events.JobEvent) error
}

type HandlerOption func(h *Handler)

// WithEvents publishes the lifecycle of every job to w.
func WithEvents(w EventWriter) HandlerOption {
	return func(h *Handler) {
		h.events = w
	}
}

type Handler struct {
	processor DocumentProcessor
	pool      *offload.Pool
	validator *Validator
	events    EventWriter
	log       *zap.SugaredLogger
}

func NewHandler(processor DocumentProcessor, pool *offload.Pool, opts ...HandlerOption) *Handler {
	h := &Handler{
		processor: processor,
		pool:      pool,
		validator: NewValidator(),
		log:       zap.S().Named("document_job"),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Process handles one delivery of a document job. The conversion runs on
// the offload pool; Process blocks until it is over.
func (h *Handler) Process(ctx context.Context, job *queue.Job, token string) error {
	ev := events.JobEvent{
		JobID:   job.ID,
		JobName: job.Name,
		Token:   token,
		Attempt: job.AttemptsMade + 1,
	}

	args, err := h.parse(job)
	if err != nil {
		h.log.Errorw("rejecting job", "id", job.ID, "token", token, "error", err)
		ev.Error = err.Error()
		h.emit(ctx, events.JobFailedKind, ev)
		metrics.JobStarted()(err)
		return err
	}

	ev.InputFilePath = args.InputFilePath
	ev.ChunkedJSONOutputFilePath = args.ChunkedJSONOutputFilePath
	ev.MarkdownOutputFilePath = args.MarkdownOutputFilePath

	h.log.Infow("Processing job", "id", job.ID, "token", token, "input", args.InputFilePath, "attempt", ev.Attempt)
	h.emit(ctx, events.JobStartedKind, ev)

	start := time.Now()
	done := metrics.JobStarted()

	stats, err := offload.Submit(ctx, h.pool, func() (*document.Stats, error) {
		return h.processor.ProcessDocument(ctx, args.InputFilePath, args.ChunkedJSONOutputFilePath, args.MarkdownOutputFilePath)
	}).Await(ctx)

	done(err)
	ev.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		h.log.Errorw("Job failed", "id", job.ID, "token", token, "input", args.InputFilePath, "error", err)
		ev.Error = err.Error()
		h.emit(ctx, events.JobFailedKind, ev)
		return err
	}

	metrics.IncreaseDocumentsMetric(string(stats.Format), stats.Chunks)
	ev.Format = string(stats.Format)
	ev.Chunks = stats.Chunks
	h.emit(ctx, events.JobCompletedKind, ev)

	h.log.Infow("Job completed", "id", job.ID, "token", token, "chunks", stats.Chunks, "duration", time.Since(start))

	return nil
}

func (h *Handler) parse(job *queue.Job) (*DocumentJobArgs, error) {
	if len(job.Data) == 0 {
		return nil, NewErrInvalidPayload(job.ID, "empty payload")
	}

	args := new(DocumentJobArgs)
	if err := json.Unmarshal(job.Data, args); err != nil {
		return nil, NewErrInvalidPayload(job.ID, err.Error())
	}
	if err := h.validator.Struct(args); err != nil {
		return nil, NewErrInvalidPayload(job.ID, err.Error())
	}

	return args, nil
}

func (h *Handler) emit(ctx context.Context, kind string, ev events.JobEvent) {
	if h.events == nil {
		return
	}
	if err := h.events.WriteJobEvent(ctx, kind, ev); err != nil {
		h.log.Errorw("failed to publish job event", "id", ev.JobID, "kind", kind, "error", err)
	}
}
