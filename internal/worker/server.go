package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/perflab/internal/config"
	"github.com/dunamismax/perflab/internal/domain"
	"github.com/dunamismax/perflab/internal/queue"
	"github.com/dunamismax/perflab/internal/store"
	"github.com/dunamismax/perflab/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusRetrying  = "retrying"
)

type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	attachments   store.AttachmentStore
	objects       ObjectChecker
	webhookClient webhookSender
	metrics       *metrics
	tracer        trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

// ObjectChecker confirms that an attachment's original upload exists.
type ObjectChecker interface {
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

// NewServer builds the attachment ingestion worker. objects may be nil, in
// which case uploads are not checked against object storage.
func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	attachments store.AttachmentStore,
	objects ObjectChecker,
	webhookClient webhookSender,
) (*Server, error) {
	if attachments == nil {
		return nil, fmt.Errorf("attachment store is required")
	}

	s := newHandlerServer(logger, attachments, objects, webhookClient)
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: max(1, workerCfg.Concurrency),
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.InfoLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
			}),
		},
	)
	return s, nil
}

func newHandlerServer(logger *log.Logger, attachments store.AttachmentStore, objects ObjectChecker, webhookClient webhookSender) *Server {
	return &Server{
		logger:        logger,
		attachments:   attachments,
		objects:       objects,
		webhookClient: webhookClient,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("perflab/worker"),
	}
}

func (s *Server) Handler() asynq.Handler {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeUpsertAttachment, s.handleUpsertAttachment)
	mux.HandleFunc(queue.TypeDeleteAttachment, s.handleDeleteAttachment)
	return mux
}

func (s *Server) Run() error {
	return s.server.Run(s.Handler())
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleUpsertAttachment(ctx context.Context, task *asynq.Task) (err error) {
	payload, err := queue.ParseUpsertAttachmentPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	att := payload.Attachment

	ctx, span := s.tracer.Start(ctx, "worker.upsert_attachment", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.Int64("attachment.id", att.ID),
		attribute.String("attachment.mime_type", att.MimeType),
		attribute.String("request.id", payload.RequestID),
	)
	defer span.End()
	s.metrics.activeTasks.Inc()
	defer s.track(queue.TypeUpsertAttachment, time.Now(), &err)

	s.logger.Printf("Storing attachment_id=%d file=%s request_id=%s", att.ID, att.AttachedFile, payload.RequestID)

	if err := att.Validate(); err != nil {
		return s.reject(ctx, span, payload, err)
	}

	if s.objects != nil {
		exists, err := s.objects.ObjectExists(ctx, att.AttachedFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "object lookup failed")
			return fmt.Errorf("check upload for attachment %d: %w", att.ID, err)
		}
		if !exists {
			return s.reject(ctx, span, payload, fmt.Errorf("%w: upload %s not found", domain.ErrInvalidAttachment, att.AttachedFile))
		}
	}

	if err := s.attachments.Upsert(ctx, att); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return fmt.Errorf("store attachment %d: %w", att.ID, err)
	}

	sizes, webpSizes := countSizes(att.Metadata)
	s.metrics.sizesIngested.Add(float64(sizes))
	s.metrics.webpSizesIngested.Add(float64(webpSizes))
	s.logger.Printf("Stored attachment_id=%d sizes=%d webp_sizes=%d", att.ID, sizes, webpSizes)

	if err := s.dispatchWebhook(ctx, payload.CallbackURL, webhook.EventAttachmentStored, map[string]any{
		"attachment_id": att.ID,
		"request_id":    payload.RequestID,
		"status":        statusSucceeded,
		"requested_at":  payload.RequestedAt,
		"stored_at":     time.Now().UTC(),
		"sizes":         sizes,
		"webp_sizes":    webpSizes,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	span.SetStatus(codes.Ok, "stored")
	return nil
}

// reject reports an attachment that can never be stored and stops retries.
func (s *Server) reject(ctx context.Context, span trace.Span, payload queue.UpsertAttachmentPayload, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "invalid attachment")
	s.logger.Printf("Rejected attachment_id=%d request_id=%s err=%v", payload.Attachment.ID, payload.RequestID, cause)

	_ = s.dispatchWebhook(ctx, payload.CallbackURL, webhook.EventAttachmentFailed, map[string]any{
		"attachment_id": payload.Attachment.ID,
		"request_id":    payload.RequestID,
		"status":        statusFailed,
		"requested_at":  payload.RequestedAt,
		"failed_at":     time.Now().UTC(),
		"error":         cause.Error(),
	})
	return fmt.Errorf("%w: %w", cause, asynq.SkipRetry)
}

func (s *Server) handleDeleteAttachment(ctx context.Context, task *asynq.Task) (err error) {
	payload, err := queue.ParseDeleteAttachmentPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.delete_attachment", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.Int64("attachment.id", payload.AttachmentID),
		attribute.String("request.id", payload.RequestID),
	)
	defer span.End()
	s.metrics.activeTasks.Inc()
	defer s.track(queue.TypeDeleteAttachment, time.Now(), &err)

	err = s.attachments.Delete(ctx, payload.AttachmentID)
	switch {
	case errors.Is(err, store.ErrAttachmentNotFound):
		s.logger.Printf("Delete skipped attachment_id=%d request_id=%s reason=not_found", payload.AttachmentID, payload.RequestID)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("delete attachment %d: %w", payload.AttachmentID, err)
	default:
		s.logger.Printf("Deleted attachment_id=%d request_id=%s", payload.AttachmentID, payload.RequestID)
	}

	if err := s.dispatchWebhook(ctx, payload.CallbackURL, webhook.EventAttachmentDeleted, map[string]any{
		"attachment_id": payload.AttachmentID,
		"request_id":    payload.RequestID,
		"status":        statusSucceeded,
		"requested_at":  payload.RequestedAt,
		"deleted_at":    time.Now().UTC(),
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	span.SetStatus(codes.Ok, "deleted")
	return nil
}

func (s *Server) track(taskType string, startedAt time.Time, errp *error) {
	s.metrics.activeTasks.Dec()
	status := statusSucceeded
	if err := *errp; err != nil {
		status = statusRetrying
		if errors.Is(err, asynq.SkipRetry) {
			status = statusFailed
		}
	}
	s.metrics.taskDuration.WithLabelValues(taskType, status).Observe(time.Since(startedAt).Seconds())
	s.metrics.tasksTotal.WithLabelValues(taskType, status).Inc()
}

func (s *Server) dispatchWebhook(ctx context.Context, endpoint, event string, body map[string]any) error {
	if endpoint == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, endpoint, event, body); err != nil {
		s.metrics.webhooksTotal.WithLabelValues(event, statusFailed).Inc()
		s.logger.Printf("webhook delivery failed event=%s attachment_id=%v err=%v", event, body["attachment_id"], err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	s.metrics.webhooksTotal.WithLabelValues(event, statusSucceeded).Inc()
	return nil
}

func countSizes(meta *domain.ImageMetadata) (sizes, webpSizes int) {
	if meta == nil {
		return 0, 0
	}
	for _, entry := range meta.Sizes {
		sizes++
		if _, ok := entry.Source(domain.MimeTypeWebP); ok {
			webpSizes++
		}
	}
	return sizes, webpSizes
}
